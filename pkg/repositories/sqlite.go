package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, userID string) (*models.User, error) {
	q := `
	INSERT INTO users (id) VALUES (?)
	ON CONFLICT (id) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, q, userID); err != nil {
		return nil, fmt.Errorf("failed to insert user: %v", err)
	}

	return &models.User{ID: userID}, nil
}

func (r *SQLiteRepository) ListCharacters(ctx context.Context, userID string) ([]*models.Character, error) {
	q := `
	SELECT id, user_id, name, dexterity FROM characters WHERE user_id = ? ORDER BY name;
	`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %v", err)
	}
	defer rows.Close()

	characters := []*models.Character{}
	for rows.Next() {
		character := &models.Character{}
		if err := rows.Scan(&character.ID, &character.UserID, &character.Name, &character.Dexterity); err != nil {
			return nil, fmt.Errorf("failed to scan character: %v", err)
		}
		characters = append(characters, character)
	}

	return characters, nil
}

func (r *SQLiteRepository) GetCharacter(ctx context.Context, characterID string) (*models.Character, error) {
	q := `
	SELECT id, user_id, name, dexterity FROM characters WHERE id = ?;
	`
	character := &models.Character{}
	err := r.db.QueryRowContext(ctx, q, characterID).Scan(&character.ID, &character.UserID, &character.Name, &character.Dexterity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan character: %v", err)
	}

	return character, nil
}

func (r *SQLiteRepository) CreateCharacter(ctx context.Context, character *models.Character) (*models.Character, error) {
	character.ID = uuid.New().String()
	q := `
	INSERT INTO characters (id, user_id, name, dexterity) VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, character.ID, character.UserID, character.Name, character.Dexterity); err != nil {
		return nil, fmt.Errorf("failed to insert character: %v", err)
	}

	return character, nil
}

func (r *SQLiteRepository) DeleteCharacter(ctx context.Context, userID string, characterID string) error {
	q := `
	DELETE FROM characters WHERE id = ? AND user_id = ?;
	`
	result, err := r.db.ExecContext(ctx, q, characterID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete character: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if affected == 0 {
		return &ErrNotFound{}
	}

	return nil
}

func (r *SQLiteRepository) ListMonsterTypes(ctx context.Context) ([]*models.MonsterType, error) {
	q := `
	SELECT id, name, dexterity FROM monster_types ORDER BY name;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query monster types: %v", err)
	}
	defer rows.Close()

	monsterTypes := []*models.MonsterType{}
	for rows.Next() {
		monsterType := &models.MonsterType{}
		if err := rows.Scan(&monsterType.ID, &monsterType.Name, &monsterType.Dexterity); err != nil {
			return nil, fmt.Errorf("failed to scan monster type: %v", err)
		}
		monsterTypes = append(monsterTypes, monsterType)
	}

	return monsterTypes, nil
}

func (r *SQLiteRepository) GetMonsterType(ctx context.Context, typeID string) (*models.MonsterType, error) {
	q := `
	SELECT id, name, dexterity FROM monster_types WHERE id = ?;
	`
	monsterType := &models.MonsterType{}
	err := r.db.QueryRowContext(ctx, q, typeID).Scan(&monsterType.ID, &monsterType.Name, &monsterType.Dexterity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan monster type: %v", err)
	}

	return monsterType, nil
}

func (r *SQLiteRepository) CreateMonsterType(ctx context.Context, monsterType *models.MonsterType) (*models.MonsterType, error) {
	monsterType.ID = uuid.New().String()
	q := `
	INSERT INTO monster_types (id, name, dexterity) VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, monsterType.ID, monsterType.Name, monsterType.Dexterity); err != nil {
		return nil, fmt.Errorf("failed to insert monster type: %v", err)
	}

	return monsterType, nil
}

func (r *SQLiteRepository) GetMonsterInstance(ctx context.Context, instanceID string) (*models.MonsterInstance, error) {
	q := `
	SELECT id, campaign_id, type_id, name FROM monster_instances WHERE id = ?;
	`
	instance := &models.MonsterInstance{}
	err := r.db.QueryRowContext(ctx, q, instanceID).Scan(&instance.ID, &instance.CampaignID, &instance.TypeID, &instance.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan monster instance: %v", err)
	}

	return instance, nil
}

func (r *SQLiteRepository) CreateMonsterInstance(ctx context.Context, instance *models.MonsterInstance) (*models.MonsterInstance, error) {
	instance.ID = uuid.New().String()
	q := `
	INSERT INTO monster_instances (id, campaign_id, type_id, name) VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, instance.ID, instance.CampaignID, instance.TypeID, instance.Name); err != nil {
		return nil, fmt.Errorf("failed to insert monster instance: %v", err)
	}

	return instance, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	session := &models.CombatSession{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Status:     models.SessionStatusAssembling,
		CreatedAt:  time.Now().UTC(),
	}
	q := `
	INSERT INTO combat_sessions (id, campaign_id, status, created_at) VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, session.ID, session.CampaignID, session.Status, session.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert session: %v", err)
	}

	return session, nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, sessionID string) (*models.CombatSession, error) {
	q := `
	SELECT id, campaign_id, status, created_at, ordered_ids FROM combat_sessions WHERE id = ?;
	`
	return r.scanSession(r.db.QueryRowContext(ctx, q, sessionID))
}

func (r *SQLiteRepository) FindActiveSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	q := `
	SELECT id, campaign_id, status, created_at, ordered_ids FROM combat_sessions
	WHERE campaign_id = ? AND status = ?
	ORDER BY created_at DESC LIMIT 1;
	`
	return r.scanSession(r.db.QueryRowContext(ctx, q, campaignID, models.SessionStatusAwaitingInitiative))
}

func (r *SQLiteRepository) scanSession(row *sql.Row) (*models.CombatSession, error) {
	session := &models.CombatSession{}
	var orderedIDs sql.NullString
	err := row.Scan(&session.ID, &session.CampaignID, &session.Status, &session.CreatedAt, &orderedIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}
	if orderedIDs.Valid {
		if err := json.Unmarshal([]byte(orderedIDs.String), &session.Order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session order: %v", err)
		}
	}

	return session, nil
}

func (r *SQLiteRepository) TransitionSession(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error) {
	q := `
	UPDATE combat_sessions SET status = ? WHERE id = ? AND status = ?;
	`
	result, err := r.db.ExecContext(ctx, q, to, sessionID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}

	return affected > 0, nil
}

func (r *SQLiteRepository) SetSessionOrder(ctx context.Context, sessionID string, order []string) error {
	orderedIDs, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal session order: %v", err)
	}
	q := `
	UPDATE combat_sessions SET ordered_ids = ? WHERE id = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, string(orderedIDs), sessionID); err != nil {
		return fmt.Errorf("failed to update session order: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) AddParticipant(ctx context.Context, participant *models.Participant) (*models.Participant, error) {
	participant.ID = uuid.New().String()
	q := `
	INSERT INTO participants (id, session_id, name, character_id, monster_instance_id, position)
	VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?);
	`
	_, err := r.db.ExecContext(ctx, q, participant.ID, participant.SessionID, participant.Name,
		participant.CharacterID, participant.MonsterInstanceID, participant.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participant: %v", err)
	}

	return participant, nil
}

func (r *SQLiteRepository) ListParticipants(ctx context.Context, sessionID string) ([]*models.Participant, error) {
	q := `
	SELECT id, session_id, name, COALESCE(character_id, ''), COALESCE(monster_instance_id, ''), initiative, position
	FROM participants WHERE session_id = ? ORDER BY position;
	`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %v", err)
	}
	defer rows.Close()

	participants := []*models.Participant{}
	for rows.Next() {
		participant := &models.Participant{}
		if err := rows.Scan(&participant.ID, &participant.SessionID, &participant.Name,
			&participant.CharacterID, &participant.MonsterInstanceID, &participant.Initiative, &participant.Position); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %v", err)
		}
		participants = append(participants, participant)
	}

	return participants, nil
}

func (r *SQLiteRepository) ClaimInitiative(ctx context.Context, participantID string, value int) (bool, error) {
	// The WHERE clause makes the write-once check and the write a single
	// atomic statement, so two concurrent claims cannot both succeed.
	q := `
	UPDATE participants SET initiative = ? WHERE id = ? AND initiative IS NULL;
	`
	result, err := r.db.ExecContext(ctx, q, value, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to claim initiative: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}

	return affected > 0, nil
}
