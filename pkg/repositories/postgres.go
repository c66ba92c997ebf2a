package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// PostgresRepository is backed by a connection pool. The repository is
// called concurrently from the API handlers, the websocket path, and the
// workers, so a single connection would not do.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, userID string) (*models.User, error) {
	q := `
	INSERT INTO users (id) VALUES ($1)
	ON CONFLICT (id) DO NOTHING;
	`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return nil, fmt.Errorf("failed to insert user: %v", err)
	}

	return &models.User{ID: userID}, nil
}

func (r *PostgresRepository) ListCharacters(ctx context.Context, userID string) ([]*models.Character, error) {
	q := `
	SELECT id, user_id, name, dexterity FROM characters WHERE user_id = $1 ORDER BY name;
	`
	rows, err := r.pool.Query(ctx, q, userID)
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

func (r *PostgresRepository) GetCharacter(ctx context.Context, characterID string) (*models.Character, error) {
	q := `
	SELECT id, user_id, name, dexterity FROM characters WHERE id = $1;
	`
	character := &models.Character{}
	err := r.pool.QueryRow(ctx, q, characterID).Scan(&character.ID, &character.UserID, &character.Name, &character.Dexterity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan character: %v", err)
	}

	return character, nil
}

func (r *PostgresRepository) CreateCharacter(ctx context.Context, character *models.Character) (*models.Character, error) {
	character.ID = uuid.New().String()
	q := `
	INSERT INTO characters (id, user_id, name, dexterity) VALUES ($1, $2, $3, $4);
	`
	if _, err := r.pool.Exec(ctx, q, character.ID, character.UserID, character.Name, character.Dexterity); err != nil {
		return nil, fmt.Errorf("failed to insert character: %v", err)
	}

	return character, nil
}

func (r *PostgresRepository) DeleteCharacter(ctx context.Context, userID string, characterID string) error {
	q := `
	DELETE FROM characters WHERE id = $1 AND user_id = $2;
	`
	tag, err := r.pool.Exec(ctx, q, characterID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete character: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{}
	}

	return nil
}

func (r *PostgresRepository) ListMonsterTypes(ctx context.Context) ([]*models.MonsterType, error) {
	q := `
	SELECT id, name, dexterity FROM monster_types ORDER BY name;
	`
	rows, err := r.pool.Query(ctx, q)
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

func (r *PostgresRepository) GetMonsterType(ctx context.Context, typeID string) (*models.MonsterType, error) {
	q := `
	SELECT id, name, dexterity FROM monster_types WHERE id = $1;
	`
	monsterType := &models.MonsterType{}
	err := r.pool.QueryRow(ctx, q, typeID).Scan(&monsterType.ID, &monsterType.Name, &monsterType.Dexterity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan monster type: %v", err)
	}

	return monsterType, nil
}

func (r *PostgresRepository) CreateMonsterType(ctx context.Context, monsterType *models.MonsterType) (*models.MonsterType, error) {
	monsterType.ID = uuid.New().String()
	q := `
	INSERT INTO monster_types (id, name, dexterity) VALUES ($1, $2, $3);
	`
	if _, err := r.pool.Exec(ctx, q, monsterType.ID, monsterType.Name, monsterType.Dexterity); err != nil {
		return nil, fmt.Errorf("failed to insert monster type: %v", err)
	}

	return monsterType, nil
}

func (r *PostgresRepository) GetMonsterInstance(ctx context.Context, instanceID string) (*models.MonsterInstance, error) {
	q := `
	SELECT id, campaign_id, type_id, name FROM monster_instances WHERE id = $1;
	`
	instance := &models.MonsterInstance{}
	err := r.pool.QueryRow(ctx, q, instanceID).Scan(&instance.ID, &instance.CampaignID, &instance.TypeID, &instance.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan monster instance: %v", err)
	}

	return instance, nil
}

func (r *PostgresRepository) CreateMonsterInstance(ctx context.Context, instance *models.MonsterInstance) (*models.MonsterInstance, error) {
	instance.ID = uuid.New().String()
	q := `
	INSERT INTO monster_instances (id, campaign_id, type_id, name) VALUES ($1, $2, $3, $4);
	`
	if _, err := r.pool.Exec(ctx, q, instance.ID, instance.CampaignID, instance.TypeID, instance.Name); err != nil {
		return nil, fmt.Errorf("failed to insert monster instance: %v", err)
	}

	return instance, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	session := &models.CombatSession{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Status:     models.SessionStatusAssembling,
		CreatedAt:  time.Now().UTC(),
	}
	q := `
	INSERT INTO combat_sessions (id, campaign_id, status, created_at) VALUES ($1, $2, $3, $4);
	`
	if _, err := r.pool.Exec(ctx, q, session.ID, session.CampaignID, session.Status, session.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert session: %v", err)
	}

	return session, nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*models.CombatSession, error) {
	q := `
	SELECT id, campaign_id, status, created_at, ordered_ids FROM combat_sessions WHERE id = $1;
	`
	return r.scanSession(r.pool.QueryRow(ctx, q, sessionID))
}

func (r *PostgresRepository) FindActiveSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	q := `
	SELECT id, campaign_id, status, created_at, ordered_ids FROM combat_sessions
	WHERE campaign_id = $1 AND status = $2
	ORDER BY created_at DESC LIMIT 1;
	`
	return r.scanSession(r.pool.QueryRow(ctx, q, campaignID, models.SessionStatusAwaitingInitiative))
}

func (r *PostgresRepository) scanSession(row pgx.Row) (*models.CombatSession, error) {
	session := &models.CombatSession{}
	var orderedIDs *string
	err := row.Scan(&session.ID, &session.CampaignID, &session.Status, &session.CreatedAt, &orderedIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan session: %v", err)
	}
	if orderedIDs != nil {
		if err := json.Unmarshal([]byte(*orderedIDs), &session.Order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session order: %v", err)
		}
	}

	return session, nil
}

func (r *PostgresRepository) TransitionSession(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error) {
	q := `
	UPDATE combat_sessions SET status = $1 WHERE id = $2 AND status = $3;
	`
	tag, err := r.pool.Exec(ctx, q, to, sessionID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %v", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SetSessionOrder(ctx context.Context, sessionID string, order []string) error {
	orderedIDs, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal session order: %v", err)
	}
	q := `
	UPDATE combat_sessions SET ordered_ids = $1 WHERE id = $2;
	`
	if _, err := r.pool.Exec(ctx, q, string(orderedIDs), sessionID); err != nil {
		return fmt.Errorf("failed to update session order: %v", err)
	}

	return nil
}

func (r *PostgresRepository) AddParticipant(ctx context.Context, participant *models.Participant) (*models.Participant, error) {
	participant.ID = uuid.New().String()
	q := `
	INSERT INTO participants (id, session_id, name, character_id, monster_instance_id, position)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6);
	`
	_, err := r.pool.Exec(ctx, q, participant.ID, participant.SessionID, participant.Name,
		participant.CharacterID, participant.MonsterInstanceID, participant.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participant: %v", err)
	}

	return participant, nil
}

func (r *PostgresRepository) ListParticipants(ctx context.Context, sessionID string) ([]*models.Participant, error) {
	q := `
	SELECT id, session_id, name, COALESCE(character_id, ''), COALESCE(monster_instance_id, ''), initiative, position
	FROM participants WHERE session_id = $1 ORDER BY position;
	`
	rows, err := r.pool.Query(ctx, q, sessionID)
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

func (r *PostgresRepository) ClaimInitiative(ctx context.Context, participantID string, value int) (bool, error) {
	// The WHERE clause makes the write-once check and the write a single
	// atomic statement, so two concurrent claims cannot both succeed.
	q := `
	UPDATE participants SET initiative = $1 WHERE id = $2 AND initiative IS NULL;
	`
	tag, err := r.pool.Exec(ctx, q, value, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to claim initiative: %v", err)
	}

	return tag.RowsAffected() > 0, nil
}
