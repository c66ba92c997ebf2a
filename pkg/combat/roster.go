package combat

import (
	"context"
	"fmt"

	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// Entry is one roster slot joined with its backing entity. Character,
// Monster, and MonsterType are nil when the participant isn't backed by
// them.
type Entry struct {
	Participant *models.Participant
	Character   *models.Character
	Monster     *models.MonsterInstance
	MonsterType *models.MonsterType
}

// Roster is the ordered set of combatants in one session. Membership is
// fixed once combat starts; the roster is re-loaded from storage on each
// resolution cycle so concurrent resolver instances never act on a stale
// view.
type Roster struct {
	SessionID string
	Entries   []*Entry
}

// LoadRoster reads the session's participants in insertion order and joins
// each with its backing character or monster. A missing backing entity is
// tolerated and leaves the entry freeform: a deleted character sheet must
// not wedge a live combat.
func LoadRoster(ctx context.Context, repo repositories.Repository, sessionID string) (*Roster, error) {
	participants, err := repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %v", err)
	}

	roster := &Roster{
		SessionID: sessionID,
		Entries:   make([]*Entry, 0, len(participants)),
	}
	for _, p := range participants {
		entry := &Entry{Participant: p}
		if p.CharacterID != "" {
			character, err := repo.GetCharacter(ctx, p.CharacterID)
			if err != nil && !repositories.IsNotFound(err) {
				return nil, fmt.Errorf("failed to get character %s: %v", p.CharacterID, err)
			}
			entry.Character = character
		}
		if p.MonsterInstanceID != "" {
			monster, err := repo.GetMonsterInstance(ctx, p.MonsterInstanceID)
			if err != nil && !repositories.IsNotFound(err) {
				return nil, fmt.Errorf("failed to get monster instance %s: %v", p.MonsterInstanceID, err)
			}
			entry.Monster = monster
			if monster != nil {
				monsterType, err := repo.GetMonsterType(ctx, monster.TypeID)
				if err != nil && !repositories.IsNotFound(err) {
					return nil, fmt.Errorf("failed to get monster type %s: %v", monster.TypeID, err)
				}
				entry.MonsterType = monsterType
			}
		}
		roster.Entries = append(roster.Entries, entry)
	}

	return roster, nil
}

// ByParticipantID returns the entry with the given participant ID.
func (r *Roster) ByParticipantID(id string) *Entry {
	if id == "" {
		return nil
	}
	for _, entry := range r.Entries {
		if entry.Participant.ID == id {
			return entry
		}
	}
	return nil
}

// ByCharacterID returns the entry backed by the given character.
func (r *Roster) ByCharacterID(id string) *Entry {
	if id == "" {
		return nil
	}
	for _, entry := range r.Entries {
		if entry.Participant.CharacterID == id {
			return entry
		}
	}
	return nil
}

// ByOwner returns the entry whose backing character is owned by the given
// user.
func (r *Roster) ByOwner(userID string) *Entry {
	if userID == "" {
		return nil
	}
	for _, entry := range r.Entries {
		if entry.Character != nil && entry.Character.UserID == userID {
			return entry
		}
	}
	return nil
}

// Complete reports whether every participant has a recorded initiative.
// An empty roster is complete.
func (r *Roster) Complete() bool {
	for _, entry := range r.Entries {
		if entry.Participant.Initiative == nil {
			return false
		}
	}
	return true
}
