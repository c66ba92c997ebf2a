package repositories

import (
	"context"

	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

type Repository interface {
	Close(ctx context.Context) error

	// CreateUser creates a user if it doesn't already exist and returns it.
	CreateUser(ctx context.Context, userID string) (*models.User, error)

	ListCharacters(ctx context.Context, userID string) ([]*models.Character, error)
	GetCharacter(ctx context.Context, characterID string) (*models.Character, error)
	CreateCharacter(ctx context.Context, character *models.Character) (*models.Character, error)
	DeleteCharacter(ctx context.Context, userID string, characterID string) error

	ListMonsterTypes(ctx context.Context) ([]*models.MonsterType, error)
	GetMonsterType(ctx context.Context, typeID string) (*models.MonsterType, error)
	CreateMonsterType(ctx context.Context, monsterType *models.MonsterType) (*models.MonsterType, error)
	GetMonsterInstance(ctx context.Context, instanceID string) (*models.MonsterInstance, error)
	CreateMonsterInstance(ctx context.Context, instance *models.MonsterInstance) (*models.MonsterInstance, error)

	// CreateSession creates a session in the assembling status. Callers
	// transition it to awaiting_initiative once the roster is complete.
	CreateSession(ctx context.Context, campaignID string) (*models.CombatSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.CombatSession, error)
	// FindActiveSession returns the most recently created session for the
	// campaign that is still awaiting initiative.
	FindActiveSession(ctx context.Context, campaignID string) (*models.CombatSession, error)
	// TransitionSession moves a session from one status to another. It
	// returns false without error if the session is no longer in the
	// expected status.
	TransitionSession(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error)
	SetSessionOrder(ctx context.Context, sessionID string, order []string) error

	AddParticipant(ctx context.Context, participant *models.Participant) (*models.Participant, error)
	// ListParticipants returns the session's roster in insertion order.
	ListParticipants(ctx context.Context, sessionID string) ([]*models.Participant, error)
	// ClaimInitiative sets a participant's initiative if and only if it has
	// not been set before. It returns false without error when the slot was
	// already taken.
	ClaimInitiative(ctx context.Context, participantID string, value int) (bool, error)
}
