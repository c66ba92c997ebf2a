package models

import "time"

type User struct {
	ID string `json:"id"`
}

// Character is a player-owned character sheet. Sheet attributes are stored
// as raw text because they are free-form user input.
type Character struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Name      string `json:"name"`
	Dexterity string `json:"dexterity"`
}

// MonsterType is a catalog entry shared across campaigns.
type MonsterType struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dexterity string `json:"dexterity"`
}

// MonsterInstance is one concrete monster placed in a campaign.
type MonsterInstance struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	TypeID     string `json:"type_id"`
	Name       string `json:"name"`
}

type SessionStatus string

const (
	// SessionStatusAssembling is the staging status a session is created
	// in. The session is invisible to active-session lookup until the
	// full roster has been inserted and it transitions to
	// awaiting_initiative.
	SessionStatusAssembling         SessionStatus = "assembling"
	SessionStatusAwaitingInitiative SessionStatus = "awaiting_initiative"
	SessionStatusOrdered            SessionStatus = "ordered"
	SessionStatusEnded              SessionStatus = "ended"
)

// CombatSession is one active combat within a campaign.
type CombatSession struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	// Order holds the participant IDs in turn order once the session
	// has resolved. Empty until then.
	Order []string `json:"order,omitempty"`
}

// Participant is one combatant in a session's roster. At most one of
// CharacterID and MonsterInstanceID is set; neither set means a freeform
// entry the game-master typed in by hand.
type Participant struct {
	ID                string `json:"id"`
	SessionID         string `json:"session_id"`
	Name              string `json:"name"`
	CharacterID       string `json:"character_id,omitempty"`
	MonsterInstanceID string `json:"monster_instance_id,omitempty"`
	// Initiative is nil until a roll has been recorded. Once set it
	// never changes for the lifetime of the session.
	Initiative *int `json:"initiative,omitempty"`
	// Position is the roster insertion order, used as the tie-breaker
	// when two participants roll the same total.
	Position int `json:"position"`
}
