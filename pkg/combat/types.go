package combat

const (
	// InitiativeDie is the die type the engine reacts to. Rolls of any
	// other die are ignored by initiative tracking.
	InitiativeDie = "d20"
)

// RollEvent is an inbound die roll from a connected actor. It is owned by
// the resolver for the duration of processing and not retained afterward.
type RollEvent struct {
	CampaignID          string `json:"campaign_id"`
	DieType             string `json:"die_type"`
	RawResult           int    `json:"raw_result"`
	RollerDisplayName   string `json:"roller_display_name"`
	ActingUserID        string `json:"acting_user_id,omitempty"`
	CharacterID         string `json:"character_id,omitempty"`
	TargetParticipantID string `json:"target_participant_id,omitempty"`
}

// Result describes what a successfully applied roll did to the session.
type Result struct {
	SessionID     string
	ParticipantID string
	// Value is the recorded initiative total (raw die result plus bonus).
	Value int
	// Resolved is true when this roll completed the roster and the
	// session transitioned to ordered. The transition is guarded by a
	// status compare-and-swap, so at most one result per session carries
	// Resolved=true.
	Resolved bool
	// Order holds the participant IDs in final turn order when Resolved.
	Order []string
}
