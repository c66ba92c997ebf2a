package messages

import (
	"encoding/json"
	"fmt"
)

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 1024
)

// Message types
const (
	MessageTypeClientPing = "ping"
	MessageTypeServerPong = "pong"
	// MessageTypeClientRoll is a die roll submitted by a connected actor
	MessageTypeClientRoll = "roll"
	// MessageTypeServerRollRecorded is a per-roll initiative update
	MessageTypeServerRollRecorded = "roll_recorded"
	// MessageTypeServerInitiativeResolved carries the full turn order
	MessageTypeServerInitiativeResolved = "initiative_resolved"
	MessageTypeServerError              = "error"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a Message with the payload marshaled to JSON.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	m := &Message{Type: msgType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %v", err)
		}
		m.Payload = b
	}
	return m, nil
}

// ClientRoll is the payload of a client roll message. The campaign and
// acting user are taken from the connection, not from the payload.
type ClientRoll struct {
	DieType             string `json:"dieType"`
	RawResult           int    `json:"rawResult"`
	RollerDisplayName   string `json:"rollerDisplayName"`
	CharacterID         string `json:"characterId,omitempty"`
	TargetParticipantID string `json:"targetParticipantId,omitempty"`
}

// ServerRollRecorded is broadcast after each individually recorded roll.
type ServerRollRecorded struct {
	ParticipantID string `json:"participantId"`
	Value         int    `json:"value"`
}

// ServerInitiativeResolved is broadcast once per session, when the last
// participant's roll lands.
type ServerInitiativeResolved struct {
	SessionID             string   `json:"sessionId"`
	Status                string   `json:"status"`
	OrderedParticipantIDs []string `json:"orderedParticipantIds"`
}

// ServerError is sent to a single client whose message couldn't be parsed.
type ServerError struct {
	Message string `json:"message"`
}
