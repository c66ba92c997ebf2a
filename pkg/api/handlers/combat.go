package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
	"github.com/tmercer/greatwyrm/pkg/workers"
)

// StartCombatRequest is the game-master's roster for a new combat. Each
// entry is character-backed, monster-backed (a fresh instance of the
// given type), or freeform when neither reference is set.
type StartCombatRequest struct {
	Participants []StartCombatParticipant `json:"participants"`
}

type StartCombatParticipant struct {
	Name          string `json:"name"`
	CharacterID   string `json:"characterId,omitempty"`
	MonsterTypeID string `json:"monsterTypeId,omitempty"`
}

// CombatState is the full-state view late joiners fetch to reconcile.
type CombatState struct {
	Session      *models.CombatSession `json:"session"`
	Participants []*models.Participant `json:"participants"`
}

func HandleStartCombat(repository repositories.Repository, resolver *combat.Resolver, broadcastMessageChan chan<- workers.BroadcastMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := r.PathValue("campaignID")

		req := &StartCombatRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		session, err := repository.CreateSession(r.Context(), campaignID)
		if err != nil {
			log.Error("failed to create session: %v", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		participants := make([]*models.Participant, 0, len(req.Participants))
		for i, p := range req.Participants {
			participant := &models.Participant{
				SessionID:   session.ID,
				Name:        p.Name,
				CharacterID: p.CharacterID,
				Position:    i,
			}
			if p.MonsterTypeID != "" {
				instance, err := repository.CreateMonsterInstance(r.Context(), &models.MonsterInstance{
					CampaignID: campaignID,
					TypeID:     p.MonsterTypeID,
					Name:       p.Name,
				})
				if err != nil {
					log.Error("failed to create monster instance: %v", err)
					http.Error(w, "Failed to create monster instance", http.StatusInternalServerError)
					return
				}
				participant.MonsterInstanceID = instance.ID
			}
			participant, err := repository.AddParticipant(r.Context(), participant)
			if err != nil {
				log.Error("failed to add participant: %v", err)
				http.Error(w, "Failed to add participant", http.StatusInternalServerError)
				return
			}
			participants = append(participants, participant)
		}

		// The session stays in the assembling status while participants
		// are inserted so that queued rolls cannot resolve a partial
		// roster. It only becomes discoverable here, once the roster is
		// complete.
		if _, err := repository.TransitionSession(r.Context(), session.ID,
			models.SessionStatusAssembling, models.SessionStatusAwaitingInitiative); err != nil {
			log.Error("failed to activate session: %v", err)
			http.Error(w, "Failed to activate session", http.StatusInternalServerError)
			return
		}
		session.Status = models.SessionStatusAwaitingInitiative

		// An empty roster is already complete and resolves on the spot.
		result, err := resolver.ResolveCompletion(r.Context(), session.ID)
		if err != nil {
			log.Error("failed to check completion for new session %s: %v", session.ID, err)
		} else if result != nil {
			session.Status = models.SessionStatusOrdered
			session.Order = result.Order
			broadcastMessageChan <- workers.BroadcastMessage{
				RoomKey: campaignID,
				Type:    messages.MessageTypeServerInitiativeResolved,
				Message: &messages.ServerInitiativeResolved{
					SessionID:             result.SessionID,
					Status:                string(models.SessionStatusOrdered),
					OrderedParticipantIDs: result.Order,
				},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(&CombatState{Session: session, Participants: participants}); err != nil {
			log.Error("failed to encode combat state: %v", err)
			http.Error(w, "Failed to encode combat state", http.StatusInternalServerError)
			return
		}
	}
}

func HandleGetCombat(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := r.PathValue("campaignID")

		session, err := repository.FindActiveSession(r.Context(), campaignID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "No combat awaiting initiative", http.StatusNotFound)
				return
			}
			log.Error("failed to find active session: %v", err)
			http.Error(w, "Failed to find active session", http.StatusInternalServerError)
			return
		}

		participants, err := repository.ListParticipants(r.Context(), session.ID)
		if err != nil {
			log.Error("failed to list participants: %v", err)
			http.Error(w, "Failed to list participants", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&CombatState{Session: session, Participants: participants}); err != nil {
			log.Error("failed to encode combat state: %v", err)
			http.Error(w, "Failed to encode combat state", http.StatusInternalServerError)
			return
		}
	}
}

func HandleEndCombat(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("sessionID")

		session, err := repository.GetSession(r.Context(), sessionID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get session: %v", err)
			http.Error(w, "Failed to get session", http.StatusInternalServerError)
			return
		}

		if session.Status != models.SessionStatusEnded {
			if _, err := repository.TransitionSession(r.Context(), sessionID, session.Status, models.SessionStatusEnded); err != nil {
				log.Error("failed to end session: %v", err)
				http.Error(w, "Failed to end session", http.StatusInternalServerError)
				return
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
