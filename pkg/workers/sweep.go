package workers

import (
	"context"
	"time"

	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// SessionSweepWorker periodically walks the sessions the registry has
// locks for. Sessions that reached a terminal status have their locks
// dropped so the lock table doesn't grow with every combat ever fought;
// sessions still awaiting initiative get a completion retry, covering a
// final roll whose completion check hit a storage failure.
type SessionSweepWorker struct {
	registry             *combat.SessionRegistry
	repository           repositories.Repository
	resolver             *combat.Resolver
	broadcastMessageChan chan<- BroadcastMessage
	interval             time.Duration
}

type NewSessionSweepWorkerOptions struct {
	Registry             *combat.SessionRegistry
	Repository           repositories.Repository
	Resolver             *combat.Resolver
	BroadcastMessageChan chan<- BroadcastMessage
	Interval             time.Duration
}

func NewSessionSweepWorker(opts NewSessionSweepWorkerOptions) *SessionSweepWorker {
	return &SessionSweepWorker{
		registry:             opts.Registry,
		repository:           opts.Repository,
		resolver:             opts.Resolver,
		broadcastMessageChan: opts.BroadcastMessageChan,
		interval:             opts.Interval,
	}
}

func (w *SessionSweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SessionSweepWorker) sweep(ctx context.Context) {
	for _, sessionID := range w.registry.LockedSessions() {
		session, err := w.repository.GetSession(ctx, sessionID)
		if err != nil {
			if repositories.IsNotFound(err) {
				w.registry.Forget(sessionID)
			} else {
				log.Error("Failed to get session %s during sweep: %v", sessionID, err)
			}
			continue
		}
		if session.Status != models.SessionStatusAwaitingInitiative {
			log.Debug("Forgetting lock for %s session %s", session.Status, sessionID)
			w.registry.Forget(sessionID)
			continue
		}
		w.retryCompletion(ctx, session)
	}
}

// retryCompletion re-runs the completion check for a session still
// awaiting initiative. The check is a no-op on an incomplete roster; it
// only fires for a session whose last roll was recorded but whose
// completion previously failed.
func (w *SessionSweepWorker) retryCompletion(ctx context.Context, session *models.CombatSession) {
	result, err := w.resolver.ResolveCompletion(ctx, session.ID)
	if err != nil {
		log.Error("Failed to retry completion for session %s: %v", session.ID, err)
		return
	}
	if result == nil {
		return
	}

	log.Info("Completed session %s during sweep", session.ID)
	w.broadcastMessageChan <- BroadcastMessage{
		RoomKey: session.CampaignID,
		Type:    messages.MessageTypeServerInitiativeResolved,
		Message: &messages.ServerInitiativeResolved{
			SessionID:             result.SessionID,
			Status:                string(models.SessionStatusOrdered),
			OrderedParticipantIDs: result.Order,
		},
	}
}
