package workers

import (
	"context"
	"time"

	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/queue"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// RollEventWorker drains the inbound roll-event queue and runs each event
// through the resolver. Applied rolls are forwarded to the broadcast
// channel; dropped rolls are logged and forgotten.
type RollEventWorker struct {
	rollEventQueue       queue.Queue
	resolver             *combat.Resolver
	broadcastMessageChan chan<- BroadcastMessage
	interval             time.Duration
}

type NewRollEventWorkerOptions struct {
	RollEventQueue       queue.Queue
	Resolver             *combat.Resolver
	BroadcastMessageChan chan<- BroadcastMessage
	Interval             time.Duration
}

func NewRollEventWorker(opts NewRollEventWorkerOptions) *RollEventWorker {
	return &RollEventWorker{
		rollEventQueue:       opts.RollEventQueue,
		resolver:             opts.Resolver,
		broadcastMessageChan: opts.BroadcastMessageChan,
		interval:             opts.Interval,
	}
}

func (w *RollEventWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processRollEvents(ctx)
		}
	}
}

func (w *RollEventWorker) processRollEvents(ctx context.Context) {
	pending, err := w.rollEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read roll events from queue: %v", err)
		return
	}
	for _, item := range pending {
		event, ok := item.(*combat.RollEvent)
		if !ok {
			log.Error("Failed to cast roll event message")
			continue
		}
		w.processRollEvent(ctx, event)
	}
}

func (w *RollEventWorker) processRollEvent(ctx context.Context, event *combat.RollEvent) {
	result, err := w.resolver.Resolve(ctx, event)
	if err != nil {
		if combat.IsDropped(err) {
			log.Debug("Dropping roll from %q in campaign %s: %v", event.RollerDisplayName, event.CampaignID, err)
		} else {
			// Storage failure: nothing is broadcast. If the claim itself
			// was applied and only the completion check failed, the sweep
			// worker retries the completion later.
			log.Error("Failed to resolve roll in campaign %s: %v", event.CampaignID, err)
		}
		return
	}

	w.broadcastMessageChan <- BroadcastMessage{
		RoomKey: event.CampaignID,
		Type:    messages.MessageTypeServerRollRecorded,
		Message: &messages.ServerRollRecorded{
			ParticipantID: result.ParticipantID,
			Value:         result.Value,
		},
	}

	if result.Resolved {
		w.broadcastMessageChan <- BroadcastMessage{
			RoomKey: event.CampaignID,
			Type:    messages.MessageTypeServerInitiativeResolved,
			Message: &messages.ServerInitiativeResolved{
				SessionID:             result.SessionID,
				Status:                string(models.SessionStatusOrdered),
				OrderedParticipantIDs: result.Order,
			},
		}
	}
}
