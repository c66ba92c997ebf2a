package workers

import (
	"context"
	"fmt"

	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/rooms"
)

// BroadcastMessage is one state transition to publish to a room.
type BroadcastMessage struct {
	RoomKey string
	Type    string
	Message interface{}
}

// BroadcastEventWorker consumes broadcast messages from the resolver side
// and publishes them to the room's current subscribers.
type BroadcastEventWorker struct {
	roomManager          *rooms.RoomManager
	broadcastMessageChan <-chan BroadcastMessage
}

type NewBroadcastEventWorkerOptions struct {
	RoomManager          *rooms.RoomManager
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastEventWorker(opts NewBroadcastEventWorkerOptions) *BroadcastEventWorker {
	return &BroadcastEventWorker{
		roomManager:          opts.RoomManager,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

func (w *BroadcastEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			switch msg.Type {
			case messages.MessageTypeServerRollRecorded:
				if err := w.handleRollRecorded(msg); err != nil {
					log.Error("Failed to handle roll recorded message: %v", err)
				}
			case messages.MessageTypeServerInitiativeResolved:
				if err := w.handleInitiativeResolved(msg); err != nil {
					log.Error("Failed to handle initiative resolved message: %v", err)
				}
			default:
				log.Error("Unknown broadcast message type: %v", msg.Type)
			}
		}
	}
}

func (w *BroadcastEventWorker) handleRollRecorded(b BroadcastMessage) error {
	rollRecorded, ok := b.Message.(*messages.ServerRollRecorded)
	if !ok {
		return fmt.Errorf("failed to cast roll recorded message")
	}

	msg, err := messages.NewMessage(messages.MessageTypeServerRollRecorded, rollRecorded)
	if err != nil {
		return fmt.Errorf("failed to build roll recorded message: %v", err)
	}
	w.roomManager.Publish(b.RoomKey, msg)

	return nil
}

func (w *BroadcastEventWorker) handleInitiativeResolved(b BroadcastMessage) error {
	resolved, ok := b.Message.(*messages.ServerInitiativeResolved)
	if !ok {
		return fmt.Errorf("failed to cast initiative resolved message")
	}

	msg, err := messages.NewMessage(messages.MessageTypeServerInitiativeResolved, resolved)
	if err != nil {
		return fmt.Errorf("failed to build initiative resolved message: %v", err)
	}
	w.roomManager.Publish(b.RoomKey, msg)

	return nil
}
