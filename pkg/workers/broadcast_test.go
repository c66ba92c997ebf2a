package workers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/rooms"
)

func TestBroadcastEventWorker(t *testing.T) {
	roomManager := rooms.NewRoomManager()
	broadcastChan := make(chan BroadcastMessage, 4)

	worker := NewBroadcastEventWorker(NewBroadcastEventWorkerOptions{
		RoomManager:          roomManager,
		BroadcastMessageChan: broadcastChan,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	sub := roomManager.Subscribe("camp-1")
	otherCampaign := roomManager.Subscribe("camp-2")

	broadcastChan <- BroadcastMessage{
		RoomKey: "camp-1",
		Type:    messages.MessageTypeServerRollRecorded,
		Message: &messages.ServerRollRecorded{ParticipantID: "p-1", Value: 17},
	}
	broadcastChan <- BroadcastMessage{
		RoomKey: "camp-1",
		Type:    messages.MessageTypeServerInitiativeResolved,
		Message: &messages.ServerInitiativeResolved{
			SessionID:             "session-1",
			Status:                "ordered",
			OrderedParticipantIDs: []string{"p-1"},
		},
	}

	msg := receiveMessage(t, sub)
	assert.Equal(t, messages.MessageTypeServerRollRecorded, msg.Type)
	rollRecorded := &messages.ServerRollRecorded{}
	require.NoError(t, json.Unmarshal(msg.Payload, rollRecorded))
	assert.Equal(t, "p-1", rollRecorded.ParticipantID)
	assert.Equal(t, 17, rollRecorded.Value)

	msg = receiveMessage(t, sub)
	assert.Equal(t, messages.MessageTypeServerInitiativeResolved, msg.Type)
	resolved := &messages.ServerInitiativeResolved{}
	require.NoError(t, json.Unmarshal(msg.Payload, resolved))
	assert.Equal(t, "session-1", resolved.SessionID)
	assert.Equal(t, []string{"p-1"}, resolved.OrderedParticipantIDs)

	assert.Empty(t, otherCampaign.C, "broadcasts must stay inside their campaign room")
}

func receiveMessage(t *testing.T, sub *rooms.Subscriber) *messages.Message {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}
