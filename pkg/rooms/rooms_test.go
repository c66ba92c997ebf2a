package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/greatwyrm/pkg/messages"
)

func TestRoomManager_PublishReachesAllSubscribers(t *testing.T) {
	manager := NewRoomManager()

	first := manager.Subscribe("camp-1")
	second := manager.Subscribe("camp-1")
	assert.Equal(t, 2, manager.NumSubscribers("camp-1"))

	message, err := messages.NewMessage(messages.MessageTypeServerRollRecorded,
		&messages.ServerRollRecorded{ParticipantID: "p-1", Value: 17})
	require.NoError(t, err)

	manager.Publish("camp-1", message)

	assert.Equal(t, message, <-first.C)
	assert.Equal(t, message, <-second.C)
}

func TestRoomManager_RoomsAreIsolated(t *testing.T) {
	manager := NewRoomManager()

	inRoom := manager.Subscribe("camp-1")
	outside := manager.Subscribe("camp-2")

	message, err := messages.NewMessage(messages.MessageTypeServerPong, nil)
	require.NoError(t, err)
	manager.Publish("camp-1", message)

	assert.Equal(t, message, <-inRoom.C)
	assert.Empty(t, outside.C, "message must not cross rooms")
}

func TestRoomManager_Unsubscribe(t *testing.T) {
	manager := NewRoomManager()

	sub := manager.Subscribe("camp-1")
	manager.Unsubscribe(sub)
	assert.Equal(t, 0, manager.NumSubscribers("camp-1"))

	_, open := <-sub.C
	assert.False(t, open, "channel must be closed on unsubscribe")

	// Unsubscribing twice is safe.
	manager.Unsubscribe(sub)
}

func TestRoomManager_SlowSubscriberIsDropped(t *testing.T) {
	manager := NewRoomManager()

	slow := manager.Subscribe("camp-1")
	healthy := manager.Subscribe("camp-1")

	message, err := messages.NewMessage(messages.MessageTypeServerPong, nil)
	require.NoError(t, err)

	// Fill the slow subscriber's buffer without reading, then publish one
	// more. The overflowing publish drops the slow subscriber but still
	// reaches the healthy one.
	for i := 0; i < SubscriberBufferSize; i++ {
		manager.Publish("camp-1", message)
		<-healthy.C
	}
	manager.Publish("camp-1", message)

	assert.Equal(t, 1, manager.NumSubscribers("camp-1"))
	assert.Equal(t, message, <-healthy.C)

	// Drain the slow subscriber's buffered messages; the closed channel
	// terminates the range.
	received := 0
	for range slow.C {
		received++
	}
	assert.Equal(t, SubscriberBufferSize, received)
}

func TestRoomManager_CloseRoom(t *testing.T) {
	manager := NewRoomManager()

	first := manager.Subscribe("camp-1")
	second := manager.Subscribe("camp-1")
	untouched := manager.Subscribe("camp-2")

	manager.CloseRoom("camp-1")
	assert.Equal(t, 0, manager.NumSubscribers("camp-1"))
	assert.Equal(t, 1, manager.NumSubscribers("camp-2"))

	_, open := <-first.C
	assert.False(t, open)
	_, open = <-second.C
	assert.False(t, open)

	manager.Unsubscribe(untouched)
}
