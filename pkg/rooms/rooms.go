package rooms

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
)

const (
	// SubscriberBufferSize is the per-subscriber channel capacity. A
	// subscriber that falls this far behind is dropped rather than
	// back-pressuring the engine.
	SubscriberBufferSize = 16
)

// Subscriber is one connection listening to a room. Messages arrive on C;
// the channel is closed when the subscriber is removed or the room closes.
type Subscriber struct {
	ID      string
	RoomKey string
	C       chan *messages.Message
}

// RoomManager fans broadcast messages out to room subscribers. Delivery
// is fire-and-forget: no acknowledgment, no retry, best effort to the
// currently connected. Late joiners reconcile via a full-state fetch.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Subscriber
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber in the room identified by roomKey.
func (m *RoomManager) Subscribe(roomKey string) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New().String(),
		RoomKey: roomKey,
		C:       make(chan *messages.Message, SubscriberBufferSize),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomKey]
	if !ok {
		room = make(map[string]*Subscriber)
		m.rooms[roomKey] = room
	}
	room[sub.ID] = sub

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. It is a no-op
// if the subscriber was already dropped.
func (m *RoomManager) Unsubscribe(sub *Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(sub)
}

func (m *RoomManager) removeLocked(sub *Subscriber) {
	room, ok := m.rooms[sub.RoomKey]
	if !ok {
		return
	}
	if _, ok := room[sub.ID]; !ok {
		return
	}
	delete(room, sub.ID)
	close(sub.C)
	if len(room) == 0 {
		delete(m.rooms, sub.RoomKey)
	}
}

// Publish sends a message to every current subscriber of the room. A
// subscriber with a full buffer is dropped so one slow connection can't
// stall the rest.
func (m *RoomManager) Publish(roomKey string, message *messages.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.rooms[roomKey] {
		select {
		case sub.C <- message:
		default:
			log.Warn("Dropping slow subscriber %s in room %s", sub.ID, roomKey)
			m.removeLocked(sub)
		}
	}
}

// CloseRoom removes every subscriber of a room, closing their channels.
func (m *RoomManager) CloseRoom(roomKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.rooms[roomKey] {
		m.removeLocked(sub)
	}
}

// NumSubscribers returns the number of subscribers currently in a room.
func (m *RoomManager) NumSubscribers(roomKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomKey])
}
