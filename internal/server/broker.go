package server

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/playperu/rallye/internal/rallye"
)

const (
	EventLocationUpdated = "location_updated"
	EventPointsAwarded   = "points_awarded"
	EventGroupJoined     = "group_joined"
	EventCeremonyStarted = "ceremony_started"
)

// RoomEvent is the payload published to room subscribers.
type RoomEvent struct {
	Type       string           `json:"type"`
	GroupID    int64            `json:"groupId,omitempty"`
	GroupName  string           `json:"groupName,omitempty"`
	Position   *rallye.Position `json:"position,omitempty"`
	QuestionID int64            `json:"questionId,omitempty"`
	Points     int              `json:"points,omitempty"`
}

// Broker is an in-process pub/sub for room events, keyed by room code.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

func roomKey(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Subscribe returns a channel that receives JSON-encoded events for the room.
func (b *Broker) Subscribe(code string) chan []byte {
	key := roomKey(code)
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan []byte]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	roomSubscribers.Inc()
	return ch
}

func (b *Broker) Unsubscribe(code string, ch chan []byte) {
	key := roomKey(code)
	b.mu.Lock()
	if _, ok := b.subs[key][ch]; ok {
		delete(b.subs[key], ch)
		roomSubscribers.Dec()
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the room.
func (b *Broker) Publish(code string, event RoomEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[roomKey(code)] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
			eventsDropped.Inc()
		}
	}
	b.mu.RUnlock()
}
