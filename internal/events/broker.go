package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TopicRoute carries route commands shared by every dashboard replica
const TopicRoute = "route"

// Event types. Snapshot and plan events go to the local websocket hub only;
// route commands travel between replicas.
const (
	TypeFleetSnapshot = "fleet_snapshot"
	TypeRoutePlan     = "route_plan"
	TypeRouteCommand  = "route_command"
)

// Route command actions
const (
	RouteActionBuild = "build"
	RouteActionClear = "clear"
)

// RouteCommand asks every replica to rebuild or clear its plan. Origin is
// the id of the replica that issued it.
type RouteCommand struct {
	Origin string `json:"origin"`
	Action string `json:"action"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// Event is one message fanned out to dashboard clients
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals v as the payload of a typed event
func NewEvent(eventType string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Data: data}, nil
}

// EventBroker fans events out to subscribers of a topic
type EventBroker interface {
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
	Publish(topic string, evt Event)
	Close() error
}

// Broker is the in-process EventBroker used when Redis is not configured.
// Slow subscribers miss events rather than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close unsubscribes everyone
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, m := range b.subs {
		for ch := range m {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
