package services

import (
	"context"
	"encoding/json"
	"log"

	"binsight-backend/internal/events"
	"binsight-backend/internal/models"

	"github.com/google/uuid"
)

// RouteSync keeps the plans of all dashboard replicas in agreement. Builds
// and clears made through it are announced on the broker as commands, and
// commands from other replicas are replayed against the local snapshot.
// Snapshots themselves are never shared: each replica polls on its own.
type RouteSync struct {
	session *RouteSession
	broker  events.EventBroker
	origin  string
}

// NewRouteSync wraps session with a fresh replica id
func NewRouteSync(session *RouteSession, broker events.EventBroker) *RouteSync {
	return &RouteSync{session: session, broker: broker, origin: uuid.New().String()}
}

// Origin returns the replica id stamped on outgoing commands
func (rs *RouteSync) Origin() string {
	return rs.origin
}

// Build plans locally and, on success, tells the other replicas to do the same
func (rs *RouteSync) Build(startID, endID string) (*models.RoutePlan, error) {
	plan, err := rs.session.Build(startID, endID)
	if err != nil {
		return nil, err
	}
	rs.announce(events.RouteCommand{Action: events.RouteActionBuild, Start: startID, End: endID})
	return plan, nil
}

// Clear drops the plan here and on the other replicas
func (rs *RouteSync) Clear() {
	rs.session.Clear()
	rs.announce(events.RouteCommand{Action: events.RouteActionClear})
}

// Start subscribes to route commands and applies them until ctx is done.
// The subscription is in place when Start returns.
func (rs *RouteSync) Start(ctx context.Context) {
	ch := rs.broker.Subscribe(events.TopicRoute)
	go func() {
		defer rs.broker.Unsubscribe(events.TopicRoute, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				rs.apply(evt)
			}
		}
	}()
}

func (rs *RouteSync) announce(cmd events.RouteCommand) {
	cmd.Origin = rs.origin
	evt, err := events.NewEvent(events.TypeRouteCommand, cmd)
	if err != nil {
		log.Printf("❌ %v", err)
		return
	}
	rs.broker.Publish(events.TopicRoute, evt)
}

func (rs *RouteSync) apply(evt events.Event) {
	if evt.Type != events.TypeRouteCommand {
		return
	}
	var cmd events.RouteCommand
	if err := json.Unmarshal(evt.Data, &cmd); err != nil {
		log.Printf("⚠️  Dropping malformed route command: %v", err)
		return
	}
	if cmd.Origin == rs.origin {
		return
	}

	switch cmd.Action {
	case events.RouteActionBuild:
		if _, err := rs.session.Build(cmd.Start, cmd.End); err != nil {
			// This replica's snapshot lacks an endpoint; an old plan would disagree
			log.Printf("⚠️  Remote route %s → %s not buildable here, clearing plan", cmd.Start, cmd.End)
			rs.session.Clear()
		}
	case events.RouteActionClear:
		rs.session.Clear()
	default:
		log.Printf("⚠️  Unknown route command %q from %s", cmd.Action, cmd.Origin)
	}
}
