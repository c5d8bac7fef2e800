package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"binsight-backend/internal/events"
	"binsight-backend/internal/models"

	"github.com/alicebob/miniredis/v2"
)

type replica struct {
	session *RouteSession
	sync    *RouteSync

	mu      sync.Mutex
	changes []*models.RoutePlan
}

func newReplica(t *testing.T, ctx context.Context, broker events.EventBroker, bins ...models.BinReading) *replica {
	t.Helper()
	store := NewFleetStore(&fakeSource{resps: []fakeResponse{{bins: bins}}})
	if err := store.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	r := &replica{session: NewRouteSession(store)}
	r.session.OnChange(func(plan *models.RoutePlan) {
		r.mu.Lock()
		r.changes = append(r.changes, plan)
		r.mu.Unlock()
	})
	r.sync = NewRouteSync(r.session, broker)
	r.sync.Start(ctx)
	return r
}

func (r *replica) Changes() []*models.RoutePlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.RoutePlan(nil), r.changes...)
}

func redisBroker(t *testing.T, mr *miniredis.Miniredis) events.EventBroker {
	t.Helper()
	b, err := events.NewRedisBroker(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRouteSyncReplicasAgreeOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bins := []models.BinReading{reading("A", 10), reading("B", 90), reading("C", 50)}
	a := newReplica(t, ctx, redisBroker(t, mr), bins...)
	b := newReplica(t, ctx, redisBroker(t, mr), bins...)
	if a.sync.Origin() == b.sync.Origin() {
		t.Fatal("replicas share an origin id")
	}

	built, err := a.sync.Build("A", "B")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	eventually(t, "replica b to build the plan", func() bool {
		plan, err := b.session.Current()
		return err == nil && plan.StartID == "A" && plan.EndID == "B"
	})
	got, _ := b.session.Current()
	if len(got.Stops) != len(built.Stops) {
		t.Fatalf("replica b has %d stops, replica a %d", len(got.Stops), len(built.Stops))
	}
	for i := range got.Stops {
		if got.Stops[i].Bin.BinID != built.Stops[i].Bin.BinID {
			t.Fatalf("stop %d: b=%s a=%s", i, got.Stops[i].Bin.BinID, built.Stops[i].Bin.BinID)
		}
	}

	b.sync.Clear()
	eventually(t, "replica a to clear", func() bool {
		_, err := a.session.Current()
		return err == ErrNoRoute
	})

	// give any echo a chance to arrive
	time.Sleep(50 * time.Millisecond)
	changes := a.Changes()
	if len(changes) != 2 || changes[0] != built || changes[1] != nil {
		t.Fatalf("replica a saw %d plan changes, want its own build then the remote clear", len(changes))
	}
	if current, err := a.session.Current(); err != ErrNoRoute {
		t.Fatalf("replica a rebuilt from an echo: %v %v", current, err)
	}
}

func TestRouteSyncClearsWhenEndpointMissingLocally(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := events.NewBroker()
	defer broker.Close()

	a := newReplica(t, ctx, broker, reading("A", 10), reading("B", 90), reading("C", 50))
	b := newReplica(t, ctx, broker, reading("A", 10), reading("C", 50))

	if _, err := b.session.Build("A", "C"); err != nil {
		t.Fatalf("local build: %v", err)
	}
	if _, err := a.sync.Build("A", "B"); err != nil {
		t.Fatalf("build: %v", err)
	}

	eventually(t, "replica b to drop its plan", func() bool {
		_, err := b.session.Current()
		return err == ErrNoRoute
	})
}

func TestRouteSyncStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := events.NewBroker()
	defer broker.Close()

	b := newReplica(t, ctx, broker, reading("A", 10), reading("B", 90))
	cancel()
	// the listener unsubscribes on exit, so later commands are not applied
	time.Sleep(20 * time.Millisecond)

	evt, _ := events.NewEvent(events.TypeRouteCommand, events.RouteCommand{
		Origin: "other", Action: events.RouteActionBuild, Start: "A", End: "B",
	})
	broker.Publish(events.TopicRoute, evt)
	time.Sleep(20 * time.Millisecond)

	if _, err := b.session.Current(); err != ErrNoRoute {
		t.Fatalf("command applied after cancel: %v", err)
	}
}
