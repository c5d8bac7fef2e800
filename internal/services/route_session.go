package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"binsight-backend/internal/metrics"
	"binsight-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNoRoute is returned when no plan has been built or it was cleared
var ErrNoRoute = errors.New("no route planned")

// RouteSession keeps the operator's current plan. A plan stands until it
// is rebuilt or cleared; fleet refreshes only mark it stale.
type RouteSession struct {
	store *FleetStore
	now   func() time.Time

	mu       sync.RWMutex
	plan     *models.RoutePlan
	onChange []func(*models.RoutePlan)
}

// NewRouteSession creates a session reading from store
func NewRouteSession(store *FleetStore) *RouteSession {
	return &RouteSession{store: store, now: time.Now}
}

// OnChange registers fn to be called with the new plan, or nil on clear
func (rs *RouteSession) OnChange(fn func(*models.RoutePlan)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.onChange = append(rs.onChange, fn)
}

// Build plans a route over the current snapshot and caches it. A missing
// endpoint leaves the cached plan untouched.
func (rs *RouteSession) Build(startID, endID string) (*models.RoutePlan, error) {
	snap := rs.store.Snapshot()

	// Stops point into this copy, so later snapshots never alias the plan.
	bins := snap.Bins()
	stops, err := BuildRoute(bins, startID, endID)
	if err != nil {
		metrics.RoutesBuilt.WithLabelValues("not_found").Inc()
		log.Printf("⚠️  Route build rejected: %v", err)
		return nil, err
	}
	metrics.RoutesBuilt.WithLabelValues("ok").Inc()

	plan := &models.RoutePlan{
		ID:              uuid.New().String(),
		StartID:         startID,
		EndID:           endID,
		Stops:           stops,
		Polyline:        RoutePolyline(stops),
		SnapshotVersion: snap.Version,
		BuiltAt:         rs.now(),
	}

	log.Printf("🗺️  Route %s built: %s → %s, %d stops (snapshot v%d)",
		plan.ID, startID, endID, len(stops), snap.Version)

	rs.swap(plan)
	return plan, nil
}

// Current returns the cached plan
func (rs *RouteSession) Current() (*models.RoutePlan, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if rs.plan == nil {
		return nil, ErrNoRoute
	}
	return rs.plan, nil
}

// Clear drops the cached plan
func (rs *RouteSession) Clear() {
	rs.swap(nil)
}

// IsStale reports whether the fleet has been refreshed since the plan was built
func (rs *RouteSession) IsStale(plan *models.RoutePlan) bool {
	return plan != nil && rs.store.Version() != plan.SnapshotVersion
}

// StopOrder maps bin id to its 1-based position on the current plan.
// With start == end the bin keeps its first position.
func (rs *RouteSession) StopOrder() map[string]int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if rs.plan == nil {
		return nil
	}
	order := make(map[string]int, len(rs.plan.Stops))
	for _, s := range rs.plan.Stops {
		if _, seen := order[s.Bin.BinID]; !seen {
			order[s.Bin.BinID] = s.Order
		}
	}
	return order
}

func (rs *RouteSession) swap(plan *models.RoutePlan) {
	rs.mu.Lock()
	rs.plan = plan
	listeners := make([]func(*models.RoutePlan), len(rs.onChange))
	copy(listeners, rs.onChange)
	rs.mu.Unlock()

	for _, fn := range listeners {
		fn(plan)
	}
}
