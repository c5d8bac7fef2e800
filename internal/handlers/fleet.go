package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"
)

// FleetResponse is the decorated snapshot served to dashboards
type FleetResponse struct {
	SnapshotVersion uint64             `json:"snapshot_version"`
	FetchedAt       time.Time          `json:"fetched_at"`
	Bins            []services.BinView `json:"bins"`
}

// NewFleetResponse decorates a snapshot with severity, colors, age labels and
// the stop order of the current plan. sortByFill lists the fullest bins first.
func NewFleetResponse(snap *services.Snapshot, routeOrder map[string]int, sortByFill bool, now time.Time) FleetResponse {
	bins := snap.Bins()
	if sortByFill {
		bins = snap.SortedByFill()
	}
	return FleetResponse{
		SnapshotVersion: snap.Version,
		FetchedAt:       snap.FetchedAt,
		Bins:            services.BuildBinViews(bins, routeOrder, now),
	}
}

// GetFleet returns the current snapshot
// GET /api/fleet[?sort=fill]
func GetFleet(store *services.FleetStore, session *services.RouteSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sortByFill := r.URL.Query().Get("sort") == "fill"
		utils.Success(w, NewFleetResponse(store.Snapshot(), session.StopOrder(), sortByFill, time.Now()))
	}
}

// GetFleetStats returns header counters and the map center
// GET /api/fleet/stats
func GetFleetStats(store *services.FleetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.Success(w, services.ComputeStats(store.Snapshot()))
	}
}

// RefreshFleet forces an immediate refresh. On failure the previous
// snapshot keeps being served.
// POST /api/fleet/refresh
func RefreshFleet(store *services.FleetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Refresh(r.Context())
		switch {
		case err == nil, errors.Is(err, services.ErrStaleRefresh):
		case errors.Is(err, services.ErrStoreClosed):
			utils.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		default:
			log.Printf("❌ Manual refresh failed: %v", err)
			utils.JSON(w, http.StatusBadGateway, map[string]interface{}{
				"detail":           err.Error(),
				"snapshot_version": store.Version(),
			})
			return
		}

		snap := store.Snapshot()
		utils.Success(w, map[string]interface{}{
			"status":           "ok",
			"snapshot_version": snap.Version,
			"bins":             snap.Len(),
		})
	}
}

// RoutePlanResponse is a cached plan plus whether the fleet moved on since it was built
type RoutePlanResponse struct {
	*models.RoutePlan
	Stale bool `json:"stale"`
}

// RoutePlanner builds and clears the shared plan. RouteSession serves a
// single replica; RouteSync also tells the other replicas.
type RoutePlanner interface {
	Build(startID, endID string) (*models.RoutePlan, error)
	Clear()
}

// BuildRoutePlan plans a pass over the current snapshot and caches it
// POST /api/route
func BuildRoutePlan(planner RoutePlanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.BuildRouteRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Start == "" || req.End == "" {
			utils.Error(w, http.StatusUnprocessableEntity, "start and end are required")
			return
		}

		plan, err := planner.Build(req.Start, req.End)
		if errors.Is(err, services.ErrBinNotFound) {
			utils.Error(w, http.StatusNotFound, endpointNotFound(err))
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusCreated, RoutePlanResponse{RoutePlan: plan})
	}
}

// GetRoutePlan returns the cached plan
// GET /api/route
func GetRoutePlan(session *services.RouteSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := session.Current()
		if errors.Is(err, services.ErrNoRoute) {
			utils.Error(w, http.StatusNotFound, err.Error())
			return
		}
		utils.Success(w, RoutePlanResponse{RoutePlan: plan, Stale: session.IsStale(plan)})
	}
}

// ClearRoutePlan drops the cached plan
// DELETE /api/route
func ClearRoutePlan(planner RoutePlanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planner.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}
