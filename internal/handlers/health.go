package handlers

import (
	"net/http"
	"time"

	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// ServerHealth pings the database
// GET /health
func ServerHealth(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			utils.JSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": err.Error(),
			})
			return
		}
		utils.Success(w, map[string]string{"status": "ok", "database": "connected"})
	}
}

// DashboardHealth reports the state of the refresh loop. The dashboard stays
// healthy while serving a retained snapshot after failed refreshes.
// GET /health
func DashboardHealth(store *services.FleetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":           "ok",
			"snapshot_version": store.Version(),
			"bins":             store.Snapshot().Len(),
			"refresh_interval": store.Interval().String(),
		}
		if last := store.LastSuccess(); !last.IsZero() {
			resp["last_success"] = last.UTC().Format(time.RFC3339)
		}
		if err := store.LastError(); err != nil {
			resp["last_error"] = err.Error()
		}
		utils.Success(w, resp)
	}
}
