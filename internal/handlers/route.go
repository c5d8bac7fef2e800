package handlers

import (
	"errors"
	"log"
	"net/http"

	"binsight-backend/internal/database"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// GetPriorityRoute plans the server-side route between two bins
// GET /route?start=&end=
func GetPriorityRoute(db *sqlx.DB, planner *services.PriorityPlanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		end := r.URL.Query().Get("end")
		if start == "" || end == "" {
			utils.Error(w, http.StatusUnprocessableEntity, "start and end are required")
			return
		}

		bins, err := database.ListBins(db)
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bins")
			return
		}

		readings := make([]models.BinReading, len(bins))
		for i := range bins {
			readings[i] = bins[i].ToBinReading()
		}

		route, err := planner.Plan(readings, start, end)
		if errors.Is(err, services.ErrBinNotFound) {
			utils.Error(w, http.StatusNotFound, endpointNotFound(err))
			return
		}
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to plan route")
			return
		}
		utils.Success(w, route)
	}
}
