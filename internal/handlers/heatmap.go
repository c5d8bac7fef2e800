package handlers

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"binsight-backend/internal/database"
	"binsight-backend/internal/models"
	"binsight-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// DefaultHeatmapMinutes is the averaging window when none is given
const DefaultHeatmapMinutes = 120

// GetHeatmap returns one weighted point per bin: the average fill over the
// last ?minutes of telemetry, or the current fill without recent readings.
// GET /heatmap
func GetHeatmap(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minutes := DefaultHeatmapMinutes
		if v := r.URL.Query().Get("minutes"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				utils.Error(w, http.StatusUnprocessableEntity, "minutes must be an integer >= 1")
				return
			}
			minutes = n
		}

		cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute).Unix()
		averages, err := database.AverageFillSince(db, cutoff)
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to aggregate telemetry")
			return
		}

		bins, err := database.ListBins(db)
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bins")
			return
		}

		utils.Success(w, HeatmapPoints(bins, averages))
	}
}

// HeatmapPoints weights each bin by its windowed average fill (0..1, 3 d.p.)
func HeatmapPoints(bins []models.Bin, averages map[string]float64) []models.HeatmapPoint {
	points := make([]models.HeatmapPoint, 0, len(bins))
	for _, b := range bins {
		fill, ok := averages[b.BinID]
		if !ok {
			fill = b.FillPercent
		}
		points = append(points, models.HeatmapPoint{
			Lat:    b.Latitude,
			Lng:    b.Longitude,
			Weight: math.Round(fill/100.0*1000) / 1000,
		})
	}
	return points
}
