package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"binsight-backend/internal/database"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// GetBins returns every bin in registration order
// GET /bins
func GetBins(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		utils.Success(w, readings)
	}
}

// GetBin returns one bin
// GET /bins/{id}
func GetBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		bin, err := database.GetBin(db, id)
		if errors.Is(err, database.ErrNotFound) {
			utils.Error(w, http.StatusNotFound, binNotFound(id))
			return
		}
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bin")
			return
		}
		utils.Success(w, bin.ToBinReading())
	}
}

// MarkEmptied resets a bin after collection
// POST /bins/{id}/emptied
func MarkEmptied(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		bin, err := database.MarkEmptied(db, id, services.DistanceFromFill(0), time.Now())
		if errors.Is(err, database.ErrNotFound) {
			utils.Error(w, http.StatusNotFound, binNotFound(id))
			return
		}
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to update bin")
			return
		}

		log.Printf("🗑️  Bin %s emptied", id)
		utils.Success(w, bin.ToBinReading())
	}
}

// RegisterBin creates a bin or updates its name and location (admin only)
// POST /bins/register
func RegisterBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterBinRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		req.BinID = strings.TrimSpace(req.BinID)
		if req.BinID == "" {
			utils.Error(w, http.StatusBadRequest, "bin_id is required")
			return
		}
		if req.Name == "" {
			req.Name = "Unknown"
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			utils.Error(w, http.StatusBadRequest, "lat/lng out of range")
			return
		}

		created, err := database.RegisterBin(db, req)
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to register bin")
			return
		}

		status := "updated"
		code := http.StatusOK
		if created {
			status = "created"
			code = http.StatusCreated
		}
		log.Printf("📍 Bin %s %s (%s)", req.BinID, status, req.Name)
		utils.JSON(w, code, map[string]string{"status": status, "bin_id": req.BinID})
	}
}

// DeleteBin removes a bin and its telemetry history (admin only)
// DELETE /bins/{id}
func DeleteBin(db *sqlx.DB, limiter *services.IngestLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := database.DeleteBin(db, id)
		if errors.Is(err, database.ErrNotFound) {
			utils.Error(w, http.StatusNotFound, binNotFound(id))
			return
		}
		if err != nil {
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to delete bin")
			return
		}
		if limiter != nil {
			limiter.Forget(id)
		}

		log.Printf("🗑️  Bin %s deleted", id)
		utils.Success(w, map[string]string{"status": "deleted", "bin_id": id})
	}
}

func binNotFound(id string) string {
	return fmt.Sprintf("Bin '%s' not found", id)
}

// endpointNotFound renders a *RouteEndpointError as "Start bin 'x' not found"
func endpointNotFound(err error) string {
	var ee *services.RouteEndpointError
	if !errors.As(err, &ee) {
		return err.Error()
	}
	label := "Start"
	if ee.Endpoint == services.EndpointEnd {
		label = "End"
	}
	return fmt.Sprintf("%s bin '%s' not found", label, ee.BinID)
}
