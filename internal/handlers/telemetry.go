package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"binsight-backend/internal/database"
	"binsight-backend/internal/metrics"
	"binsight-backend/internal/models"
	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

const alertTimeout = 10 * time.Second

// IngestTelemetry stores a sensor reading as the bin's latest state.
// notifier may be nil when push alerts are not configured.
// POST /telemetry
func IngestTelemetry(db *sqlx.DB, limiter *services.IngestLimiter, notifier services.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.TelemetryIn
		if err := utils.DecodeJSON(r, &in); err != nil {
			metrics.TelemetryIngested.WithLabelValues("invalid").Inc()
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		in.BinID = strings.TrimSpace(in.BinID)
		if in.BinID == "" {
			metrics.TelemetryIngested.WithLabelValues("invalid").Inc()
			utils.Error(w, http.StatusBadRequest, "bin_id is required")
			return
		}

		if limiter != nil && !limiter.Allow(in.BinID) {
			metrics.TelemetryIngested.WithLabelValues("rate_limited").Inc()
			log.Printf("⏳ Telemetry for %s rate limited", in.BinID)
			utils.Error(w, http.StatusTooManyRequests, "Too many readings for "+in.BinID)
			return
		}

		result, err := database.RecordTelemetry(db, in)
		if err != nil {
			metrics.TelemetryIngested.WithLabelValues("error").Inc()
			log.Printf("❌ %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to store telemetry")
			return
		}
		metrics.TelemetryIngested.WithLabelValues("ok").Inc()

		if result.Created {
			log.Printf("🆕 Telemetry from unregistered bin %s, created with default metadata", in.BinID)
		}

		from := services.ClassifyFill(result.PreviousFill)
		to := services.ClassifyFill(in.FillPercent)
		if notifier != nil && from != to {
			go func(binID, name string, fill float64) {
				ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
				defer cancel()
				if err := notifier.NotifyBandChange(ctx, binID, name, fill, from, to); err != nil {
					log.Printf("⚠️  Critical alert for %s failed: %v", binID, err)
				}
			}(in.BinID, result.Name, in.FillPercent)
		}

		utils.Success(w, models.TelemetryAck{Status: "ok", BinID: in.BinID})
	}
}
