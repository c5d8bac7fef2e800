package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"binsight-backend/internal/services"
	"binsight-backend/pkg/utils"
)

// GetSuggestedRoute proxies the telemetry source's distance-aware route.
// The local plan from POST /api/route stays authoritative.
// GET /api/route/suggested?start=&end=
func GetSuggestedRoute(fetcher services.RouteFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		end := r.URL.Query().Get("end")
		if start == "" || end == "" {
			utils.Error(w, http.StatusUnprocessableEntity, "start and end are required")
			return
		}

		route, err := fetcher.FetchRoute(r.Context(), start, end)
		if err != nil {
			var se *services.HTTPStatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				utils.Error(w, http.StatusNotFound, remoteDetail(se))
				return
			}
			log.Printf("❌ Suggested route failed: %v", err)
			utils.Error(w, http.StatusBadGateway, err.Error())
			return
		}
		utils.Success(w, route)
	}
}

// remoteDetail unwraps {"detail": "..."} bodies from the telemetry source
func remoteDetail(se *services.HTTPStatusError) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(se.Body), &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return se.Body
}
