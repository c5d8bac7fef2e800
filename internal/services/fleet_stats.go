package services

import (
	"math"
	"time"

	"binsight-backend/internal/models"
)

// DefaultMapCenter is used when no bin has usable coordinates
var DefaultMapCenter = LatLng{Lat: 29.6462, Lng: -82.3479}

// LatLng is a geographic point
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FleetStats summarizes a snapshot for the dashboard header
type FleetStats struct {
	Total           int                  `json:"total"`
	Critical        int                  `json:"critical"`
	AvgFill         int                  `json:"avg_fill"`
	BySeverity      map[SeverityBand]int `json:"by_severity"`
	Center          LatLng               `json:"center"`
	SnapshotVersion uint64               `json:"snapshot_version"`
	FetchedAt       time.Time            `json:"fetched_at"`
}

// BinView is a reading decorated for display
type BinView struct {
	models.BinReading
	Severity   SeverityBand `json:"severity"`
	Color      string       `json:"color"`
	AgeLabel   string       `json:"age_label"`
	RouteOrder int          `json:"route_order,omitempty"`
}

// CountBySeverity tallies bins per band; every band is present
func CountBySeverity(bins []models.BinReading) map[SeverityBand]int {
	counts := make(map[SeverityBand]int, len(AllSeverityBands))
	for _, band := range AllSeverityBands {
		counts[band] = 0
	}
	for _, b := range bins {
		counts[ClassifyFill(b.FillPercent)]++
	}
	return counts
}

// MapCenter averages the coordinates of bins that are not at (0, 0)
func MapCenter(bins []models.BinReading) LatLng {
	var lat, lng float64
	n := 0
	for _, b := range bins {
		if b.Lat == 0 && b.Lng == 0 {
			continue
		}
		lat += b.Lat
		lng += b.Lng
		n++
	}
	if n == 0 {
		return DefaultMapCenter
	}
	return LatLng{Lat: lat / float64(n), Lng: lng / float64(n)}
}

// ComputeStats summarizes a snapshot
func ComputeStats(snap *Snapshot) FleetStats {
	bins := snap.bins
	stats := FleetStats{
		Total:           len(bins),
		BySeverity:      CountBySeverity(bins),
		Center:          MapCenter(bins),
		SnapshotVersion: snap.Version,
		FetchedAt:       snap.FetchedAt,
	}
	stats.Critical = stats.BySeverity[SeverityCritical]
	if len(bins) == 0 {
		return stats
	}
	sum := 0.0
	for _, b := range bins {
		sum += b.FillPercent
	}
	stats.AvgFill = int(math.Round(sum / float64(len(bins))))
	return stats
}

// BuildBinViews decorates bins for display. routeOrder maps bin id to its
// stop index on the current plan and may be nil.
func BuildBinViews(bins []models.BinReading, routeOrder map[string]int, now time.Time) []BinView {
	views := make([]BinView, len(bins))
	for i, b := range bins {
		band := ClassifyFill(b.FillPercent)
		views[i] = BinView{
			BinReading: b,
			Severity:   band,
			Color:      band.Color(),
			AgeLabel:   FormatAgeAt(b.TS, now),
			RouteOrder: routeOrder[b.BinID],
		}
	}
	return views
}
