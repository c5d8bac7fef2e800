package services

import (
	"errors"
	"fmt"
	"sort"

	"binsight-backend/internal/models"
)

// MinRouteFillPercent is the inclusion threshold for middle stops; emptier
// bins are not worth a detour.
const MinRouteFillPercent = 30.0

// Route endpoints
const (
	EndpointStart = "start"
	EndpointEnd   = "end"
)

// ErrBinNotFound is matched by *RouteEndpointError
var ErrBinNotFound = errors.New("bin not found")

// RouteEndpointError reports which route endpoint was absent from the snapshot
type RouteEndpointError struct {
	Endpoint string
	BinID    string
}

func (e *RouteEndpointError) Error() string {
	return fmt.Sprintf("%s bin %q not found", e.Endpoint, e.BinID)
}

func (e *RouteEndpointError) Is(target error) bool {
	return target == ErrBinNotFound
}

// BuildRoute orders a collection pass from startID to endID.
//
// The order is priority-first, not distance-optimal: every other bin at or
// above MinRouteFillPercent is visited, fullest first, with ties broken by
// bin id. Stops point into bins. When startID == endID the same bin is
// both the first and the last stop.
//
// A missing endpoint yields no stops and a *RouteEndpointError, so callers
// can tell a bad id apart from a route with no eligible middle bins.
func BuildRoute(bins []models.BinReading, startID, endID string) ([]models.RouteStop, error) {
	startIdx, endIdx := -1, -1
	for i := range bins {
		if startIdx < 0 && bins[i].BinID == startID {
			startIdx = i
		}
		if endIdx < 0 && bins[i].BinID == endID {
			endIdx = i
		}
	}
	if startIdx < 0 {
		return nil, &RouteEndpointError{Endpoint: EndpointStart, BinID: startID}
	}
	if endIdx < 0 {
		return nil, &RouteEndpointError{Endpoint: EndpointEnd, BinID: endID}
	}

	middle := make([]*models.BinReading, 0, len(bins))
	for i := range bins {
		b := &bins[i]
		if b.BinID == startID || b.BinID == endID {
			continue
		}
		if b.FillPercent >= MinRouteFillPercent {
			middle = append(middle, b)
		}
	}

	sort.SliceStable(middle, func(i, j int) bool {
		if middle[i].FillPercent != middle[j].FillPercent {
			return middle[i].FillPercent > middle[j].FillPercent
		}
		return middle[i].BinID < middle[j].BinID
	})

	stops := make([]models.RouteStop, 0, len(middle)+2)
	stops = append(stops, models.RouteStop{Order: 1, Bin: &bins[startIdx]})
	for _, b := range middle {
		stops = append(stops, models.RouteStop{Order: len(stops) + 1, Bin: b})
	}
	stops = append(stops, models.RouteStop{Order: len(stops) + 1, Bin: &bins[endIdx]})

	return stops, nil
}

// RoutePolyline returns the [lat, lng] pairs of the stops in order
func RoutePolyline(stops []models.RouteStop) [][2]float64 {
	line := make([][2]float64, 0, len(stops))
	for _, s := range stops {
		line = append(line, [2]float64{s.Bin.Lat, s.Bin.Lng})
	}
	return line
}
