package services

import (
	"log"
	"math"
	"time"

	"binsight-backend/internal/models"
)

// Server-side route tuning
const (
	// Penalty points per kilometer of travel. Higher favors proximity,
	// lower favors fill priority. 0.5 suits campus scale (0-2km).
	DistancePenaltyPerKM = 0.5

	// Candidates below this fill are skipped
	PriorityCandidateMinFill = 10.0

	// Maximum number of middle stops
	PriorityMaxStops = 10

	// Hours since emptying assumed when a bin has never been emptied
	neverEmptiedHours = 48.0
)

// PriorityPlanner builds the richer server-side route: a greedy walk that
// trades bin priority against travel distance from the current stop.
type PriorityPlanner struct {
	Now func() time.Time
}

// NewPriorityPlanner creates a planner using the wall clock
func NewPriorityPlanner() *PriorityPlanner {
	return &PriorityPlanner{Now: time.Now}
}

// Priority weighs fill (70%) against time since the bin was last emptied
// (30%, saturating at one day).
func (p *PriorityPlanner) Priority(b models.BinReading, now time.Time) float64 {
	hoursSince := neverEmptiedHours
	if b.LastEmptiedAt != nil && *b.LastEmptiedAt > 0 {
		hoursSince = now.Sub(time.Unix(*b.LastEmptiedAt, 0)).Hours()
	}
	return 0.7*(b.FillPercent/100.0) + 0.3*math.Min(hoursSince/24.0, 1.0)
}

// Plan returns the stops from startID to endID with 0-based orders and the
// matching polyline. Missing endpoints are reported as *RouteEndpointError.
func (p *PriorityPlanner) Plan(bins []models.BinReading, startID, endID string) (models.RemoteRoute, error) {
	byID := make(map[string]models.BinReading, len(bins))
	for _, b := range bins {
		byID[b.BinID] = b
	}
	start, ok := byID[startID]
	if !ok {
		return models.RemoteRoute{}, &RouteEndpointError{Endpoint: EndpointStart, BinID: startID}
	}
	if _, ok := byID[endID]; !ok {
		return models.RemoteRoute{}, &RouteEndpointError{Endpoint: EndpointEnd, BinID: endID}
	}

	now := p.Now()

	candidates := make([]models.BinReading, 0, len(bins))
	for _, b := range bins {
		if b.BinID == startID || b.BinID == endID {
			continue
		}
		if b.FillPercent >= PriorityCandidateMinFill {
			candidates = append(candidates, b)
		}
	}

	log.Printf("🎯 Planning route %s → %s (%d candidates)", startID, endID, len(candidates))

	routeIDs := []string{startID}
	visited := map[string]bool{startID: true}
	current := start

	steps := min(PriorityMaxStops, len(candidates))
	for step := 0; step < steps; step++ {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, b := range candidates {
			if visited[b.BinID] {
				continue
			}
			dist := HaversineKM(current.Lat, current.Lng, b.Lat, b.Lng)
			score := p.Priority(b, now) - DistancePenaltyPerKM*dist
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		best := candidates[bestIdx]
		visited[best.BinID] = true
		routeIDs = append(routeIDs, best.BinID)
		current = best
	}

	if !visited[endID] {
		routeIDs = append(routeIDs, endID)
	}

	route := models.RemoteRoute{
		Stops:    make([]models.RemoteRouteStop, 0, len(routeIDs)),
		Polyline: make([][2]float64, 0, len(routeIDs)),
	}
	for order, id := range routeIDs {
		b := byID[id]
		route.Stops = append(route.Stops, models.RemoteRouteStop{
			BinID:       b.BinID,
			Name:        b.Name,
			Lat:         b.Lat,
			Lng:         b.Lng,
			FillPercent: b.FillPercent,
			Priority:    math.Round(p.Priority(b, now)*1000) / 1000,
			Order:       order,
		})
		route.Polyline = append(route.Polyline, [2]float64{b.Lat, b.Lng})
	}

	log.Printf("✅ Route planned: %d stops", len(route.Stops))
	return route, nil
}

// HaversineKM calculates the distance between two GPS coordinates in kilometers
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
