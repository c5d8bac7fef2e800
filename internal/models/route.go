package models

import "time"

// RouteStop is a bin positioned at a 1-based index of a planned route.
// Bin points into the snapshot the plan was built from.
type RouteStop struct {
	Order int         `json:"order"`
	Bin   *BinReading `json:"bin"`
}

// RoutePlan is an ordered collection pass built from one fleet snapshot
type RoutePlan struct {
	ID              string       `json:"id"`
	StartID         string       `json:"start_id"`
	EndID           string       `json:"end_id"`
	Stops           []RouteStop  `json:"stops"`
	Polyline        [][2]float64 `json:"polyline"` // rendering only, [lat, lng] in stop order
	SnapshotVersion uint64       `json:"snapshot_version"`
	BuiltAt         time.Time    `json:"built_at"`
}

// BuildRouteRequest is the request body for POST /api/route
type BuildRouteRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RemoteRouteStop is one stop of the server-side GET /route response
type RemoteRouteStop struct {
	BinID       string  `json:"bin_id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	FillPercent float64 `json:"fill_percent"`
	Priority    float64 `json:"priority"`
	Order       int     `json:"order"`
}

// RemoteRoute is the server-side GET /route response
type RemoteRoute struct {
	Stops    []RemoteRouteStop `json:"stops"`
	Polyline [][2]float64      `json:"polyline"`
}
