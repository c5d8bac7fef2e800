package models

import "time"

// Bin is a row of the bins table: registry metadata plus the latest reading.
type Bin struct {
	Seq           int64   `json:"-" db:"seq"`
	BinID         string  `json:"bin_id" db:"bin_id"`
	Name          string  `json:"name" db:"name"`
	Latitude      float64 `json:"lat" db:"latitude"`
	Longitude     float64 `json:"lng" db:"longitude"`
	DistanceCM    float64 `json:"distance_cm" db:"distance_cm"`
	FillPercent   float64 `json:"fill_percent" db:"fill_percent"`
	LastSeenAt    int64   `json:"ts" db:"last_seen_at"`                           // Unix timestamp
	LastEmptiedAt *int64  `json:"last_emptied_at,omitempty" db:"last_emptied_at"` // Unix timestamp
	CreatedAt     int64   `json:"created_at" db:"created_at"`
	UpdatedAt     int64   `json:"updated_at" db:"updated_at"`
}

// BinReading is one bin's latest known telemetry as served by GET /bins.
type BinReading struct {
	BinID         string  `json:"bin_id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	DistanceCM    float64 `json:"distance_cm"`
	FillPercent   float64 `json:"fill_percent"`
	TS            int64   `json:"ts"`
	LastEmptiedAt *int64  `json:"last_emptied_at,omitempty"`
}

// ObservedAt returns the reading timestamp as a time.Time
func (b BinReading) ObservedAt() time.Time {
	return time.Unix(b.TS, 0)
}

// RegisterBinRequest is the request body for POST /bins/register
type RegisterBinRequest struct {
	BinID string  `json:"bin_id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// HeatmapPoint is one weighted point of GET /heatmap
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// ToBinReading converts a Bin row to the wire reading
func (b *Bin) ToBinReading() BinReading {
	return BinReading{
		BinID:         b.BinID,
		Name:          b.Name,
		Lat:           b.Latitude,
		Lng:           b.Longitude,
		DistanceCM:    b.DistanceCM,
		FillPercent:   b.FillPercent,
		TS:            b.LastSeenAt,
		LastEmptiedAt: b.LastEmptiedAt,
	}
}
