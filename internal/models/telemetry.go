package models

import "time"

// Telemetry is a row of the telemetry history table
type Telemetry struct {
	ID          string  `json:"id" db:"id"`
	BinID       string  `json:"bin_id" db:"bin_id"`
	DistanceCM  float64 `json:"distance_cm" db:"distance_cm"`
	FillPercent float64 `json:"fill_percent" db:"fill_percent"`
	TS          int64   `json:"ts" db:"ts"` // Unix timestamp
}

// TelemetryIn is the request body for POST /telemetry.
// Sensors send fractional epoch seconds.
type TelemetryIn struct {
	BinID       string  `json:"bin_id"`
	DistanceCM  float64 `json:"distance_cm"`
	FillPercent float64 `json:"fill_percent"`
	TS          float64 `json:"ts"`
}

// TelemetryAck is what POST /telemetry answers
type TelemetryAck struct {
	Status string `json:"status"`
	BinID  string `json:"bin_id"`
}

// Unix truncates the sensor timestamp to whole seconds, defaulting to now
func (t TelemetryIn) Unix() int64 {
	if t.TS <= 0 {
		return time.Now().Unix()
	}
	return int64(t.TS)
}
