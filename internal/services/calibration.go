package services

import (
	"math"
	"sort"
)

// Ultrasonic sensor calibration, centimeters from sensor to contents
const (
	EmptyDistanceCM = 60.0
	FullDistanceCM  = 10.0
)

// FillFromDistance converts a distance reading into a fill percentage clamped to 0..100
func FillFromDistance(distanceCM float64) float64 {
	fill := (EmptyDistanceCM - distanceCM) / (EmptyDistanceCM - FullDistanceCM) * 100.0
	return math.Max(0, math.Min(100, fill))
}

// DistanceFromFill is the inverse used when a reading has to be synthesized
// (seeding, marking a bin emptied). Rounded to one decimal.
func DistanceFromFill(fillPercent float64) float64 {
	d := EmptyDistanceCM - (fillPercent/100.0)*(EmptyDistanceCM-FullDistanceCM)
	return math.Round(d*10) / 10
}

// MedianDistance returns the median of the positive samples; ok is false
// when no sample is usable.
func MedianDistance(samples []float64) (float64, bool) {
	valid := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s > 0 {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return 0, false
	}
	sort.Float64s(valid)
	mid := len(valid) / 2
	if len(valid)%2 == 1 {
		return valid[mid], true
	}
	return (valid[mid-1] + valid[mid]) / 2, true
}
