package main

import (
	"math/rand"

	"binsight-backend/internal/services"
)

const (
	// Readings per measurement, reduced to their median
	samplesPerReading = 7

	// Echo noise in centimeters
	noiseCM = 1.5

	// Chance a sample is a dropped echo (reported as 0)
	dropRate = 0.1
)

// simulatedBin is an ultrasonic sensor over a bin that slowly fills up
type simulatedBin struct {
	id       string
	fill     float64
	fillRate float64 // percent per reading
	rng      *rand.Rand
}

func newSimulatedBin(id string, startFill, fillRate float64, rng *rand.Rand) *simulatedBin {
	return &simulatedBin{id: id, fill: startFill, fillRate: fillRate, rng: rng}
}

// samples returns raw distance readings for the current fill level
func (b *simulatedBin) samples() []float64 {
	truth := services.DistanceFromFill(b.fill)
	out := make([]float64, samplesPerReading)
	for i := range out {
		if b.rng.Float64() < dropRate {
			continue
		}
		out[i] = truth + (b.rng.Float64()*2-1)*noiseCM
	}
	return out
}

// measure produces one smoothed reading and advances the simulation.
// ok is false when every sample was dropped.
func (b *simulatedBin) measure() (distanceCM, fillPercent float64, ok bool) {
	d, ok := services.MedianDistance(b.samples())
	b.advance()
	if !ok {
		return 0, 0, false
	}
	return d, services.FillFromDistance(d), true
}

// advance raises the fill level and empties the bin once it overflows
func (b *simulatedBin) advance() {
	b.fill += b.fillRate
	if b.fill > 100 {
		b.fill = 0
	}
}
