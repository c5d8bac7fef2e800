package services

import "fmt"

// SeverityBand is the ordinal fill category of a bin
type SeverityBand int

const (
	SeverityLow SeverityBand = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Fill thresholds, highest first
const (
	CriticalFillThreshold = 85.0
	HighFillThreshold     = 60.0
	MediumFillThreshold   = 35.0
)

// AllSeverityBands lists the bands in ascending order
var AllSeverityBands = []SeverityBand{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

var severityNames = [...]string{"low", "medium", "high", "critical"}

var severityColors = [...]string{"#40916c", "#e9a820", "#e36149", "#c1292e"}

// ClassifyFill maps a fill percentage to its band. Any value is accepted,
// out-of-range and NaN inputs fall through to the same comparisons.
func ClassifyFill(fillPercent float64) SeverityBand {
	switch {
	case fillPercent >= CriticalFillThreshold:
		return SeverityCritical
	case fillPercent >= HighFillThreshold:
		return SeverityHigh
	case fillPercent >= MediumFillThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FillColor returns the display color for a fill percentage
func FillColor(fillPercent float64) string {
	return ClassifyFill(fillPercent).Color()
}

func (b SeverityBand) String() string {
	if b < SeverityLow || b > SeverityCritical {
		return fmt.Sprintf("SeverityBand(%d)", int(b))
	}
	return severityNames[b]
}

// Color returns the display color token for the band
func (b SeverityBand) Color() string {
	if b < SeverityLow || b > SeverityCritical {
		return severityColors[SeverityLow]
	}
	return severityColors[b]
}

func (b SeverityBand) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *SeverityBand) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if name == string(text) {
			*b = SeverityBand(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity band %q", string(text))
}
