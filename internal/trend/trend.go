// Package trend annotates a time-ordered series of rate samples with the
// movement between consecutive samples and the stability of the window.
package trend

import (
	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/api"
)

// Direction of the buy rate relative to the previous sample.
type Direction string

const (
	// DirectionNone marks the first sample, which has no predecessor.
	DirectionNone   Direction = ""
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

var (
	// StableThreshold is the smallest change that counts as movement.
	StableThreshold = decimal.RequireFromString("0.0001")
	// FlatThreshold is the smallest buy spread that makes a window worth charting.
	FlatThreshold = decimal.RequireFromString("0.01")
)

// Point is a sample with its annotation. Change is nil for the first point.
type Point struct {
	api.HistorySample
	Change    *decimal.Decimal
	Direction Direction
}

// Series is an annotated window.
type Series struct {
	Points []Point
	MinBuy decimal.Decimal
	MaxBuy decimal.Decimal
	Spread decimal.Decimal
	// Flat is set when the buy spread is below FlatThreshold. An empty window
	// is not flat.
	Flat bool
}

// Compute annotates samples, which must already be sorted by time ascending.
// Order is preserved and nothing is deduplicated.
func Compute(samples []api.HistorySample) Series {
	series := Series{Points: make([]Point, len(samples))}
	if len(samples) == 0 {
		return series
	}

	series.MinBuy = samples[0].Buy
	series.MaxBuy = samples[0].Buy

	for i, sample := range samples {
		point := Point{HistorySample: sample}
		if i > 0 {
			change := sample.Buy.Sub(samples[i-1].Buy)
			point.Change = &change
			point.Direction = classify(change)
		}
		series.Points[i] = point

		if sample.Buy.LessThan(series.MinBuy) {
			series.MinBuy = sample.Buy
		}
		if sample.Buy.GreaterThan(series.MaxBuy) {
			series.MaxBuy = sample.Buy
		}
	}

	series.Spread = series.MaxBuy.Sub(series.MinBuy)
	series.Flat = series.Spread.LessThan(FlatThreshold)
	return series
}

func classify(change decimal.Decimal) Direction {
	if change.Abs().LessThan(StableThreshold) {
		return DirectionStable
	}
	if change.IsPositive() {
		return DirectionUp
	}
	return DirectionDown
}
