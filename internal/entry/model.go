// Package entry resolves a realistic fill price for a signal from a
// single price bar.
package entry

import (
	"errors"

	"signal-sweep-lab/internal/domain"
)

// Entry resolution errors. Both mark the signal as permanently
// unprocessable; the caller records a sentinel outcome.
var (
	ErrInvalidPriceData = errors.New("invalid price data in entry bar")
	ErrAnomalousSpread  = errors.New("anomalous spread in entry bar")
)

// DefaultMaxSpreadPct is the intra-bar spread above which the bar is
// treated as bad data rather than real volatility.
const DefaultMaxSpreadPct = 0.50

// Fill ratios inside the bar's [low, high] range. The fill is biased
// toward the adverse side: a midpoint fill systematically overstates
// strategy performance.
const (
	longFillRatio  = 0.75 // LONG fills closer to the high
	shortFillRatio = 0.25 // SHORT fills closer to the low
)

// Fill is a resolved entry price and time.
type Fill struct {
	Price float64
	Time  int64 // Unix ms, the entry bar's open time
}

// Model computes direction-biased fills from a validated entry bar.
// Pure: no side effects, no shared state.
type Model struct {
	maxSpreadPct float64
}

// NewModel creates a Model. maxSpreadPct <= 0 selects the default.
func NewModel(maxSpreadPct float64) *Model {
	if maxSpreadPct <= 0 {
		maxSpreadPct = DefaultMaxSpreadPct
	}
	return &Model{maxSpreadPct: maxSpreadPct}
}

// Resolve validates the entry bar and computes the fill.
// The bar must be the first bar at or after signal time plus the
// configured entry delay; selecting it is the caller's concern.
func (m *Model) Resolve(direction domain.Direction, bar domain.Candle) (Fill, error) {
	if err := bar.Validate(); err != nil {
		return Fill{}, ErrInvalidPriceData
	}

	if bar.SpreadPct() > m.maxSpreadPct {
		return Fill{}, ErrAnomalousSpread
	}

	ratio := longFillRatio
	if direction == domain.DirectionShort {
		ratio = shortFillRatio
	}

	return Fill{
		Price: bar.Low + (bar.High-bar.Low)*ratio,
		Time:  bar.OpenTime,
	}, nil
}
