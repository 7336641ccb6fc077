package domain

import "errors"

// Candle validation errors.
var (
	ErrCandleInvalidRange = errors.New("candle high is below low")
	ErrCandleNonPositive  = errors.New("candle price is non-positive")
)

// Candle represents one OHLCV price bar.
// Sequences are strictly increasing in OpenTime with a fixed bar duration.
// Immutable once fetched.
type Candle struct {
	OpenTime int64   // bar open, Unix milliseconds
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Validate checks basic bar invariants: high >= low and positive prices.
func (c Candle) Validate() error {
	if c.High <= 0 || c.Low <= 0 {
		return ErrCandleNonPositive
	}
	if c.High < c.Low {
		return ErrCandleInvalidRange
	}
	return nil
}

// SpreadPct returns the intra-bar spread (high-low)/low as a fraction.
// Returns 0 for a degenerate bar with non-positive low.
func (c Candle) SpreadPct() float64 {
	if c.Low <= 0 {
		return 0
	}
	return (c.High - c.Low) / c.Low
}
