package lookup

import (
	"errors"
	"time"

	"signal-sweep-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoCandleData = errors.New("no candle data available")
)

// FirstBarAt returns the first candle with OpenTime at or after target.
// The input must be ordered by OpenTime ascending.
// Returns ErrNoCandleData if the slice is empty or every bar opens
// before target.
func FirstBarAt(target int64, candles []domain.Candle) (domain.Candle, error) {
	for _, c := range candles {
		if c.OpenTime >= target {
			return c, nil
		}
	}
	return domain.Candle{}, ErrNoCandleData
}

// Window returns the sub-slice of candles with OpenTime in [from, to).
// The result aliases the input; callers treat it as read-only.
func Window(candles []domain.Candle, from, to int64) []domain.Candle {
	lo := len(candles)
	for i, c := range candles {
		if c.OpenTime >= from {
			lo = i
			break
		}
	}
	hi := len(candles)
	for i := lo; i < len(candles); i++ {
		if candles[i].OpenTime >= to {
			hi = i
			break
		}
	}
	return candles[lo:hi]
}

// Coverage returns the fraction of expected bars actually present for a
// holding horizon at the given bar duration.
func Coverage(got int, horizon, barDuration time.Duration) float64 {
	if barDuration <= 0 || horizon <= 0 {
		return 0
	}
	expected := int(horizon / barDuration)
	if expected == 0 {
		return 0
	}
	return float64(got) / float64(expected)
}
