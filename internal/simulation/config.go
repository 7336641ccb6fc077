package simulation

import (
	"errors"
	"fmt"
	"time"
)

// Config validation errors.
var (
	ErrInvalidHorizon     = errors.New("horizon and bar duration must be positive")
	ErrInvalidNearHorizon = errors.New("near-horizon must fall before the horizon")
	ErrInvalidTakeProfit  = errors.New("take-profit percentage must be positive")
	ErrInvalidCoverage    = errors.New("min coverage must be in (0, 1]")
	ErrInvalidStepLoss    = errors.New("step loss percentages must be positive")
)

// Config holds the simulation horizon and exit policy parameters shared
// by every parameter set in a sweep.
type Config struct {
	// TakeProfitPct is the fixed favorable exit level in percent units.
	TakeProfitPct float64

	// Horizon is the maximum holding duration before a forced exit.
	Horizon time.Duration

	// NearHorizon is when the graduated timeout ladder starts.
	NearHorizon time.Duration

	// StepLossPcts are the worsening exit levels applied at hourly
	// checkpoints past the near-horizon (percent units, positive).
	StepLossPcts []float64

	// MinCoverage is the required fraction of expected candles over the
	// horizon. Below it the signal is skipped as insufficient history.
	MinCoverage float64

	// BarDuration is the candle width (1m or 5m depending on deployment).
	BarDuration time.Duration

	// EntryDelay is added to the signal timestamp before selecting the
	// entry bar.
	EntryDelay time.Duration

	// MaxSpreadPct is the entry-bar spread threshold, as a fraction.
	MaxSpreadPct float64
}

// DefaultConfig returns the production simulation parameters:
// 24h horizon of 1m candles, 3% take-profit, graduated de-risking from
// hour 20 with -1/-2/-3% steps.
func DefaultConfig() Config {
	return Config{
		TakeProfitPct: 3.0,
		Horizon:       24 * time.Hour,
		NearHorizon:   20 * time.Hour,
		StepLossPcts:  []float64{1, 2, 3},
		MinCoverage:   0.75,
		BarDuration:   time.Minute,
		EntryDelay:    5 * time.Minute,
		MaxSpreadPct:  0.50,
	}
}

// Validate fails on malformed configuration. Called at startup; a bad
// config aborts the run rather than failing per-signal.
func (c Config) Validate() error {
	if c.Horizon <= 0 || c.BarDuration <= 0 {
		return ErrInvalidHorizon
	}
	if c.TakeProfitPct <= 0 {
		return ErrInvalidTakeProfit
	}
	if c.MinCoverage <= 0 || c.MinCoverage > 1 {
		return ErrInvalidCoverage
	}
	if c.NearHorizon <= 0 || c.NearHorizon >= c.Horizon {
		return ErrInvalidNearHorizon
	}
	for i, step := range c.StepLossPcts {
		if step <= 0 {
			return fmt.Errorf("step %d: %w", i+1, ErrInvalidStepLoss)
		}
	}
	return nil
}
