package domain

import (
	"errors"
	"fmt"
)

// Grid validation errors.
var (
	ErrEmptyGrid        = errors.New("parameter grid is empty")
	ErrNonPositiveParam = errors.New("parameter values must be positive")
)

// ParameterSet is one point in the risk-parameter grid.
// Percentages are expressed in percent units (3.0 means 3%).
type ParameterSet struct {
	StopLossPct           float64
	TrailingActivationPct float64
	TrailingCallbackPct   float64
}

// Key returns a stable string form of the parameter set,
// usable as a map key and in deterministic outcome ids.
func (p ParameterSet) Key() string {
	return fmt.Sprintf("sl%.2f_act%.2f_cb%.2f",
		p.StopLossPct, p.TrailingActivationPct, p.TrailingCallbackPct)
}

// Validate checks all three percentages are positive.
func (p ParameterSet) Validate() error {
	if p.StopLossPct <= 0 || p.TrailingActivationPct <= 0 || p.TrailingCallbackPct <= 0 {
		return ErrNonPositiveParam
	}
	return nil
}

// GridConfig holds the three parameter ranges swept per signal.
type GridConfig struct {
	StopLossRange           []float64
	TrailingActivationRange []float64
	TrailingCallbackRange   []float64
}

// Validate fails on an empty or non-positive range.
// A malformed grid aborts the run at startup rather than per-signal.
func (g GridConfig) Validate() error {
	if len(g.StopLossRange) == 0 || len(g.TrailingActivationRange) == 0 || len(g.TrailingCallbackRange) == 0 {
		return ErrEmptyGrid
	}
	for _, set := range g.Combinations() {
		if err := set.Validate(); err != nil {
			return fmt.Errorf("grid entry %s: %w", set.Key(), err)
		}
	}
	return nil
}

// Combinations returns the Cartesian product of the three ranges.
// Order is deterministic: stop-loss outermost, callback innermost.
func (g GridConfig) Combinations() []ParameterSet {
	combos := make([]ParameterSet, 0,
		len(g.StopLossRange)*len(g.TrailingActivationRange)*len(g.TrailingCallbackRange))
	for _, sl := range g.StopLossRange {
		for _, act := range g.TrailingActivationRange {
			for _, cb := range g.TrailingCallbackRange {
				combos = append(combos, ParameterSet{
					StopLossPct:           sl,
					TrailingActivationPct: act,
					TrailingCallbackPct:   cb,
				})
			}
		}
	}
	return combos
}

// DefaultGrid holds the production sweep ranges.
var DefaultGrid = GridConfig{
	StopLossRange:           []float64{1, 2, 3, 4, 5, 6},
	TrailingActivationRange: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	TrailingCallbackRange:   []float64{0.5, 1.0, 1.5, 2.0},
}
