package simulation

import (
	"fmt"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/entry"
	"signal-sweep-lab/internal/lookup"
)

// Sweep simulates every parameter set in the grid against one signal.
// The candle slice is shared read-only across all runs; only the exit
// parameters vary, so the entry fill and excursion history are computed
// from identical data for every set.
//
// Candle coverage is checked once up front. Below the configured
// minimum the whole sweep fails with ErrInsufficientHistory and the
// caller records a single sentinel outcome for the signal.
func (s *Simulator) Sweep(sig domain.Signal, fill entry.Fill, candles []domain.Candle, grid []domain.ParameterSet) ([]domain.TradeOutcome, error) {
	held := 0
	for _, c := range candles {
		if c.OpenTime >= fill.Time {
			held++
		}
	}
	if lookup.Coverage(held, s.cfg.Horizon, s.cfg.BarDuration) < s.cfg.MinCoverage {
		return nil, fmt.Errorf("signal %d: %d bars held: %w", sig.ID, held, ErrInsufficientHistory)
	}

	outcomes := make([]domain.TradeOutcome, 0, len(grid))
	for _, p := range grid {
		out, err := s.Simulate(Input{Signal: sig, Params: p, Entry: fill, Candles: candles})
		if err != nil {
			return nil, fmt.Errorf("signal %d params %s: %w", sig.ID, p.Key(), err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
