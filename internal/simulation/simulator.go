// Package simulation replays historical candles against a signal to
// determine which exit fires first for a given parameter set.
package simulation

import (
	"errors"
	"fmt"
	"math/rand"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/entry"
	"signal-sweep-lab/internal/idhash"
)

// Simulation errors.
var (
	ErrInsufficientHistory = errors.New("insufficient candle history for horizon")
	ErrNoHoldingCandles    = errors.New("no candles in holding window")
)

// Input is one (signal, parameter set) simulation request. Candles must
// be ordered by OpenTime ascending and cover the holding window
// starting at the entry bar; the slice is read-only and may be shared
// across parameter sets.
type Input struct {
	Signal  domain.Signal
	Params  domain.ParameterSet
	Entry   entry.Fill
	Candles []domain.Candle
}

// Validate rejects inputs that cannot produce a terminal outcome.
func (in *Input) Validate() error {
	if err := in.Signal.Validate(); err != nil {
		return err
	}
	if err := in.Params.Validate(); err != nil {
		return err
	}
	if in.Entry.Price <= 0 {
		return fmt.Errorf("entry price must be positive, got %v", in.Entry.Price)
	}
	if len(in.Candles) == 0 {
		return ErrNoHoldingCandles
	}
	return nil
}

// Simulator walks candles bar by bar and reports the first exit
// condition that fires. Stateless across calls; safe for concurrent use.
type Simulator struct {
	cfg    Config
	policy TimeoutPolicy
}

// NewSimulator creates a Simulator with the given timeout policy.
// A nil policy disables early timeout exits.
func NewSimulator(cfg Config, policy TimeoutPolicy) *Simulator {
	if policy == nil {
		policy = HorizonOnlyPolicy{}
	}
	return &Simulator{cfg: cfg, policy: policy}
}

// Simulate runs the exit state machine for one parameter set.
//
// Per-bar order: excursion tracking, then stop/target (with a
// deterministic coin flip when both are touched inside one bar), then
// trailing stop, then the timeout policy. If no exit fires within the
// horizon the trade is forced closed at the last bar's close.
//
// The tie-break RNG is seeded only by the signal id, so the same signal
// resolves ties identically across runs and across parameter sets.
func (s *Simulator) Simulate(in Input) (domain.TradeOutcome, error) {
	if err := in.Validate(); err != nil {
		return domain.TradeOutcome{}, err
	}

	rng := rand.New(rand.NewSource(int64(idhash.ComputeSignalSeed(in.Signal.ID))))

	entryPrice := in.Entry.Price
	entryTime := in.Entry.Time
	long := in.Signal.Direction == domain.DirectionLong

	var slPrice, tpPrice float64
	if long {
		slPrice = entryPrice * (1 - in.Params.StopLossPct/100)
		tpPrice = entryPrice * (1 + s.cfg.TakeProfitPct/100)
	} else {
		slPrice = entryPrice * (1 + in.Params.StopLossPct/100)
		tpPrice = entryPrice * (1 - s.cfg.TakeProfitPct/100)
	}

	// Trailing stop state. The initial trigger locks in activation
	// minus callback; tightening only ever moves it in the trade's favor.
	var (
		trailArmed   bool
		trailTrigger float64
	)
	var trailActivation, trailInitial float64
	if long {
		trailActivation = entryPrice * (1 + in.Params.TrailingActivationPct/100)
		trailInitial = entryPrice * (1 + (in.Params.TrailingActivationPct-in.Params.TrailingCallbackPct)/100)
	} else {
		trailActivation = entryPrice * (1 - in.Params.TrailingActivationPct/100)
		trailInitial = entryPrice * (1 - (in.Params.TrailingActivationPct-in.Params.TrailingCallbackPct)/100)
	}

	// Excursion tracking. Drawdown is measured from the running best
	// price, assuming the favorable extreme of each bar prints first.
	absMax, absMin := entryPrice, entryPrice
	var timeToMax, timeToMin int64
	best := entryPrice
	var maxDrawdownPct float64

	out := domain.TradeOutcome{
		OutcomeID:  idhash.ComputeOutcomeID(in.Signal.ID, in.Params),
		SignalID:   in.Signal.ID,
		Symbol:     in.Signal.Symbol,
		Direction:  in.Signal.Direction,
		Params:     in.Params,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
	}

	closeOut := func(reason string, price float64, atTime int64, bars int) domain.TradeOutcome {
		out.ExitReason = reason
		out.ExitPrice = price
		out.ExitTime = atTime
		if long {
			out.PnlPct = (price - entryPrice) / entryPrice * 100
		} else {
			out.PnlPct = (entryPrice - price) / entryPrice * 100
		}
		if long {
			out.MaxRunUpPct = (absMax - entryPrice) / entryPrice * 100
		} else {
			out.MaxRunUpPct = (entryPrice - absMin) / entryPrice * 100
		}
		out.MaxDrawdownPct = maxDrawdownPct
		out.AbsoluteMaxPrice = absMax
		out.AbsoluteMinPrice = absMin
		out.TimeToMaxMs = timeToMax
		out.TimeToMinMs = timeToMin
		out.HoldBars = bars
		return out
	}

	processed := 0
	for _, bar := range in.Candles {
		if bar.OpenTime < entryTime {
			continue
		}
		processed++

		// Excursion tracking includes the exit bar.
		if bar.High > absMax {
			absMax = bar.High
			timeToMax = bar.OpenTime - entryTime
		}
		if bar.Low < absMin {
			absMin = bar.Low
			timeToMin = bar.OpenTime - entryTime
		}
		if long {
			if bar.High > best {
				best = bar.High
			}
			if best > 0 {
				if dd := (best - bar.Low) / best * 100; dd > maxDrawdownPct {
					maxDrawdownPct = dd
				}
			}
		} else {
			if bar.Low < best {
				best = bar.Low
			}
			if best > 0 {
				if dd := (bar.High - best) / best * 100; dd > maxDrawdownPct {
					maxDrawdownPct = dd
				}
			}
		}

		// Hard exits. When one bar spans both levels the candle does not
		// say which printed first; a coin flip seeded by the signal id
		// keeps the answer reproducible.
		var slHit, tpHit bool
		if long {
			slHit = bar.Low <= slPrice
			tpHit = bar.High >= tpPrice
		} else {
			slHit = bar.High >= slPrice
			tpHit = bar.Low <= tpPrice
		}
		if slHit && tpHit {
			if rng.Intn(2) == 0 {
				return closeOut(domain.ExitReasonStopLoss, slPrice, bar.OpenTime, processed), nil
			}
			return closeOut(domain.ExitReasonTakeProfit, tpPrice, bar.OpenTime, processed), nil
		}
		if slHit {
			return closeOut(domain.ExitReasonStopLoss, slPrice, bar.OpenTime, processed), nil
		}
		if tpHit {
			return closeOut(domain.ExitReasonTakeProfit, tpPrice, bar.OpenTime, processed), nil
		}

		// Trailing stop: arm, check the trigger, then tighten it.
		if !trailArmed {
			armedNow := (long && bar.High >= trailActivation) || (!long && bar.Low <= trailActivation)
			if armedNow {
				trailArmed = true
				trailTrigger = trailInitial
			}
		}
		if trailArmed {
			if long {
				if bar.Low <= trailTrigger {
					return closeOut(domain.ExitReasonTrailingStop, trailTrigger, bar.OpenTime, processed), nil
				}
				if t := bar.High * (1 - in.Params.TrailingCallbackPct/100); t > trailTrigger {
					trailTrigger = t
				}
			} else {
				if bar.High >= trailTrigger {
					return closeOut(domain.ExitReasonTrailingStop, trailTrigger, bar.OpenTime, processed), nil
				}
				if t := bar.Low * (1 + in.Params.TrailingCallbackPct/100); t < trailTrigger {
					trailTrigger = t
				}
			}
		}

		if exit, ok := s.policy.Check(s.cfg, in.Signal.Direction, entryPrice, entryTime, bar); ok {
			return closeOut(exit.Reason, exit.Price, bar.OpenTime, processed), nil
		}
	}

	if processed == 0 {
		return domain.TradeOutcome{}, ErrNoHoldingCandles
	}

	last := in.Candles[len(in.Candles)-1]
	return closeOut(domain.ExitReasonTimeoutForced, last.Close, last.OpenTime, processed), nil
}
