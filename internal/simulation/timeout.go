package simulation

import (
	"time"

	"signal-sweep-lab/internal/domain"
)

// TimeoutExit describes an exit produced by a timeout policy while the
// trade is still inside the horizon.
type TimeoutExit struct {
	Reason string
	Price  float64
}

// TimeoutPolicy decides whether a bar late in the holding window should
// close the trade before the hard horizon. The forced exit at the
// horizon itself is handled by the simulator, not the policy.
type TimeoutPolicy interface {
	Check(cfg Config, dir domain.Direction, entryPrice float64, entryTime int64, bar domain.Candle) (TimeoutExit, bool)
}

// HorizonOnlyPolicy never exits early. Trades run until stop, target,
// trailing stop or the forced horizon exit.
type HorizonOnlyPolicy struct{}

func (HorizonOnlyPolicy) Check(Config, domain.Direction, float64, int64, domain.Candle) (TimeoutExit, bool) {
	return TimeoutExit{}, false
}

// GraduatedPolicy de-risks stale trades. Once the near-horizon is
// reached the trade closes the first time price touches an exit level
// that starts at breakeven and worsens by one step each hour. A trade
// that never recovers to the active level keeps running and is forced
// out at the horizon.
type GraduatedPolicy struct{}

func (GraduatedPolicy) Check(cfg Config, dir domain.Direction, entryPrice float64, entryTime int64, bar domain.Candle) (TimeoutExit, bool) {
	elapsed := time.Duration(bar.OpenTime-entryTime) * time.Millisecond
	if elapsed < cfg.NearHorizon {
		return TimeoutExit{}, false
	}

	step := int((elapsed - cfg.NearHorizon) / time.Hour)
	if step > len(cfg.StepLossPcts) {
		step = len(cfg.StepLossPcts)
	}

	level := 0.0
	reason := domain.ExitReasonTimeoutBreakeven
	if step > 0 {
		level = -cfg.StepLossPcts[step-1]
		reason = domain.ExitReasonTimeoutStep(step)
	}

	if dir == domain.DirectionLong {
		target := entryPrice * (1 + level/100)
		if bar.High >= target {
			return TimeoutExit{Reason: reason, Price: target}, true
		}
		return TimeoutExit{}, false
	}

	target := entryPrice * (1 - level/100)
	if bar.Low <= target {
		return TimeoutExit{Reason: reason, Price: target}, true
	}
	return TimeoutExit{}, false
}
