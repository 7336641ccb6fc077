package domain

import "fmt"

// Exit reason codes. Exactly one terminal reason per (signal, parameter set).
const (
	ExitReasonStopLoss         = "STOP_LOSS"
	ExitReasonTakeProfit       = "TAKE_PROFIT"
	ExitReasonTrailingStop     = "TRAILING_STOP"
	ExitReasonTimeoutBreakeven = "TIMEOUT_BREAKEVEN"
	ExitReasonTimeoutStep1H    = "TIMEOUT_STEP_1H"
	ExitReasonTimeoutStep2H    = "TIMEOUT_STEP_2H"
	ExitReasonTimeoutStep3H    = "TIMEOUT_STEP_3H"
	ExitReasonTimeoutForced    = "TIMEOUT_FORCED"

	// Sentinel reasons: the signal could not be simulated and is
	// permanently skipped, never retried.
	ExitReasonInsufficientData = "INSUFFICIENT_DATA"
	ExitReasonNoEntryPrice     = "NO_ENTRY_PRICE"
)

// ExitReasonTimeoutStep returns the stepped-timeout reason for hour k
// past the near-horizon (k >= 1).
func ExitReasonTimeoutStep(k int) string {
	return fmt.Sprintf("TIMEOUT_STEP_%dH", k)
}

// IsSentinelReason reports whether reason marks a signal that was
// recorded as unprocessable rather than simulated.
func IsSentinelReason(reason string) bool {
	return reason == ExitReasonInsufficientData || reason == ExitReasonNoEntryPrice
}

// TradeOutcome is the result of simulating one (signal, ParameterSet) pair.
// The unique key is (SignalID, Params); re-simulating the same key is
// idempotent and yields identical values.
type TradeOutcome struct {
	OutcomeID string // deterministic hash of (SignalID, Params)
	SignalID  int64
	Symbol    string
	Direction Direction
	Params    ParameterSet

	// Entry
	EntryPrice float64
	EntryTime  int64 // Unix ms

	// Exit
	ExitReason string
	ExitPrice  float64
	ExitTime   int64 // Unix ms
	PnlPct     float64

	// Excursion statistics over the holding window
	MaxRunUpPct    float64 // best favorable excursion relative to entry
	MaxDrawdownPct float64 // worst giveback measured from the running peak

	AbsoluteMaxPrice float64
	AbsoluteMinPrice float64
	TimeToMaxMs      int64 // offset from entry to first touch of the max
	TimeToMinMs      int64 // offset from entry to first touch of the min

	HoldBars int // candles processed before exit
}

// IsSentinel reports whether this outcome marks an unprocessable signal.
func (o *TradeOutcome) IsSentinel() bool {
	return IsSentinelReason(o.ExitReason)
}
