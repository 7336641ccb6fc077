package reporting

import "time"

// Report summarizes one sweep: outcome counts and skip listings only.
// Statistical analysis of the per-trade rows happens downstream; the
// raw rows export (RenderOutcomesCSV) is the interface for it.
type Report struct {
	// Metadata
	GeneratedAt       time.Time
	SignalCount       int
	ParameterSetCount int

	// Data Summary
	DataSummary DataSummary

	// Per-parameter-set exit counts (sorted by stop_loss, activation, callback)
	ParameterBreakdown []ParameterBreakdownRow

	// Exit reason counts across all simulated outcomes
	ExitReasons []ExitReasonRow

	// Signals recorded as permanently unprocessable
	SkippedSignals []SkippedSignalRow
}

// DataSummary describes the outcome population.
type DataSummary struct {
	TotalOutcomes     int
	SimulatedOutcomes int
	SentinelOutcomes  int
	DateRangeStart    int64 // earliest entry time, Unix ms
	DateRangeEnd      int64 // latest entry time, Unix ms
}

// ParameterBreakdownRow counts how one parameter set's trades exited.
type ParameterBreakdownRow struct {
	StopLossPct           float64
	TrailingActivationPct float64
	TrailingCallbackPct   float64

	Trades        int
	StopLosses    int
	TakeProfits   int
	TrailingStops int
	Timeouts      int // graduated ladder exits (breakeven and steps)
	Forced        int // horizon exhaustion
}

// ExitReasonRow counts outcomes with one terminal reason.
type ExitReasonRow struct {
	Reason string
	Count  int
}

// SkippedSignalRow lists one sentinel outcome.
type SkippedSignalRow struct {
	SignalID int64
	Symbol   string
	Reason   string
}
