package orchestrator

import (
	"context"
	"testing"
	"time"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/simulation"
	"signal-sweep-lab/internal/storage/memory"
)

const minuteMs = int64(time.Minute / time.Millisecond)

var testGrid = domain.GridConfig{
	StopLossRange:           []float64{2, 3},
	TrailingActivationRange: []float64{4, 5},
	TrailingCallbackRange:   []float64{1},
}

type fixture struct {
	signals  *memory.SignalStore
	candles  *memory.CandleStore
	outcomes *memory.OutcomeStore
	orch     *Orchestrator
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	f := &fixture{
		signals:  memory.NewSignalStore(),
		candles:  memory.NewCandleStore(),
		outcomes: memory.NewOutcomeStore(),
	}

	orch, err := New(Options{
		SignalStore:  f.signals,
		CandleStore:  f.candles,
		OutcomeStore: f.outcomes,
		Config:       simulation.DefaultConfig(),
		Grid:         testGrid,
		Workers:      workers,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.orch = orch
	return f
}

// flatCandles generates n flat one-minute bars at the given price,
// starting at startMs.
func flatCandles(startMs int64, n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			OpenTime: startMs + int64(i)*minuteMs,
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   10,
		}
	}
	return out
}

func mustInsertSignal(t *testing.T, f *fixture, sig *domain.Signal) {
	t.Helper()
	if err := f.signals.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert signal %d: %v", sig.ID, err)
	}
}

func mustInsertCandles(t *testing.T, f *fixture, symbol string, candles []domain.Candle) {
	t.Helper()
	if err := f.candles.InsertBulk(context.Background(), symbol, candles); err != nil {
		t.Fatalf("insert candles: %v", err)
	}
}

func TestRunOneOutcomePerParameterSet(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	sig := &domain.Signal{ID: 1, Symbol: "BTCUSDT", Timestamp: 0, Direction: domain.DirectionLong}
	mustInsertSignal(t, f, sig)
	mustInsertCandles(t, f, "BTCUSDT", flatCandles(0, 1500, 100))

	result, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOutcomes := len(testGrid.Combinations())
	if result.SignalsProcessed != 1 {
		t.Errorf("SignalsProcessed = %d, want 1", result.SignalsProcessed)
	}
	if result.OutcomesStored != wantOutcomes {
		t.Errorf("OutcomesStored = %d, want %d", result.OutcomesStored, wantOutcomes)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	stored, err := f.outcomes.GetBySignalID(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetBySignalID: %v", err)
	}
	if len(stored) != wantOutcomes {
		t.Fatalf("stored %d outcomes, want %d", len(stored), wantOutcomes)
	}
	for _, o := range stored {
		if o.ExitReason != domain.ExitReasonTimeoutForced {
			t.Errorf("outcome %s reason = %s, want %s", o.OutcomeID, o.ExitReason, domain.ExitReasonTimeoutForced)
		}
		if o.IsSentinel() {
			t.Errorf("outcome %s unexpectedly a sentinel", o.OutcomeID)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sig := &domain.Signal{ID: 7, Symbol: "ETHUSDT", Timestamp: 0, Direction: domain.DirectionShort}
	mustInsertSignal(t, f, sig)
	mustInsertCandles(t, f, "ETHUSDT", flatCandles(0, 1500, 2500))

	first, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if second.OutcomesStored != 0 {
		t.Errorf("second run OutcomesStored = %d, want 0", second.OutcomesStored)
	}
	if second.OutcomesSkipped != first.OutcomesStored {
		t.Errorf("second run OutcomesSkipped = %d, want %d", second.OutcomesSkipped, first.OutcomesStored)
	}

	all, err := f.outcomes.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != first.OutcomesStored {
		t.Errorf("store holds %d outcomes after rerun, want %d", len(all), first.OutcomesStored)
	}
}

func TestRunSentinelWhenNoCandles(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sig := &domain.Signal{ID: 2, Symbol: "SOLUSDT", Timestamp: 0, Direction: domain.DirectionLong}
	mustInsertSignal(t, f, sig)

	result, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.SignalsSkipped != 1 {
		t.Errorf("SignalsSkipped = %d, want 1", result.SignalsSkipped)
	}
	if result.SignalsProcessed != 0 {
		t.Errorf("SignalsProcessed = %d, want 0", result.SignalsProcessed)
	}

	stored, err := f.outcomes.GetBySignalID(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetBySignalID: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d outcomes, want 1 sentinel", len(stored))
	}
	if stored[0].ExitReason != domain.ExitReasonInsufficientData {
		t.Errorf("sentinel reason = %s, want %s", stored[0].ExitReason, domain.ExitReasonInsufficientData)
	}
	if !stored[0].IsSentinel() {
		t.Error("outcome not marked as sentinel")
	}
}

func TestRunSentinelWhenCoverageTooLow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sig := &domain.Signal{ID: 3, Symbol: "BTCUSDT", Timestamp: 0, Direction: domain.DirectionLong}
	mustInsertSignal(t, f, sig)
	// 500 bars of a 1440-bar horizon, below the 75% coverage floor.
	mustInsertCandles(t, f, "BTCUSDT", flatCandles(0, 500, 100))

	result, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.SignalsSkipped != 1 {
		t.Errorf("SignalsSkipped = %d, want 1", result.SignalsSkipped)
	}
	stored, err := f.outcomes.GetBySignalID(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetBySignalID: %v", err)
	}
	if len(stored) != 1 || stored[0].ExitReason != domain.ExitReasonInsufficientData {
		t.Fatalf("want one INSUFFICIENT_DATA sentinel, got %+v", stored)
	}
}

func TestRunSentinelOnAnomalousEntryBar(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sig := &domain.Signal{ID: 4, Symbol: "BTCUSDT", Timestamp: 0, Direction: domain.DirectionLong}
	mustInsertSignal(t, f, sig)

	candles := flatCandles(0, 1500, 100)
	// Entry bar spread of 60% exceeds the anomaly threshold.
	candles[5].High = 160
	candles[5].Close = 150
	mustInsertCandles(t, f, "BTCUSDT", candles)

	result, err := f.orch.Run(ctx, 0, minuteMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.SignalsSkipped != 1 {
		t.Errorf("SignalsSkipped = %d, want 1", result.SignalsSkipped)
	}
	stored, err := f.outcomes.GetBySignalID(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetBySignalID: %v", err)
	}
	if len(stored) != 1 || stored[0].ExitReason != domain.ExitReasonNoEntryPrice {
		t.Fatalf("want one NO_ENTRY_PRICE sentinel, got %+v", stored)
	}
}

func TestRunRejectsOverlappingSignals(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	hourMs := int64(time.Hour / time.Millisecond)
	// Second BTCUSDT signal lands inside the first one's 24h window.
	// The ETHUSDT signal is independent and admitted.
	sigs := []*domain.Signal{
		{ID: 10, Symbol: "BTCUSDT", Timestamp: 0, Direction: domain.DirectionLong},
		{ID: 11, Symbol: "BTCUSDT", Timestamp: 6 * hourMs, Direction: domain.DirectionShort},
		{ID: 12, Symbol: "ETHUSDT", Timestamp: 6 * hourMs, Direction: domain.DirectionLong},
	}
	for _, sig := range sigs {
		mustInsertSignal(t, f, sig)
	}
	mustInsertCandles(t, f, "BTCUSDT", flatCandles(0, 1500, 100))
	mustInsertCandles(t, f, "ETHUSDT", flatCandles(0, 1900, 2500))

	result, err := f.orch.Run(ctx, 0, 7*hourMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.SignalsRejected != 1 {
		t.Errorf("SignalsRejected = %d, want 1", result.SignalsRejected)
	}
	if result.SignalsProcessed != 2 {
		t.Errorf("SignalsProcessed = %d, want 2", result.SignalsProcessed)
	}

	// The rejected signal leaves no trace in the outcome store.
	rejected, err := f.outcomes.GetBySignalID(ctx, 11)
	if err != nil {
		t.Fatalf("GetBySignalID: %v", err)
	}
	if len(rejected) != 0 {
		t.Errorf("rejected signal has %d stored outcomes", len(rejected))
	}
}

func TestNewValidatesSetup(t *testing.T) {
	stores := newFixture(t, 1)

	badCfg := simulation.DefaultConfig()
	badCfg.Horizon = 0
	if _, err := New(Options{
		SignalStore:  stores.signals,
		CandleStore:  stores.candles,
		OutcomeStore: stores.outcomes,
		Config:       badCfg,
		Grid:         testGrid,
	}); err == nil {
		t.Error("expected error for invalid config")
	}

	if _, err := New(Options{
		SignalStore:  stores.signals,
		CandleStore:  stores.candles,
		OutcomeStore: stores.outcomes,
		Config:       simulation.DefaultConfig(),
		Grid:         domain.GridConfig{},
	}); err == nil {
		t.Error("expected error for empty grid")
	}

	if _, err := New(Options{
		Config: simulation.DefaultConfig(),
		Grid:   testGrid,
	}); err == nil {
		t.Error("expected error for missing stores")
	}
}
