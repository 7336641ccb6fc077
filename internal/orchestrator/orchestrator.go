// Package orchestrator coordinates the sweep pipeline:
// load signals → overlap admission → entry resolution → parameter
// sweep → outcome persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/entry"
	"signal-sweep-lab/internal/idhash"
	"signal-sweep-lab/internal/lookup"
	"signal-sweep-lab/internal/observability"
	"signal-sweep-lab/internal/simulation"
	"signal-sweep-lab/internal/storage"
	"signal-sweep-lab/internal/tracker"
)

// Options for creating an Orchestrator.
type Options struct {
	// Required stores
	SignalStore  storage.SignalStore
	CandleStore  storage.CandleStore
	OutcomeStore storage.OutcomeStore

	// Simulation setup
	Config simulation.Config
	Grid   domain.GridConfig
	Policy simulation.TimeoutPolicy

	// Workers is the number of concurrent signal workers. Zero or
	// negative selects 1.
	Workers int

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Orchestrator runs the full sweep over a signal range. Admission is
// sequential in timestamp order so the overlap tracker stays greedy and
// deterministic; admitted signals are then swept concurrently.
type Orchestrator struct {
	signalStore  storage.SignalStore
	candleStore  storage.CandleStore
	outcomeStore storage.OutcomeStore

	cfg     simulation.Config
	grid    []domain.ParameterSet
	sim     *simulation.Simulator
	entries *entry.Model
	workers int

	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates an Orchestrator. The config and grid are validated here;
// a malformed setup fails the run at startup, not per signal.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}
	if err := opts.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("parameter grid: %w", err)
	}
	if opts.SignalStore == nil || opts.CandleStore == nil || opts.OutcomeStore == nil {
		return nil, errors.New("signal, candle and outcome stores are required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	return &Orchestrator{
		signalStore:  opts.SignalStore,
		candleStore:  opts.CandleStore,
		outcomeStore: opts.OutcomeStore,
		cfg:          opts.Config,
		grid:         opts.Grid.Combinations(),
		sim:          simulation.NewSimulator(opts.Config, opts.Policy),
		entries:      entry.NewModel(opts.Config.MaxSpreadPct),
		workers:      workers,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// RunResult contains counts from one orchestrator run.
type RunResult struct {
	SignalsProcessed int // fully swept
	SignalsSkipped   int // recorded as a sentinel outcome
	SignalsRejected  int // dropped by the overlap tracker
	OutcomesStored   int
	OutcomesSkipped  int // already stored from a previous run
	Errors           []string
}

type runCounters struct {
	processed atomic.Int64
	skipped   atomic.Int64
	stored    atomic.Int64
	duplicate atomic.Int64

	mu   sync.Mutex
	errs []string
}

func (c *runCounters) addError(msg string) {
	c.mu.Lock()
	c.errs = append(c.errs, msg)
	c.mu.Unlock()
}

// Run sweeps every admitted signal detected within [start, end].
// Every admitted signal ends with either a full set of outcomes or one
// sentinel outcome; re-running the same range only fills gaps.
func (o *Orchestrator) Run(ctx context.Context, start, end int64) (*RunResult, error) {
	signals, err := o.signalStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	o.logger.Info("loaded signals",
		zap.Int("count", len(signals)),
		zap.Int64("start", start),
		zap.Int64("end", end),
	)

	// Greedy admission in timestamp order. The planned entry time is
	// signal time plus the entry delay; the actual fill lands on the
	// first bar at or after it, at most one bar later.
	tr := tracker.New(o.cfg.Horizon)
	admitted := make([]*domain.Signal, 0, len(signals))
	rejected := 0
	for _, sig := range signals {
		if tr.Admit(*sig, sig.Timestamp+o.cfg.EntryDelay.Milliseconds()) {
			admitted = append(admitted, sig)
		} else {
			rejected++
			o.metrics.SignalsRejected.Inc()
		}
	}
	o.logger.Info("admission complete",
		zap.Int("admitted", len(admitted)),
		zap.Int("rejected", rejected),
	)

	counters := &runCounters{}
	jobs := make(chan *domain.Signal)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sig := range jobs {
				o.processSignal(ctx, sig, counters)
			}
		}()
	}

feed:
	for _, sig := range admitted {
		select {
		case jobs <- sig:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.metrics.LastSuccessfulSweep.SetToCurrentTime()

	result := &RunResult{
		SignalsProcessed: int(counters.processed.Load()),
		SignalsSkipped:   int(counters.skipped.Load()),
		SignalsRejected:  rejected,
		OutcomesStored:   int(counters.stored.Load()),
		OutcomesSkipped:  int(counters.duplicate.Load()),
		Errors:           counters.errs,
	}
	o.logger.Info("sweep complete",
		zap.Int("processed", result.SignalsProcessed),
		zap.Int("skipped", result.SignalsSkipped),
		zap.Int("rejected", result.SignalsRejected),
		zap.Int("outcomes_stored", result.OutcomesStored),
		zap.Int("outcomes_skipped", result.OutcomesSkipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// processSignal sweeps one signal and persists its outcomes.
func (o *Orchestrator) processSignal(ctx context.Context, sig *domain.Signal, counters *runCounters) {
	started := time.Now()

	entryTarget := sig.Timestamp + o.cfg.EntryDelay.Milliseconds()
	horizonEnd := entryTarget + o.cfg.Horizon.Milliseconds()

	queryStart := time.Now()
	candles, err := o.candleStore.GetByTimeRange(ctx, sig.Symbol, entryTarget, horizonEnd)
	o.metrics.DBQueryDuration.WithLabelValues("clickhouse", "get_candles").Observe(time.Since(queryStart).Seconds())
	if err != nil {
		o.metrics.DBQueryErrors.WithLabelValues("clickhouse", "get_candles").Inc()
		o.metrics.SimulationErrors.Inc()
		counters.addError(fmt.Sprintf("signal %d: load candles: %v", sig.ID, err))
		o.logger.Error("load candles failed", zap.Int64("signal_id", sig.ID), zap.Error(err))
		return
	}

	entryBar, err := lookup.FirstBarAt(entryTarget, candles)
	if err != nil {
		o.recordSentinel(ctx, sig, domain.ExitReasonInsufficientData, counters)
		return
	}

	fill, err := o.entries.Resolve(sig.Direction, entryBar)
	if err != nil {
		o.logger.Debug("entry resolution failed",
			zap.Int64("signal_id", sig.ID),
			zap.Error(err),
		)
		o.recordSentinel(ctx, sig, domain.ExitReasonNoEntryPrice, counters)
		return
	}

	outcomes, err := o.sim.Sweep(*sig, fill, candles, o.grid)
	if err != nil {
		if errors.Is(err, simulation.ErrInsufficientHistory) {
			o.recordSentinel(ctx, sig, domain.ExitReasonInsufficientData, counters)
			return
		}
		o.metrics.SimulationErrors.Inc()
		counters.addError(fmt.Sprintf("signal %d: sweep: %v", sig.ID, err))
		o.logger.Error("sweep failed", zap.Int64("signal_id", sig.ID), zap.Error(err))
		return
	}

	for i := range outcomes {
		o.storeOutcome(ctx, &outcomes[i], counters)
	}

	counters.processed.Add(1)
	o.metrics.SignalsProcessed.Inc()
	o.metrics.SweepDuration.Observe(time.Since(started).Seconds())
}

// recordSentinel stores the single permanent-skip outcome for a signal.
// The zero parameter set keys the sentinel, so it is idempotent like
// every other outcome.
func (o *Orchestrator) recordSentinel(ctx context.Context, sig *domain.Signal, reason string, counters *runCounters) {
	out := &domain.TradeOutcome{
		OutcomeID:  idhash.ComputeOutcomeID(sig.ID, domain.ParameterSet{}),
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		ExitReason: reason,
	}
	o.storeOutcome(ctx, out, counters)

	counters.skipped.Add(1)
	o.metrics.SignalsSkipped.WithLabelValues(reason).Inc()
	o.logger.Info("signal skipped",
		zap.Int64("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("reason", reason),
	)
}

func (o *Orchestrator) storeOutcome(ctx context.Context, out *domain.TradeOutcome, counters *runCounters) {
	err := o.outcomeStore.Insert(ctx, out)
	switch {
	case err == nil:
		counters.stored.Add(1)
		o.metrics.OutcomesStored.Inc()
		o.metrics.ExitReasons.WithLabelValues(out.ExitReason).Inc()
	case errors.Is(err, storage.ErrDuplicateKey):
		counters.duplicate.Add(1)
		o.metrics.OutcomesSkipped.Inc()
	default:
		counters.addError(fmt.Sprintf("outcome %s: insert: %v", out.OutcomeID, err))
		o.logger.Error("store outcome failed",
			zap.String("outcome_id", out.OutcomeID),
			zap.Int64("signal_id", out.SignalID),
			zap.Error(err),
		)
	}
}
