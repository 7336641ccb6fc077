package storage

import (
	"context"

	"signal-sweep-lab/internal/domain"
)

// SignalStore provides access to signals storage. Signals are produced
// upstream and imported once; this system never mutates them.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, s *domain.Signal) error

	// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, signals []*domain.Signal) error

	// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Signal, error)

	// GetByTimeRange retrieves signals detected within [start, end] (inclusive),
	// ordered by timestamp ASC then id ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error)

	// GetAll retrieves all signals, ordered by timestamp ASC then id ASC.
	GetAll(ctx context.Context) ([]*domain.Signal, error)
}

// OutcomeStore provides access to trade_outcomes storage. The outcome
// id is a deterministic hash of (signal id, parameter set), so a
// duplicate insert means the pair was already simulated.
type OutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if outcome_id exists.
	Insert(ctx context.Context, o *domain.TradeOutcome) error

	// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, outcomes []*domain.TradeOutcome) error

	// GetByID retrieves an outcome by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, outcomeID string) (*domain.TradeOutcome, error)

	// GetBySignalID retrieves all outcomes for a signal, ordered by outcome_id ASC.
	GetBySignalID(ctx context.Context, signalID int64) ([]*domain.TradeOutcome, error)

	// GetByParams retrieves all outcomes for one parameter set,
	// ordered by entry_time ASC then outcome_id ASC.
	GetByParams(ctx context.Context, p domain.ParameterSet) ([]*domain.TradeOutcome, error)

	// GetAll retrieves all outcomes, ordered by entry_time ASC then outcome_id ASC.
	GetAll(ctx context.Context) ([]*domain.TradeOutcome, error)
}

// CandleStore provides access to the candle timeseries.
type CandleStore interface {
	// InsertBulk adds multiple candles for one instrument.
	// Re-inserting the same (symbol, open_time) is harmless.
	InsertBulk(ctx context.Context, symbol string, candles []domain.Candle) error

	// GetByTimeRange retrieves candles for an instrument within
	// [start, end] (inclusive), ordered by open_time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Candle, error)

	// LatestOpenTime returns the newest stored open_time for an
	// instrument. Returns ErrNotFound when nothing is stored yet.
	LatestOpenTime(ctx context.Context, symbol string) (int64, error)
}
