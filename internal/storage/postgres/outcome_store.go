package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	outcome_id, signal_id, symbol, direction,
	stop_loss_pct, trailing_activation_pct, trailing_callback_pct,
	entry_price, entry_time,
	exit_reason, exit_price, exit_time, pnl_pct,
	max_run_up_pct, max_drawdown_pct,
	absolute_max_price, absolute_min_price,
	time_to_max_ms, time_to_min_ms, hold_bars
`

const insertOutcomeQuery = `
	INSERT INTO trade_outcomes (
		outcome_id, signal_id, symbol, direction,
		stop_loss_pct, trailing_activation_pct, trailing_callback_pct,
		entry_price, entry_time,
		exit_reason, exit_price, exit_time, pnl_pct,
		max_run_up_pct, max_drawdown_pct,
		absolute_max_price, absolute_min_price,
		time_to_max_ms, time_to_min_ms, hold_bars
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7,
		$8, $9,
		$10, $11, $12, $13,
		$14, $15,
		$16, $17,
		$18, $19, $20
	)
`

func outcomeArgs(o *domain.TradeOutcome) []any {
	return []any{
		o.OutcomeID, o.SignalID, o.Symbol, string(o.Direction),
		o.Params.StopLossPct, o.Params.TrailingActivationPct, o.Params.TrailingCallbackPct,
		o.EntryPrice, o.EntryTime,
		o.ExitReason, o.ExitPrice, o.ExitTime, o.PnlPct,
		o.MaxRunUpPct, o.MaxDrawdownPct,
		o.AbsoluteMaxPrice, o.AbsoluteMinPrice,
		o.TimeToMaxMs, o.TimeToMinMs, o.HoldBars,
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if outcome_id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	_, err := s.pool.Exec(ctx, insertOutcomeQuery, outcomeArgs(o)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade outcome: %w", err)
	}
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(ctx context.Context, outcomes []*domain.TradeOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range outcomes {
		if _, err := tx.Exec(ctx, insertOutcomeQuery, outcomeArgs(o)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade outcome in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves an outcome by its id. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(ctx context.Context, outcomeID string) (*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE outcome_id = $1`

	row := s.pool.QueryRow(ctx, query, outcomeID)
	o, err := scanOutcome(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade outcome by id: %w", err)
	}
	return o, nil
}

// GetBySignalID retrieves all outcomes for a signal, ordered by outcome_id ASC.
func (s *OutcomeStore) GetBySignalID(ctx context.Context, signalID int64) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM trade_outcomes
		WHERE signal_id = $1
		ORDER BY outcome_id ASC
	`

	rows, err := s.pool.Query(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("get trade outcomes by signal id: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetByParams retrieves all outcomes for one parameter set.
func (s *OutcomeStore) GetByParams(ctx context.Context, p domain.ParameterSet) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM trade_outcomes
		WHERE stop_loss_pct = $1 AND trailing_activation_pct = $2 AND trailing_callback_pct = $3
		ORDER BY entry_time ASC, outcome_id ASC
	`

	rows, err := s.pool.Query(ctx, query, p.StopLossPct, p.TrailingActivationPct, p.TrailingCallbackPct)
	if err != nil {
		return nil, fmt.Errorf("get trade outcomes by params: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetAll retrieves all outcomes, ordered by entry_time ASC then outcome_id ASC.
func (s *OutcomeStore) GetAll(ctx context.Context) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM trade_outcomes
		ORDER BY entry_time ASC, outcome_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trade outcomes: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// scanOutcome scans a single row into a TradeOutcome.
func scanOutcome(row pgx.Row) (*domain.TradeOutcome, error) {
	var o domain.TradeOutcome
	var direction string

	err := row.Scan(
		&o.OutcomeID, &o.SignalID, &o.Symbol, &direction,
		&o.Params.StopLossPct, &o.Params.TrailingActivationPct, &o.Params.TrailingCallbackPct,
		&o.EntryPrice, &o.EntryTime,
		&o.ExitReason, &o.ExitPrice, &o.ExitTime, &o.PnlPct,
		&o.MaxRunUpPct, &o.MaxDrawdownPct,
		&o.AbsoluteMaxPrice, &o.AbsoluteMinPrice,
		&o.TimeToMaxMs, &o.TimeToMinMs, &o.HoldBars,
	)
	if err != nil {
		return nil, err
	}

	o.Direction = domain.Direction(direction)
	return &o, nil
}

// scanOutcomes scans multiple rows into a slice of TradeOutcome.
func scanOutcomes(rows pgx.Rows) ([]*domain.TradeOutcome, error) {
	var outcomes []*domain.TradeOutcome

	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade outcome row: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade outcome rows: %w", err)
	}

	return outcomes, nil
}
