package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `id, symbol, ts, direction`

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	query := `
		INSERT INTO signals (id, symbol, ts, direction)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, sig.ID, sig.Symbol, sig.Timestamp, string(sig.Direction))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO signals (id, symbol, ts, direction)
		VALUES ($1, $2, $3, $4)
	`

	for _, sig := range signals {
		_, err := tx.Exec(ctx, query, sig.ID, sig.Symbol, sig.Timestamp, string(sig.Direction))
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert signal in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, id int64) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetByTimeRange retrieves signals detected within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetAll retrieves all signals, ordered by timestamp ASC then id ASC.
func (s *SignalStore) GetAll(ctx context.Context) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// scanSignal scans a single row into a Signal.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	var direction string

	if err := row.Scan(&sig.ID, &sig.Symbol, &sig.Timestamp, &direction); err != nil {
		return nil, err
	}

	sig.Direction = domain.Direction(direction)
	return &sig, nil
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
