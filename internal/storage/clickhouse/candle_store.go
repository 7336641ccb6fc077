package clickhouse

import (
	"context"
	"fmt"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse. The
// candles table is a ReplacingMergeTree keyed by (symbol, open_time),
// so re-ingesting an overlapping range converges to one row per bar
// instead of failing.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles for one instrument.
func (s *CandleStore) InsertBulk(ctx context.Context, symbol string, candles []domain.Candle) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, open_time, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, uint64(c.OpenTime),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive),
// ordered by open_time ASC. FINAL collapses replaced duplicates.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query candles by time range: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		var openTime uint64

		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.OpenTime = int64(openTime)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}

// LatestOpenTime returns the newest stored open_time for an instrument.
func (s *CandleStore) LatestOpenTime(ctx context.Context, symbol string) (int64, error) {
	query := `
		SELECT count(*), max(open_time)
		FROM candles
		WHERE symbol = ?
	`

	var count, latest uint64
	if err := s.conn.QueryRow(ctx, query, symbol).Scan(&count, &latest); err != nil {
		return 0, fmt.Errorf("query latest open time: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return int64(latest), nil
}
