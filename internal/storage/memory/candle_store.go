package memory

import (
	"context"
	"sort"
	"sync"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Candle // symbol -> open_time -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[int64]domain.Candle),
	}
}

// Verify interface compliance at compile time.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles for one instrument. Re-inserting the
// same (symbol, open_time) overwrites, matching ReplacingMergeTree.
func (s *CandleStore) InsertBulk(_ context.Context, symbol string, candles []domain.Candle) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol, ok := s.data[symbol]
	if !ok {
		bySymbol = make(map[int64]domain.Candle, len(candles))
		s.data[symbol] = bySymbol
	}
	for _, c := range candles {
		bySymbol[c.OpenTime] = c
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive),
// ordered by open_time ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for _, c := range s.data[symbol] {
		if c.OpenTime >= start && c.OpenTime <= end {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})
	return result, nil
}

// LatestOpenTime returns the newest stored open_time for an instrument.
func (s *CandleStore) LatestOpenTime(_ context.Context, symbol string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol := s.data[symbol]
	if len(bySymbol) == 0 {
		return 0, storage.ErrNotFound
	}

	var latest int64
	for t := range bySymbol {
		if t > latest {
			latest = t
		}
	}
	return latest, nil
}
