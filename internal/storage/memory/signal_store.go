package memory

import (
	"context"
	"sort"
	"sync"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.Signal // keyed by signal id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[int64]*domain.Signal),
	}
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.Validate() != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	sigCopy := *sig
	s.data[sig.ID] = &sigCopy
	return nil
}

// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
func (s *SignalStore) InsertBulk(_ context.Context, signals []*domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(signals))
	for _, sig := range signals {
		if sig == nil || sig.Validate() != nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[sig.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, dup := seen[sig.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[sig.ID] = struct{}{}
	}

	for _, sig := range signals {
		sigCopy := *sig
		s.data[sig.ID] = &sigCopy
	}
	return nil
}

// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, id int64) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	sigCopy := *sig
	return &sigCopy, nil
}

// GetByTimeRange retrieves signals detected within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Timestamp >= start && sig.Timestamp <= end {
			sigCopy := *sig
			result = append(result, &sigCopy)
		}
	}

	sortSignals(result)
	return result, nil
}

// GetAll retrieves all signals, ordered by timestamp ASC then id ASC.
func (s *SignalStore) GetAll(_ context.Context) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Signal, 0, len(s.data))
	for _, sig := range s.data {
		sigCopy := *sig
		result = append(result, &sigCopy)
	}

	sortSignals(result)
	return result, nil
}

func sortSignals(signals []*domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Timestamp != signals[j].Timestamp {
			return signals[i].Timestamp < signals[j].Timestamp
		}
		return signals[i].ID < signals[j].ID
	})
}
