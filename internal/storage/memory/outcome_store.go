package memory

import (
	"context"
	"sort"
	"sync"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeOutcome // keyed by outcome_id
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.TradeOutcome),
	}
}

// Verify interface compliance at compile time.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Insert adds a new outcome. Returns ErrDuplicateKey if outcome_id exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.OutcomeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OutcomeID]; exists {
		return storage.ErrDuplicateKey
	}

	outCopy := *o
	s.data[o.OutcomeID] = &outCopy
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(_ context.Context, outcomes []*domain.TradeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o == nil || o.OutcomeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[o.OutcomeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, dup := seen[o.OutcomeID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[o.OutcomeID] = struct{}{}
	}

	for _, o := range outcomes {
		outCopy := *o
		s.data[o.OutcomeID] = &outCopy
	}
	return nil
}

// GetByID retrieves an outcome by its id. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(_ context.Context, outcomeID string) (*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[outcomeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	outCopy := *o
	return &outCopy, nil
}

// GetBySignalID retrieves all outcomes for a signal, ordered by outcome_id ASC.
func (s *OutcomeStore) GetBySignalID(_ context.Context, signalID int64) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.SignalID == signalID {
			outCopy := *o
			result = append(result, &outCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OutcomeID < result[j].OutcomeID
	})
	return result, nil
}

// GetByParams retrieves all outcomes for one parameter set.
func (s *OutcomeStore) GetByParams(_ context.Context, p domain.ParameterSet) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.Params == p {
			outCopy := *o
			result = append(result, &outCopy)
		}
	}

	sortOutcomes(result)
	return result, nil
}

// GetAll retrieves all outcomes, ordered by entry_time ASC then outcome_id ASC.
func (s *OutcomeStore) GetAll(_ context.Context) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeOutcome, 0, len(s.data))
	for _, o := range s.data {
		outCopy := *o
		result = append(result, &outCopy)
	}

	sortOutcomes(result)
	return result, nil
}

func sortOutcomes(outcomes []*domain.TradeOutcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].EntryTime != outcomes[j].EntryTime {
			return outcomes[i].EntryTime < outcomes[j].EntryTime
		}
		return outcomes[i].OutcomeID < outcomes[j].OutcomeID
	})
}
