package memory

import (
	"context"
	"sort"
	"sync"

	"solana-swap-assistant/internal/domain"
	"solana-swap-assistant/internal/storage"
)

// ExecutionEventStore is an in-memory implementation of storage.ExecutionEventStore.
type ExecutionEventStore struct {
	mu     sync.RWMutex
	events []*domain.ExecutionEvent
	ids    map[string]struct{}
}

// NewExecutionEventStore creates a new in-memory execution event store.
func NewExecutionEventStore() *ExecutionEventStore {
	return &ExecutionEventStore{
		ids: make(map[string]struct{}),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *ExecutionEventStore) Insert(_ context.Context, e *domain.ExecutionEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	s.ids[e.EventID] = struct{}{}
	return nil
}

// GetByAttemptID retrieves all events of an attempt, ordered by timestamp ASC.
func (s *ExecutionEventStore) GetByAttemptID(_ context.Context, attemptID string) ([]*domain.ExecutionEvent, error) {
	return s.filter(func(e *domain.ExecutionEvent) bool {
		return e.AttemptID == attemptID
	}), nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by timestamp ASC.
func (s *ExecutionEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ExecutionEvent, error) {
	return s.filter(func(e *domain.ExecutionEvent) bool {
		return e.TimestampMs >= start && e.TimestampMs <= end
	}), nil
}

func (s *ExecutionEventStore) filter(keep func(*domain.ExecutionEvent) bool) []*domain.ExecutionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionEvent
	for _, e := range s.events {
		if keep(e) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result
}

var _ storage.ExecutionEventStore = (*ExecutionEventStore)(nil)
