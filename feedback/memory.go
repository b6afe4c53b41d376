package feedback

import (
	"context"
	"sync"
)

// InMemoryStore keeps records per document, for tests and single-run use
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.records[record.Document] = append(s.records[record.Document], record)
	}
	return nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, document string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record{}, s.records[document]...), nil
}
