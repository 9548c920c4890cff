package audit

import (
	"context"
	"sync"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps at most Capacity records, dropping the oldest.
type InMemoryStore struct {
	mu sync.Mutex

	Capacity int
	nextID   int64
	records  []Record
}

func NewInMemoryStore(capacity int) *InMemoryStore {
	return &InMemoryStore{Capacity: capacity}
}

func (s *InMemoryStore) Append(_ context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.records = append(s.records, rec)
	if s.Capacity > 0 && len(s.records) > s.Capacity {
		s.records = append([]Record(nil), s.records[len(s.records)-s.Capacity:]...)
	}
	return rec.ID, nil
}

func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	return s.collect(Limit(limit), func(Record) bool { return true }), nil
}

func (s *InMemoryStore) ByRoot(_ context.Context, root string, limit int) ([]Record, error) {
	return s.collect(Limit(limit), func(rec Record) bool { return rec.Root == root }), nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) collect(limit int, keep func(Record) bool) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Record{}
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out
}
