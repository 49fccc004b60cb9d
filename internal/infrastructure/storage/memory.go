package storage

import (
	"context"
	"sync"
	"time"

	"ProSocialFlow/internal/domain"
)

// MemoryStore keeps topic history in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	records map[domain.Category]domain.TopicHistoryRecord
}

var _ Backend = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store; limit defaults to domain.TopicHistoryLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = domain.TopicHistoryLimit
	}
	return &MemoryStore{
		limit:   limit,
		now:     time.Now,
		records: map[domain.Category]domain.TopicHistoryRecord{},
	}
}

// Read returns a copy of the category's topics.
func (m *MemoryStore) Read(_ context.Context, category domain.Category) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[category]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, rec.RecentTopics...), nil
}

// Record merges topic into the category's history.
func (m *MemoryStore) Record(_ context.Context, category domain.Category, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[category]
	rec.Category = category
	rec.Record(topic, m.limit, m.now())
	m.records[category] = rec
	return nil
}

// ReadAll returns every category's topics.
func (m *MemoryStore) ReadAll(_ context.Context) (map[domain.Category][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.Category][]string, len(m.records))
	for category, rec := range m.records {
		out[category] = append([]string{}, rec.RecentTopics...)
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
