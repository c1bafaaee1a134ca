package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps records in process. It backs runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, record Record) (int64, error) {
	if err := record.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID
	m.records = append(m.records, record)
	return record.ID, nil
}

func (m *MemoryStore) All(_ context.Context, limit int) ([]Record, error) {
	return m.filter(limit, func(Record) bool { return true }), nil
}

func (m *MemoryStore) ByID(_ context.Context, id int64) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func (m *MemoryStore) ByLanguagePair(_ context.Context, source, target string, limit int) ([]Record, error) {
	return m.filter(limit, func(r Record) bool {
		return r.SourceLanguage == source && r.TargetLanguage == target
	}), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) filter(limit int, keep func(Record) bool) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, newestFirst)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newestFirst(a, b Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	default:
		return 0
	}
}
