package repository

import (
	"context"
	"sync"
)

type sourceKey struct {
	scope      string
	targetID   int64
	sourceType string
}

// MemorySourceRepository keeps source records in memory. Used when no
// database is configured and by the pipeline tests.
type MemorySourceRepository struct {
	mu      sync.RWMutex
	records map[sourceKey]SourceRecord
}

// NewMemorySourceRepository constructs an empty repository.
func NewMemorySourceRepository() *MemorySourceRepository {
	return &MemorySourceRepository{records: make(map[sourceKey]SourceRecord)}
}

// UpsertSource stores the record under its (scope, target, type) key.
func (m *MemorySourceRepository) UpsertSource(_ context.Context, rec *SourceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[sourceKey{string(rec.Scope), rec.TargetID, string(rec.SourceType)}] = *rec
	return nil
}

// Get returns a stored record, if any. Primarily for tests and the dev mode
// status endpoint.
func (m *MemorySourceRepository) Get(scope string, targetID int64, sourceType string) (SourceRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sourceKey{scope, targetID, sourceType}]
	return rec, ok
}

// Len reports how many records are stored.
func (m *MemorySourceRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
