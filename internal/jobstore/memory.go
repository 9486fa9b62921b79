package jobstore

import (
	"context"
	"sync"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// MemoryStore keeps job records in a mutex-guarded map. It is the default
// backend for single-instance deployments and for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.UploadJob
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.UploadJob)}
}

// Create inserts the record, rejecting duplicate ids.
func (m *MemoryStore) Create(_ context.Context, job *model.UploadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return ErrExists
	}
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

// Get returns a copy so callers cannot mutate shared state.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.UploadJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *job
	return &out, nil
}

// Update mutates the stored record under the write lock.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*model.UploadJob) error) (*model.UploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *job
	if err := fn(&updated); err != nil {
		return nil, err
	}
	m.jobs[id] = &updated
	out := updated
	return &out, nil
}
