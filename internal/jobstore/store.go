// Package jobstore persists the observable UploadJob status records behind a
// narrow interface so the backing store (in-memory map, Redis) is swappable
// without touching the coordinator.
package jobstore

import (
	"context"
	"errors"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("upload job not found")
	// ErrExists is returned when creating a job whose id is already taken.
	ErrExists = errors.New("upload job already exists")
)

// Store is the job-status contract. The coordinator is the only writer after
// Create; Update therefore needs no cross-writer coordination beyond the
// store's own synchronization.
type Store interface {
	// Create inserts a freshly enqueued job record.
	Create(ctx context.Context, job *model.UploadJob) error
	// Get returns a copy of the job record.
	Get(ctx context.Context, id string) (*model.UploadJob, error)
	// Update applies fn to the stored record and persists the result,
	// returning a copy of the updated record. When fn returns an error the
	// record is left untouched.
	Update(ctx context.Context, id string, fn func(*model.UploadJob) error) (*model.UploadJob, error)
}
