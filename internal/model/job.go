package model

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus enumerates the lifecycle of an ingestion job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobUploading  JobStatus = "uploading"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ErrTerminal is returned by transition methods once a job is completed or
// failed.
var ErrTerminal = errors.New("job is in a terminal state")

// UploadJob is the observable status record for one ingestion job. It is
// created at enqueue time and mutated exclusively by the coordinator.
type UploadJob struct {
	ID              string     `json:"id"`
	SourceType      SourceType `json:"sourceType"`
	Scope           Scope      `json:"scope"`
	TargetID        int64      `json:"targetId"`
	FileName        string     `json:"fileName,omitempty"`
	FileSize        int64      `json:"fileSize,omitempty"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	VendorVideoURI  string     `json:"vendorVideoUri,omitempty"`
	VendorUploadURL string     `json:"vendorUploadUrl,omitempty"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// NewUploadJob builds the queued status record for a freshly accepted context.
func NewUploadJob(ctx *UploadContext) *UploadJob {
	now := time.Now().UTC()
	return &UploadJob{
		ID:         ctx.JobID,
		SourceType: ctx.SourceType,
		Scope:      ctx.Scope,
		TargetID:   ctx.TargetID,
		FileName:   ctx.FileName,
		FileSize:   ctx.FileSize,
		Status:     JobQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkUploading transitions queued → uploading.
func (j *UploadJob) MarkUploading() error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != JobQueued {
		return fmt.Errorf("cannot start uploading from %s", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobUploading
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkProcessing transitions uploading → processing, once the vendor transfer
// has finished and post-transfer bookkeeping begins.
func (j *UploadJob) MarkProcessing() error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != JobUploading {
		return fmt.Errorf("cannot start processing from %s", j.Status)
	}
	j.Status = JobProcessing
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions processing → completed.
func (j *UploadJob) Complete() error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != JobProcessing {
		return fmt.Errorf("cannot complete from %s", j.Status)
	}
	now := time.Now().UTC()
	j.Status = JobCompleted
	j.Progress = 100
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail transitions any non-terminal state → failed and records the message.
func (j *UploadJob) Fail(msg string) error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	j.Status = JobFailed
	j.Error = msg
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// SetProgress advances the progress percentage. Progress is clamped to 0-100
// and never moves backward; updates after a terminal state are dropped.
// Returns true when the stored value changed.
func (j *UploadJob) SetProgress(pct int) bool {
	if j.Status.Terminal() {
		return false
	}
	if pct > 100 {
		pct = 100
	}
	if pct <= j.Progress {
		return false
	}
	j.Progress = pct
	j.UpdatedAt = time.Now().UTC()
	return true
}
