// Package coordinator runs the background half of the ingestion pipeline:
// one long-lived consumer that takes work items off the queue, drives the
// matching vendor provider, persists the resulting media source record, and
// publishes progress along the way.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/thuongerikdev/FilmZone-sub003/internal/jobstore"
	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
	"github.com/thuongerikdev/FilmZone-sub003/internal/provider"
	"github.com/thuongerikdev/FilmZone-sub003/internal/pubsub"
	"github.com/thuongerikdev/FilmZone-sub003/internal/queue"
	"github.com/thuongerikdev/FilmZone-sub003/internal/repository"
)

// errNoChange marks a progress update that did not advance the stored value.
var errNoChange = errors.New("no progress change")

// Coordinator consumes the work queue one item at a time. It is the only
// writer of job records after enqueue, which is what makes the status and
// progress invariants cheap to uphold.
type Coordinator struct {
	queue         *queue.Queue
	store         jobstore.Store
	registry      *provider.Registry
	sources       repository.SourceRepository
	events        pubsub.Publisher
	vendorTimeout time.Duration
	log           zerolog.Logger
}

// New wires a coordinator. vendorTimeout bounds each job's provider call.
func New(
	q *queue.Queue,
	store jobstore.Store,
	registry *provider.Registry,
	sources repository.SourceRepository,
	events pubsub.Publisher,
	vendorTimeout time.Duration,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		queue:         q,
		store:         store,
		registry:      registry,
		sources:       sources,
		events:        events,
		vendorTimeout: vendorTimeout,
		log:           log,
	}
}

// Run processes queue items until the queue is closed, then drains whatever
// is still buffered and returns. Each job is handled in isolation; a failing
// or panicking job never stops the loop.
//
// ctx bounds vendor calls during normal operation. Cancellation of the HTTP
// request that enqueued a job has no effect here: once an item is accepted
// the job's lifetime is independent of the request's (cancelling a job would
// be a separate explicit operation).
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Info().Msg("upload coordinator started")
	for item := range c.queue.Items() {
		c.process(ctx, item)
	}
	c.log.Info().Msg("work queue closed, upload coordinator drained")
}

func (c *Coordinator) process(ctx context.Context, item model.WorkItem) {
	uc := item.Ctx
	jlog := c.log.With().
		Str("jobId", uc.JobID).
		Str("sourceType", string(uc.SourceType)).
		Logger()

	defer c.cleanup(uc, jlog)
	defer func() {
		if r := recover(); r != nil {
			jlog.Error().Interface("panic", r).Msg("job handler panicked")
			c.fail(uc.JobID, fmt.Sprintf("internal error: %v", r), jlog)
		}
	}()

	jlog.Info().Int64("targetId", uc.TargetID).Str("scope", string(uc.Scope)).Msg("job dequeued")

	if _, err := c.advance(uc.JobID, func(j *model.UploadJob) error { return j.MarkUploading() }); err != nil {
		jlog.Error().Err(err).Msg("failed to mark the job uploading")
		return
	}

	prov, err := c.registry.Resolve(string(uc.SourceType))
	if err != nil {
		c.fail(uc.JobID, err.Error(), jlog)
		return
	}

	jctx, cancel := context.WithTimeout(ctx, c.vendorTimeout)
	defer cancel()

	result, err := prov.Upload(jctx, uc, c.progressFunc(uc.JobID, jlog))
	if err != nil {
		c.fail(uc.JobID, err.Error(), jlog)
		return
	}

	if _, err := c.advance(uc.JobID, func(j *model.UploadJob) error { return j.MarkProcessing() }); err != nil {
		jlog.Error().Err(err).Msg("failed to mark the job processing")
		return
	}

	record := &repository.SourceRecord{
		TargetID:       uc.TargetID,
		Scope:          uc.Scope,
		SourceName:     sourceName(uc),
		SourceType:     uc.SourceType,
		SourceURL:      result.SourceURL,
		VendorSourceID: result.VideoURI,
		Quality:        uc.Quality,
		Language:       uc.Language,
		IsVipOnly:      uc.IsVipOnly,
		IsActive:       uc.IsActive,
	}
	if err := c.sources.UpsertSource(jctx, record); err != nil {
		c.fail(uc.JobID, fmt.Sprintf("persist media source: %v", err), jlog)
		return
	}

	job, err := c.advance(uc.JobID, func(j *model.UploadJob) error {
		j.VendorVideoURI = result.VideoURI
		j.VendorUploadURL = result.UploadURL
		return j.Complete()
	})
	if err != nil {
		jlog.Error().Err(err).Msg("failed to mark the job completed")
		return
	}
	jlog.Info().
		Str("vendorVideoUri", job.VendorVideoURI).
		Dur("elapsed", time.Since(item.EnqueuedAt)).
		Msg("job completed")
}

// progressFunc returns the provider callback that advances the persisted
// progress and publishes an event whenever the stored value actually moved.
func (c *Coordinator) progressFunc(jobID string, jlog zerolog.Logger) provider.ProgressFunc {
	return func(pct int) {
		job, err := c.store.Update(context.Background(), jobID, func(j *model.UploadJob) error {
			if !j.SetProgress(pct) {
				return errNoChange
			}
			return nil
		})
		if err != nil {
			if !errors.Is(err, errNoChange) {
				jlog.Warn().Err(err).Int("progress", pct).Msg("failed to record job progress")
			}
			return
		}
		c.publish(job)
	}
}

// advance applies one status mutation and publishes the resulting snapshot.
func (c *Coordinator) advance(jobID string, fn func(*model.UploadJob) error) (*model.UploadJob, error) {
	job, err := c.store.Update(context.Background(), jobID, fn)
	if err != nil {
		return nil, err
	}
	c.publish(job)
	return job, nil
}

func (c *Coordinator) fail(jobID, msg string, jlog zerolog.Logger) {
	job, err := c.store.Update(context.Background(), jobID, func(j *model.UploadJob) error {
		return j.Fail(msg)
	})
	if err != nil {
		jlog.Error().Err(err).Str("reason", msg).Msg("failed to record job failure")
		return
	}
	c.publish(job)
	jlog.Error().Str("error", msg).Msg("job failed")
}

func (c *Coordinator) publish(job *model.UploadJob) {
	c.events.Publish(job.ID, pubsub.Event{
		JobID:          job.ID,
		Status:         job.Status,
		Progress:       job.Progress,
		VendorVideoURI: job.VendorVideoURI,
		Error:          job.Error,
		At:             time.Now().UTC(),
	})
}

// cleanup releases the resources the coordinator owns for a job: the payload
// stream and the buffered temp file. Runs on every outcome.
func (c *Coordinator) cleanup(uc *model.UploadContext, jlog zerolog.Logger) {
	if uc.File != nil {
		if err := uc.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			jlog.Warn().Err(err).Msg("failed to close the payload stream")
		}
	}
	if uc.TempPath != "" {
		if err := os.Remove(uc.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			jlog.Warn().Err(err).Str("path", uc.TempPath).Msg("failed to remove the temp file")
		}
	}
}

func sourceName(uc *model.UploadContext) string {
	if uc.FileName != "" {
		return uc.FileName
	}
	return uc.LinkURL
}
