package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thuongerikdev/FilmZone-sub003/internal/jobstore"
	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
	"github.com/thuongerikdev/FilmZone-sub003/internal/provider"
	"github.com/thuongerikdev/FilmZone-sub003/internal/pubsub"
	"github.com/thuongerikdev/FilmZone-sub003/internal/queue"
	"github.com/thuongerikdev/FilmZone-sub003/internal/repository"
)

type fakeProvider struct {
	sourceType model.SourceType
	uploadFn   func(ctx context.Context, uc *model.UploadContext, report provider.ProgressFunc) (*provider.VendorResult, error)
}

func (f *fakeProvider) SourceType() model.SourceType { return f.sourceType }

func (f *fakeProvider) Upload(ctx context.Context, uc *model.UploadContext, report provider.ProgressFunc) (*provider.VendorResult, error) {
	return f.uploadFn(ctx, uc, report)
}

// eventRecorder captures published events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (r *eventRecorder) Publish(_ string, event pubsub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []pubsub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pubsub.Event, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	queue   *queue.Queue
	store   *jobstore.MemoryStore
	sources *repository.MemorySourceRepository
	events  *eventRecorder
	coord   *Coordinator
}

func newFixture(t *testing.T, providers ...provider.Provider) *fixture {
	t.Helper()
	reg, err := provider.NewRegistry(providers...)
	require.NoError(t, err)

	f := &fixture{
		queue:   queue.New(16),
		store:   jobstore.NewMemoryStore(),
		sources: repository.NewMemorySourceRepository(),
		events:  &eventRecorder{},
	}
	f.coord = New(f.queue, f.store, reg, f.sources, f.events, time.Minute, zerolog.Nop())
	return f
}

// run starts the coordinator, executes fn, then closes the queue and waits
// for the drain to finish.
func (f *fixture) run(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.coord.Run(context.Background())
	}()
	fn()
	f.queue.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not drain the queue")
	}
}

func (f *fixture) enqueue(t *testing.T, uc *model.UploadContext) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), model.NewUploadJob(uc)))
	require.NoError(t, f.queue.Enqueue(model.NewWorkItem(uc)))
}

func fileContext(t *testing.T, sourceType model.SourceType, targetID int64) *model.UploadContext {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
	return &model.UploadContext{
		JobID:      model.NewJobID(),
		SourceType: sourceType,
		Scope:      model.ScopeMovie,
		TargetID:   targetID,
		FileName:   "feature.mp4",
		FileSize:   7,
		TempPath:   path,
		Quality:    model.DefaultQuality,
		Language:   model.DefaultLanguage,
		IsActive:   true,
	}
}

func TestSuccessfulJobLifecycle(t *testing.T) {
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(_ context.Context, _ *model.UploadContext, report provider.ProgressFunc) (*provider.VendorResult, error) {
			report(30)
			report(60)
			return &provider.VendorResult{
				VideoURI:  "/videos/42",
				UploadURL: "https://vimeo.test/tus/42",
				SourceURL: "https://vimeo.com/42",
			}, nil
		},
	}
	f := newFixture(t, prov)
	uc := fileContext(t, model.SourceVimeoFile, 11)

	f.run(t, func() { f.enqueue(t, uc) })

	job, err := f.store.Get(context.Background(), uc.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "/videos/42", job.VendorVideoURI)
	assert.Equal(t, "https://vimeo.test/tus/42", job.VendorUploadURL)
	assert.Empty(t, job.Error)

	rec, ok := f.sources.Get("movie", 11, "vimeo-file")
	require.True(t, ok, "completed job must persist a media source record")
	assert.Equal(t, "/videos/42", rec.VendorSourceID)
	assert.Equal(t, "https://vimeo.com/42", rec.SourceURL)
	assert.Equal(t, "feature.mp4", rec.SourceName)

	// Events trace the full lifecycle and end in a terminal one.
	events := f.events.all()
	require.NotEmpty(t, events)
	statuses := make([]model.JobStatus, 0, len(events))
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	assert.Contains(t, statuses, model.JobUploading)
	assert.Contains(t, statuses, model.JobProcessing)
	assert.Equal(t, model.JobCompleted, events[len(events)-1].Status)

	// The coordinator owns the temp file and removes it on completion.
	_, statErr := os.Stat(uc.TempPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnresolvableSourceTypeFailsJob(t *testing.T) {
	// Only the vimeo provider is registered; a youtube job cannot resolve.
	f := newFixture(t, &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(context.Context, *model.UploadContext, provider.ProgressFunc) (*provider.VendorResult, error) {
			return nil, errors.New("unused")
		},
	})
	uc := fileContext(t, model.SourceYouTubeFile, 5)

	f.run(t, func() { f.enqueue(t, uc) })

	job, err := f.store.Get(context.Background(), uc.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Contains(t, job.Error, "youtube-file")

	_, ok := f.sources.Get("movie", 5, "youtube-file")
	assert.False(t, ok, "failed jobs must not persist media source records")
}

func TestMidTransferFailureKeepsProgress(t *testing.T) {
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(_ context.Context, _ *model.UploadContext, report provider.ProgressFunc) (*provider.VendorResult, error) {
			report(40)
			return nil, errors.New("connection reset by peer")
		},
	}
	f := newFixture(t, prov)
	uc := fileContext(t, model.SourceVimeoFile, 5)

	f.run(t, func() { f.enqueue(t, uc) })

	job, err := f.store.Get(context.Background(), uc.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Contains(t, job.Error, "connection reset")
	assert.GreaterOrEqual(t, job.Progress, 40)

	events := f.events.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.JobFailed, last.Status)
	assert.NotEmpty(t, last.Error)

	// Cleanup runs on failure too.
	_, statErr := os.Stat(uc.TempPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestManyJobsEachSettleExactlyOnce(t *testing.T) {
	const jobs = 20

	var mu sync.Mutex
	uploads := make(map[string]int)
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(_ context.Context, uc *model.UploadContext, _ provider.ProgressFunc) (*provider.VendorResult, error) {
			mu.Lock()
			uploads[uc.JobID]++
			mu.Unlock()
			return &provider.VendorResult{VideoURI: "/videos/" + uc.JobID, SourceURL: "https://vimeo.com/" + uc.JobID}, nil
		},
	}
	f := newFixture(t, prov)

	contexts := make([]*model.UploadContext, 0, jobs)
	f.run(t, func() {
		for i := 0; i < jobs; i++ {
			uc := fileContext(t, model.SourceVimeoFile, int64(i+1))
			contexts = append(contexts, uc)
			f.enqueue(t, uc)
		}
	})

	for _, uc := range contexts {
		job, err := f.store.Get(context.Background(), uc.JobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobCompleted, job.Status, "job %s", uc.JobID)
		assert.Equal(t, 1, uploads[uc.JobID], "each job transfers exactly once")
	}
	assert.Equal(t, jobs, f.sources.Len())
}

func TestPanickingProviderDoesNotStopTheLoop(t *testing.T) {
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(_ context.Context, uc *model.UploadContext, _ provider.ProgressFunc) (*provider.VendorResult, error) {
			if uc.TargetID == 1 {
				panic("nil dereference in vendor client")
			}
			return &provider.VendorResult{VideoURI: "/videos/ok", SourceURL: "https://vimeo.com/ok"}, nil
		},
	}
	f := newFixture(t, prov)
	bad := fileContext(t, model.SourceVimeoFile, 1)
	good := fileContext(t, model.SourceVimeoFile, 2)

	f.run(t, func() {
		f.enqueue(t, bad)
		f.enqueue(t, good)
	})

	badJob, err := f.store.Get(context.Background(), bad.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, badJob.Status)
	assert.Contains(t, badJob.Error, "internal error")

	goodJob, err := f.store.Get(context.Background(), good.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, goodJob.Status, "a panicking job must not poison later jobs")
}

type failingRepository struct{}

func (failingRepository) UpsertSource(context.Context, *repository.SourceRecord) error {
	return fmt.Errorf("connection refused")
}

func TestRepositoryFailureFailsJob(t *testing.T) {
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(context.Context, *model.UploadContext, provider.ProgressFunc) (*provider.VendorResult, error) {
			return &provider.VendorResult{VideoURI: "/videos/1", SourceURL: "https://vimeo.com/1"}, nil
		},
	}
	reg, err := provider.NewRegistry(prov)
	require.NoError(t, err)

	f := &fixture{
		queue:  queue.New(4),
		store:  jobstore.NewMemoryStore(),
		events: &eventRecorder{},
	}
	f.coord = New(f.queue, f.store, reg, failingRepository{}, f.events, time.Minute, zerolog.Nop())
	uc := fileContext(t, model.SourceVimeoFile, 3)

	f.run(t, func() { f.enqueue(t, uc) })

	job, err := f.store.Get(context.Background(), uc.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Contains(t, job.Error, "persist media source")
}

func TestProgressEventsOnlyOnChange(t *testing.T) {
	prov := &fakeProvider{
		sourceType: model.SourceVimeoFile,
		uploadFn: func(_ context.Context, _ *model.UploadContext, report provider.ProgressFunc) (*provider.VendorResult, error) {
			report(10)
			report(10)
			report(5)
			report(20)
			return &provider.VendorResult{VideoURI: "/videos/1", SourceURL: "https://vimeo.com/1"}, nil
		},
	}
	f := newFixture(t, prov)
	uc := fileContext(t, model.SourceVimeoFile, 4)

	f.run(t, func() { f.enqueue(t, uc) })

	var progressEvents []int
	for _, ev := range f.events.all() {
		if ev.Status == model.JobUploading && ev.Progress > 0 {
			progressEvents = append(progressEvents, ev.Progress)
		}
	}
	assert.Equal(t, []int{10, 20}, progressEvents, "repeated and backward reports publish nothing")
}
