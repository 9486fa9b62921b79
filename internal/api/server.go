// Package api exposes the ingestion core over HTTP: enqueue endpoints for
// movie and episode sources, job status polling, and an SSE progress stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thuongerikdev/FilmZone-sub003/internal/config"
	"github.com/thuongerikdev/FilmZone-sub003/internal/jobstore"
	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
	"github.com/thuongerikdev/FilmZone-sub003/internal/pubsub"
	"github.com/thuongerikdev/FilmZone-sub003/internal/queue"
)

// Server validates ingestion requests, hands accepted work to the queue, and
// answers status queries. All heavy lifting happens behind the queue.
type Server struct {
	cfg    *config.Config
	store  jobstore.Store
	queue  *queue.Queue
	bus    *pubsub.Bus
	log    zerolog.Logger
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, store jobstore.Store, q *queue.Queue, bus *pubsub.Bus, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: store, queue: q, bus: bus, log: log}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(s.loggingMiddleware(s.routes())),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("address", s.cfg.Address).Msg("ingestion api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/uploads/movies", s.scopedEnqueue(model.ScopeMovie))
	mux.HandleFunc("/uploads/episodes", s.scopedEnqueue(model.ScopeEpisode))
	mux.HandleFunc("/uploads/", s.handleUploadRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scopedEnqueue(scope model.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleEnqueue(w, r, scope)
	}
}

func (s *Server) handleUploadRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/uploads/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handleJobStatus(w, r, id)
	case len(parts) == 2 && parts[1] == "events":
		s.handleJobEvents(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// enqueueRequest is the JSON body for link-based submissions. File-based
// submissions arrive as multipart forms carrying the same fields.
type enqueueRequest struct {
	SourceType string `json:"sourceType"`
	TargetID   int64  `json:"targetId"`
	LinkURL    string `json:"linkUrl"`
	Quality    string `json:"quality"`
	Language   string `json:"language"`
	IsVipOnly  bool   `json:"isVipOnly"`
	IsActive   bool   `json:"isActive"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request, scope model.Scope) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var input model.UploadContextInput
	var err error
	if strings.HasPrefix(mediaType, "multipart/") {
		input, err = s.readMultipart(w, r)
	} else {
		input, err = readJSON(r)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input.Scope = string(scope)

	uc, err := model.NewUploadContext(input)
	if err != nil {
		// Validation failed after the payload may already have been buffered;
		// nothing owns the temp file yet, so drop it here.
		if input.TempPath != "" {
			os.Remove(input.TempPath)
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := model.NewUploadJob(uc)
	if err := s.store.Create(r.Context(), job); err != nil {
		if uc.TempPath != "" {
			os.Remove(uc.TempPath)
		}
		s.log.Error().Err(err).Str("jobId", job.ID).Msg("failed to create the job record")
		http.Error(w, "failed to create job", http.StatusInternalServerError)
		return
	}
	if err := s.queue.Enqueue(model.NewWorkItem(uc)); err != nil {
		if uc.TempPath != "" {
			os.Remove(uc.TempPath)
		}
		_, _ = s.store.Update(r.Context(), job.ID, func(j *model.UploadJob) error {
			return j.Fail("service is shutting down")
		})
		http.Error(w, "ingestion queue unavailable", http.StatusServiceUnavailable)
		return
	}

	s.log.Info().
		Str("jobId", job.ID).
		Str("sourceType", string(job.SourceType)).
		Str("scope", string(job.Scope)).
		Int64("targetId", job.TargetID).
		Msg("job enqueued")
	respondJSON(w, http.StatusOK, map[string]string{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

func readJSON(r *http.Request) (model.UploadContextInput, error) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.UploadContextInput{}, fmt.Errorf("decode request body: %w", err)
	}
	return model.UploadContextInput{
		SourceType: req.SourceType,
		TargetID:   req.TargetID,
		LinkURL:    req.LinkURL,
		Quality:    req.Quality,
		Language:   req.Language,
		IsVipOnly:  req.IsVipOnly,
		IsActive:   req.IsActive,
	}, nil
}

// readMultipart streams the form. Field parts are read as they arrive; the
// file part is buffered to a temp file so the background transfer is not tied
// to the request body's lifetime.
func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (model.UploadContextInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		return model.UploadContextInput{}, errors.New("expecting multipart form")
	}

	var input model.UploadContextInput
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.discardTemp(input)
			return model.UploadContextInput{}, fmt.Errorf("read form: %w", err)
		}
		if part.FileName() == "" {
			value, err := readFormValue(part)
			if err != nil {
				s.discardTemp(input)
				return model.UploadContextInput{}, err
			}
			applyFormValue(&input, part.FormName(), value)
			continue
		}
		if part.FormName() != "file" || input.TempPath != "" {
			part.Close()
			continue
		}
		tmpPath, size, err := s.persistTemp(part)
		part.Close()
		if err != nil {
			s.discardTemp(input)
			return model.UploadContextInput{}, err
		}
		input.TempPath = tmpPath
		input.FileSize = size
		input.FileName = part.FileName()
	}
	return input, nil
}

func (s *Server) discardTemp(input model.UploadContextInput) {
	if input.TempPath != "" {
		os.Remove(input.TempPath)
	}
}

func readFormValue(part *multipart.Part) (string, error) {
	defer part.Close()
	value, err := io.ReadAll(io.LimitReader(part, 4096))
	if err != nil {
		return "", fmt.Errorf("read form field %s: %w", part.FormName(), err)
	}
	return strings.TrimSpace(string(value)), nil
}

func applyFormValue(input *model.UploadContextInput, name, value string) {
	switch name {
	case "sourceType":
		input.SourceType = value
	case "targetId":
		input.TargetID, _ = strconv.ParseInt(value, 10, 64)
	case "linkUrl":
		input.LinkURL = value
	case "quality":
		input.Quality = value
	case "language":
		input.Language = value
	case "isVipOnly":
		input.IsVipOnly, _ = strconv.ParseBool(value)
	case "isActive":
		input.IsActive, _ = strconv.ParseBool(value)
	}
}

// persistTemp copies the file part to the configured temp directory and
// returns the path with the number of bytes written. An empty file is a
// validation error.
func (s *Server) persistTemp(part *multipart.Part) (string, int64, error) {
	tmpFile, err := os.CreateTemp(s.cfg.TempDir, "filmzone-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmpFile, part)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", 0, fmt.Errorf("buffer upload: %w", err)
	}
	if written == 0 {
		os.Remove(tmpFile.Name())
		return "", 0, errors.New("empty file")
	}
	if written > s.cfg.MaxFileSize {
		os.Remove(tmpFile.Name())
		return "", 0, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
	}
	return tmpFile.Name(), written, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleJobEvents streams the job's progress over SSE. The current snapshot
// is always sent first; events published before the subscription are not
// replayed, which is why the snapshot matters.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before reading the snapshot so no event falls in the gap.
	ch := s.bus.Subscribe(id)
	defer s.bus.Unsubscribe(id, ch)

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	snapshot := pubsub.Event{
		JobID:          job.ID,
		Status:         job.Status,
		Progress:       job.Progress,
		VendorVideoURI: job.VendorVideoURI,
		Error:          job.Error,
		At:             time.Now().UTC(),
	}
	writeSSE(w, flusher, snapshot)
	if snapshot.Terminal() {
		return
	}

	ctx := r.Context()
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, flusher, event)
			if event.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event pubsub.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
	flusher.Flush()
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}
