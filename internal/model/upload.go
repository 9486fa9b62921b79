// Package model contains the value types shared by the ingestion pipeline.
package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType discriminates where a video source comes from and which vendor
// it is transferred to.
type SourceType string

const (
	SourceArchiveFile SourceType = "archive-file"
	SourceArchiveLink SourceType = "archive-link"
	SourceVimeoFile   SourceType = "vimeo-file"
	SourceVimeoLink   SourceType = "vimeo-link"
	SourceYouTubeFile SourceType = "youtube-file"
)

// ParseSourceType matches a raw string against the known source types,
// ignoring case.
func ParseSourceType(raw string) (SourceType, error) {
	switch SourceType(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceArchiveFile:
		return SourceArchiveFile, nil
	case SourceArchiveLink:
		return SourceArchiveLink, nil
	case SourceVimeoFile:
		return SourceVimeoFile, nil
	case SourceVimeoLink:
		return SourceVimeoLink, nil
	case SourceYouTubeFile:
		return SourceYouTubeFile, nil
	}
	return "", fmt.Errorf("unknown source type %q", raw)
}

// FileBased reports whether the source carries an uploaded file payload, as
// opposed to a remote link the vendor (or we) pull from.
func (t SourceType) FileBased() bool {
	switch t {
	case SourceArchiveFile, SourceVimeoFile, SourceYouTubeFile:
		return true
	}
	return false
}

// Scope names the catalog entity a finished source attaches to.
type Scope string

const (
	ScopeMovie   Scope = "movie"
	ScopeEpisode Scope = "episode"
)

// ParseScope matches a raw string against the known scopes, ignoring case.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeMovie:
		return ScopeMovie, nil
	case ScopeEpisode:
		return ScopeEpisode, nil
	}
	return "", fmt.Errorf("unknown scope %q", raw)
}

// Defaults applied when the caller leaves the descriptive tags empty.
const (
	DefaultQuality  = "1080p"
	DefaultLanguage = "vi"
)

var (
	ErrMissingPayload   = errors.New("upload context needs either a file payload or a link url")
	ErrConflictingInput = errors.New("file payload and link url are mutually exclusive")
)

// UploadContext describes one ingestion request. It is built once by the HTTP
// layer, validated, and then owned exclusively by the coordinator until the
// job reaches a terminal state.
type UploadContext struct {
	JobID      string
	SourceType SourceType
	Scope      Scope
	TargetID   int64

	Quality   string
	Language  string
	IsVipOnly bool
	IsActive  bool

	// File-based payload: an open stream and/or a temp file buffered by the
	// HTTP layer, with the declared size and original file name.
	File     io.ReadCloser
	FileName string
	FileSize int64
	// TempPath is set when the payload was buffered to local disk. The
	// coordinator deletes it once the job is terminal.
	TempPath string

	// Link-based payload.
	LinkURL string
}

// UploadContextInput is the raw material for NewUploadContext.
type UploadContextInput struct {
	SourceType string
	Scope      string
	TargetID   int64
	Quality    string
	Language   string
	IsVipOnly  bool
	IsActive   bool
	File       io.ReadCloser
	FileName   string
	FileSize   int64
	TempPath   string
	LinkURL    string
}

// NewUploadContext validates the input and builds an immutable context with a
// fresh job id. A context that would carry both a file payload and a link, or
// neither, is rejected here and never reaches the queue.
func NewUploadContext(in UploadContextInput) (*UploadContext, error) {
	sourceType, err := ParseSourceType(in.SourceType)
	if err != nil {
		return nil, err
	}
	scope, err := ParseScope(in.Scope)
	if err != nil {
		return nil, err
	}
	if in.TargetID <= 0 {
		return nil, fmt.Errorf("target id must be positive, got %d", in.TargetID)
	}

	hasFile := in.File != nil || in.TempPath != ""
	hasLink := strings.TrimSpace(in.LinkURL) != ""
	if hasFile && hasLink {
		return nil, ErrConflictingInput
	}
	if sourceType.FileBased() {
		if !hasFile {
			return nil, fmt.Errorf("source type %s: %w", sourceType, ErrMissingPayload)
		}
	} else if !hasLink {
		return nil, fmt.Errorf("source type %s: %w", sourceType, ErrMissingPayload)
	}

	quality := strings.TrimSpace(in.Quality)
	if quality == "" {
		quality = DefaultQuality
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = DefaultLanguage
	}

	return &UploadContext{
		JobID:      NewJobID(),
		SourceType: sourceType,
		Scope:      scope,
		TargetID:   in.TargetID,
		Quality:    quality,
		Language:   language,
		IsVipOnly:  in.IsVipOnly,
		IsActive:   in.IsActive,
		File:       in.File,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		TempPath:   in.TempPath,
		LinkURL:    strings.TrimSpace(in.LinkURL),
	}, nil
}

// OpenPayload returns the file payload stream and its size in bytes: the
// handed-over stream when one is present, otherwise the buffered temp file.
// The caller owns closing the returned reader.
func (c *UploadContext) OpenPayload() (io.ReadCloser, int64, error) {
	if c.File != nil {
		return c.File, c.FileSize, nil
	}
	if c.TempPath != "" {
		f, err := os.Open(c.TempPath)
		if err != nil {
			return nil, 0, fmt.Errorf("open buffered payload: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat buffered payload: %w", err)
		}
		return f, info.Size(), nil
	}
	return nil, 0, ErrMissingPayload
}

// NewJobID returns a 32 character lowercase hex identifier.
func NewJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WorkItem wraps one UploadContext on its way through the work queue.
// Immutable once enqueued.
type WorkItem struct {
	Ctx        *UploadContext
	EnqueuedAt time.Time
}

// NewWorkItem stamps the context with the enqueue time.
func NewWorkItem(ctx *UploadContext) WorkItem {
	return WorkItem{Ctx: ctx, EnqueuedAt: time.Now().UTC()}
}
