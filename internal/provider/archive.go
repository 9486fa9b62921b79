package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// ArchiveStore is the slice of the archive storage client the providers need.
type ArchiveStore interface {
	UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignPlaybackURL(ctx context.Context, objectKey string) (string, error)
	Bucket() string
}

// ArchiveFileProvider streams an uploaded file into archive storage.
type ArchiveFileProvider struct {
	store ArchiveStore
}

// NewArchiveFileProvider builds the archive-file provider.
func NewArchiveFileProvider(store ArchiveStore) *ArchiveFileProvider {
	return &ArchiveFileProvider{store: store}
}

func (p *ArchiveFileProvider) SourceType() model.SourceType {
	return model.SourceArchiveFile
}

func (p *ArchiveFileProvider) Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error) {
	payload, size, err := uc.OpenPayload()
	if err != nil {
		return nil, err
	}
	defer payload.Close()

	objectKey := archiveObjectKey(uc)
	reader := newProgressReader(payload, size, report)
	if err := p.store.UploadVideo(ctx, objectKey, reader, size, contentTypeFor(uc.FileName)); err != nil {
		return nil, err
	}
	return archiveResult(ctx, p.store, objectKey)
}

// ArchiveLinkProvider pulls a remote file and streams it into archive
// storage without buffering it locally.
type ArchiveLinkProvider struct {
	store ArchiveStore
	http  *http.Client
}

// NewArchiveLinkProvider builds the archive-link provider. client may be nil.
func NewArchiveLinkProvider(store ArchiveStore, client *http.Client) *ArchiveLinkProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArchiveLinkProvider{store: store, http: client}
}

func (p *ArchiveLinkProvider) SourceType() model.SourceType {
	return model.SourceArchiveLink
}

func (p *ArchiveLinkProvider) Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uc.LinkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uc.LinkURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", uc.LinkURL, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	objectKey := archiveObjectKey(uc)
	// ContentLength is -1 for chunked responses; progress then stays at zero
	// until the terminal event.
	reader := newProgressReader(resp.Body, resp.ContentLength, report)
	if err := p.store.UploadVideo(ctx, objectKey, reader, resp.ContentLength, contentType); err != nil {
		return nil, err
	}
	return archiveResult(ctx, p.store, objectKey)
}

func archiveResult(ctx context.Context, store ArchiveStore, objectKey string) (*VendorResult, error) {
	playback, err := store.PresignPlaybackURL(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	return &VendorResult{
		VideoURI:  fmt.Sprintf("s3://%s/%s", store.Bucket(), objectKey),
		SourceURL: playback,
	}, nil
}

// archiveObjectKey lays videos out as sources/<scope>/<targetId>/<jobId>/<name>.
func archiveObjectKey(uc *model.UploadContext) string {
	name := path.Base(uc.FileName)
	if name == "" || name == "." || name == "/" {
		if base := path.Base(uc.LinkURL); base != "" && base != "." && base != "/" {
			name = base
		} else {
			name = "video.mp4"
		}
	}
	return fmt.Sprintf("sources/%s/%d/%s/%s", uc.Scope, uc.TargetID, uc.JobID, name)
}

func contentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	}
	return "application/octet-stream"
}
