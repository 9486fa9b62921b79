package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

type fakeArchiveStore struct {
	objects     map[string][]byte
	contentType map[string]string
	uploadErr   error
}

func newFakeArchiveStore() *fakeArchiveStore {
	return &fakeArchiveStore{
		objects:     make(map[string][]byte),
		contentType: make(map[string]string),
	}
}

func (f *fakeArchiveStore) UploadVideo(_ context.Context, objectKey string, reader io.Reader, _ int64, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[objectKey] = data
	f.contentType[objectKey] = contentType
	return nil
}

func (f *fakeArchiveStore) PresignPlaybackURL(_ context.Context, objectKey string) (string, error) {
	return "https://archive.test/" + objectKey + "?sig=abc", nil
}

func (f *fakeArchiveStore) Bucket() string { return "test-bucket" }

func bufferPayload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestArchiveFileProviderUpload(t *testing.T) {
	store := newFakeArchiveStore()
	prov := NewArchiveFileProvider(store)
	assert.Equal(t, model.SourceArchiveFile, prov.SourceType())

	uc := &model.UploadContext{
		JobID:      "deadbeef",
		SourceType: model.SourceArchiveFile,
		Scope:      model.ScopeMovie,
		TargetID:   9,
		FileName:   "feature.mkv",
		TempPath:   bufferPayload(t, "movie bytes"),
	}

	var lastPct int
	result, err := prov.Upload(context.Background(), uc, func(pct int) { lastPct = pct })
	require.NoError(t, err)

	wantKey := "sources/movie/9/deadbeef/feature.mkv"
	assert.Equal(t, "s3://test-bucket/"+wantKey, result.VideoURI)
	assert.Equal(t, "https://archive.test/"+wantKey+"?sig=abc", result.SourceURL)
	assert.Equal(t, []byte("movie bytes"), store.objects[wantKey])
	assert.Equal(t, "video/x-matroska", store.contentType[wantKey])
	assert.Equal(t, 100, lastPct)
}

func TestArchiveLinkProviderUpload(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("remote bytes"))
	}))
	defer origin.Close()

	store := newFakeArchiveStore()
	prov := NewArchiveLinkProvider(store, origin.Client())
	assert.Equal(t, model.SourceArchiveLink, prov.SourceType())

	uc := &model.UploadContext{
		JobID:      "cafebabe",
		SourceType: model.SourceArchiveLink,
		Scope:      model.ScopeEpisode,
		TargetID:   3,
		LinkURL:    origin.URL + "/source.mp4",
	}
	result, err := prov.Upload(context.Background(), uc, nil)
	require.NoError(t, err)

	wantKey := "sources/episode/3/cafebabe/source.mp4"
	assert.Equal(t, []byte("remote bytes"), store.objects[wantKey])
	assert.Equal(t, "video/mp4", store.contentType[wantKey])
	assert.Equal(t, "s3://test-bucket/"+wantKey, result.VideoURI)
}

func TestArchiveLinkProviderBadStatus(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer origin.Close()

	prov := NewArchiveLinkProvider(newFakeArchiveStore(), origin.Client())
	uc := &model.UploadContext{JobID: "j", Scope: model.ScopeMovie, TargetID: 1, LinkURL: origin.URL}
	_, err := prov.Upload(context.Background(), uc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestArchiveObjectKeyFallbacks(t *testing.T) {
	uc := &model.UploadContext{JobID: "j1", Scope: model.ScopeMovie, TargetID: 5, LinkURL: "https://cdn.test/videos/pilot.mp4"}
	assert.Equal(t, "sources/movie/5/j1/pilot.mp4", archiveObjectKey(uc))

	uc = &model.UploadContext{JobID: "j2", Scope: model.ScopeMovie, TargetID: 5}
	assert.Equal(t, "sources/movie/5/j2/video.mp4", archiveObjectKey(uc))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "video/mp4", contentTypeFor("a.MP4"))
	assert.Equal(t, "video/webm", contentTypeFor("a.webm"))
	assert.Equal(t, "video/quicktime", contentTypeFor("a.mov"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a.bin"))
}
