package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// fakeVimeo implements the two endpoints the client touches: video creation
// and the tus upload link.
type fakeVimeo struct {
	t        *testing.T
	approach string
	pullLink string
	uploaded []byte
	offset   int64
}

func (f *fakeVimeo) handler(baseURL func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		assert.Equal(f.t, "bearer test-token", r.Header.Get("Authorization"))

		var req vimeoCreateRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.approach = req.Upload.Approach
		f.pullLink = req.Upload.Link

		resp := vimeoVideo{
			URI:  "/videos/123456",
			Link: "https://vimeo.com/123456",
		}
		if req.Upload.Approach == "tus" {
			resp.Upload = vimeoUpload{Approach: "tus", UploadLink: baseURL() + "/tus/123456"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/tus/123456", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPatch, r.Method)
		assert.Equal(f.t, "1.0.0", r.Header.Get("Tus-Resumable"))
		offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
		require.NoError(f.t, err)
		assert.Equal(f.t, f.offset, offset, "chunks must arrive in offset order")

		chunk, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		f.uploaded = append(f.uploaded, chunk...)
		f.offset += int64(len(chunk))

		w.Header().Set("Upload-Offset", strconv.FormatInt(f.offset, 10))
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newFakeVimeoServer(t *testing.T) (*fakeVimeo, *httptest.Server) {
	fake := &fakeVimeo{t: t}
	var srv *httptest.Server
	srv = httptest.NewServer(fake.handler(func() string { return srv.URL }))
	return fake, srv
}

func TestVimeoFileProviderTusUpload(t *testing.T) {
	fake, srv := newFakeVimeoServer(t)
	defer srv.Close()

	// A 3-byte chunk size forces several PATCH round trips.
	client := NewVimeoClient(srv.URL, "test-token", 3, srv.Client())
	prov := NewVimeoFileProvider(client)
	assert.Equal(t, model.SourceVimeoFile, prov.SourceType())

	uc := &model.UploadContext{
		JobID:    "j1",
		FileName: "feature.mp4",
		TempPath: bufferPayload(t, "0123456789"),
	}
	var reports []int
	result, err := prov.Upload(context.Background(), uc, func(pct int) { reports = append(reports, pct) })
	require.NoError(t, err)

	assert.Equal(t, "tus", fake.approach)
	assert.Equal(t, []byte("0123456789"), fake.uploaded)
	assert.Equal(t, "/videos/123456", result.VideoURI)
	assert.Equal(t, "https://vimeo.com/123456", result.SourceURL)
	assert.Equal(t, srv.URL+"/tus/123456", result.UploadURL)

	require.NotEmpty(t, reports)
	assert.Equal(t, 100, reports[len(reports)-1])
}

func TestVimeoLinkProviderPull(t *testing.T) {
	fake, srv := newFakeVimeoServer(t)
	defer srv.Close()

	client := NewVimeoClient(srv.URL, "test-token", 0, srv.Client())
	prov := NewVimeoLinkProvider(client)
	assert.Equal(t, model.SourceVimeoLink, prov.SourceType())

	uc := &model.UploadContext{JobID: "j2", LinkURL: "https://cdn.test/source.mp4"}
	var lastPct int
	result, err := prov.Upload(context.Background(), uc, func(pct int) { lastPct = pct })
	require.NoError(t, err)

	assert.Equal(t, "pull", fake.approach)
	assert.Equal(t, "https://cdn.test/source.mp4", fake.pullLink)
	assert.Equal(t, "/videos/123456", result.VideoURI)
	assert.Equal(t, 100, lastPct)
}

func TestVimeoCreateVideoErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewVimeoClient(srv.URL, "test-token", 0, srv.Client())
	prov := NewVimeoLinkProvider(client)
	_, err := prov.Upload(context.Background(), &model.UploadContext{LinkURL: "https://cdn.test/x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestVimeoTusFailedChunk(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/me/videos", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(vimeoVideo{
			URI:    "/videos/1",
			Upload: vimeoUpload{Approach: "tus", UploadLink: srv.URL + "/tus/1"},
		})
	})
	mux.HandleFunc("/tus/1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "checksum mismatch", http.StatusConflict)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewVimeoClient(srv.URL, "test-token", 0, srv.Client())
	prov := NewVimeoFileProvider(client)
	uc := &model.UploadContext{JobID: "j3", FileName: "x.mp4", TempPath: bufferPayload(t, "abc")}
	_, err := prov.Upload(context.Background(), uc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 0")
}
