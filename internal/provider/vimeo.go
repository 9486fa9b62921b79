package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// VimeoClient speaks the Vimeo upload API: tus resumable uploads for local
// payloads and the pull approach for remote links.
type VimeoClient struct {
	http      *http.Client
	baseURL   string
	token     string
	chunkSize int64
}

// NewVimeoClient builds a client for the given API endpoint. client may be
// nil; chunkSize <= 0 selects 8 MiB.
func NewVimeoClient(baseURL, token string, chunkSize int64, client *http.Client) *VimeoClient {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = 8 << 20
	}
	return &VimeoClient{http: client, baseURL: baseURL, token: token, chunkSize: chunkSize}
}

type vimeoUpload struct {
	Approach   string `json:"approach"`
	Size       int64  `json:"size,omitempty"`
	Link       string `json:"link,omitempty"`
	UploadLink string `json:"upload_link,omitempty"`
}

type vimeoVideo struct {
	URI    string      `json:"uri"`
	Link   string      `json:"link"`
	Upload vimeoUpload `json:"upload"`
}

type vimeoCreateRequest struct {
	Name   string      `json:"name,omitempty"`
	Upload vimeoUpload `json:"upload"`
}

// createVideo registers a new video with the given upload approach.
func (c *VimeoClient) createVideo(ctx context.Context, reqBody vimeoCreateRequest) (*vimeoVideo, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/videos", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.vimeo.*+json;version=3.4")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create vimeo video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("create vimeo video: status %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	var video vimeoVideo
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	return &video, nil
}

// uploadTus drives the tus PATCH loop against the upload link, reporting the
// confirmed offset after each chunk.
func (c *VimeoClient) uploadTus(ctx context.Context, uploadLink string, payload io.Reader, size int64, report ProgressFunc) error {
	var offset int64
	chunk := make([]byte, c.chunkSize)
	for offset < size {
		want := c.chunkSize
		if remaining := size - offset; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(payload, chunk[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("read payload at offset %d: %w", offset, err)
		}
		if n == 0 {
			return fmt.Errorf("payload ended at offset %d, declared size %d", offset, size)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, uploadLink, bytes.NewReader(chunk[:n]))
		if err != nil {
			return fmt.Errorf("build tus request: %w", err)
		}
		req.Header.Set("Tus-Resumable", "1.0.0")
		req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))
		req.Header.Set("Content-Type", "application/offset+octet-stream")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("upload chunk at offset %d: %w", offset, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("upload chunk at offset %d: status %s", offset, resp.Status)
		}

		confirmed, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
		if err != nil {
			confirmed = offset + int64(n)
		}
		offset = confirmed
		if report != nil {
			report(int(offset * 100 / size))
		}
	}
	return nil
}

// VimeoFileProvider pushes a buffered upload to Vimeo over tus.
type VimeoFileProvider struct {
	client *VimeoClient
}

// NewVimeoFileProvider builds the vimeo-file provider.
func NewVimeoFileProvider(client *VimeoClient) *VimeoFileProvider {
	return &VimeoFileProvider{client: client}
}

func (p *VimeoFileProvider) SourceType() model.SourceType {
	return model.SourceVimeoFile
}

func (p *VimeoFileProvider) Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error) {
	payload, size, err := uc.OpenPayload()
	if err != nil {
		return nil, err
	}
	defer payload.Close()

	video, err := p.client.createVideo(ctx, vimeoCreateRequest{
		Name:   uc.FileName,
		Upload: vimeoUpload{Approach: "tus", Size: size},
	})
	if err != nil {
		return nil, err
	}
	if video.Upload.UploadLink == "" {
		return nil, fmt.Errorf("vimeo returned no upload link for %s", video.URI)
	}
	if err := p.client.uploadTus(ctx, video.Upload.UploadLink, payload, size, report); err != nil {
		return nil, err
	}
	return &VendorResult{
		VideoURI:  video.URI,
		UploadURL: video.Upload.UploadLink,
		SourceURL: video.Link,
	}, nil
}

// VimeoLinkProvider asks Vimeo to pull a remote file itself; the transfer
// happens on the vendor's side, so the job moves to processing as soon as the
// pull is registered.
type VimeoLinkProvider struct {
	client *VimeoClient
}

// NewVimeoLinkProvider builds the vimeo-link provider.
func NewVimeoLinkProvider(client *VimeoClient) *VimeoLinkProvider {
	return &VimeoLinkProvider{client: client}
}

func (p *VimeoLinkProvider) SourceType() model.SourceType {
	return model.SourceVimeoLink
}

func (p *VimeoLinkProvider) Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error) {
	video, err := p.client.createVideo(ctx, vimeoCreateRequest{
		Upload: vimeoUpload{Approach: "pull", Link: uc.LinkURL},
	})
	if err != nil {
		return nil, err
	}
	if report != nil {
		report(100)
	}
	return &VendorResult{
		VideoURI:  video.URI,
		SourceURL: video.Link,
	}, nil
}
