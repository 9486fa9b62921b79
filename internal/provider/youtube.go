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

// YouTubeClient speaks the YouTube Data API resumable upload protocol:
// an initiation POST that yields a session URL, then chunked PUTs with
// Content-Range headers until the API answers with the video resource.
type YouTubeClient struct {
	http      *http.Client
	baseURL   string
	token     string
	chunkSize int64
}

// NewYouTubeClient builds a client for the given API endpoint. client may be
// nil; chunkSize <= 0 selects 8 MiB.
func NewYouTubeClient(baseURL, token string, chunkSize int64, client *http.Client) *YouTubeClient {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = 8 << 20
	}
	return &YouTubeClient{http: client, baseURL: baseURL, token: token, chunkSize: chunkSize}
}

type youtubeSnippet struct {
	Title      string `json:"title"`
	CategoryID string `json:"categoryId,omitempty"`
}

type youtubeStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
}

type youtubeVideo struct {
	ID      string         `json:"id"`
	Snippet youtubeSnippet `json:"snippet,omitempty"`
	Status  youtubeStatus  `json:"status,omitempty"`
}

// initiateSession registers the upload and returns the resumable session URL
// from the Location header.
func (c *YouTubeClient) initiateSession(ctx context.Context, title string, size int64) (string, error) {
	body, err := json.Marshal(youtubeVideo{
		Snippet: youtubeSnippet{Title: title, CategoryID: "1"},
		Status:  youtubeStatus{PrivacyStatus: "unlisted"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal video metadata: %w", err)
	}
	url := c.baseURL + "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build initiation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("initiate youtube upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("initiate youtube upload: status %s", resp.Status)
	}
	session := resp.Header.Get("Location")
	if session == "" {
		return "", fmt.Errorf("initiate youtube upload: missing session location")
	}
	return session, nil
}

// uploadChunks PUTs the payload to the session URL chunk by chunk. The API
// answers 308 while more bytes are expected and 200/201 with the video
// resource once the final chunk lands.
func (c *YouTubeClient) uploadChunks(ctx context.Context, session string, payload io.Reader, size int64, report ProgressFunc) (*youtubeVideo, error) {
	var offset int64
	chunk := make([]byte, c.chunkSize)
	for {
		want := c.chunkSize
		if remaining := size - offset; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(payload, chunk[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read payload at offset %d: %w", offset, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("payload ended at offset %d, declared size %d", offset, size)
		}
		end := offset + int64(n) - 1

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, bytes.NewReader(chunk[:n]))
		if err != nil {
			return nil, fmt.Errorf("build chunk request: %w", err)
		}
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, size))

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("upload chunk at offset %d: %w", offset, err)
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			var video youtubeVideo
			decodeErr := json.NewDecoder(resp.Body).Decode(&video)
			resp.Body.Close()
			if decodeErr != nil {
				return nil, fmt.Errorf("decode video resource: %w", decodeErr)
			}
			if report != nil {
				report(100)
			}
			return &video, nil
		case 308: // Resume Incomplete
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			offset = end + 1
			if report != nil {
				report(int(offset * 100 / size))
			}
		default:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("upload chunk at offset %d: status %s", offset, resp.Status)
		}
	}
}

// YouTubeResumableProvider pushes a buffered upload to YouTube.
type YouTubeResumableProvider struct {
	client *YouTubeClient
}

// NewYouTubeResumableProvider builds the youtube-file provider.
func NewYouTubeResumableProvider(client *YouTubeClient) *YouTubeResumableProvider {
	return &YouTubeResumableProvider{client: client}
}

func (p *YouTubeResumableProvider) SourceType() model.SourceType {
	return model.SourceYouTubeFile
}

func (p *YouTubeResumableProvider) Upload(ctx context.Context, uc *model.UploadContext, report ProgressFunc) (*VendorResult, error) {
	payload, size, err := uc.OpenPayload()
	if err != nil {
		return nil, err
	}
	defer payload.Close()

	session, err := p.client.initiateSession(ctx, uc.FileName, size)
	if err != nil {
		return nil, err
	}
	video, err := p.client.uploadChunks(ctx, session, payload, size, report)
	if err != nil {
		return nil, err
	}
	if video.ID == "" {
		return nil, fmt.Errorf("youtube returned no video id")
	}
	return &VendorResult{
		VideoURI:  video.ID,
		UploadURL: session,
		SourceURL: "https://www.youtube.com/watch?v=" + video.ID,
	}, nil
}
