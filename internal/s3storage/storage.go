// Package s3storage wraps MinIO/S3 interactions for the archive video bucket.
package s3storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/thuongerikdev/FilmZone-sub003/internal/config"
)

// Storage is the archive-storage vendor client. Uploads stream straight from
// the source reader into the bucket; nothing is buffered in memory.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:     client,
		bucket:     cfg.VideoBucket,
		region:     cfg.S3Region,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// EnsureBucket makes sure the video bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// UploadVideo streams one video object into the bucket. size may be -1 when
// the length is unknown (link pulls without a Content-Length); minio then
// falls back to multipart streaming.
func (s *Storage) UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "video/mp4"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload video object: %w", err)
	}
	return nil
}

// PresignPlaybackURL returns a signed GET URL for a stored video object.
func (s *Storage) PresignPlaybackURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign video object: %w", err)
	}
	return u.String(), nil
}

// Bucket reports the configured video bucket name.
func (s *Storage) Bucket() string {
	return s.bucket
}
