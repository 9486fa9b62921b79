// Package config reads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every externally supplied setting: the HTTP surface, the
// ingestion queue, vendor credentials/endpoints, and the optional Redis/AMQP
// and Postgres integrations.
type Config struct {
	Address       string
	TempDir       string
	MaxFileSize   int64
	QueueCapacity int
	VendorTimeout time.Duration

	// Archive storage (MinIO / any S3-compatible endpoint).
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Region    string
	VideoBucket string
	PresignTTL  time.Duration

	// Catalog database for persisted media source records. Empty DSN keeps
	// the service on the in-memory repository (dev/test mode).
	DatabaseURL string

	// Job store backend: "memory" or "redis".
	JobStoreBackend string
	JobTTL          time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Optional AMQP fanout for progress events. Empty URL disables it.
	AMQPUrl      string
	AMQPExchange string

	// Vendor APIs.
	VimeoToken       string
	VimeoBaseURL     string
	VimeoChunkSize   int64
	YouTubeToken     string
	YouTubeBaseURL   string
	YouTubeChunkSize int64
}

const (
	defaultAddress       = ":8080"
	defaultMaxFileSize   = 4 << 30 // 4 GiB
	defaultQueueCapacity = 256
	defaultVendorTimeout = 30 * time.Minute
	defaultPresignTTL    = 6 * time.Hour
	defaultJobTTL        = 24 * time.Hour
	defaultVideoBucket   = "filmzone-videos"
	defaultRedisChannel  = "filmzone:upload-events"
	defaultAMQPExchange  = "filmzone.upload-events"
	defaultVimeoBase     = "https://api.vimeo.com"
	defaultYouTubeBase   = "https://www.googleapis.com"
	defaultChunkSize     = 8 << 20 // 8 MiB
)

// Load reads configuration from environment variables, falling back to
// defaults. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Address:       readEnv("FILMZONE_ADDRESS", defaultAddress),
		TempDir:       readEnv("FILMZONE_TEMP_DIR", os.TempDir()),
		MaxFileSize:   parseInt64("FILMZONE_MAX_FILE_BYTES", defaultMaxFileSize),
		QueueCapacity: parseInt("FILMZONE_QUEUE_CAPACITY", defaultQueueCapacity),
		VendorTimeout: parseDuration("FILMZONE_VENDOR_TIMEOUT", defaultVendorTimeout),

		S3Endpoint:  readEnv("FILMZONE_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: readEnv("FILMZONE_S3_ACCESS_KEY", ""),
		S3SecretKey: readEnv("FILMZONE_S3_SECRET_KEY", ""),
		S3UseSSL:    parseBool("FILMZONE_S3_USE_SSL", false),
		S3Region:    readEnv("FILMZONE_S3_REGION", "us-east-1"),
		VideoBucket: readEnv("FILMZONE_VIDEO_BUCKET", defaultVideoBucket),
		PresignTTL:  parseDuration("FILMZONE_PRESIGN_TTL", defaultPresignTTL),

		DatabaseURL: readEnv("FILMZONE_DATABASE_URL", ""),

		JobStoreBackend: readEnv("FILMZONE_JOB_STORE", "memory"),
		JobTTL:          parseDuration("FILMZONE_JOB_TTL", defaultJobTTL),

		RedisAddr:     readEnv("FILMZONE_REDIS_ADDR", ""),
		RedisPassword: readEnv("FILMZONE_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("FILMZONE_REDIS_DB", 0),
		RedisChannel:  readEnv("FILMZONE_REDIS_CHANNEL", defaultRedisChannel),

		AMQPUrl:      readEnv("FILMZONE_AMQP_URL", ""),
		AMQPExchange: readEnv("FILMZONE_AMQP_EXCHANGE", defaultAMQPExchange),

		VimeoToken:       readEnv("FILMZONE_VIMEO_TOKEN", ""),
		VimeoBaseURL:     readEnv("FILMZONE_VIMEO_BASE_URL", defaultVimeoBase),
		VimeoChunkSize:   parseInt64("FILMZONE_VIMEO_CHUNK_BYTES", defaultChunkSize),
		YouTubeToken:     readEnv("FILMZONE_YOUTUBE_TOKEN", ""),
		YouTubeBaseURL:   readEnv("FILMZONE_YOUTUBE_BASE_URL", defaultYouTubeBase),
		YouTubeChunkSize: parseInt64("FILMZONE_YOUTUBE_CHUNK_BYTES", defaultChunkSize),
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.VendorTimeout <= 0 {
		cfg.VendorTimeout = defaultVendorTimeout
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
