package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thuongerikdev/FilmZone-sub003/internal/api"
	"github.com/thuongerikdev/FilmZone-sub003/internal/config"
	"github.com/thuongerikdev/FilmZone-sub003/internal/coordinator"
	"github.com/thuongerikdev/FilmZone-sub003/internal/database"
	"github.com/thuongerikdev/FilmZone-sub003/internal/jobstore"
	"github.com/thuongerikdev/FilmZone-sub003/internal/provider"
	"github.com/thuongerikdev/FilmZone-sub003/internal/pubsub"
	"github.com/thuongerikdev/FilmZone-sub003/internal/queue"
	"github.com/thuongerikdev/FilmZone-sub003/internal/repository"
	"github.com/thuongerikdev/FilmZone-sub003/internal/s3storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Archive storage backs the archive-file/archive-link providers.
	archive, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init archive storage")
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure the video bucket")
	}

	vimeo := provider.NewVimeoClient(cfg.VimeoBaseURL, cfg.VimeoToken, cfg.VimeoChunkSize, nil)
	youtube := provider.NewYouTubeClient(cfg.YouTubeBaseURL, cfg.YouTubeToken, cfg.YouTubeChunkSize, nil)
	registry, err := provider.NewRegistry(
		provider.NewArchiveFileProvider(archive),
		provider.NewArchiveLinkProvider(archive, nil),
		provider.NewVimeoFileProvider(vimeo),
		provider.NewVimeoLinkProvider(vimeo),
		provider.NewYouTubeResumableProvider(youtube),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid provider registration")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
	}

	var store jobstore.Store
	if cfg.JobStoreBackend == "redis" && redisClient != nil {
		store = jobstore.NewRedisStore(redisClient, "", cfg.JobTTL)
		logger.Info().Msg("using the redis job store")
	} else {
		store = jobstore.NewMemoryStore()
		logger.Info().Msg("using the in-memory job store")
	}

	bus := pubsub.NewBus()
	publishers := pubsub.Multi{bus}
	if redisClient != nil {
		publishers = append(publishers, pubsub.NewRedisBridge(redisClient, cfg.RedisChannel, logger))
	}
	if cfg.AMQPUrl != "" {
		conn, err := amqp.Dial(cfg.AMQPUrl)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to AMQP")
		}
		defer conn.Close()
		forwarder, err := pubsub.NewAMQPForwarder(conn, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up the AMQP forwarder")
		}
		defer forwarder.Close()
		publishers = append(publishers, forwarder)
	}

	var sources repository.SourceRepository
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to the database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure the schema")
		}
		sources = repository.NewPostgresSourceRepository(pool)
	} else {
		logger.Warn().Msg("no database configured, media sources stay in memory")
		sources = repository.NewMemorySourceRepository()
	}

	q := queue.New(cfg.QueueCapacity)
	coord := coordinator.New(q, store, registry, sources, publishers, cfg.VendorTimeout,
		logger.With().Str("component", "coordinator").Logger())

	// The coordinator gets its own context: shutdown closes the queue and the
	// drain must not be cancelled out from under in-flight transfers.
	drained := make(chan struct{})
	go func() {
		coord.Run(context.Background())
		close(drained)
	}()

	server := api.New(cfg, store, q, bus, logger.With().Str("component", "api").Logger())
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server stopped")
	}

	// Stop accepting work, let the coordinator finish what is buffered.
	q.Close()
	<-drained
	bus.Close()
	logger.Info().Msg("shutdown complete")
}
