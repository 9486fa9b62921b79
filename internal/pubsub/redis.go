package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBridge mirrors progress events onto a Redis pub/sub channel so other
// FilmZone services (and other instances behind a load balancer) can forward
// them to their own connected clients.
type RedisBridge struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisBridge wraps an existing Redis client. The channel is shared by all
// jobs; consumers filter on the jobId field of the payload.
func NewRedisBridge(client *redis.Client, channel string, log zerolog.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, log: log}
}

// Publish marshals the event and pushes it to the Redis channel. Delivery is
// best effort: a broken Redis connection must not fail the job.
func (b *RedisBridge) Publish(jobID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error().Err(err).Str("jobId", jobID).Msg("failed to marshal the progress event")
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.log.Error().Err(err).Str("jobId", jobID).Msg("failed to publish the progress event to redis")
	}
}
