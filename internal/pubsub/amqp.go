package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPForwarder publishes progress events to a fanout exchange so downstream
// consumers (notification service, admin dashboard feed) receive them without
// holding a connection to this process.
type AMQPForwarder struct {
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewAMQPForwarder declares the fanout exchange and returns a forwarder bound
// to it.
func NewAMQPForwarder(conn *amqp.Connection, exchange string, log zerolog.Logger) (*AMQPForwarder, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPForwarder{channel: ch, exchange: exchange, log: log}, nil
}

// Publish sends the event to the exchange. Best effort; AMQP trouble is
// logged, never surfaced to the job.
func (f *AMQPForwarder) Publish(jobID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.log.Error().Err(err).Str("jobId", jobID).Msg("failed to marshal the progress event")
		return
	}
	err = f.channel.PublishWithContext(context.Background(), f.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		f.log.Error().Err(err).Str("jobId", jobID).Msg("failed to publish the progress event to amqp")
	}
}

// Close releases the AMQP channel.
func (f *AMQPForwarder) Close() error {
	return f.channel.Close()
}
