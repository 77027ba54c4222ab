// Package notify announces uploaded result files on a message queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/andresuchdata/visionbatch/internal/config"
	"github.com/andresuchdata/visionbatch/internal/pipeline"
	"github.com/andresuchdata/visionbatch/pkg/logger"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends one persistent JSON message per uploaded result.
type Publisher struct {
	conn      *amqp.Connection
	channel   channel
	queueName string
	log       zerolog.Logger
	now       func() time.Time
}

// NewPublisher dials the broker and declares a durable queue.
func NewPublisher(cfg config.QueueConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Name, // name
		true,     // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Name, err)
	}

	p := newPublisher(ch, cfg.Name)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queueName string) *Publisher {
	return &Publisher{
		channel:   ch,
		queueName: queueName,
		log:       logger.Component("notify"),
		now:       time.Now,
	}
}

// ResultPublished sends event to the queue.
func (p *Publisher) ResultPublished(ctx context.Context, event pipeline.ResultEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.Publish(
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     p.now(),
			MessageId:     event.ResultKey,
			CorrelationId: event.RunUID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event for %s: %w", event.ResultKey, err)
	}

	p.log.Debug().Str("result_key", event.ResultKey).Msg("result event published")
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var _ pipeline.Notifier = (*Publisher)(nil)
