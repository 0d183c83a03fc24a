// Package amqp is an optional driven adapter that publishes inbound messages
// to a RabbitMQ topic exchange for consumers that prefer a broker over the
// webhook push.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// routingKey is the topic key for normalized inbound text messages.
const routingKey = "wa.inbound.text"

// envelopeSchema versions the published payload shape.
const envelopeSchema = "wa.inbound.v1"

// Compile-time interface satisfaction check.
var _ driven.InboundSink = (*Publisher)(nil)

// meta is the envelope metadata attached to every published event.
type meta struct {
	ID         string `json:"id"`
	Schema     string `json:"schema"`
	OccurredAt string `json:"occurred_at"`
}

// envelope wraps the normalized message for broker consumers.
type envelope struct {
	Meta meta                 `json:"meta"`
	Data model.InboundMessage `json:"data"`
}

// Publisher is an InboundSink backed by a RabbitMQ topic exchange. Messages
// are published persistent with a fresh channel per delivery, matching the
// relay's fire-and-forget contract.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewPublisher dials the broker and declares the topic exchange.
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
		log:      logger,
	}, nil
}

// Name identifies the sink in relay logs.
func (p *Publisher) Name() string {
	return "amqp"
}

// Deliver publishes one message wrapped in a versioned envelope.
func (p *Publisher) Deliver(ctx context.Context, msg model.InboundMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	id := uuid.NewString()
	body, err := json.Marshal(envelope{
		Meta: meta{
			ID:         id,
			Schema:     envelopeSchema,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		},
		Data: msg,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, routingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     id,
			CorrelationId: id,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.log.Info("published", slog.String("key", routingKey), slog.String("exchange", p.exchange))
	return nil
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
