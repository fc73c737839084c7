// Package notify fans session progress out to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/config"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

type Publisher interface {
	Publish(ctx context.Context, sessionID string, ev models.Event) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ProgressMessage is the body published for every dispatched event.
type ProgressMessage struct {
	SessionID string `json:"session_id"`
	models.Envelope
}

type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    channel
	queue string
}

func NewRabbitPublisher(cfg config.RabbitMQ) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Topic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Topic, err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: cfg.Topic}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, sessionID string, ev models.Event) error {
	body, err := json.Marshal(ProgressMessage{SessionID: sessionID, Envelope: models.NewEnvelope(ev)})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Kind(), err)
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now(),
		Type:        string(ev.Kind()),
		Headers:     amqp.Table{"session_id": sessionID},
		Body:        body,
	})
}

func (p *RabbitPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
