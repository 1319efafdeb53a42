// Package events publishes ledger events to message brokers after commit.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Event types.
const (
	CardCreated       = "card.created"
	CardCredited      = "card.credited"
	CardPhoneLinked   = "card.phone_linked"
	CardDeleted       = "card.deleted"
	TransferCompleted = "transfer.completed"
)

// Event is the envelope sent to brokers.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEvent stamps an event with a fresh id and the current time.
// Key groups events that must stay ordered (a card id).
func NewEvent(typ, key string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events. Delivery is best effort: the ledger state is
// already committed when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New builds the publisher set selected by configuration.
func New(cfg *config.Config, log *logrus.Logger) (Publisher, error) {
	var pubs multi
	if cfg.NATSURL != "" {
		p, err := NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, err
		}
		log.Infof("Publishing events to NATS subject %s.*", cfg.NATSSubject)
		pubs = append(pubs, p)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pubs = append(pubs, NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
		log.Infof("Publishing events to Kafka topic %s", cfg.KafkaTopic)
	}
	switch len(pubs) {
	case 0:
		return Noop{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type multi []Publisher

func (m multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NATSPublisher publishes to "<subject>.<event type>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to a NATS server.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("card-ledger"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.subject, e.Type), body); err != nil {
		return fmt.Errorf("publish to nats: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

// Subject joins a base subject and an event type.
func Subject(base, eventType string) string {
	return strings.TrimSuffix(base, ".") + "." + eventType
}

// KafkaPublisher writes events keyed by Event.Key so one card's events keep
// their order within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a writer; connections are opened lazily.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := KafkaMessage(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaMessage encodes an event as a Kafka message.
func KafkaMessage(e Event) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:     []byte(e.Key),
		Value:   body,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}},
		Time:    e.OccurredAt,
	}, nil
}
