// Package events announces rendered and uploaded boards on Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"

	"github.com/aliskhannn/status-board/internal/config"
)

// Kind names what happened to a board image.
type Kind string

const (
	KindRendered Kind = "rendered"
	KindUploaded Kind = "uploaded"
)

// Event is the message published for every board image.
type Event struct {
	ID    uuid.UUID `json:"id"`
	Kind  Kind      `json:"kind"`
	Board string    `json:"board"`
	File  string    `json:"file"`
	Size  int64     `json:"size"`
	At    time.Time `json:"at"`
}

// NewEvent stamps an event with a fresh ID.
func NewEvent(kind Kind, board, file string, size int64, at time.Time) Event {
	return Event{
		ID:    uuid.New(),
		Kind:  kind,
		Board: board,
		File:  file,
		Size:  size,
		At:    at.UTC(),
	}
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NewPublisher returns a Kafka producer, or a no-op publisher when no
// brokers are configured.
func NewPublisher(cfg config.Kafka) Publisher {
	if !cfg.Enabled() {
		return Nop{}
	}
	return New(cfg)
}

// sender is the subset of *wbfkafka.Producer the publisher uses.
type sender interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// Producer represents a Kafka producer.
type Producer struct {
	client sender
}

// New creates a Producer writing to cfg.Topic. Messages are partitioned by
// key so a board's events stay ordered.
func New(cfg config.Kafka) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	client.Writer.Balancer = &kafka.Hash{}
	client.Writer.RequiredAcks = kafka.RequireOne
	client.Writer.BatchTimeout = 10 * time.Millisecond
	client.Writer.AllowAutoTopicCreation = true

	return &Producer{client: client}
}

// Publish serializes the event to JSON and sends it to Kafka.
// The board name is used as the message key.
func (p *Producer) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Send(ctx, []byte(ev.Board), data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.client.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
