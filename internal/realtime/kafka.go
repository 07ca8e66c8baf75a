package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by the broker.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used by the broker.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBroker publishes events to a topic and feeds every instance's hub
// from it. Each instance reads with its own consumer group so all of them
// see every event and deliver to the connections they hold.
type KafkaBroker struct {
	hub    *Hub
	reader MessageReader
	writer MessageWriter

	OnPublish func(ev Event)
}

// NewKafkaBroker connects to brokers using topic for realtime fan-out.
func NewKafkaBroker(hub *Hub, brokers []string, topic string) *KafkaBroker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "thrive-realtime-" + uuid.NewString(),
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaBroker(hub, reader, writer)
}

func newKafkaBroker(hub *Hub, reader MessageReader, writer MessageWriter) *KafkaBroker {
	return &KafkaBroker{hub: hub, reader: reader, writer: writer}
}

// Publish writes ev keyed by user so one user's events stay ordered.
func (b *KafkaBroker) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if b.OnPublish != nil {
		b.OnPublish(ev)
	}
	return nil
}

// Run consumes the topic until ctx is cancelled, delivering into the hub.
func (b *KafkaBroker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			slog.Error("realtime fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			slog.Warn("realtime message decode failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		b.hub.Deliver(ev)
	}
}

func (b *KafkaBroker) Close() error {
	return errors.Join(b.reader.Close(), b.writer.Close())
}
