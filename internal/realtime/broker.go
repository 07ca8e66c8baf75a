package realtime

import (
	"context"
	"log/slog"
)

// Publisher is what services use to emit events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker moves events from publishers to the hub, possibly across instances.
type Broker interface {
	Publisher
	Run(ctx context.Context) error
	Close() error
}

// Emit builds and publishes an event, logging instead of failing.
// Realtime delivery is best effort and never fails the calling operation.
func Emit(ctx context.Context, p Publisher, userID, eventType string, data any) {
	if p == nil {
		return
	}
	ev, err := NewEvent(userID, eventType, data)
	if err != nil {
		slog.Error("failed to encode realtime event", "type", eventType, "error", err)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.Error("failed to publish realtime event", "type", eventType, "user_id", userID, "error", err)
	}
}

// LocalBroker delivers straight into the hub of this process.
type LocalBroker struct {
	hub *Hub
	// OnPublish is called for every published event.
	OnPublish func(ev Event)
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, ev Event) error {
	if b.OnPublish != nil {
		b.OnPublish(ev)
	}
	b.hub.Deliver(ev)
	return nil
}

// Run blocks until ctx is done; there is nothing to consume locally.
func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBroker) Close() error {
	return nil
}
