package events

import (
	"context"
	"errors"
)

const RoutingKeyOrderCreated = "order.created"

var ErrSubscriberClosed = errors.New("subscriber closed")

// Message is a channel-agnostic view of one delivered record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. A returned error is logged and the message is dropped.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// Subscriber runs a receive loop until ctx is cancelled or the transport fails.
type Subscriber interface {
	Run(ctx context.Context, h Handler) error
}

// NoopPublisher drops every message; used when EVENT_CHANNEL=none.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
