package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type channelOpener interface {
	Channel() (*amqp.Channel, error)
}

// RabbitPublisher reopens its channel on the next publish once the broker
// has closed it.
type RabbitPublisher struct {
	conn     channelOpener
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewRabbitPublisher(conn *rabbitmq.Connection, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{conn: conn, exchange: exchange, logger: logger}
	if _, err := p.ensureChannel(); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureChannel must be called with mu held.
func (p *RabbitPublisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := rabbitmq.DeclareTopology(ch, p.exchange, ""); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.channel = ch
	return ch, nil
}

// Publish sends value with the order id as the AMQP message id.
func (p *RabbitPublisher) Publish(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err == nil {
		err = ch.PublishWithContext(ctx, p.exchange, RoutingKeyOrderCreated, false, false, amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    key,
			Body:         value,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	}
	if err != nil {
		p.logger.Error("Failed to publish message",
			zap.String("exchange", p.exchange),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("rabbitmq publish to %s: %w", p.exchange, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel.Close()
	}
	return nil
}

// RabbitConsumer reads the order queue with prefetch 1 and acks every delivery
// after the handler returns, success or not.
type RabbitConsumer struct {
	conn     channelOpener
	exchange string
	queue    string
	logger   *zap.Logger
}

func NewRabbitConsumer(conn *rabbitmq.Connection, exchange, queue string, logger *zap.Logger) *RabbitConsumer {
	return &RabbitConsumer{conn: conn, exchange: exchange, queue: queue, logger: logger}
}

func (c *RabbitConsumer) Run(ctx context.Context, h Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, c.exchange, c.queue, RoutingKeyOrderCreated); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("RabbitMQ consumer started", zap.String("queue", c.queue))

	return drain(ctx, deliveries, h, c.logger)
}

type acker interface {
	Ack(tag uint64, multiple bool) error
}

func drain(ctx context.Context, deliveries <-chan amqp.Delivery, h Handler, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriberClosed
			}
			handleDelivery(ctx, d, d.Acknowledger, h, logger)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, ack acker, h Handler, logger *zap.Logger) {
	err := h(ctx, Message{
		Topic:  d.Exchange,
		Offset: int64(d.DeliveryTag),
		Key:    []byte(d.MessageId),
		Value:  d.Body,
	})
	if err != nil {
		logger.Error("Error processing message, dropping it",
			zap.String("exchange", d.Exchange),
			zap.String("key", d.MessageId),
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.Error(err))
	}
	if ack == nil {
		return
	}
	if err := ack.Ack(d.DeliveryTag, false); err != nil {
		logger.Error("Error acking message", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}
