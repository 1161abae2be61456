package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type amqpConn interface {
	Channel() (*amqp.Channel, error)
	IsClosed() bool
	Close() error
}

// Connection wraps an AMQP connection and re-dials it when the broker has
// dropped it.
type Connection struct {
	url    string
	logger *zap.Logger
	dial   func(url string) (amqpConn, error)

	mu   sync.Mutex
	conn amqpConn
}

func dialAMQP(url string) (amqpConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect dials RabbitMQ, retrying a bounded number of times.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Connection, error) {
	c := &Connection{url: url, logger: logger, dial: dialAMQP}

	var err error
	for i := 0; i < 30; i++ {
		c.conn, err = c.dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			return c, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying", zap.Int("attempt", i+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("could not connect to RabbitMQ after 30 attempts: %w", err)
}

// Channel opens a channel, re-dialing first if the connection is closed.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		c.logger.Warn("RabbitMQ connection is closed, redialing")
		conn, err := c.dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("redial rabbitmq: %w", err)
		}
		c.conn = conn
		c.logger.Info("Reconnected to RabbitMQ")
	}
	return c.conn.Channel()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// DeclareTopology declares a durable topic exchange and, when queue is set,
// a durable queue bound to it with the given routing keys.
func DeclareTopology(ch *amqp.Channel, exchange, queue string, routingKeys ...string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s with %s: %w", queue, exchange, key, err)
		}
	}
	return nil
}
