package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const commitTimeout = 5 * time.Second

type KafkaConsumerConfig struct {
	Brokers           []string
	Topic             string
	GroupID           string
	Partitions        int
	ReplicationFactor int
}

type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer joins a consumer group and hands messages to a Handler one at a time.
type KafkaConsumer struct {
	cfg       KafkaConsumerConfig
	logger    *zap.Logger
	newReader func() messageFetcher
	ensure    func(ctx context.Context) error
}

func NewKafkaConsumer(cfg KafkaConsumerConfig, logger *zap.Logger) *KafkaConsumer {
	c := &KafkaConsumer{cfg: cfg, logger: logger}
	c.newReader = func() messageFetcher {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
			// 새 그룹은 최신 메시지부터 읽음
			StartOffset:    kafka.LastOffset,
			CommitInterval: 0,
		})
	}
	c.ensure = func(ctx context.Context) error {
		return EnsureTopic(ctx, cfg.Brokers, cfg.Topic, cfg.Partitions, cfg.ReplicationFactor)
	}
	return c
}

// Run ensures the topic exists, then consumes until ctx is done.
func (c *KafkaConsumer) Run(ctx context.Context, h Handler) error {
	if err := c.ensure(ctx); err != nil {
		return fmt.Errorf("ensure topic %s: %w", c.cfg.Topic, err)
	}

	reader := c.newReader()
	defer reader.Close()

	c.logger.Info("Kafka consumer started",
		zap.String("topic", c.cfg.Topic),
		zap.String("group_id", c.cfg.GroupID))

	return consume(ctx, reader, h, c.logger)
}

// consume processes strictly one message at a time. The offset is committed
// whether or not the handler succeeded, so a failed message is not redelivered.
func consume(ctx context.Context, reader messageFetcher, h Handler, logger *zap.Logger) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Kafka consumer stopped")
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ErrSubscriberClosed
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		}
		logger.Debug("Processing message", fields...)

		if err := h(ctx, Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
		}); err != nil {
			logger.Error("Error processing message, dropping it", append(fields, zap.Error(err))...)
		}

		// 종료 중이어도 처리한 메시지는 커밋
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = reader.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			logger.Error("Error committing message", append(fields, zap.Error(err))...)
		}
		if ctx.Err() != nil {
			logger.Info("Kafka consumer stopped")
			return nil
		}
	}
}

// EnsureTopic creates the topic through the cluster controller if it is absent.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions, replication int) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if partitions < 1 {
		partitions = 1
	}
	if replication < 1 {
		replication = 1
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}
