package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/clients"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/events"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/handler"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/notification"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/config"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/httpserver"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/logger"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/obs"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/postgres"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/rabbitmq"
	pkgtls "github.com/cloud-wave-best-zizon/bookstore-platform/pkg/tls"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "order-service"

func main() {
	// Config 로드
	cfg, err := config.LoadOrders()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	// Logger 초기화
	zlog, err := logger.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		zlog.Fatal("Failed to init tracer", zap.Error(err))
	}

	tlsConfig, tlsSource, err := pkgtls.Load(ctx, cfg.TLSEnabled, cfg.SpireSocketPath, zlog)
	if err != nil {
		zlog.Fatal("Failed to load TLS config", zap.Error(err))
	}
	defer tlsSource.Close()
	go tlsSource.Watch(ctx, 30*time.Second)

	// PostgreSQL 연결 및 마이그레이션
	db, err := postgres.Connect(ctx, cfg.DatabaseDSN, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.RunMigrations(ctx, db, postgres.ServiceOrders); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}

	// 이벤트 채널 구성
	publisher, subscriber, closeChannel := buildChannel(ctx, cfg, zlog)
	defer closeChannel()

	// 알림 워커 (채널 구독 → SMTP 발송)
	var worker *events.Worker
	if cfg.ConsumerEnabled && subscriber != nil {
		sender, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			FromName: cfg.SMTPFromName,
			Timeout:  cfg.SMTPTimeout,
		})
		if err != nil {
			zlog.Fatal("Failed to create SMTP sender", zap.Error(err))
		}
		notifier := notification.NewNotifier(notification.NewRenderer(cfg.NotifyTimezone, zlog), sender, zlog)

		worker = events.NewWorker("order-notifications", subscriber, notifier.Handle, cfg.ConsumerRestartDelay, zlog)
		worker.Start()
	} else {
		zlog.Info("Notification worker disabled",
			zap.Bool("notifier_enabled", cfg.ConsumerEnabled),
			zap.String("event_channel", cfg.EventChannel))
	}

	// Repository, Service, Handler 초기화
	httpClient := clients.NewHTTPClient(cfg.EnrichmentTimeout)
	enricher := clients.NewEnricher(
		clients.NewAuthClient(cfg.AuthURL, httpClient),
		clients.NewBookClient(cfg.BookURL, httpClient),
		zlog,
	)
	orderRepo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, enricher, publisher, zlog)
	orderHandler := handler.NewOrderHandler(orderService, zlog)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// Gin Router 설정
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zlog))

	orderHandler.Routes(router, middleware.JWTAuth(issuer))
	if worker != nil {
		router.GET("/health", handler.Health(worker))
	} else {
		router.GET("/health", handler.Health())
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	if err := httpserver.Run(srv, tlsConfig, cfg.ShutdownTimeout, zlog); err != nil {
		zlog.Error("Server stopped with error", zap.Error(err))
	}

	// 처리 중인 메시지를 마친 뒤 워커 종료
	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	if err := shutdownTracer(shutdownCtx); err != nil {
		zlog.Warn("Failed to flush traces", zap.Error(err))
	}
}

// buildChannel returns the publisher, the subscriber (nil when the channel is
// disabled) and a func that releases both.
func buildChannel(ctx context.Context, cfg *config.Orders, zlog *zap.Logger) (events.Publisher, events.Subscriber, func()) {
	switch cfg.EventChannel {
	case config.ChannelKafka:
		producer := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zlog)
		consumer := events.NewKafkaConsumer(events.KafkaConsumerConfig{
			Brokers:           cfg.KafkaBrokers,
			Topic:             cfg.KafkaTopic,
			GroupID:           cfg.KafkaGroupID,
			Partitions:        cfg.KafkaPartitions,
			ReplicationFactor: cfg.KafkaReplication,
		}, zlog)
		zlog.Info("Using Kafka event channel",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.String("group_id", cfg.KafkaGroupID))
		return producer, consumer, func() {
			if err := producer.Close(); err != nil {
				zlog.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}

	case config.ChannelRabbitMQ:
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		publisher, err := events.NewRabbitPublisher(conn, cfg.RabbitMQExchange, zlog)
		if err != nil {
			zlog.Fatal("Failed to create RabbitMQ publisher", zap.Error(err))
		}
		consumer := events.NewRabbitConsumer(conn, cfg.RabbitMQExchange, cfg.RabbitMQQueue, zlog)
		zlog.Info("Using RabbitMQ event channel",
			zap.String("exchange", cfg.RabbitMQExchange),
			zap.String("queue", cfg.RabbitMQQueue))
		return publisher, consumer, func() {
			_ = publisher.Close()
			if err := conn.Close(); err != nil {
				zlog.Warn("Failed to close RabbitMQ connection", zap.Error(err))
			}
		}

	default:
		zlog.Warn("EVENT_CHANNEL=none, order events will not be published")
		return events.NoopPublisher{}, nil, func() {}
	}
}
