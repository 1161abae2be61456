package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/clients"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/graphql"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/config"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/httpserver"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/logger"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/obs"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/postgres"
	pkgtls "github.com/cloud-wave-best-zizon/bookstore-platform/pkg/tls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName   = "review-service"
	lookupTimeout = 5 * time.Second
)

func main() {
	// Config 로드
	cfg, err := config.LoadReviews()
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

	// PostgreSQL (pgx pool) 연결 및 마이그레이션
	pool, err := postgres.ConnectPool(ctx, cfg.DatabaseDSN, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	if err := postgres.RunPoolMigrations(ctx, pool, postgres.ServiceReviews); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Repository, Service, Resolver 초기화
	reviewService := service.NewReviewService(repository.NewReviewRepository(pool), zlog)
	httpClient := clients.NewHTTPClient(lookupTimeout)
	resolver := graphql.NewResolver(
		reviewService,
		clients.NewAuthClient(cfg.AuthURL, httpClient),
		clients.NewBookClient(cfg.BookURL, httpClient),
	)
	schema, err := resolver.Schema()
	if err != nil {
		zlog.Fatal("Failed to build GraphQL schema", zap.Error(err))
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	router := graphql.NewRouter(graphql.NewHandler(schema, issuer, zlog), zlog)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, cfg.ServiceName),
	}
	if err := httpserver.Run(srv, tlsConfig, cfg.ShutdownTimeout, zlog); err != nil {
		zlog.Error("Server stopped with error", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	if err := shutdownTracer(shutdownCtx); err != nil {
		zlog.Warn("Failed to flush traces", zap.Error(err))
	}
}
