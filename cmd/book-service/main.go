package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/clients"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/handler"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/config"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/httpserver"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/logger"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/obs"
	pkgtls "github.com/cloud-wave-best-zizon/bookstore-platform/pkg/tls"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName          = "book-service"
	creatorLookupTimeout = 5 * time.Second
)

func main() {
	// Config 로드
	cfg, err := config.LoadCatalog()
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

	// DynamoDB 클라이언트 초기화
	dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		zlog.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}

	// Repository, Service, Handler 초기화
	bookRepo := repository.NewBookRepository(dynamoClient, cfg.BookTableName)
	authClient := clients.NewAuthClient(cfg.AuthURL, clients.NewHTTPClient(creatorLookupTimeout))
	bookService := service.NewBookService(bookRepo, authClient, zlog)
	bookHandler := handler.NewBookHandler(bookService, zlog)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// Gin Router 설정
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zlog))

	bookHandler.Routes(router, middleware.JWTAuth(issuer))
	router.GET("/health", handler.Health())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
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
