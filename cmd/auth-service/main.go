package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/handler"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/config"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/httpserver"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/logger"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/obs"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/postgres"
	pkgtls "github.com/cloud-wave-best-zizon/bookstore-platform/pkg/tls"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "auth-service"

func main() {
	// Config 로드
	cfg, err := config.LoadAuth()
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

	// PostgreSQL (gorm) 연결
	db, err := postgres.ConnectGorm(ctx, cfg.DatabaseDSN, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	userRepo := repository.NewUserRepository(db)
	if err := userRepo.Migrate(); err != nil {
		zlog.Fatal("Failed to migrate users table", zap.Error(err))
	}

	// 로그인 시도 제한 (Redis 미설정 시 비활성화)
	var limiter service.AttemptLimiter = repository.NoopLoginAttempts{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("Redis unreachable, login limiter will fail open", zap.Error(err))
		}
		limiter = repository.NewLoginAttempts(rdb, cfg.LoginLockoutWindow)
	} else {
		zlog.Info("REDIS_ADDR not set, login limiter disabled")
	}

	// Repository, Service, Handler 초기화
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(userRepo, limiter, issuer, cfg.LoginMaxAttempts, zlog)
	authHandler := handler.NewAuthHandler(authService, zlog)

	// Gin Router 설정
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zlog))

	authHandler.Routes(router, middleware.JWTAuth(issuer))
	router.GET("/health", handler.Health())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	if err := httpserver.Run(srv, tlsConfig, cfg.ShutdownTimeout, zlog); err != nil {
		zlog.Error("Server stopped with error", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	if err := shutdownTracer(shutdownCtx); err != nil {
		zlog.Warn("Failed to flush traces", zap.Error(err))
	}
}
