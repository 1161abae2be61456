package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 30
	retryInterval   = 2 * time.Second
)

// Connect opens a database/sql handle over lib/pq, retrying until the server answers.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	var db *sql.DB
	err := retry(ctx, logger, func() error {
		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectPool opens a pgx connection pool.
func ConnectPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry(ctx, logger, func() error {
		var err error
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// ConnectGorm opens a gorm handle using the pgx-backed postgres dialector.
func ConnectGorm(ctx context.Context, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	err := retry(ctx, logger, func() error {
		var err error
		db, err = openGorm(ctx, gormpg.Open(dsn))
		return err
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openGorm makes one connection attempt and closes the pool if it fails.
func openGorm(ctx context.Context, dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true, DisableAutomaticPing: true})
	if err != nil {
		if db != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func retry(ctx context.Context, logger *zap.Logger, fn func() error) error {
	var err error
	for i := 0; i < connectAttempts; i++ {
		if err = fn(); err == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", i+1))
			return nil
		}
		logger.Warn("Failed to connect to PostgreSQL, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("backoff", retryInterval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}
