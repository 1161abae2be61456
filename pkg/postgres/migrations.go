package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ServiceOrders  = "orders"
	ServiceReviews = "reviews"
)

// Execer is satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunMigrations applies the CREATE TABLE statements for a database/sql-backed service.
func RunMigrations(ctx context.Context, db Execer, service string) error {
	stmts, err := migrations(service)
	if err != nil {
		return err
	}
	for _, m := range stmts {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration for %s failed: %w", service, err)
		}
	}
	return nil
}

// RunPoolMigrations is RunMigrations for a pgx pool.
func RunPoolMigrations(ctx context.Context, pool *pgxpool.Pool, service string) error {
	stmts, err := migrations(service)
	if err != nil {
		return err
	}
	for _, m := range stmts {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration for %s failed: %w", service, err)
		}
	}
	return nil
}

func migrations(service string) ([]string, error) {
	switch service {
	case ServiceOrders:
		return []string{
			`CREATE TABLE IF NOT EXISTS orders (
				id UUID PRIMARY KEY,
				user_id VARCHAR(36) NOT NULL,
				book_id VARCHAR(36) NOT NULL,
				quantity INTEGER NOT NULL CHECK (quantity >= 1),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMPTZ,
				created_by VARCHAR(36),
				modified_by VARCHAR(36),
				deleted_by VARCHAR(36)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_user_active ON orders (user_id, created_at DESC) WHERE deleted_at IS NULL`,
		}, nil
	case ServiceReviews:
		return []string{
			`CREATE TABLE IF NOT EXISTS reviews (
				id UUID PRIMARY KEY,
				user_id VARCHAR(36) NOT NULL,
				book_id VARCHAR(36) NOT NULL,
				rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
				comment TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMPTZ,
				created_by VARCHAR(36),
				modified_by VARCHAR(36),
				deleted_by VARCHAR(36)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews (book_id, created_at DESC)`,
		}, nil
	default:
		return nil, fmt.Errorf("no migrations for service %q", service)
	}
}
