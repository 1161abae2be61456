package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, user_id, book_id, quantity, created_at, modified_at, deleted_at, created_by, modified_by, deleted_by`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and fills in the store-assigned timestamps.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, book_id, quantity, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, modified_at`,
		o.ID, o.UserID, o.BookID, o.Quantity, o.CreatedBy,
	).Scan(&o.CreatedAt, &o.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND deleted_at IS NULL`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// Update applies the non-nil fields of req and stamps the modifier.
func (r *OrderRepository) Update(ctx context.Context, id string, req domain.UpdateOrderRequest, actor string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE orders
		 SET book_id = COALESCE($2, book_id),
		     quantity = COALESCE($3, quantity),
		     modified_by = $4,
		     modified_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+orderColumns,
		id, nullString(req.BookID), nullInt(req.Quantity), actor)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return o, nil
}

// SoftDelete sets deleted_at and deleted_by together; rows are never removed.
func (r *OrderRepository) SoftDelete(ctx context.Context, id, actor string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET deleted_at = NOW(), deleted_by = $2
		 WHERE id = $1 AND deleted_at IS NULL`, id, actor)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                domain.Order
		deletedAt                        sql.NullTime
		createdBy, modifiedBy, deletedBy sql.NullString
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.BookID, &o.Quantity, &o.CreatedAt, &o.ModifiedAt,
		&deletedAt, &createdBy, &modifiedBy, &deletedBy); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		o.DeletedAt = &deletedAt.Time
	}
	o.CreatedBy = stringPtr(createdBy)
	o.ModifiedBy = stringPtr(modifiedBy)
	o.DeletedBy = stringPtr(deletedBy)
	return &o, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
