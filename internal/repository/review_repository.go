package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrReviewNotFound = errors.New("review not found")

const reviewColumns = `id, user_id, book_id, rating, comment, created_at, modified_at, deleted_at, created_by, modified_by, deleted_by`

// PgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ReviewRepository struct {
	db PgxQuerier
}

func NewReviewRepository(db PgxQuerier) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO reviews (id, user_id, book_id, rating, comment, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, modified_at`,
		rv.ID, rv.UserID, rv.BookID, rv.Rating, rv.Comment, rv.CreatedBy,
	).Scan(&rv.CreatedAt, &rv.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	rv, err := scanReview(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return rv, nil
}

func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string, includeDeleted bool) ([]domain.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE book_id = $1`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, q, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	return reviews, rows.Err()
}

func (r *ReviewRepository) Update(ctx context.Context, id string, patch domain.ReviewPatch, actor string) (*domain.Review, error) {
	rv, err := scanReview(r.db.QueryRow(ctx,
		`UPDATE reviews
		 SET rating = COALESCE($2, rating),
		     comment = COALESCE($3, comment),
		     modified_by = $4,
		     modified_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+reviewColumns,
		id, patch.Rating, patch.Comment, actor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return rv, nil
}

// SoftDelete stamps deleted_at and deleted_by together and returns the deleted record.
func (r *ReviewRepository) SoftDelete(ctx context.Context, id, actor string) (*domain.Review, error) {
	rv, err := scanReview(r.db.QueryRow(ctx,
		`UPDATE reviews SET deleted_at = NOW(), deleted_by = $2
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+reviewColumns, id, actor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to delete review: %w", err)
	}
	return rv, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.UserID, &rv.BookID, &rv.Rating, &rv.Comment,
		&rv.CreatedAt, &rv.ModifiedAt, &rv.DeletedAt, &rv.CreatedBy, &rv.ModifiedBy, &rv.DeletedBy)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}
