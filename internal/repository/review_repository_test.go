package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

type fakePgx struct {
	sql  string
	args []any
	row  pgx.Row
	err  error
}

func (f *fakePgx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.CommandTag{}, f.err
}

func (f *fakePgx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	return nil, f.err
}

func (f *fakePgx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func reviewRow(deleted bool) scanFunc {
	return func(dest ...any) error {
		now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
		*dest[0].(*string) = "r1"
		*dest[1].(*string) = "u1"
		*dest[2].(*string) = "b1"
		*dest[3].(*int) = 4
		*dest[4].(*string) = "good"
		*dest[5].(*time.Time) = now
		*dest[6].(*time.Time) = now
		if deleted {
			*dest[7].(**time.Time) = &now
			actor := "u1"
			*dest[10].(**string) = &actor
		}
		return nil
	}
}

func TestReviewRepository_GetByID(t *testing.T) {
	db := &fakePgx{row: reviewRow(false)}
	repo := NewReviewRepository(db)

	rv, err := repo.GetByID(context.Background(), "r1", false)
	require.NoError(t, err)
	assert.Equal(t, 4, rv.Rating)
	assert.Contains(t, db.sql, "deleted_at IS NULL")

	_, err = repo.GetByID(context.Background(), "r1", true)
	require.NoError(t, err)
	assert.NotContains(t, db.sql, "deleted_at IS NULL")
}

func TestReviewRepository_NotFound(t *testing.T) {
	noRows := scanFunc(func(...any) error { return pgx.ErrNoRows })
	repo := NewReviewRepository(&fakePgx{row: noRows})
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing", false)
	assert.ErrorIs(t, err, ErrReviewNotFound)

	rating := 2
	_, err = repo.Update(ctx, "missing", domain.ReviewPatch{Rating: &rating}, "u1")
	assert.ErrorIs(t, err, ErrReviewNotFound)

	_, err = repo.SoftDelete(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestReviewRepository_SoftDeleteStampsBoth(t *testing.T) {
	db := &fakePgx{row: reviewRow(true)}
	repo := NewReviewRepository(db)

	rv, err := repo.SoftDelete(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.Contains(t, db.sql, "deleted_at = NOW(), deleted_by = $2")
	assert.Equal(t, []any{"r1", "u1"}, db.args)
	require.NotNil(t, rv.DeletedAt)
	assert.Equal(t, "u1", *rv.DeletedBy)
}

func TestReviewRepository_CreateWrapsError(t *testing.T) {
	boom := errors.New("unique violation")
	repo := NewReviewRepository(&fakePgx{row: scanFunc(func(...any) error { return boom })})

	err := repo.Create(context.Background(), &domain.Review{ID: "r1"})
	assert.ErrorIs(t, err, boom)
}

func TestReviewRepository_ListQueryError(t *testing.T) {
	db := &fakePgx{err: errors.New("pool closed")}
	repo := NewReviewRepository(db)

	_, err := repo.ListByBook(context.Background(), "b1", true)
	assert.Error(t, err)
	assert.Contains(t, db.sql, "ORDER BY created_at DESC")
	assert.NotContains(t, db.sql, "deleted_at IS NULL")
}
