package service

import (
	"context"
	"errors"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewStore interface {
	Create(ctx context.Context, rv *domain.Review) error
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Review, error)
	ListByBook(ctx context.Context, bookID string, includeDeleted bool) ([]domain.Review, error)
	Update(ctx context.Context, id string, patch domain.ReviewPatch, actor string) (*domain.Review, error)
	SoftDelete(ctx context.Context, id, actor string) (*domain.Review, error)
}

type ReviewService struct {
	reviews ReviewStore
	logger  *zap.Logger
}

func NewReviewService(reviews ReviewStore, logger *zap.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, logger: logger}
}

func (s *ReviewService) Reviews(ctx context.Context, bookID string, includeDeleted bool) ([]domain.Review, error) {
	reviews, err := s.reviews.ListByBook(ctx, bookID, includeDeleted)
	if err != nil {
		s.logger.Error("Failed to list reviews", zap.String("book_id", bookID), zap.Error(err))
		return nil, err
	}
	return reviews, nil
}

func (s *ReviewService) Review(ctx context.Context, id string, includeDeleted bool) (*domain.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id, includeDeleted)
	if err != nil {
		if !errors.Is(err, repository.ErrReviewNotFound) {
			s.logger.Error("Failed to get review", zap.String("review_id", id), zap.Error(err))
		}
		return nil, mapReviewErr(err)
	}
	return rv, nil
}

func (s *ReviewService) CreateReview(ctx context.Context, actor, bookID string, rating int, comment string) (*domain.Review, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if !validRating(rating) {
		return nil, ErrInvalidRating
	}

	rv := &domain.Review{
		ID:        uuid.NewString(),
		UserID:    actor,
		BookID:    bookID,
		Rating:    rating,
		Comment:   comment,
		CreatedBy: &actor,
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		s.logger.Error("Failed to save review", zap.String("book_id", bookID), zap.Error(err))
		return nil, errors.Join(ErrPersistence, err)
	}

	s.logger.Info("Review created",
		zap.String("review_id", rv.ID),
		zap.String("book_id", bookID),
		zap.String("user_id", actor))
	return rv, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, actor, id string, patch domain.ReviewPatch) (*domain.Review, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if patch.Rating != nil && !validRating(*patch.Rating) {
		return nil, ErrInvalidRating
	}
	if err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}

	rv, err := s.reviews.Update(ctx, id, patch, actor)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	s.logger.Info("Review updated", zap.String("review_id", id), zap.String("user_id", actor))
	return rv, nil
}

// DeleteReview soft-deletes and hands back the record as it looks after deletion.
func (s *ReviewService) DeleteReview(ctx context.Context, actor, id string) (*domain.Review, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}

	rv, err := s.reviews.SoftDelete(ctx, id, actor)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	s.logger.Info("Review soft-deleted", zap.String("review_id", id), zap.String("user_id", actor))
	return rv, nil
}

func (s *ReviewService) authorize(ctx context.Context, actor, id string) error {
	rv, err := s.reviews.GetByID(ctx, id, false)
	if err != nil {
		return mapReviewErr(err)
	}
	if rv.UserID != actor {
		return ErrForbidden
	}
	return nil
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}

func mapReviewErr(err error) error {
	if errors.Is(err, repository.ErrReviewNotFound) {
		return ErrReviewNotFound
	}
	return err
}
