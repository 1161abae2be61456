package service

import (
	"context"
	"errors"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type BookStore interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	List(ctx context.Context, q domain.BookQuery) ([]domain.Book, int, error)
	Update(ctx context.Context, id string, req domain.UpdateBookRequest, actor string) (*domain.Book, error)
	SoftDelete(ctx context.Context, id, actor string) error
}

type CreatorLookup interface {
	GetUser(ctx context.Context, id, token string) (*domain.UserProfile, error)
}

type BookService struct {
	books  BookStore
	users  CreatorLookup
	logger *zap.Logger
	now    func() time.Time
}

func NewBookService(books BookStore, users CreatorLookup, logger *zap.Logger) *BookService {
	return &BookService{
		books:  books,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

func (s *BookService) CreateBook(ctx context.Context, req domain.CreateBookRequest, actor string) (*domain.Book, error) {
	now := s.now().UTC()
	book := &domain.Book{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Author:     req.Author,
		CreatedAt:  now,
		ModifiedAt: now,
		CreatedBy:  &actor,
	}

	if err := s.books.Create(ctx, book); err != nil {
		s.logger.Error("Failed to save book",
			zap.String("book_id", book.ID),
			zap.Error(err))
		return nil, errors.Join(ErrPersistence, err)
	}

	s.logger.Info("Book created successfully",
		zap.String("book_id", book.ID),
		zap.String("user_id", actor))

	return book, nil
}

// GetBook resolves the creator only when a token is available; a failed
// creator lookup leaves CreatedBy nil.
func (s *BookService) GetBook(ctx context.Context, bookID, token string) (*domain.BookDetail, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, mapBookErr(err)
	}

	detail := &domain.BookDetail{Book: *book}
	if book.CreatedBy == nil || token == "" || s.users == nil {
		return detail, nil
	}

	creator, err := s.users.GetUser(ctx, *book.CreatedBy, token)
	if err != nil {
		s.logger.Warn("Failed to resolve book creator",
			zap.String("book_id", bookID),
			zap.String("user_id", *book.CreatedBy),
			zap.Error(err))
		return detail, nil
	}
	detail.CreatedBy = creator
	return detail, nil
}

func (s *BookService) ListBooks(ctx context.Context, q domain.BookQuery) (*domain.BookPage, error) {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	books, total, err := s.books.List(ctx, q)
	if err != nil {
		return nil, err
	}

	return &domain.BookPage{
		Data: books,
		Meta: domain.PageMeta{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: (total + q.Limit - 1) / q.Limit,
		},
	}, nil
}

func (s *BookService) UpdateBook(ctx context.Context, bookID string, req domain.UpdateBookRequest, actor string) (*domain.Book, error) {
	book, err := s.books.Update(ctx, bookID, req, actor)
	if err != nil {
		return nil, mapBookErr(err)
	}

	s.logger.Info("Book updated",
		zap.String("book_id", bookID),
		zap.String("user_id", actor))
	return book, nil
}

func (s *BookService) DeleteBook(ctx context.Context, bookID, actor string) error {
	if err := s.books.SoftDelete(ctx, bookID, actor); err != nil {
		return mapBookErr(err)
	}

	s.logger.Info("Book soft-deleted",
		zap.String("book_id", bookID),
		zap.String("user_id", actor))
	return nil
}

func mapBookErr(err error) error {
	if errors.Is(err, repository.ErrBookNotFound) {
		return ErrBookNotFound
	}
	return err
}
