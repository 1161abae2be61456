package clients

import (
	"context"
	"sync"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"go.uber.org/zap"
)

type UserLookup interface {
	GetUser(ctx context.Context, id, token string) (*domain.UserProfile, error)
}

type BookLookup interface {
	GetBook(ctx context.Context, id, token string) (*BookInfo, error)
}

// Enricher resolves display fields for an order from the auth and book services.
type Enricher struct {
	users  UserLookup
	books  BookLookup
	logger *zap.Logger
}

func NewEnricher(users UserLookup, books BookLookup, logger *zap.Logger) *Enricher {
	return &Enricher{users: users, books: books, logger: logger}
}

// Resolve never fails. Each lookup is attempted once; a failed lookup leaves
// its two fields empty and is reported in UserErr or BookErr.
func (e *Enricher) Resolve(ctx context.Context, userID, bookID, token string) domain.Enrichment {
	var (
		out domain.Enrichment
		wg  sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		u, err := e.users.GetUser(ctx, userID, token)
		if err != nil {
			out.UserErr = err
			e.logger.Warn("User lookup failed, continuing without user details",
				zap.String("user_id", userID),
				zap.Error(err))
			return
		}
		out.User = domain.UserSnapshot{Username: u.Username, Email: u.Email}
	}()
	go func() {
		defer wg.Done()
		b, err := e.books.GetBook(ctx, bookID, token)
		if err != nil {
			out.BookErr = err
			e.logger.Warn("Book lookup failed, continuing without book details",
				zap.String("book_id", bookID),
				zap.Error(err))
			return
		}
		out.Book = domain.BookSnapshot{Title: b.Title, Author: b.Author}
	}()
	wg.Wait()

	return out
}
