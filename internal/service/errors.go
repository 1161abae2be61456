package service

import (
	"errors"
	"fmt"
)

var (
	ErrPersistence        = errors.New("failed to persist record")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("not allowed to modify this resource")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrUserNotFound       = errors.New("user not found")
	ErrBookNotFound       = errors.New("book not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 2147483647")
	ErrReviewNotFound     = errors.New("review not found")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
)

// PublishError records that an order was stored but its event never reached the channel.
type PublishError struct {
	OrderID string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish order %s: %v", e.OrderID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
