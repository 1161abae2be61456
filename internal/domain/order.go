package domain

import (
	"math"
	"time"
)

// MaxQuantity matches the INTEGER quantity column.
const MaxQuantity = math.MaxInt32

type Order struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	BookID     string     `json:"bookId"`
	Quantity   int        `json:"quantity"`
	CreatedAt  time.Time  `json:"createdAt"`
	ModifiedAt time.Time  `json:"modifiedAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
	CreatedBy  *string    `json:"createdBy"`
	ModifiedBy *string    `json:"modifiedBy"`
	DeletedBy  *string    `json:"deletedBy"`
}

type CreateOrderRequest struct {
	BookID   string `json:"bookId"   binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=2147483647"`
}

type UpdateOrderRequest struct {
	BookID   *string `json:"bookId"`
	Quantity *int    `json:"quantity" binding:"omitempty,min=1,max=2147483647"`
}
