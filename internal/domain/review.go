package domain

import (
	"time"
)

type Review struct {
	ID         string
	UserID     string
	BookID     string
	Rating     int
	Comment    string
	CreatedAt  time.Time
	ModifiedAt time.Time
	DeletedAt  *time.Time
	CreatedBy  *string
	ModifiedBy *string
	DeletedBy  *string
}

type ReviewPatch struct {
	Rating  *int
	Comment *string
}
