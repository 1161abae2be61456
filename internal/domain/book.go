package domain

import (
	"time"
)

type Book struct {
	ID           string     `dynamodbav:"book_id"                 json:"id"`
	Title        string     `dynamodbav:"title"                   json:"title"`
	Author       string     `dynamodbav:"author"                  json:"author"`
	TitleSearch  string     `dynamodbav:"title_search"            json:"-"`
	AuthorSearch string     `dynamodbav:"author_search"           json:"-"`
	CreatedAt    time.Time  `dynamodbav:"created_at"              json:"createdAt"`
	ModifiedAt   time.Time  `dynamodbav:"modified_at"             json:"modifiedAt"`
	DeletedAt    *time.Time `dynamodbav:"deleted_at,omitempty"    json:"deletedAt"`
	CreatedBy    *string    `dynamodbav:"created_by,omitempty"    json:"createdBy"`
	ModifiedBy   *string    `dynamodbav:"modified_by,omitempty"   json:"modifiedBy"`
	DeletedBy    *string    `dynamodbav:"deleted_by,omitempty"    json:"deletedBy"`
}

type CreateBookRequest struct {
	Title  string `json:"title"  binding:"required"`
	Author string `json:"author" binding:"required"`
}

type UpdateBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

// BookQuery는 목록 조회 조건입니다
type BookQuery struct {
	Page   int
	Limit  int
	Search string
}

type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type BookPage struct {
	Data []Book   `json:"data"`
	Meta PageMeta `json:"meta"`
}

// BookDetail is a book with its creator resolved from the auth service.
type BookDetail struct {
	Book
	CreatedBy *UserProfile `json:"createdBy"`
}
