package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookAPI interface {
	CreateBook(ctx context.Context, req domain.CreateBookRequest, actor string) (*domain.Book, error)
	GetBook(ctx context.Context, bookID, token string) (*domain.BookDetail, error)
	ListBooks(ctx context.Context, q domain.BookQuery) (*domain.BookPage, error)
	UpdateBook(ctx context.Context, bookID string, req domain.UpdateBookRequest, actor string) (*domain.Book, error)
	DeleteBook(ctx context.Context, bookID, actor string) error
}

type BookHandler struct {
	bookService BookAPI
	logger      *zap.Logger
}

func NewBookHandler(bookService BookAPI, logger *zap.Logger) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		logger:      logger,
	}
}

func (h *BookHandler) ListBooks(c *gin.Context) {
	// 잘못된 값은 서비스에서 기본값으로 대체
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.bookService.ListBooks(c.Request.Context(), domain.BookQuery{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		h.logger.Error("Failed to list books", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list books",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *BookHandler) CreateBook(c *gin.Context) {
	var req domain.CreateBookRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	book, err := h.bookService.CreateBook(c.Request.Context(), req, middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("Failed to create book", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create book",
		})
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) GetBook(c *gin.Context) {
	bookID := c.Param("id")

	book, err := h.bookService.GetBook(c.Request.Context(), bookID, middleware.GetToken(c))
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Book not found",
			})
			return
		}

		h.logger.Error("Failed to get book",
			zap.String("book_id", bookID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get book",
		})
		return
	}

	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) UpdateBook(c *gin.Context) {
	bookID := c.Param("id")

	var req domain.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	book, err := h.bookService.UpdateBook(c.Request.Context(), bookID, req, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Book not found",
			})
			return
		}

		h.logger.Error("Failed to update book",
			zap.String("book_id", bookID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update book",
		})
		return
	}

	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID := c.Param("id")

	if err := h.bookService.DeleteBook(c.Request.Context(), bookID, middleware.GetUserID(c)); err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Book not found",
			})
			return
		}

		h.logger.Error("Failed to delete book",
			zap.String("book_id", bookID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete book",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// Routes mounts the catalog routes. Listing is public, everything else needs a token.
func (h *BookHandler) Routes(r gin.IRouter, authn gin.HandlerFunc) {
	books := r.Group("/books")
	books.GET("", h.ListBooks)

	protected := books.Group("", authn)
	protected.POST("", h.CreateBook)
	protected.GET("/:id", h.GetBook)
	protected.PUT("/:id", h.UpdateBook)
	protected.DELETE("/:id", h.DeleteBook)
}
