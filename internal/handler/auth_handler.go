package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthAPI interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.UserProfile, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type AuthHandler struct {
	authService AuthAPI
	logger      *zap.Logger
}

func NewAuthHandler(authService AuthAPI, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	profile, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailExists) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Email already exists",
			})
			return
		}

		h.logger.Error("Failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to register user",
		})
		return
	}

	c.JSON(http.StatusCreated, profile)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		case errors.Is(err, service.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed login attempts"})
		default:
			h.logger.Error("Failed to login", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, ok := h.lookup(c, middleware.GetUserID(c))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, meResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	})
}

// GetUser serves the profile lookup used by the other services.
func (h *AuthHandler) GetUser(c *gin.Context) {
	u, ok := h.lookup(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u.Profile())
}

func (h *AuthHandler) lookup(c *gin.Context, id string) (*domain.User, bool) {
	u, err := h.authService.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return nil, false
		}
		h.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
		return nil, false
	}
	return u, true
}

// Routes mounts /auth. Register and login are public.
func (h *AuthHandler) Routes(r gin.IRouter, authn gin.HandlerFunc) {
	g := r.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/me", authn, h.Me)
	g.GET("/users/:id", authn, h.GetUser)
}
