package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, in service.PlaceOrderInput) (*service.PlacementResult, error)
	GetOrder(ctx context.Context, id, actor string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id, actor string, req domain.UpdateOrderRequest) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id, actor string) error
}

type OrderHandler struct {
	orderService OrderAPI
	logger       *zap.Logger
}

func NewOrderHandler(orderService OrderAPI, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, logger: logger}
}

// CreateOrder answers 201 with the enriched event once the order is stored,
// whether or not enrichment or publishing succeeded.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), service.PlaceOrderInput{
		UserID:   middleware.GetUserID(c),
		BookID:   req.BookID,
		Quantity: req.Quantity,
		Token:    middleware.GetToken(c),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuantity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		h.logger.Error("Failed to create order",
			zap.String("user_id", middleware.GetUserID(c)),
			zap.String("book_id", req.BookID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create order",
		})
		return
	}

	c.JSON(http.StatusCreated, result.Event)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		h.fail(c, orderID, "get", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req domain.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), orderID, middleware.GetUserID(c), req)
	if err != nil {
		h.fail(c, orderID, "update", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID := c.Param("id")

	if err := h.orderService.DeleteOrder(c.Request.Context(), orderID, middleware.GetUserID(c)); err != nil {
		h.fail(c, orderID, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) fail(c *gin.Context, orderID, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to modify this order"})
	case errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to "+op+" order",
			zap.String("order_id", orderID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op + " order"})
	}
}

// Routes mounts /orders; every route needs a token.
func (h *OrderHandler) Routes(r gin.IRouter, authn gin.HandlerFunc) {
	g := r.Group("/orders", authn)
	g.POST("", h.CreateOrder)
	g.GET("", h.ListOrders)
	g.GET("/:id", h.GetOrder)
	g.PUT("/:id", h.UpdateOrder)
	g.DELETE("/:id", h.DeleteOrder)
}
