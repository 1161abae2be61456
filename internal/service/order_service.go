package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Update(ctx context.Context, id string, req domain.UpdateOrderRequest, actor string) (*domain.Order, error)
	SoftDelete(ctx context.Context, id, actor string) error
}

type OrderEnricher interface {
	Resolve(ctx context.Context, userID, bookID, token string) domain.Enrichment
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type PlaceOrderInput struct {
	UserID   string
	BookID   string
	Quantity int
	Token    string
}

// PlacementResult carries the event plus how far it got down the pipeline.
type PlacementResult struct {
	Event      domain.EnrichedOrderEvent
	Stage      domain.EventStage
	Enrichment domain.Enrichment
	PublishErr error
}

type OrderService struct {
	orders    OrderStore
	enricher  OrderEnricher
	publisher EventPublisher
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewOrderService(orders OrderStore, enricher OrderEnricher, publisher EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		enricher:  enricher,
		publisher: publisher,
		tracer:    otel.Tracer("bookstore/order-service"),
		logger:    logger,
	}
}

// CreateOrder persists, enriches and publishes. Only the persist step can fail
// the call; once the order is stored the caller always gets the event back.
// The request context's cancellation is detached so a client disconnect does
// not abort the downstream calls.
func (s *OrderService) CreateOrder(ctx context.Context, in PlaceOrderInput) (*PlacementResult, error) {
	if in.Quantity < 1 || in.Quantity > domain.MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "OrderService.CreateOrder",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("book.id", in.BookID),
		))
	defer span.End()

	creator := in.UserID
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		BookID:    in.BookID,
		Quantity:  in.Quantity,
		CreatedBy: &creator,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		s.logger.Error("Failed to save order",
			zap.String("user_id", in.UserID),
			zap.String("book_id", in.BookID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("stage", string(domain.StageCreated)))

	enrichment := s.enricher.Resolve(ctx, in.UserID, in.BookID, in.Token)
	if enrichment.Degraded() {
		span.SetAttributes(attribute.Bool("order.enrichment_degraded", true))
	}

	result := &PlacementResult{
		Event:      domain.NewEnrichedOrderEvent(order, enrichment),
		Stage:      domain.StageEnriched,
		Enrichment: enrichment,
	}

	if err := s.publish(ctx, result.Event); err != nil {
		result.PublishErr = &PublishError{OrderID: order.ID, Err: err}
		span.RecordError(err)
		s.logger.Error("Failed to publish order event, notification will not be sent",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return result, nil
	}

	result.Stage = domain.StagePublished
	s.logger.Info("Order event published",
		zap.String("order_id", order.ID),
		zap.String("stage", string(domain.StagePublished)),
		zap.Bool("enrichment_degraded", enrichment.Degraded()))
	return result, nil
}

func (s *OrderService) publish(ctx context.Context, event domain.EnrichedOrderEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.publish")
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publisher.Publish(ctx, event.ID, payload)
}

// GetOrder hides orders owned by someone else behind ErrOrderNotFound.
func (s *OrderService) GetOrder(ctx context.Context, id, actor string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapOrderErr(err)
	}
	if o.UserID != actor {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// UpdateOrder is owner-only and never republishes the event.
func (s *OrderService) UpdateOrder(ctx context.Context, id, actor string, req domain.UpdateOrderRequest) (*domain.Order, error) {
	if req.Quantity != nil && (*req.Quantity < 1 || *req.Quantity > domain.MaxQuantity) {
		return nil, ErrInvalidQuantity
	}
	if err := s.authorize(ctx, id, actor); err != nil {
		return nil, err
	}

	o, err := s.orders.Update(ctx, id, req, actor)
	if err != nil {
		return nil, mapOrderErr(err)
	}
	s.logger.Info("Order updated", zap.String("order_id", id), zap.String("user_id", actor))
	return o, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id, actor string) error {
	if err := s.authorize(ctx, id, actor); err != nil {
		return err
	}
	if err := s.orders.SoftDelete(ctx, id, actor); err != nil {
		return mapOrderErr(err)
	}
	s.logger.Info("Order soft-deleted", zap.String("order_id", id), zap.String("user_id", actor))
	return nil
}

func (s *OrderService) authorize(ctx context.Context, id, actor string) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return mapOrderErr(err)
	}
	if o.UserID != actor {
		s.logger.Warn("Rejected order change by non-owner",
			zap.String("order_id", id),
			zap.String("user_id", actor))
		return ErrForbidden
	}
	return nil
}

func mapOrderErr(err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	return err
}
