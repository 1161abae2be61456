package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/events"
	"go.uber.org/zap"
)

var (
	ErrMalformedEvent = errors.New("malformed order event")
	ErrNoRecipient    = errors.New("event has no recipient email")
)

// DeliveryError marks a notification that was rendered or sent unsuccessfully.
type DeliveryError struct {
	OrderID   string
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver order %s to %q: %v", e.OrderID, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Notifier struct {
	renderer *Renderer
	sender   Sender
	logger   *zap.Logger
}

func NewNotifier(renderer *Renderer, sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{renderer: renderer, sender: sender, logger: logger}
}

// Deliver renders and sends one confirmation. Each call sends again; there is no dedup.
func (n *Notifier) Deliver(ctx context.Context, e domain.EnrichedOrderEvent) error {
	fail := func(err error) error {
		n.logger.Error("Order notification failed",
			zap.String("order_id", e.ID),
			zap.String("stage", string(domain.StageDeliveryFailed)),
			zap.Error(err))
		return &DeliveryError{OrderID: e.ID, Recipient: e.User.Email, Err: err}
	}

	if e.User.Email == "" {
		return fail(ErrNoRecipient)
	}

	msg, err := n.renderer.Render(e)
	if err != nil {
		return fail(err)
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fail(err)
	}

	n.logger.Info("Order notification sent",
		zap.String("order_id", e.ID),
		zap.String("recipient", e.User.Email),
		zap.String("stage", string(domain.StageDelivered)))
	return nil
}

// Handle is the consumer-side events.Handler for enriched order messages.
func (n *Notifier) Handle(ctx context.Context, msg events.Message) error {
	var e domain.EnrichedOrderEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	return n.Deliver(ctx, e)
}
