package handlers

import (
	"context"
	"fmt"

	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/events"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentAdvancer re-evaluates a sale after a confirmed payment.
type PaymentAdvancer interface {
	HandlePaymentConfirmed(ctx context.Context, orderID uuid.UUID, payload events.PaymentConfirmedPayload) (bool, error)
}

type PaymentHandler struct {
	sales  PaymentAdvancer
	logger *logger.Logger
}

func NewPaymentHandler(sales PaymentAdvancer, l *logger.Logger) *PaymentHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &PaymentHandler{sales: sales, logger: l}
}

func (h *PaymentHandler) Name() string { return "payment" }

// TryHandle returns false for a payload without an order reference; retrying it can never succeed.
func (h *PaymentHandler) TryHandle(ctx context.Context, e *outboxdomain.OutboxEvent) (bool, error) {
	if e.Type != events.EventTypePaymentConfirmed {
		return false, nil
	}
	payload, orderID, err := events.DecodePaymentConfirmed(e.Payload)
	if err != nil {
		h.logger.WithContext(ctx).Logger.Warn("skipping payment confirmation with malformed payload",
			zap.String("event_id", e.ID.String()), zap.Error(err))
		return false, nil
	}

	advanced, err := h.sales.HandlePaymentConfirmed(ctx, orderID, payload)
	if err != nil {
		return true, fmt.Errorf("advance sale %s: %w", orderID, err)
	}
	if advanced {
		h.logger.WithContext(ctx).Infof("sale %s advanced to fulfillment", orderID)
	}
	return true, nil
}
