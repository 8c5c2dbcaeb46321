package events

import (
	"encoding/json"
	"fmt"

	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationTarget is one recipient of a NOTIFICATION event.
type NotificationTarget struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type NotificationPayload struct {
	Notifications []NotificationTarget `json:"notifications"`
}

type PaymentConfirmedPayload struct {
	PaymentID   string           `json:"paymentId,omitempty"`
	SaleOrderID string           `json:"saleOrderId"`
	Channel     string           `json:"channel,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

type SaleClearedPayload struct {
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	StoreID     string          `json:"storeId"`
}

type FulfillmentStatusChangedPayload struct {
	OrderID       string `json:"orderId"`
	FulfillmentID string `json:"fulfillmentId"`
	Status        string `json:"status"`
	Type          string `json:"type"`
}

// DecodeNotification parses a NOTIFICATION payload. A payload without a notifications
// array is malformed.
func DecodeNotification(raw []byte) (NotificationPayload, error) {
	var probe struct {
		Notifications *[]NotificationTarget `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return NotificationPayload{}, fmt.Errorf("%w: %v", salesflow_errors.ErrMalformedPayload, err)
	}
	if probe.Notifications == nil {
		return NotificationPayload{}, fmt.Errorf("%w: missing notifications", salesflow_errors.ErrMalformedPayload)
	}
	return NotificationPayload{Notifications: *probe.Notifications}, nil
}

// DecodePaymentConfirmed parses a PAYMENT_CONFIRMED payload and returns the order it refers to.
func DecodePaymentConfirmed(raw []byte) (PaymentConfirmedPayload, uuid.UUID, error) {
	var p PaymentConfirmedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, uuid.Nil, fmt.Errorf("%w: %v", salesflow_errors.ErrMalformedPayload, err)
	}
	if p.SaleOrderID == "" {
		return p, uuid.Nil, fmt.Errorf("%w: missing saleOrderId", salesflow_errors.ErrMalformedPayload)
	}
	orderID, err := uuid.Parse(p.SaleOrderID)
	if err != nil {
		return p, uuid.Nil, fmt.Errorf("%w: saleOrderId: %v", salesflow_errors.ErrMalformedPayload, err)
	}
	return p, orderID, nil
}
