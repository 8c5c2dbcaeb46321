package httpdto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleWorkflowEventRequest is used for POST /v1/orders/:id/workflow/events
type SaleWorkflowEventRequest struct {
	Type           string           `json:"type" binding:"required"`
	Method         string           `json:"method,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ApprovedAmount *decimal.Decimal `json:"approved_amount,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
}

// FulfillmentStatusRequest is used for PUT /v1/orders/:id/fulfillment/status
type FulfillmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note,omitempty"`
}
