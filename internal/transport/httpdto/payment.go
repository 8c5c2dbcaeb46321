package httpdto

import "github.com/shopspring/decimal"

// RegisterPaymentRequest is used for POST /v1/payments
type RegisterPaymentRequest struct {
	SaleOrderID string          `json:"sale_order_id" binding:"required"`
	Method      string          `json:"method" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
}
