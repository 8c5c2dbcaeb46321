package handler

import (
	"net/http"

	"salesflow/internal/services"
	"salesflow/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	sales *services.SaleService
}

func NewPaymentHandler(sales *services.SaleService) *PaymentHandler {
	return &PaymentHandler{sales: sales}
}

func (h *PaymentHandler) Register(c *gin.Context) {
	var req httpdto.RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	orderID, err := parseUUID(req.SaleOrderID)
	if err != nil {
		badRequest(c, "invalid sale_order_id")
		return
	}

	payment, err := h.sales.RegisterPayment(c.Request.Context(), services.RegisterPaymentInput{
		SaleOrderID: orderID,
		Method:      req.Method,
		Amount:      req.Amount,
		Reference:   req.Reference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(payment))
}

func (h *PaymentHandler) Confirm(c *gin.Context) {
	paymentID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid payment id")
		return
	}
	payment, err := h.sales.ConfirmPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(payment))
}
