package handler

import (
	"net/http"
	"strings"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/services"
	"salesflow/internal/transport/httpdto"
	"salesflow/internal/workflow"

	"github.com/gin-gonic/gin"
)

type WorkflowHandler struct {
	sales        *services.SaleService
	fulfillments *services.FulfillmentService
}

func NewWorkflowHandler(sales *services.SaleService, fulfillments *services.FulfillmentService) *WorkflowHandler {
	return &WorkflowHandler{sales: sales, fulfillments: fulfillments}
}

func (h *WorkflowHandler) SaleWorkflow(c *gin.Context) {
	orderID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}
	snap, err := h.sales.Snapshot(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(snap))
}

func (h *WorkflowHandler) ApplySaleEvent(c *gin.Context) {
	orderID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}
	var req httpdto.SaleWorkflowEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	snap, err := h.sales.ApplyEvent(c.Request.Context(), orderID, workflow.SaleEvent{
		Type:           workflow.SaleEventType(strings.ToUpper(req.Type)),
		Method:         req.Method,
		Amount:         req.Amount,
		ApprovedAmount: req.ApprovedAmount,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(snap))
}

func (h *WorkflowHandler) FulfillmentWorkflow(c *gin.Context) {
	orderID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}
	snap, err := h.fulfillments.Snapshot(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(snap))
}

func (h *WorkflowHandler) UpdateFulfillmentStatus(c *gin.Context) {
	orderID, err := parseUUID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}
	var req httpdto.FulfillmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	snap, err := h.fulfillments.UpdateStatus(c.Request.Context(), orderID, fulfillment.Status(strings.ToUpper(req.Status)), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(snap))
}
