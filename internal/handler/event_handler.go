package handler

import (
	"encoding/json"
	"net/http"

	"salesflow/internal/services"
	"salesflow/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	publisher *services.EventPublisher
}

func NewEventHandler(publisher *services.EventPublisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

func (h *EventHandler) Publish(c *gin.Context) {
	var req httpdto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		badRequest(c, "payload must be JSON")
		return
	}

	opts := []services.PublishOption{services.WithAggregate(req.AggregateType, req.AggregateID)}
	if req.DeliverAfter != nil {
		opts = append(opts, services.WithDeliverAfter(*req.DeliverAfter))
	}

	var payload interface{}
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	id, err := h.publisher.Publish(c.Request.Context(), req.Type, payload, opts...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.PublishEventResponse{EventID: id.String()}))
}
