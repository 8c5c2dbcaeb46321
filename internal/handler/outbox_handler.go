package handler

import (
	"net/http"
	"strings"
	"time"

	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/outbox"
	"salesflow/internal/services"
	"salesflow/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type OutboxHandler struct {
	processor *outbox.Processor
	status    *services.OutboxStatusService
}

func NewOutboxHandler(processor *outbox.Processor, status *services.OutboxStatusService) *OutboxHandler {
	return &OutboxHandler{processor: processor, status: status}
}

func (h *OutboxHandler) Process(c *gin.Context) {
	var req httpdto.ProcessOutboxRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength != 0 {
		badRequest(c, "invalid request")
		return
	}

	n, err := h.processor.RunOnce(c.Request.Context(), outbox.RunOptions{
		Limit:  req.Limit,
		Type:   req.Type,
		Status: outboxdomain.Status(strings.ToUpper(req.Status)),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: int64(n)}))
}

func (h *OutboxHandler) Retry(c *gin.Context) {
	var req httpdto.RetryOutboxRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength != 0 {
		badRequest(c, "invalid request")
		return
	}

	n, err := h.processor.RetryFailed(c.Request.Context(), outbox.RetryOptions{Limit: req.Limit, Type: req.Type})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *OutboxHandler) RequeueStale(c *gin.Context) {
	var req httpdto.RequeueStaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "older_than_minutes must be a positive number")
		return
	}

	n, err := h.processor.RequeueStale(c.Request.Context(), time.Duration(req.OlderThanMinutes)*time.Minute, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *OutboxHandler) Status(c *gin.Context) {
	counts, err := h.status.Counts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(counts))
}

func (h *OutboxHandler) StatusByType(c *gin.Context) {
	var types []string
	for _, raw := range c.QueryArray("types") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	counts, err := h.status.CountsByType(c.Request.Context(), types)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(counts))
}

func (h *OutboxHandler) Series(c *gin.Context) {
	start, err := parseTime(c.Query("start"))
	if err != nil {
		badRequest(c, "invalid start")
		return
	}
	end, err := parseTime(c.Query("end"))
	if err != nil {
		badRequest(c, "invalid end")
		return
	}

	series, err := h.status.Series(c.Request.Context(), start, end, c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(series))
}

func (h *OutboxHandler) Failed(c *gin.Context) {
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}

	failed, err := h.status.RecentFailed(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]httpdto.FailedEventDTO, 0, len(failed))
	for _, e := range failed {
		dto := httpdto.FailedEventDTO{
			ID:            e.ID.String(),
			Type:          e.Type,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			RetryCount:    e.RetryCount,
			LastError:     e.LastError,
			CreatedAt:     formatTime(e.CreatedAt),
			UpdatedAt:     formatTime(e.UpdatedAt),
		}
		if e.DeliverAfter != nil {
			at := formatTime(*e.DeliverAfter)
			dto.DeliverAfter = &at
		}
		items = append(items, dto)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"events": items}))
}
