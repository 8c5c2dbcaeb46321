package handlers

import (
	"context"
	"fmt"
	"strings"

	"salesflow/internal/domain/audit"
	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/events"
	"salesflow/internal/repository"
)

// AuditHandler keeps a lightweight trail of procurement events.
type AuditHandler struct {
	repo     repository.AuditRepository
	prefixes []string
}

func NewAuditHandler(repo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo, prefixes: events.ProcurementPrefixes}
}

func (h *AuditHandler) Name() string { return "audit" }

func (h *AuditHandler) matches(eventType string) bool {
	for _, p := range h.prefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}

func (h *AuditHandler) TryHandle(ctx context.Context, e *outboxdomain.OutboxEvent) (bool, error) {
	if !h.matches(e.Type) {
		return false, nil
	}
	rec := &audit.Record{
		EventID:       e.ID,
		EventType:     e.Type,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       e.Payload,
	}
	if err := h.repo.Create(ctx, rec); err != nil {
		return true, fmt.Errorf("record audit for %s: %w", e.Type, err)
	}
	return true, nil
}
