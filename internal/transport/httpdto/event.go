package httpdto

import (
	"encoding/json"
	"time"
)

// PublishEventRequest is used for POST /v1/events
type PublishEventRequest struct {
	Type          string          `json:"type" binding:"required"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	AggregateType string          `json:"aggregate_type,omitempty"`
	AggregateID   string          `json:"aggregate_id,omitempty"`
	DeliverAfter  *time.Time      `json:"deliver_after,omitempty"`
}

type PublishEventResponse struct {
	EventID string `json:"event_id"`
}
