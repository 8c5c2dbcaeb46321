package httpdto

// ProcessOutboxRequest is used for POST /v1/admin/outbox/process
type ProcessOutboxRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

// RetryOutboxRequest is used for POST /v1/admin/outbox/retry
type RetryOutboxRequest struct {
	Limit int    `json:"limit,omitempty"`
	Type  string `json:"type,omitempty"`
}

// RequeueStaleRequest is used for POST /v1/admin/outbox/requeue-stale
type RequeueStaleRequest struct {
	OlderThanMinutes int `json:"older_than_minutes" binding:"required,min=1"`
	Limit            int `json:"limit,omitempty"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

// FailedEventDTO is one row of GET /v1/admin/outbox/failed
type FailedEventDTO struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	AggregateType *string `json:"aggregate_type,omitempty"`
	AggregateID   *string `json:"aggregate_id,omitempty"`
	RetryCount    int     `json:"retry_count"`
	LastError     *string `json:"last_error,omitempty"`
	DeliverAfter  *string `json:"deliver_after,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}
