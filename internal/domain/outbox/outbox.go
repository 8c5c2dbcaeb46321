package outbox

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPublished, StatusFailed:
		return true
	}
	return false
}

// OutboxEvent is a domain event persisted next to the business data it describes.
// Only the status, retry and claim columns change after insert.
type OutboxEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Type          string         `gorm:"type:varchar(100);not null;index" json:"type"`
	AggregateType *string        `gorm:"type:varchar(50)" json:"aggregate_type,omitempty"`
	AggregateID   *string        `gorm:"type:varchar(64)" json:"aggregate_id,omitempty"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Status        Status         `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_outbox_status_deliver,priority:1" json:"status"`
	DeliverAfter  *time.Time     `gorm:"index:idx_outbox_status_deliver,priority:2" json:"deliver_after,omitempty"`
	RetryCount    int            `gorm:"not null;default:0" json:"retry_count"`
	LastError     *string        `gorm:"type:text" json:"last_error,omitempty"`
	ClaimToken    *uuid.UUID     `gorm:"type:uuid;index" json:"-"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName returns the database table name
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// Due reports whether the event may be picked up at now.
func (e OutboxEvent) Due(now time.Time) bool {
	return e.DeliverAfter == nil || !e.DeliverAfter.After(now)
}

// Filter narrows dispatcher and admin queries.
type Filter struct {
	Status Status
	Type   string
	Limit  int
}

type StatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Published  int64 `json:"published"`
	Failed     int64 `json:"failed"`
}

func (c *StatusCounts) Add(status Status, n int64) {
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusProcessing:
		c.Processing += n
	case StatusPublished:
		c.Published += n
	case StatusFailed:
		c.Failed += n
	}
}

type TypeCounts struct {
	Type string `json:"type"`
	StatusCounts
}

type DayCounts struct {
	Day string `json:"day"`
	StatusCounts
}

// DayKey formats t as the UTC calendar day used by the daily series.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DaySeries accumulates per-day status counts.
type DaySeries map[string]*StatusCounts

func (s DaySeries) Add(day string, status Status, n int64) {
	c, ok := s[day]
	if !ok {
		c = &StatusCounts{}
		s[day] = c
	}
	c.Add(status, n)
}

// Sorted returns the series ordered by day ascending.
func (s DaySeries) Sorted() []DayCounts {
	out := make([]DayCounts, 0, len(s))
	for day, c := range s {
		out = append(out, DayCounts{Day: day, StatusCounts: *c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
