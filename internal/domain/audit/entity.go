package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Record is a lightweight trace of a procurement-side domain event.
type Record struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"event_id"`
	EventType     string         `gorm:"type:varchar(100);not null" json:"event_type"`
	AggregateType *string        `gorm:"type:varchar(50)" json:"aggregate_type,omitempty"`
	AggregateID   *string        `gorm:"type:varchar(64)" json:"aggregate_id,omitempty"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (Record) TableName() string {
	return "procurement_audit_logs"
}
