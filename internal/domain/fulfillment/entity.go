package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status is the legacy fulfillment status exposed to clients.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Type string

const (
	TypePickup   Type = "PICKUP"
	TypeDelivery Type = "DELIVERY"
	TypeService  Type = "SERVICE"
)

type Fulfillment struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SaleOrderID         uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"sale_order_id"`
	Type                Type           `gorm:"type:varchar(20);not null;default:'PICKUP'" json:"type"`
	Status              Status         `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	WorkflowState       *string        `gorm:"type:varchar(50)" json:"workflow_state,omitempty"`
	WorkflowContext     datatypes.JSON `gorm:"type:jsonb" json:"workflow_context,omitempty"`
	DeliveryPersonnelID *uuid.UUID     `gorm:"type:uuid" json:"delivery_personnel_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TransitionLog is the append-only history of fulfilment workflow moves.
type TransitionLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FulfillmentID uuid.UUID      `gorm:"type:uuid;not null;index:idx_fulfillment_transition,priority:1" json:"fulfillment_id"`
	FromState     *string        `gorm:"type:varchar(50)" json:"from_state"`
	ToState       string         `gorm:"type:varchar(50);not null" json:"to_state"`
	Event         *string        `gorm:"type:varchar(100)" json:"event,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt    time.Time      `gorm:"not null;index:idx_fulfillment_transition,priority:2" json:"occurred_at"`
}

func (TransitionLog) TableName() string {
	return "fulfillment_transition_logs"
}
