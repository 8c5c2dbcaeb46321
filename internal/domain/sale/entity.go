package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the externally visible legacy order status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusPaid      Status = "PAID"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
)

// Phase only ever moves from SALE to FULFILLMENT.
type Phase string

const (
	PhaseSale        Phase = "SALE"
	PhaseFulfillment Phase = "FULFILLMENT"
)

type Type string

const (
	TypeConsumer Type = "CONSUMER"
	TypeReseller Type = "RESELLER"
)

type SaleOrder struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Type            Type            `gorm:"type:varchar(20);not null" json:"type"`
	Status          Status          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Phase           Phase           `gorm:"type:varchar(20);not null;default:'SALE'" json:"phase"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	WorkflowState   *string         `gorm:"type:varchar(50)" json:"workflow_state,omitempty"`
	WorkflowContext datatypes.JSON  `gorm:"type:jsonb" json:"workflow_context,omitempty"`
	StoreID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"store_id"`
	BillerID        uuid.UUID       `gorm:"type:uuid;not null" json:"biller_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type PaymentChannel string

const (
	ChannelConsumer PaymentChannel = "CONSUMER"
	ChannelReseller PaymentChannel = "RESELLER"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SaleOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_order_id"`
	Channel     PaymentChannel  `gorm:"type:varchar(20);not null" json:"channel"`
	Method      string          `gorm:"type:varchar(30)" json:"method"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status      PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Reference   string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ConsumerSale struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	SaleOrderID  uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"sale_order_id"`
	CustomerName string             `gorm:"type:varchar(255)" json:"customer_name"`
	Items        []ConsumerSaleItem `gorm:"foreignKey:ConsumerSaleID" json:"items"`
	CreatedAt    time.Time          `json:"created_at"`
}

type ConsumerSaleItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ConsumerSaleID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"consumer_sale_id"`
	ProductVariantID uuid.UUID       `gorm:"type:uuid;not null" json:"product_variant_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_price"`
}

type ResellerSale struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	SaleOrderID uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"sale_order_id"`
	ResellerID  uuid.UUID          `gorm:"type:uuid;not null;index" json:"reseller_id"`
	Items       []ResellerSaleItem `gorm:"foreignKey:ResellerSaleID" json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
}

type ResellerSaleItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ResellerSaleID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"reseller_sale_id"`
	ProductVariantID uuid.UUID       `gorm:"type:uuid;not null" json:"product_variant_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_price"`
}

type LineItem struct {
	ProductVariantID uuid.UUID
	Quantity         int
}

// AttachedSale is whichever consumer or reseller sale hangs off an order, flattened.
type AttachedSale struct {
	Channel    PaymentChannel
	ResellerID *uuid.UUID
	Items      []LineItem
}

func (c ConsumerSale) Attached() AttachedSale {
	items := make([]LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, LineItem{ProductVariantID: it.ProductVariantID, Quantity: it.Quantity})
	}
	return AttachedSale{Channel: ChannelConsumer, Items: items}
}

func (r ResellerSale) Attached() AttachedSale {
	items := make([]LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, LineItem{ProductVariantID: it.ProductVariantID, Quantity: it.Quantity})
	}
	resellerID := r.ResellerID
	return AttachedSale{Channel: ChannelReseller, ResellerID: &resellerID, Items: items}
}

// TransitionLog is the append-only history of sale workflow moves.
type TransitionLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SaleOrderID uuid.UUID      `gorm:"type:uuid;not null;index:idx_sale_transition_order,priority:1" json:"sale_order_id"`
	FromState   *string        `gorm:"type:varchar(50)" json:"from_state"`
	ToState     string         `gorm:"type:varchar(50);not null" json:"to_state"`
	Event       *string        `gorm:"type:varchar(100)" json:"event,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt  time.Time      `gorm:"not null;index:idx_sale_transition_order,priority:2" json:"occurred_at"`
}

func (TransitionLog) TableName() string {
	return "sale_order_transition_logs"
}
