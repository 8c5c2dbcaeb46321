package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"salesflow/internal/domain/audit"
	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/notification"
	"salesflow/internal/domain/outbox"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
)

// Store groups the repositories that share one unit of work.
// Repositories obtained inside WithinTx run on the transaction.
type Store interface {
	Outbox() OutboxRepository
	Sales() SaleRepository
	Fulfillments() FulfillmentRepository
	Stock() StockRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Audit() AuditRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type OutboxRepository interface {
	Create(ctx context.Context, e *outbox.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (outbox.OutboxEvent, error)
	// ListDueIDs returns ids in f.Status whose deliverAfter is unset or not after now, oldest first.
	ListDueIDs(ctx context.Context, f outbox.Filter, now time.Time) ([]uuid.UUID, error)
	// Claim moves ids still in from to PROCESSING under token and returns how many rows it took.
	Claim(ctx context.Context, ids []uuid.UUID, from outbox.Status, token uuid.UUID, now time.Time) (int64, error)
	ListClaimed(ctx context.Context, token uuid.UUID) ([]outbox.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, deliverAfter time.Time, now time.Time) error
	// ResetFailed requeues up to f.Limit FAILED events of f.Type, oldest first.
	ResetFailed(ctx context.Context, f outbox.Filter, now time.Time) (int64, error)
	ResetStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (outbox.StatusCounts, error)
	CountByType(ctx context.Context, types []string, maxTypes int) ([]outbox.TypeCounts, error)
	DailySeries(ctx context.Context, start, end time.Time, eventType string) ([]outbox.DayCounts, error)
	ListRecentFailed(ctx context.Context, limit int) ([]outbox.OutboxEvent, error)
}

type SaleRepository interface {
	CreateOrder(ctx context.Context, o *sale.SaleOrder) error
	GetOrder(ctx context.Context, id uuid.UUID) (sale.SaleOrder, error)
	// GetOrderForUpdate locks the order row for the rest of the transaction.
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (sale.SaleOrder, error)
	UpdateOrder(ctx context.Context, o *sale.SaleOrder) error

	CreatePayment(ctx context.Context, p *sale.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (sale.Payment, error)
	UpdatePayment(ctx context.Context, p *sale.Payment) error
	SumConfirmedPayments(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)

	CreateConsumerSale(ctx context.Context, s *sale.ConsumerSale) error
	CreateResellerSale(ctx context.Context, s *sale.ResellerSale) error
	// GetAttachedSale returns the consumer or reseller sale of an order, or ErrNotFound.
	GetAttachedSale(ctx context.Context, orderID uuid.UUID) (sale.AttachedSale, error)

	GetResellerProfile(ctx context.Context, userID uuid.UUID) (user.ResellerProfile, error)
	UpsertResellerProfile(ctx context.Context, p *user.ResellerProfile) error

	AppendTransition(ctx context.Context, l *sale.TransitionLog) error
	ListTransitions(ctx context.Context, orderID uuid.UUID) ([]sale.TransitionLog, error)
}

type FulfillmentRepository interface {
	// Create returns ErrAlreadyExists when the order already has a fulfillment.
	Create(ctx context.Context, f *fulfillment.Fulfillment) error
	GetBySaleOrderID(ctx context.Context, orderID uuid.UUID) (fulfillment.Fulfillment, error)
	Update(ctx context.Context, f *fulfillment.Fulfillment) error
	AppendTransition(ctx context.Context, l *fulfillment.TransitionLog) error
	ListTransitions(ctx context.Context, fulfillmentID uuid.UUID) ([]fulfillment.TransitionLog, error)
}

type StockRepository interface {
	CreateStore(ctx context.Context, s *inventory.Store) error
	GetStore(ctx context.Context, id uuid.UUID) (inventory.Store, error)
	// Reserve adds qty to reserved, creating a zero-quantity row when none exists.
	Reserve(ctx context.Context, storeID, productVariantID uuid.UUID, qty int) error
	// Release takes qty off both quantity and reserved once goods leave the store.
	Release(ctx context.Context, storeID, productVariantID uuid.UUID, qty int) error
	Get(ctx context.Context, storeID, productVariantID uuid.UUID) (inventory.Stock, error)
	Upsert(ctx context.Context, s *inventory.Stock) error
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	// ExistingIDs returns the subset of ids that resolve to users.
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type NotificationRepository interface {
	CreateMany(ctx context.Context, items []notification.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error)
}

type AuditRepository interface {
	Create(ctx context.Context, r *audit.Record) error
	ListByEventType(ctx context.Context, eventType string) ([]audit.Record, error)
}
