package repository

import (
	"context"

	"gorm.io/gorm"
)

type PostgresStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Outbox() OutboxRepository { return NewOutboxRepository(s.db) }
func (s *PostgresStore) Sales() SaleRepository { return NewSaleRepository(s.db) }
func (s *PostgresStore) Fulfillments() FulfillmentRepository { return NewFulfillmentRepository(s.db) }
func (s *PostgresStore) Stock() StockRepository { return NewStockRepository(s.db) }
func (s *PostgresStore) Users() UserRepository { return NewUserRepository(s.db) }
func (s *PostgresStore) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }
func (s *PostgresStore) Audit() AuditRepository { return NewAuditRepository(s.db) }

// WithinTx runs fn in a transaction; nested calls become savepoints.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
