package repository

import (
	"fmt"

	"salesflow/internal/domain/audit"
	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/notification"
	"salesflow/internal/domain/outbox"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by this service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.ResellerProfile{},
		&inventory.Store{},
		&inventory.Stock{},
		&sale.SaleOrder{},
		&sale.Payment{},
		&sale.ConsumerSale{},
		&sale.ConsumerSaleItem{},
		&sale.ResellerSale{},
		&sale.ResellerSaleItem{},
		&sale.TransitionLog{},
		&fulfillment.Fulfillment{},
		&fulfillment.TransitionLog{},
		&notification.Notification{},
		&audit.Record{},
		&outbox.OutboxEvent{},
	}
}

// InitSchema creates the tables and the constraints AutoMigrate cannot express.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// Status columns are varchar, constrained here.
	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE outbox_events ADD CONSTRAINT chk_outbox_status
				CHECK (status IN ('PENDING', 'PROCESSING', 'PUBLISHED', 'FAILED'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE sale_orders ADD CONSTRAINT chk_sale_order_phase
				CHECK (phase IN ('SALE', 'FULFILLMENT'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE stocks ADD CONSTRAINT chk_stock_non_negative
				CHECK (quantity >= 0 AND reserved >= 0);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_claimable
			ON outbox_events (created_at)
			WHERE status IN ('PENDING', 'FAILED');`,
	}

	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply schema constraint: %w", err)
		}
	}
	return nil
}
