package database

import (
	"context"
	"errors"
	"fmt"

	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SeedConfig holds configuration for seeding development data
type SeedConfig struct {
	StoreName      string
	ManagerEmail   string
	BillerEmail    string
	ResellerEmail  string
	CreditLimit    decimal.Decimal
	StockPerItem   int
	ResellerAmount decimal.Decimal
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		StoreName:      "Main Street",
		ManagerEmail:   "manager@salesflow.dev",
		BillerEmail:    "biller@salesflow.dev",
		ResellerEmail:  "reseller@salesflow.dev",
		CreditLimit:    decimal.NewFromInt(5000),
		StockPerItem:   25,
		ResellerAmount: decimal.NewFromInt(1200),
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Manager       *user.User
	Biller        *user.User
	Reseller      *user.User
	Store         *inventory.Store
	Variants      []uuid.UUID
	ResellerOrder *sale.SaleOrder
	ConsumerOrder *sale.SaleOrder
}

// SeedDevelopment writes a store with stock, its staff, a reseller with a credit line and one
// open order per channel. Running it twice returns ErrAlreadyExists.
func SeedDevelopment(ctx context.Context, store repository.Store, cfg *SeedConfig, l *logger.Logger) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}

	result := &SeedResult{}
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if result.Manager, err = seedUser(ctx, tx, cfg.ManagerEmail, "Store Manager", user.RoleStoreManager); err != nil {
			return err
		}
		if result.Biller, err = seedUser(ctx, tx, cfg.BillerEmail, "Front Desk", user.RoleBiller); err != nil {
			return err
		}
		if result.Reseller, err = seedUser(ctx, tx, cfg.ResellerEmail, "Corner Shop Ltd", user.RoleReseller); err != nil {
			return err
		}
		if err := tx.Sales().UpsertResellerProfile(ctx, &user.ResellerProfile{
			UserID:      result.Reseller.ID,
			CreditLimit: cfg.CreditLimit,
		}); err != nil {
			return fmt.Errorf("failed to seed reseller profile: %w", err)
		}

		result.Store = &inventory.Store{Name: cfg.StoreName, ManagerID: &result.Manager.ID}
		if err := tx.Stock().CreateStore(ctx, result.Store); err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
		for range 3 {
			variant := uuid.New()
			result.Variants = append(result.Variants, variant)
			if err := tx.Stock().Upsert(ctx, &inventory.Stock{
				StoreID:          result.Store.ID,
				ProductVariantID: variant,
				Quantity:         cfg.StockPerItem,
			}); err != nil {
				return fmt.Errorf("failed to seed stock: %w", err)
			}
		}

		if result.ResellerOrder, err = seedResellerOrder(ctx, tx, cfg, result); err != nil {
			return err
		}
		result.ConsumerOrder, err = seedConsumerOrder(ctx, tx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("development data seeded",
		zap.String("store_id", result.Store.ID.String()),
		zap.String("reseller_order_id", result.ResellerOrder.ID.String()),
		zap.String("consumer_order_id", result.ConsumerOrder.ID.String()))
	return result, nil
}

func seedUser(ctx context.Context, tx repository.Store, email, name string, role user.Role) (*user.User, error) {
	u := &user.User{ID: uuid.New(), Email: email, Name: name, Role: role}
	err := tx.Users().Create(ctx, u)
	if errors.Is(err, salesflow_errors.ErrAlreadyExists) {
		return nil, fmt.Errorf("user %s already seeded: %w", email, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seed user %s: %w", email, err)
	}
	return u, nil
}

// seedResellerOrder leaves the order in PAYMENT_INITIATED so a partial payment clears it on credit.
func seedResellerOrder(ctx context.Context, tx repository.Store, cfg *SeedConfig, result *SeedResult) (*sale.SaleOrder, error) {
	state := string(workflow.SalePaymentInitiated)
	order := &sale.SaleOrder{
		Type:          sale.TypeReseller,
		Status:        sale.StatusPending,
		Phase:         sale.PhaseSale,
		TotalAmount:   cfg.ResellerAmount,
		WorkflowState: &state,
		StoreID:       result.Store.ID,
		BillerID:      result.Biller.ID,
	}
	if err := tx.Sales().CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to seed reseller order: %w", err)
	}

	unit := cfg.ResellerAmount.Div(decimal.NewFromInt(4))
	rs := &sale.ResellerSale{
		SaleOrderID: order.ID,
		ResellerID:  result.Reseller.ID,
		Items: []sale.ResellerSaleItem{
			{ProductVariantID: result.Variants[0], Quantity: 3, UnitPrice: unit},
			{ProductVariantID: result.Variants[1], Quantity: 1, UnitPrice: unit},
		},
	}
	if err := tx.Sales().CreateResellerSale(ctx, rs); err != nil {
		return nil, fmt.Errorf("failed to seed reseller sale: %w", err)
	}
	return order, nil
}

func seedConsumerOrder(ctx context.Context, tx repository.Store, result *SeedResult) (*sale.SaleOrder, error) {
	order := &sale.SaleOrder{
		Type:        sale.TypeConsumer,
		Status:      sale.StatusPending,
		Phase:       sale.PhaseSale,
		TotalAmount: decimal.NewFromInt(45),
		StoreID:     result.Store.ID,
		BillerID:    result.Biller.ID,
	}
	if err := tx.Sales().CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to seed consumer order: %w", err)
	}

	cs := &sale.ConsumerSale{
		SaleOrderID:  order.ID,
		CustomerName: "Walk-in customer",
		Items: []sale.ConsumerSaleItem{
			{ProductVariantID: result.Variants[2], Quantity: 1, UnitPrice: decimal.NewFromInt(45)},
		},
	}
	if err := tx.Sales().CreateConsumerSale(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to seed consumer sale: %w", err)
	}
	return order, nil
}
