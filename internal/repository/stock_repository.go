package repository

import (
	"context"
	"time"

	"salesflow/internal/domain/inventory"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresStockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &PostgresStockRepository{db: db}
}

func (r *PostgresStockRepository) CreateStore(ctx context.Context, s *inventory.Store) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return mapError(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresStockRepository) GetStore(ctx context.Context, id uuid.UUID) (inventory.Store, error) {
	var s inventory.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return inventory.Store{}, mapError(err)
	}
	return s, nil
}

func (r *PostgresStockRepository) Reserve(ctx context.Context, storeID, productVariantID uuid.UUID, qty int) error {
	row := inventory.Stock{
		ID:               uuid.New(),
		StoreID:          storeID,
		ProductVariantID: productVariantID,
		Quantity:         0,
		Reserved:         qty,
		UpdatedAt:        time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "product_variant_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"reserved":   gorm.Expr("stocks.reserved + ?", qty),
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(&row).Error
}

func (r *PostgresStockRepository) Release(ctx context.Context, storeID, productVariantID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.Stock{}).
		Where("store_id = ? AND product_variant_id = ?", storeID, productVariantID).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("GREATEST(quantity - ?, 0)", qty),
			"reserved":   gorm.Expr("GREATEST(reserved - ?, 0)", qty),
			"updated_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return salesflow_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresStockRepository) Get(ctx context.Context, storeID, productVariantID uuid.UUID) (inventory.Stock, error) {
	var s inventory.Stock
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_variant_id = ?", storeID, productVariantID).
		First(&s).Error
	if err != nil {
		return inventory.Stock{}, mapError(err)
	}
	return s, nil
}

func (r *PostgresStockRepository) Upsert(ctx context.Context, s *inventory.Stock) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "reserved", "updated_at"}),
		}).
		Create(s).Error
}
