package inventory

import (
	"time"

	"github.com/google/uuid"
)

type Store struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	ManagerID *uuid.UUID `gorm:"type:uuid" json:"manager_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Stock tracks on-hand quantity and the portion reserved for cleared sales per store and variant.
type Stock struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_store_variant,priority:1" json:"store_id"`
	ProductVariantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_store_variant,priority:2" json:"product_variant_id"`
	Quantity         int       `gorm:"not null;default:0" json:"quantity"`
	Reserved         int       `gorm:"not null;default:0" json:"reserved"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}
