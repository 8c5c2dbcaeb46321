package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleStoreManager Role = "STORE_MANAGER"
	RoleBiller       Role = "BILLER"
	RoleReseller     Role = "RESELLER"
)

// User is the minimal projection of the identity service kept locally for notification targeting.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Role      Role      `gorm:"type:varchar(30);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResellerProfile carries the credit line a reseller may draw on to clear sales before full payment.
type ResellerProfile struct {
	UserID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreditLimit        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"credit_limit"`
	OutstandingBalance decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"outstanding_balance"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
