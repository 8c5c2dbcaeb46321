package repository

import (
	"context"
	"errors"

	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresSaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &PostgresSaleRepository{db: db}
}

func (r *PostgresSaleRepository) CreateOrder(ctx context.Context, o *sale.SaleOrder) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return mapError(r.db.WithContext(ctx).Create(o).Error)
}

func (r *PostgresSaleRepository) GetOrder(ctx context.Context, id uuid.UUID) (sale.SaleOrder, error) {
	var o sale.SaleOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return sale.SaleOrder{}, mapError(err)
	}
	return o, nil
}

func (r *PostgresSaleRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (sale.SaleOrder, error) {
	var o sale.SaleOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return sale.SaleOrder{}, mapError(err)
	}
	return o, nil
}

func (r *PostgresSaleRepository) UpdateOrder(ctx context.Context, o *sale.SaleOrder) error {
	res := r.db.WithContext(ctx).
		Model(&sale.SaleOrder{}).
		Where("id = ?", o.ID).
		Updates(map[string]interface{}{
			"status":           o.Status,
			"phase":            o.Phase,
			"total_amount":     o.TotalAmount,
			"workflow_state":   o.WorkflowState,
			"workflow_context": o.WorkflowContext,
			"updated_at":       gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return salesflow_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSaleRepository) CreatePayment(ctx context.Context, p *sale.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return mapError(r.db.WithContext(ctx).Create(p).Error)
}

func (r *PostgresSaleRepository) GetPayment(ctx context.Context, id uuid.UUID) (sale.Payment, error) {
	var p sale.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return sale.Payment{}, mapError(err)
	}
	return p, nil
}

func (r *PostgresSaleRepository) UpdatePayment(ctx context.Context, p *sale.Payment) error {
	return mapError(r.db.WithContext(ctx).Save(p).Error)
}

func (r *PostgresSaleRepository) SumConfirmedPayments(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&sale.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("sale_order_id = ? AND status = ?", orderID, sale.PaymentConfirmed).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *PostgresSaleRepository) CreateConsumerSale(ctx context.Context, s *sale.ConsumerSale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].ConsumerSaleID = s.ID
	}
	return mapError(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresSaleRepository) CreateResellerSale(ctx context.Context, s *sale.ResellerSale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].ResellerSaleID = s.ID
	}
	return mapError(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresSaleRepository) GetAttachedSale(ctx context.Context, orderID uuid.UUID) (sale.AttachedSale, error) {
	var consumer sale.ConsumerSale
	err := r.db.WithContext(ctx).Preload("Items").Where("sale_order_id = ?", orderID).First(&consumer).Error
	if err == nil {
		return consumer.Attached(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return sale.AttachedSale{}, err
	}

	var reseller sale.ResellerSale
	err = r.db.WithContext(ctx).Preload("Items").Where("sale_order_id = ?", orderID).First(&reseller).Error
	if err != nil {
		return sale.AttachedSale{}, mapError(err)
	}
	return reseller.Attached(), nil
}

func (r *PostgresSaleRepository) GetResellerProfile(ctx context.Context, userID uuid.UUID) (user.ResellerProfile, error) {
	var p user.ResellerProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return user.ResellerProfile{}, mapError(err)
	}
	return p, nil
}

func (r *PostgresSaleRepository) UpsertResellerProfile(ctx context.Context, p *user.ResellerProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"credit_limit", "outstanding_balance", "updated_at"}),
		}).
		Create(p).Error
}

func (r *PostgresSaleRepository) AppendTransition(ctx context.Context, l *sale.TransitionLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *PostgresSaleRepository) ListTransitions(ctx context.Context, orderID uuid.UUID) ([]sale.TransitionLog, error) {
	var logs []sale.TransitionLog
	err := r.db.WithContext(ctx).
		Where("sale_order_id = ?", orderID).
		Order("occurred_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
