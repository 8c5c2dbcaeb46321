package repository

import (
	"context"

	"salesflow/internal/domain/fulfillment"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresFulfillmentRepository struct {
	db *gorm.DB
}

func NewFulfillmentRepository(db *gorm.DB) FulfillmentRepository {
	return &PostgresFulfillmentRepository{db: db}
}

// Create inserts with ON CONFLICT DO NOTHING so a lost race does not abort the surrounding transaction.
func (r *PostgresFulfillmentRepository) Create(ctx context.Context, f *fulfillment.Fulfillment) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sale_order_id"}}, DoNothing: true}).
		Create(f)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return salesflow_errors.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresFulfillmentRepository) GetBySaleOrderID(ctx context.Context, orderID uuid.UUID) (fulfillment.Fulfillment, error) {
	var f fulfillment.Fulfillment
	if err := r.db.WithContext(ctx).Where("sale_order_id = ?", orderID).First(&f).Error; err != nil {
		return fulfillment.Fulfillment{}, mapError(err)
	}
	return f, nil
}

func (r *PostgresFulfillmentRepository) Update(ctx context.Context, f *fulfillment.Fulfillment) error {
	res := r.db.WithContext(ctx).
		Model(&fulfillment.Fulfillment{}).
		Where("id = ?", f.ID).
		Updates(map[string]interface{}{
			"status":                f.Status,
			"type":                  f.Type,
			"workflow_state":        f.WorkflowState,
			"workflow_context":      f.WorkflowContext,
			"delivery_personnel_id": f.DeliveryPersonnelID,
			"updated_at":            gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return salesflow_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresFulfillmentRepository) AppendTransition(ctx context.Context, l *fulfillment.TransitionLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *PostgresFulfillmentRepository) ListTransitions(ctx context.Context, fulfillmentID uuid.UUID) ([]fulfillment.TransitionLog, error) {
	var logs []fulfillment.TransitionLog
	err := r.db.WithContext(ctx).
		Where("fulfillment_id = ?", fulfillmentID).
		Order("occurred_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
