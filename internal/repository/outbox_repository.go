package repository

import (
	"context"
	"fmt"
	"time"

	"salesflow/internal/domain/outbox"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresOutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Create(ctx context.Context, e *outbox.OutboxEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return mapError(r.db.WithContext(ctx).Create(e).Error)
}

func (r *PostgresOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (outbox.OutboxEvent, error) {
	var e outbox.OutboxEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return outbox.OutboxEvent{}, mapError(err)
	}
	return e, nil
}

func (r *PostgresOutboxRepository) ListDueIDs(ctx context.Context, f outbox.Filter, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("status = ?", f.Status).
		Where("(deliver_after IS NULL OR deliver_after <= ?)", now)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresOutboxRepository) Claim(ctx context.Context, ids []uuid.UUID, from outbox.Status, token uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// Rows another claimer holds are skipped rather than waited on.
	lockable := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Select("id").
		Where("id IN ? AND status = ?", ids, from).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	res := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id IN (?) AND status = ?", lockable, from).
		Updates(map[string]interface{}{
			"status":      outbox.StatusProcessing,
			"claim_token": token,
			"claimed_at":  now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

func (r *PostgresOutboxRepository) ListClaimed(ctx context.Context, token uuid.UUID) ([]outbox.OutboxEvent, error) {
	var events []outbox.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("claim_token = ? AND status = ?", token, outbox.StatusProcessing).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ? AND status = ?", id, outbox.StatusProcessing).
		Updates(map[string]interface{}{
			"status":      outbox.StatusPublished,
			"last_error":  nil,
			"claim_token": nil,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox event %s no longer processing: %w", id, salesflow_errors.ErrConflict)
	}
	return nil
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, deliverAfter time.Time, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ? AND status = ?", id, outbox.StatusProcessing).
		Updates(map[string]interface{}{
			"status":        outbox.StatusFailed,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    errorMessage,
			"deliver_after": deliverAfter,
			"claim_token":   nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox event %s no longer processing: %w", id, salesflow_errors.ErrConflict)
	}
	return nil
}

func (r *PostgresOutboxRepository) ResetFailed(ctx context.Context, f outbox.Filter, now time.Time) (int64, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("status = ?", outbox.StatusFailed)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id IN ? AND status = ?", ids, outbox.StatusFailed).
		Updates(map[string]interface{}{
			"status":        outbox.StatusPending,
			"last_error":    nil,
			"deliver_after": nil,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *PostgresOutboxRepository) ResetStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int, now time.Time) (int64, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("status = ? AND claimed_at < ?", outbox.StatusProcessing, claimedBefore)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("claimed_at ASC").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id IN ? AND status = ? AND claimed_at < ?", ids, outbox.StatusProcessing, claimedBefore).
		Updates(map[string]interface{}{
			"status":      outbox.StatusPending,
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

type statusCountRow struct {
	Type   string
	Day    string
	Status outbox.Status
	Total  int64
}

func (r *PostgresOutboxRepository) CountByStatus(ctx context.Context) (outbox.StatusCounts, error) {
	var rows []statusCountRow
	err := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return outbox.StatusCounts{}, err
	}

	var counts outbox.StatusCounts
	for _, row := range rows {
		counts.Add(row.Status, row.Total)
	}
	return counts, nil
}

func (r *PostgresOutboxRepository) CountByType(ctx context.Context, types []string, maxTypes int) ([]outbox.TypeCounts, error) {
	if len(types) == 0 {
		q := r.db.WithContext(ctx).Model(&outbox.OutboxEvent{}).Distinct("type").Order("type ASC")
		if maxTypes > 0 {
			q = q.Limit(maxTypes)
		}
		if err := q.Pluck("type", &types).Error; err != nil {
			return nil, err
		}
	}
	if len(types) == 0 {
		return []outbox.TypeCounts{}, nil
	}

	var rows []statusCountRow
	err := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Select("type, status, COUNT(*) AS total").
		Where("type IN ?", types).
		Group("type, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byType := make(map[string]*outbox.StatusCounts, len(types))
	for _, row := range rows {
		c, ok := byType[row.Type]
		if !ok {
			c = &outbox.StatusCounts{}
			byType[row.Type] = c
		}
		c.Add(row.Status, row.Total)
	}

	out := make([]outbox.TypeCounts, 0, len(types))
	for _, t := range types {
		tc := outbox.TypeCounts{Type: t}
		if c, ok := byType[t]; ok {
			tc.StatusCounts = *c
		}
		out = append(out, tc)
	}
	return out, nil
}

func (r *PostgresOutboxRepository) DailySeries(ctx context.Context, start, end time.Time, eventType string) ([]outbox.DayCounts, error) {
	var rows []statusCountRow
	q := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Select("to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, status, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", start, end)
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	if err := q.Group("day, status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	series := outbox.DaySeries{}
	for _, row := range rows {
		series.Add(row.Day, row.Status, row.Total)
	}
	return series.Sorted(), nil
}

func (r *PostgresOutboxRepository) ListRecentFailed(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	var events []outbox.OutboxEvent
	q := r.db.WithContext(ctx).Where("status = ?", outbox.StatusFailed).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
