package services

import (
	"context"
	"fmt"
	"time"

	"salesflow/internal/domain/outbox"
	"salesflow/internal/repository"
	salesflow_errors "salesflow/pkg/errors"
)

const (
	maxStatusTypes       = 50
	defaultRecentFailed  = 20
	maxRecentFailed      = 200
	maxSeriesRangeInDays = 366
)

// OutboxStatusService serves read-only projections over the outbox table.
type OutboxStatusService struct {
	repo repository.OutboxRepository
}

func NewOutboxStatusService(repo repository.OutboxRepository) *OutboxStatusService {
	return &OutboxStatusService{repo: repo}
}

func (s *OutboxStatusService) Counts(ctx context.Context) (outbox.StatusCounts, error) {
	return s.repo.CountByStatus(ctx)
}

// CountsByType reports counts for the given types, or for up to 50 distinct types when none are given.
func (s *OutboxStatusService) CountsByType(ctx context.Context, types []string) ([]outbox.TypeCounts, error) {
	filtered := types[:0:0]
	for _, t := range types {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	return s.repo.CountByType(ctx, filtered, maxStatusTypes)
}

// Series buckets events created in [start, end) by UTC day.
func (s *OutboxStatusService) Series(ctx context.Context, start, end time.Time, eventType string) ([]outbox.DayCounts, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", salesflow_errors.ErrInvalidInput)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", salesflow_errors.ErrInvalidInput)
	}
	if end.Sub(start) > maxSeriesRangeInDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", salesflow_errors.ErrInvalidInput, maxSeriesRangeInDays)
	}
	return s.repo.DailySeries(ctx, start.UTC(), end.UTC(), eventType)
}

func (s *OutboxStatusService) RecentFailed(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentFailed
	case limit > maxRecentFailed:
		limit = maxRecentFailed
	}
	return s.repo.ListRecentFailed(ctx, limit)
}
