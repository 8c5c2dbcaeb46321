package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"salesflow/internal/domain/outbox"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
)

type outboxRepo struct {
	st *state
}

func (r *outboxRepo) Create(_ context.Context, e *outbox.OutboxEvent) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, exists := r.st.outbox[e.ID]; exists {
		return salesflow_errors.ErrAlreadyExists
	}
	if e.Status == "" {
		e.Status = outbox.StatusPending
	}
	stamp(&e.CreatedAt)
	stamp(&e.UpdatedAt)
	r.st.seq++
	r.st.outbox[e.ID] = *e
	r.st.outboxSeq[e.ID] = r.st.seq
	return nil
}

func (r *outboxRepo) GetByID(_ context.Context, id uuid.UUID) (outbox.OutboxEvent, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	e, ok := r.st.outbox[id]
	if !ok {
		return outbox.OutboxEvent{}, salesflow_errors.ErrNotFound
	}
	return e, nil
}

// sorted returns events matching keep ordered by createdAt then insertion order.
func (r *outboxRepo) sorted(keep func(outbox.OutboxEvent) bool) []outbox.OutboxEvent {
	var out []outbox.OutboxEvent
	for _, e := range r.st.outbox {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.st.outboxSeq[out[i].ID] < r.st.outboxSeq[out[j].ID]
	})
	return out
}

func limitIDs(events []outbox.OutboxEvent, limit int) []uuid.UUID {
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func (r *outboxRepo) ListDueIDs(_ context.Context, f outbox.Filter, now time.Time) ([]uuid.UUID, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	due := r.sorted(func(e outbox.OutboxEvent) bool {
		return e.Status == f.Status && e.Due(now) && (f.Type == "" || e.Type == f.Type)
	})
	return limitIDs(due, f.Limit), nil
}

func (r *outboxRepo) Claim(_ context.Context, ids []uuid.UUID, from outbox.Status, token uuid.UUID, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var claimed int64
	for _, id := range ids {
		e, ok := r.st.outbox[id]
		if !ok || e.Status != from {
			continue
		}
		tok := token
		claimedAt := now
		e.Status = outbox.StatusProcessing
		e.ClaimToken = &tok
		e.ClaimedAt = &claimedAt
		e.UpdatedAt = now
		r.st.outbox[id] = e
		claimed++
	}
	return claimed, nil
}

func (r *outboxRepo) ListClaimed(_ context.Context, token uuid.UUID) ([]outbox.OutboxEvent, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	return r.sorted(func(e outbox.OutboxEvent) bool {
		return e.Status == outbox.StatusProcessing && e.ClaimToken != nil && *e.ClaimToken == token
	}), nil
}

func (r *outboxRepo) finalize(id uuid.UUID, apply func(*outbox.OutboxEvent)) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	e, ok := r.st.outbox[id]
	if !ok || e.Status != outbox.StatusProcessing {
		return fmt.Errorf("outbox event %s no longer processing: %w", id, salesflow_errors.ErrConflict)
	}
	apply(&e)
	e.ClaimToken = nil
	r.st.outbox[id] = e
	return nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, id uuid.UUID, now time.Time) error {
	return r.finalize(id, func(e *outbox.OutboxEvent) {
		e.Status = outbox.StatusPublished
		e.LastError = nil
		e.UpdatedAt = now
	})
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string, deliverAfter time.Time, now time.Time) error {
	return r.finalize(id, func(e *outbox.OutboxEvent) {
		msg := errorMessage
		at := deliverAfter
		e.Status = outbox.StatusFailed
		e.RetryCount++
		e.LastError = &msg
		e.DeliverAfter = &at
		e.UpdatedAt = now
	})
}

func (r *outboxRepo) ResetFailed(_ context.Context, f outbox.Filter, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	failed := r.sorted(func(e outbox.OutboxEvent) bool {
		return e.Status == outbox.StatusFailed && (f.Type == "" || e.Type == f.Type)
	})
	var n int64
	for _, id := range limitIDs(failed, f.Limit) {
		e := r.st.outbox[id]
		e.Status = outbox.StatusPending
		e.LastError = nil
		e.DeliverAfter = nil
		e.UpdatedAt = now
		r.st.outbox[id] = e
		n++
	}
	return n, nil
}

func (r *outboxRepo) ResetStaleProcessing(_ context.Context, claimedBefore time.Time, limit int, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stale := r.sorted(func(e outbox.OutboxEvent) bool {
		return e.Status == outbox.StatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore)
	})
	var n int64
	for _, id := range limitIDs(stale, limit) {
		e := r.st.outbox[id]
		e.Status = outbox.StatusPending
		e.ClaimToken = nil
		e.ClaimedAt = nil
		e.UpdatedAt = now
		r.st.outbox[id] = e
		n++
	}
	return n, nil
}

func (r *outboxRepo) CountByStatus(_ context.Context) (outbox.StatusCounts, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var counts outbox.StatusCounts
	for _, e := range r.st.outbox {
		counts.Add(e.Status, 1)
	}
	return counts, nil
}

func (r *outboxRepo) CountByType(_ context.Context, types []string, maxTypes int) ([]outbox.TypeCounts, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	byType := map[string]*outbox.StatusCounts{}
	for _, e := range r.st.outbox {
		c, ok := byType[e.Type]
		if !ok {
			c = &outbox.StatusCounts{}
			byType[e.Type] = c
		}
		c.Add(e.Status, 1)
	}

	if len(types) == 0 {
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)
		if maxTypes > 0 && len(types) > maxTypes {
			types = types[:maxTypes]
		}
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

func (r *outboxRepo) DailySeries(_ context.Context, start, end time.Time, eventType string) ([]outbox.DayCounts, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	series := outbox.DaySeries{}
	for _, e := range r.st.outbox {
		if e.CreatedAt.Before(start) || !e.CreatedAt.Before(end) {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		series.Add(outbox.DayKey(e.CreatedAt), e.Status, 1)
	}
	return series.Sorted(), nil
}

func (r *outboxRepo) ListRecentFailed(_ context.Context, limit int) ([]outbox.OutboxEvent, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	failed := r.sorted(func(e outbox.OutboxEvent) bool { return e.Status == outbox.StatusFailed })
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].UpdatedAt.After(failed[j].UpdatedAt) })
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}
