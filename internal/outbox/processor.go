package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/repository"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize  = 20
	DefaultRetryLimit = 100
)

// RunOptions narrows one dispatch run. Zero values mean batch size, any type and PENDING.
type RunOptions struct {
	Limit  int
	Type   string
	Status outboxdomain.Status
}

type RetryOptions struct {
	Limit int
	Type  string
}

type Options struct {
	BatchSize      int
	Backoff        Backoff
	Logger         *logger.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Clock          func() time.Time
}

// Processor claims due outbox events and runs them through the handler chain.
// Several processors may poll the same table; the conditional claim keeps them apart.
type Processor struct {
	repo      repository.OutboxRepository
	chain     Chain
	backoff   Backoff
	batchSize int
	logger    *logger.Logger
	tracer    trace.Tracer
	metrics   dispatcherMetrics
	clock     func() time.Time
}

func NewProcessor(repo repository.OutboxRepository, chain Chain, opts Options) (*Processor, error) {
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	m, err := newDispatcherMetrics(opts.MeterProvider)
	if err != nil {
		return nil, err
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	return &Processor{
		repo:      repo,
		chain:     chain,
		backoff:   opts.Backoff,
		batchSize: batch,
		logger:    l,
		tracer:    tp.Tracer("salesflow.outbox"),
		metrics:   m,
		clock:     clock,
	}, nil
}

// RunOnce processes one batch and returns how many events ended PUBLISHED.
// Handler failures are recorded on the event and never abort the run. Cancelling ctx
// stops a run before it claims; after the claim the batch runs to completion.
func (p *Processor) RunOnce(ctx context.Context, opts RunOptions) (int, error) {
	status := opts.Status
	if status == "" {
		status = outboxdomain.StatusPending
	}
	if status != outboxdomain.StatusPending && status != outboxdomain.StatusFailed {
		return 0, fmt.Errorf("%w: cannot dispatch events in status %q", salesflow_errors.ErrInvalidInput, status)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = p.batchSize
	}

	started := p.clock()
	ctx, span := p.tracer.Start(ctx, "outbox.dispatch", trace.WithAttributes(
		attribute.String("outbox.status", string(status)),
		attribute.String("outbox.type", opts.Type),
		attribute.Int("outbox.limit", limit),
	))
	defer span.End()
	defer func() {
		p.metrics.runLatency.Record(ctx, p.clock().Sub(started).Seconds())
	}()

	ids, err := p.repo.ListDueIDs(ctx, outboxdomain.Filter{Status: status, Type: opts.Type, Limit: limit}, started.UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list due events")
		return 0, fmt.Errorf("list due events: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	token := uuid.New()
	claimed, err := p.repo.Claim(ctx, ids, status, token, p.clock().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim events")
		return 0, fmt.Errorf("claim events: %w", err)
	}
	if lost := int64(len(ids)) - claimed; lost > 0 {
		p.metrics.claimConflicts.Add(ctx, lost)
	}
	if claimed == 0 {
		return 0, nil
	}

	// A claimed batch is always finalized, even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	batch, err := p.repo.ListClaimed(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load claimed events")
		return 0, fmt.Errorf("load claimed events: %w", err)
	}

	published := 0
	for i := range batch {
		if p.dispatch(ctx, &batch[i]) {
			published++
		}
	}

	span.SetAttributes(
		attribute.Int("outbox.claimed", len(batch)),
		attribute.Int("outbox.published", published),
	)
	p.logger.WithContext(ctx).Debugf("outbox run: %d candidates, %d claimed, %d published", len(ids), len(batch), published)
	return published, nil
}

func (p *Processor) dispatch(ctx context.Context, e *outboxdomain.OutboxEvent) bool {
	log := p.logger.WithContext(ctx).With(
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", e.Type),
	)

	handler, err := p.chain.Handle(ctx, e)
	if err != nil {
		p.metrics.eventsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("handler", handler)))
		log.Logger.Error("outbox handler failed", zap.String("handler", handler), zap.Int("retry_count", e.RetryCount), zap.Error(err))

		now := p.clock().UTC()
		next := now.Add(p.backoff.Delay(e.RetryCount))
		if markErr := p.repo.MarkFailed(ctx, e.ID, err.Error(), next, now); markErr != nil {
			log.Logger.Error("failed to record outbox failure", zap.Error(markErr))
		}
		return false
	}

	if handler == "" {
		p.metrics.eventsUnhandled.Add(ctx, 1)
		log.Logger.Warn("no handler accepted outbox event, marking published")
	}

	if err := p.repo.MarkPublished(ctx, e.ID, p.clock().UTC()); err != nil {
		log.Logger.Warn("failed to finalize outbox event", zap.Error(err))
		return false
	}
	p.metrics.eventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", e.Type)))
	return true
}

// RetryFailed moves up to opts.Limit FAILED events back to PENDING, oldest first.
func (p *Processor) RetryFailed(ctx context.Context, opts RetryOptions) (int64, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRetryLimit
	}
	n, err := p.repo.ResetFailed(ctx, outboxdomain.Filter{Status: outboxdomain.StatusFailed, Type: opts.Type, Limit: limit}, p.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("retry failed events: %w", err)
	}
	if n > 0 {
		p.metrics.eventsRequeued.Add(ctx, n, metric.WithAttributes(attribute.String("from", string(outboxdomain.StatusFailed))))
		p.logger.WithContext(ctx).Infof("requeued %d failed outbox events", n)
	}
	return n, nil
}

// RequeueStale returns events stuck in PROCESSING for longer than olderThan to PENDING.
// An event whose processor is still alive may then be handled twice.
func (p *Processor) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: staleness threshold must be positive", salesflow_errors.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultRetryLimit
	}
	now := p.clock().UTC()
	n, err := p.repo.ResetStaleProcessing(ctx, now.Add(-olderThan), limit, now)
	if err != nil {
		return 0, fmt.Errorf("requeue stale events: %w", err)
	}
	if n > 0 {
		p.metrics.eventsRequeued.Add(ctx, n, metric.WithAttributes(attribute.String("from", string(outboxdomain.StatusProcessing))))
		p.logger.WithContext(ctx).Warnf("requeued %d outbox events stuck in processing", n)
	}
	return n, nil
}
