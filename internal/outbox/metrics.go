package outbox

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type dispatcherMetrics struct {
	eventsPublished metric.Int64Counter
	eventsFailed    metric.Int64Counter
	eventsUnhandled metric.Int64Counter
	claimConflicts  metric.Int64Counter
	eventsRequeued  metric.Int64Counter
	runLatency      metric.Float64Histogram
}

func newDispatcherMetrics(provider metric.MeterProvider) (dispatcherMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter("salesflow.outbox.dispatcher")

	var (
		m   dispatcherMetrics
		err error
	)

	m.eventsPublished, err = meter.Int64Counter(
		"outbox.events.published",
		metric.WithDescription("Number of outbox events finalized as published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.events.published counter: %w", err)
	}

	m.eventsFailed, err = meter.Int64Counter(
		"outbox.events.failed",
		metric.WithDescription("Number of outbox events whose handler failed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.events.failed counter: %w", err)
	}

	m.eventsUnhandled, err = meter.Int64Counter(
		"outbox.events.unhandled",
		metric.WithDescription("Number of outbox events no handler accepted"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.events.unhandled counter: %w", err)
	}

	m.claimConflicts, err = meter.Int64Counter(
		"outbox.claim.conflicts",
		metric.WithDescription("Number of candidate events another dispatcher claimed first"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.claim.conflicts counter: %w", err)
	}

	m.eventsRequeued, err = meter.Int64Counter(
		"outbox.events.requeued",
		metric.WithDescription("Number of outbox events moved back to pending"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.events.requeued counter: %w", err)
	}

	m.runLatency, err = meter.Float64Histogram(
		"outbox.dispatch.latency",
		metric.WithDescription("Time taken per dispatch run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create outbox.dispatch.latency histogram: %w", err)
	}

	return m, nil
}
