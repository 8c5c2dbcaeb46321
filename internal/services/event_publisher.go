package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salesflow/internal/domain/outbox"
	"salesflow/internal/repository"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type publishOptions struct {
	tx            repository.Store
	aggregateType *string
	aggregateID   *string
	deliverAfter  *time.Time
}

type PublishOption func(*publishOptions)

// WithStore inserts the event through tx so it commits with the caller's mutation.
func WithStore(tx repository.Store) PublishOption {
	return func(o *publishOptions) { o.tx = tx }
}

func WithAggregate(aggregateType, aggregateID string) PublishOption {
	return func(o *publishOptions) {
		if aggregateType != "" {
			o.aggregateType = &aggregateType
		}
		if aggregateID != "" {
			o.aggregateID = &aggregateID
		}
	}
}

func WithDeliverAfter(t time.Time) PublishOption {
	return func(o *publishOptions) {
		if !t.IsZero() {
			at := t.UTC()
			o.deliverAfter = &at
		}
	}
}

// EventPublisher writes domain events to the outbox table for reliable delivery
type EventPublisher struct {
	store repository.Store
	clock func() time.Time
}

func NewEventPublisher(store repository.Store) *EventPublisher {
	return &EventPublisher{store: store, clock: time.Now}
}

// Publish always inserts a new PENDING event. Payload shape is not validated here.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload interface{}, opts ...PublishOption) (uuid.UUID, error) {
	if eventType == "" {
		return uuid.Nil, fmt.Errorf("%w: event type is required", salesflow_errors.ErrInvalidInput)
	}
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return uuid.Nil, err
	}

	store := p.store
	if o.tx != nil {
		store = o.tx
	}
	now := p.clock().UTC()
	e := &outbox.OutboxEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateType: o.aggregateType,
		AggregateID:   o.aggregateID,
		Payload:       data,
		Status:        outbox.StatusPending,
		DeliverAfter:  o.deliverAfter,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Outbox().Create(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("publish %s: %w", eventType, err)
	}
	return e.ID, nil
}

func marshalPayload(payload interface{}) (datatypes.JSON, error) {
	switch v := payload.(type) {
	case nil:
		return datatypes.JSON("{}"), nil
	case json.RawMessage:
		return datatypes.JSON(v), nil
	case datatypes.JSON:
		return v, nil
	case []byte:
		if len(v) == 0 {
			return datatypes.JSON("{}"), nil
		}
		return datatypes.JSON(v), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", salesflow_errors.ErrInvalidInput, err)
	}
	return datatypes.JSON(raw), nil
}
