package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"

	"gorm.io/datatypes"
)

// WorkflowRecorder persists machine output. State and context are always written
// together; a log row is appended when the state moved or an event or metadata is given.
type WorkflowRecorder struct {
	clock func() time.Time
}

func NewWorkflowRecorder() *WorkflowRecorder {
	return &WorkflowRecorder{clock: time.Now}
}

type SaleTransition struct {
	From     *string
	To       workflow.SaleState
	Context  workflow.SaleContext
	Event    string
	Metadata map[string]interface{}
}

type FulfilmentTransition struct {
	From     *string
	To       workflow.FulfilmentState
	Context  workflow.FulfilmentContext
	Event    string
	Metadata map[string]interface{}
}

func (r *WorkflowRecorder) RecordSaleTransition(ctx context.Context, tx repository.Store, order *sale.SaleOrder, t SaleTransition) error {
	rawCtx, err := json.Marshal(t.Context)
	if err != nil {
		return fmt.Errorf("encode sale context: %w", err)
	}
	to := string(t.To)
	order.WorkflowState = &to
	order.WorkflowContext = datatypes.JSON(rawCtx)
	if err := tx.Sales().UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("update sale workflow: %w", err)
	}

	if !shouldLog(t.From, to, t.Event, t.Metadata) {
		return nil
	}
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	return tx.Sales().AppendTransition(ctx, &sale.TransitionLog{
		SaleOrderID: order.ID,
		FromState:   t.From,
		ToState:     to,
		Event:       optionalString(t.Event),
		Metadata:    meta,
		OccurredAt:  r.clock().UTC(),
	})
}

func (r *WorkflowRecorder) RecordFulfilmentTransition(ctx context.Context, tx repository.Store, f *fulfillment.Fulfillment, t FulfilmentTransition) error {
	if err := applyFulfilmentState(f, t.To, t.Context); err != nil {
		return err
	}
	if err := tx.Fulfillments().Update(ctx, f); err != nil {
		return fmt.Errorf("update fulfilment workflow: %w", err)
	}
	return r.appendFulfilmentLog(ctx, tx, f, t)
}

// RecordFulfilmentCreated inserts f in state t.To and logs the first transition.
func (r *WorkflowRecorder) RecordFulfilmentCreated(ctx context.Context, tx repository.Store, f *fulfillment.Fulfillment, t FulfilmentTransition) error {
	if err := applyFulfilmentState(f, t.To, t.Context); err != nil {
		return err
	}
	if err := tx.Fulfillments().Create(ctx, f); err != nil {
		return err
	}
	return r.appendFulfilmentLog(ctx, tx, f, t)
}

func (r *WorkflowRecorder) appendFulfilmentLog(ctx context.Context, tx repository.Store, f *fulfillment.Fulfillment, t FulfilmentTransition) error {
	to := string(t.To)
	if !shouldLog(t.From, to, t.Event, t.Metadata) {
		return nil
	}
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	return tx.Fulfillments().AppendTransition(ctx, &fulfillment.TransitionLog{
		FulfillmentID: f.ID,
		FromState:     t.From,
		ToState:       to,
		Event:         optionalString(t.Event),
		Metadata:      meta,
		OccurredAt:    r.clock().UTC(),
	})
}

func applyFulfilmentState(f *fulfillment.Fulfillment, to workflow.FulfilmentState, fctx workflow.FulfilmentContext) error {
	rawCtx, err := json.Marshal(fctx)
	if err != nil {
		return fmt.Errorf("encode fulfilment context: %w", err)
	}
	state := string(to)
	f.WorkflowState = &state
	f.WorkflowContext = datatypes.JSON(rawCtx)
	return nil
}

func shouldLog(from *string, to, event string, metadata map[string]interface{}) bool {
	return from == nil || *from != to || event != "" || metadata != nil
}

func encodeMetadata(metadata map[string]interface{}) (datatypes.JSON, error) {
	if metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transition metadata: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
