package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FulfillmentService struct {
	store       repository.Store
	recorder    *WorkflowRecorder
	coordinator *PhaseCoordinator
	logger      *logger.Logger
}

func NewFulfillmentService(store repository.Store, recorder *WorkflowRecorder, coordinator *PhaseCoordinator, l *logger.Logger) *FulfillmentService {
	if l == nil {
		l = logger.NewNop()
	}
	return &FulfillmentService{store: store, recorder: recorder, coordinator: coordinator, logger: l}
}

type FulfilmentSnapshot struct {
	FulfillmentID uuid.UUID                   `json:"fulfillmentId"`
	SaleOrderID   uuid.UUID                   `json:"saleOrderId"`
	Status        fulfillment.Status          `json:"status"`
	Type          fulfillment.Type            `json:"type"`
	State         workflow.FulfilmentState    `json:"state"`
	Context       workflow.FulfilmentContext  `json:"context"`
	Transitions   []fulfillment.TransitionLog `json:"transitions"`
}

// UpdateStatus moves the legacy fulfillment status of an order and drives the fulfilment
// machine through the matching events. Delivery releases the reserved stock and marks the
// order FULFILLED.
func (s *FulfillmentService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to fulfillment.Status, note string) (FulfilmentSnapshot, error) {
	if !to.Valid() {
		return FulfilmentSnapshot{}, fmt.Errorf("%w: unknown fulfillment status %q", salesflow_errors.ErrInvalidInput, to)
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		f, err := tx.Fulfillments().GetBySaleOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		from := f.Status
		if !workflow.CanMoveFulfillmentStatus(from, to) {
			return fmt.Errorf("fulfillment %s -> %s: %w", from, to, salesflow_errors.ErrInvalidTransition)
		}
		evs := workflow.EventsForFulfilmentTransition(from, to)
		if len(evs) == 0 {
			return fmt.Errorf("fulfillment %s -> %s has no workflow mapping: %w", from, to, salesflow_errors.ErrInvalidTransition)
		}

		state := workflow.ResolveFulfilmentState(f.WorkflowState, f.Status)
		fctx := s.decodeFulfilmentContext(ctx, f)
		outcome := workflow.RunFulfilmentMachine(workflow.FulfilmentRun{State: state, Context: fctx, Events: evs})
		if !outcome.Changed {
			return fmt.Errorf("fulfillment in %s cannot accept %v: %w", state, evs, salesflow_errors.ErrInvalidTransition)
		}

		applied := make([]string, 0, len(outcome.Applied))
		for _, ev := range outcome.Applied {
			applied = append(applied, string(ev))
		}
		meta := map[string]interface{}{
			"fromStatus": string(from),
			"toStatus":   string(to),
			"events":     applied,
		}
		if note != "" {
			meta["note"] = note
		}

		f.Status = to
		if err := s.recorder.RecordFulfilmentTransition(ctx, tx, &f, FulfilmentTransition{
			From:     stateRef(string(state)),
			To:       outcome.State,
			Context:  outcome.Context,
			Event:    "status_updated",
			Metadata: meta,
		}); err != nil {
			return err
		}

		if to == fulfillment.StatusDelivered {
			if err := s.completeOrder(ctx, tx, orderID); err != nil {
				return err
			}
		}
		return s.coordinator.OnFulfilmentStatusChanged(ctx, tx, f)
	})
	if err != nil {
		return FulfilmentSnapshot{}, err
	}
	return s.Snapshot(ctx, orderID)
}

func (s *FulfillmentService) completeOrder(ctx context.Context, tx repository.Store, orderID uuid.UUID) error {
	order, err := tx.Sales().GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	attached, err := tx.Sales().GetAttachedSale(ctx, orderID)
	switch {
	case errors.Is(err, salesflow_errors.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load attached sale: %w", err)
	default:
		for _, item := range attached.Items {
			if item.Quantity <= 0 {
				continue
			}
			err := tx.Stock().Release(ctx, order.StoreID, item.ProductVariantID, item.Quantity)
			if errors.Is(err, salesflow_errors.ErrNotFound) {
				s.logger.WithContext(ctx).Logger.Warn("no stock row to release",
					zap.String("order_id", orderID.String()), zap.String("variant_id", item.ProductVariantID.String()))
				continue
			}
			if err != nil {
				return fmt.Errorf("release variant %s: %w", item.ProductVariantID, err)
			}
		}
	}

	order.Status = sale.StatusFulfilled
	return tx.Sales().UpdateOrder(ctx, &order)
}

func (s *FulfillmentService) Snapshot(ctx context.Context, orderID uuid.UUID) (FulfilmentSnapshot, error) {
	f, err := s.store.Fulfillments().GetBySaleOrderID(ctx, orderID)
	if err != nil {
		return FulfilmentSnapshot{}, err
	}
	logs, err := s.store.Fulfillments().ListTransitions(ctx, f.ID)
	if err != nil {
		return FulfilmentSnapshot{}, err
	}
	return FulfilmentSnapshot{
		FulfillmentID: f.ID,
		SaleOrderID:   f.SaleOrderID,
		Status:        f.Status,
		Type:          f.Type,
		State:         workflow.ResolveFulfilmentState(f.WorkflowState, f.Status),
		Context:       s.decodeFulfilmentContext(ctx, f),
		Transitions:   logs,
	}, nil
}

func (s *FulfillmentService) decodeFulfilmentContext(ctx context.Context, f fulfillment.Fulfillment) workflow.FulfilmentContext {
	fctx := workflow.FulfilmentContext{SaleOrderID: f.SaleOrderID.String()}
	if len(f.WorkflowContext) == 0 {
		return fctx
	}
	if err := json.Unmarshal(f.WorkflowContext, &fctx); err != nil {
		s.logger.WithContext(ctx).Logger.Warn("discarding unreadable fulfilment workflow context",
			zap.String("fulfillment_id", f.ID.String()), zap.Error(err))
		return workflow.FulfilmentContext{SaleOrderID: f.SaleOrderID.String()}
	}
	if fctx.SaleOrderID == "" {
		fctx.SaleOrderID = f.SaleOrderID.String()
	}
	return fctx
}
