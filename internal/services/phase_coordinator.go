package services

import (
	"context"
	"errors"
	"fmt"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/events"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClearedSale describes a sale machine run that ended in CLEARED_FOR_FULFILMENT.
type ClearedSale struct {
	Order    *sale.SaleOrder
	From     *string
	Context  workflow.SaleContext
	Trigger  string
	Metadata map[string]interface{}
}

// PhaseCoordinator applies the cross-aggregate effects of workflow milestones.
// Every method expects to run inside the caller's transaction.
type PhaseCoordinator struct {
	publisher *EventPublisher
	recorder  *WorkflowRecorder
	logger    *logger.Logger
}

func NewPhaseCoordinator(publisher *EventPublisher, recorder *WorkflowRecorder, l *logger.Logger) *PhaseCoordinator {
	if l == nil {
		l = logger.NewNop()
	}
	return &PhaseCoordinator{publisher: publisher, recorder: recorder, logger: l}
}

// AdvanceSale moves a cleared order into the fulfillment phase: it creates the fulfillment,
// reserves stock for every line item, records the clearance and notifies the store manager and biller.
func (c *PhaseCoordinator) AdvanceSale(ctx context.Context, tx repository.Store, cs ClearedSale) error {
	order := cs.Order
	order.Phase = sale.PhaseFulfillment

	if err := c.ensureFulfillment(ctx, tx, order); err != nil {
		return err
	}
	if err := c.reserveStock(ctx, tx, order); err != nil {
		return err
	}
	if err := c.OnSaleCleared(ctx, tx, cs); err != nil {
		return err
	}
	return c.notifyAdvanced(ctx, tx, order)
}

// OnSaleCleared records the sale's move to CLEARED_FOR_FULFILMENT and republishes it for read models.
func (c *PhaseCoordinator) OnSaleCleared(ctx context.Context, tx repository.Store, cs ClearedSale) error {
	meta := map[string]interface{}{}
	for k, v := range cs.Metadata {
		meta[k] = v
	}
	if cs.Trigger != "" {
		meta["trigger"] = cs.Trigger
	}

	err := c.recorder.RecordSaleTransition(ctx, tx, cs.Order, SaleTransition{
		From:     cs.From,
		To:       workflow.SaleClearedForFulfilment,
		Context:  cs.Context,
		Event:    events.EventTypeSaleCleared,
		Metadata: meta,
	})
	if err != nil {
		return err
	}

	payload := events.SaleClearedPayload{
		OrderID:     cs.Order.ID.String(),
		TotalAmount: cs.Order.TotalAmount,
		StoreID:     cs.Order.StoreID.String(),
	}
	_, err = c.publisher.Publish(ctx, events.EventTypeSaleCleared, payload,
		WithStore(tx),
		WithAggregate(events.AggregateSaleOrder, cs.Order.ID.String()),
	)
	return err
}

// OnFulfilmentStatusChanged broadcasts a fulfillment status move for read-model consumers.
func (c *PhaseCoordinator) OnFulfilmentStatusChanged(ctx context.Context, tx repository.Store, f fulfillment.Fulfillment) error {
	payload := events.FulfillmentStatusChangedPayload{
		OrderID:       f.SaleOrderID.String(),
		FulfillmentID: f.ID.String(),
		Status:        string(f.Status),
		Type:          string(f.Type),
	}
	_, err := c.publisher.Publish(ctx, events.EventTypeFulfillmentStatusChanged, payload,
		WithStore(tx),
		WithAggregate(events.AggregateSaleOrder, f.SaleOrderID.String()),
	)
	return err
}

func (c *PhaseCoordinator) ensureFulfillment(ctx context.Context, tx repository.Store, order *sale.SaleOrder) error {
	_, err := tx.Fulfillments().GetBySaleOrderID(ctx, order.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, salesflow_errors.ErrNotFound) {
		return fmt.Errorf("load fulfillment: %w", err)
	}

	f := &fulfillment.Fulfillment{
		ID:          uuid.New(),
		SaleOrderID: order.ID,
		Type:        fulfillment.TypePickup,
		Status:      fulfillment.StatusPending,
	}
	// The savepoint keeps the outer transaction usable if a concurrent insert won.
	err = tx.WithinTx(ctx, func(sp repository.Store) error {
		return c.recorder.RecordFulfilmentCreated(ctx, sp, f, FulfilmentTransition{
			To:      workflow.FulfilmentAllocatingStock,
			Context: workflow.FulfilmentContext{SaleOrderID: order.ID.String()},
			Event:   "FULFILLMENT_CREATED",
		})
	})
	if errors.Is(err, salesflow_errors.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create fulfillment: %w", err)
	}
	return nil
}

func (c *PhaseCoordinator) reserveStock(ctx context.Context, tx repository.Store, order *sale.SaleOrder) error {
	attached, err := tx.Sales().GetAttachedSale(ctx, order.ID)
	if errors.Is(err, salesflow_errors.ErrNotFound) {
		c.logger.WithContext(ctx).Logger.Warn("no sale attached to order, skipping stock reservation",
			zap.String("order_id", order.ID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load attached sale: %w", err)
	}
	for _, item := range attached.Items {
		if item.Quantity <= 0 {
			continue
		}
		if err := tx.Stock().Reserve(ctx, order.StoreID, item.ProductVariantID, item.Quantity); err != nil {
			return fmt.Errorf("reserve variant %s: %w", item.ProductVariantID, err)
		}
	}
	return nil
}

func (c *PhaseCoordinator) notifyAdvanced(ctx context.Context, tx repository.Store, order *sale.SaleOrder) error {
	store, err := tx.Stock().GetStore(ctx, order.StoreID)
	switch {
	case err == nil && store.ManagerID != nil:
		msg := fmt.Sprintf("Order %s ready for fulfillment at store %s.", order.ID, store.Name)
		if err := c.publishNotification(ctx, tx, order.ID, *store.ManagerID, events.NotificationFulfillmentRequested, msg); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, salesflow_errors.ErrNotFound):
		return fmt.Errorf("load store: %w", err)
	default:
		c.logger.WithContext(ctx).Logger.Warn("store has no manager to notify",
			zap.String("order_id", order.ID.String()), zap.String("store_id", order.StoreID.String()))
	}

	if order.BillerID == uuid.Nil {
		return nil
	}
	msg := fmt.Sprintf("Order %s advanced to fulfillment phase.", order.ID)
	return c.publishNotification(ctx, tx, order.ID, order.BillerID, events.NotificationOrderAdvanced, msg)
}

func (c *PhaseCoordinator) publishNotification(ctx context.Context, tx repository.Store, orderID, userID uuid.UUID, kind, message string) error {
	payload := events.NotificationPayload{Notifications: []events.NotificationTarget{
		{UserID: userID.String(), Type: kind, Message: message},
	}}
	_, err := c.publisher.Publish(ctx, events.EventTypeNotification, payload,
		WithStore(tx),
		WithAggregate(events.AggregateNotification, orderID.String()),
	)
	return err
}

func stateRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
