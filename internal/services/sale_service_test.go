package services

import (
	"context"
	"testing"
	"time"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/events"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlePaymentConfirmed_ResellerCreditAbsorption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{
		orderType:   sale.TypeReseller,
		total:       100,
		state:       workflow.SalePaymentInitiated,
		creditLimit: 1000,
		quantities:  []int{2, 3},
	})
	paymentID := f.confirmedPayment(t, seeded.order.ID, 60)
	amount := decimal.NewFromInt(60)

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, events.PaymentConfirmedPayload{
		PaymentID:   paymentID.String(),
		SaleOrderID: seeded.order.ID.String(),
		Amount:      &amount,
	})
	require.NoError(t, err)
	assert.True(t, advanced)

	snap, err := f.sales.Snapshot(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SaleClearedForFulfilment, snap.State)
	assert.Equal(t, sale.PhaseFulfillment, snap.Phase)
	assert.Equal(t, sale.StatusPending, snap.Status)
	assert.True(t, snap.Context.ClearToFulfil)
	require.Len(t, snap.Transitions, 1)
	require.NotNil(t, snap.Transitions[0].FromState)
	assert.Equal(t, string(workflow.SalePaymentInitiated), *snap.Transitions[0].FromState)
	assert.Equal(t, string(workflow.SaleClearedForFulfilment), snap.Transitions[0].ToState)
	require.NotNil(t, snap.Transitions[0].Event)
	assert.Equal(t, events.EventTypeSaleCleared, *snap.Transitions[0].Event)

	profile, err := f.store.Sales().GetResellerProfile(ctx, seeded.resellerID)
	require.NoError(t, err)
	assert.True(t, profile.OutstandingBalance.Equal(decimal.NewFromInt(40)), profile.OutstandingBalance.String())

	ful := mustFulfillment(t, f, seeded.order.ID)
	require.NotNil(t, ful.WorkflowState)
	assert.Equal(t, string(workflow.FulfilmentAllocatingStock), *ful.WorkflowState)
	assert.Equal(t, fulfillment.StatusPending, ful.Status)
	logs, err := f.store.Fulfillments().ListTransitions(ctx, ful.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].FromState)

	for i, qty := range []int{2, 3} {
		row, err := f.store.Stock().Get(ctx, seeded.storeID, seeded.variants[i])
		require.NoError(t, err)
		assert.Equal(t, qty, row.Reserved)
		assert.Equal(t, 0, row.Quantity)
	}

	targets := notificationTargets(t, f.eventsOfType(t, events.EventTypeNotification))
	assert.Equal(t, map[string]string{
		seeded.managerID.String(): events.NotificationFulfillmentRequested,
		seeded.billerID.String():  events.NotificationOrderAdvanced,
	}, targets)

	cleared := f.eventsOfType(t, events.EventTypeSaleCleared)
	require.Len(t, cleared, 1)
	var payload events.SaleClearedPayload
	decodeJSON(t, cleared[0].Payload, &payload)
	assert.Equal(t, seeded.order.ID.String(), payload.OrderID)
	assert.Equal(t, seeded.storeID.String(), payload.StoreID)
	require.NotNil(t, cleared[0].AggregateType)
	assert.Equal(t, events.AggregateSaleOrder, *cleared[0].AggregateType)
}

func TestHandlePaymentConfirmed_DuplicateDeliveryIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{
		orderType:   sale.TypeReseller,
		total:       100,
		state:       workflow.SalePaymentInitiated,
		creditLimit: 1000,
		quantities:  []int{4},
	})
	f.confirmedPayment(t, seeded.order.ID, 60)
	payload := events.PaymentConfirmedPayload{SaleOrderID: seeded.order.ID.String()}

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, payload)
	require.NoError(t, err)
	require.True(t, advanced)

	advanced, err = f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, payload)
	require.NoError(t, err)
	assert.False(t, advanced)

	row, err := f.store.Stock().Get(ctx, seeded.storeID, seeded.variants[0])
	require.NoError(t, err)
	assert.Equal(t, 4, row.Reserved)
	assert.Len(t, f.eventsOfType(t, events.EventTypeNotification), 2)
	assert.Len(t, f.eventsOfType(t, events.EventTypeSaleCleared), 1)

	profile, err := f.store.Sales().GetResellerProfile(ctx, seeded.resellerID)
	require.NoError(t, err)
	assert.True(t, profile.OutstandingBalance.Equal(decimal.NewFromInt(40)))
}

func TestHandlePaymentConfirmed_OverCreditLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{
		orderType:   sale.TypeReseller,
		total:       100,
		state:       workflow.SalePaymentInitiated,
		creditLimit: 20,
		quantities:  []int{1},
	})
	f.confirmedPayment(t, seeded.order.ID, 60)

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, events.PaymentConfirmedPayload{SaleOrderID: seeded.order.ID.String()})
	require.NoError(t, err)
	assert.False(t, advanced)

	snap, err := f.sales.Snapshot(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SalePaymentPendingConfirmation, snap.State)
	assert.Equal(t, sale.PhaseSale, snap.Phase)
	assert.True(t, snap.Context.Credit.Overage.Equal(decimal.NewFromInt(20)), snap.Context.Credit.Overage.String())
	assert.Nil(t, snap.Context.Overrides.Credit)
	require.Len(t, snap.Transitions, 1)
	assert.Equal(t, string(workflow.SaleEventPaymentConfirmed), *snap.Transitions[0].Event)

	_, err = f.store.Fulfillments().GetBySaleOrderID(ctx, seeded.order.ID)
	assert.ErrorIs(t, err, salesflow_errors.ErrNotFound)

	profile, err := f.store.Sales().GetResellerProfile(ctx, seeded.resellerID)
	require.NoError(t, err)
	assert.True(t, profile.OutstandingBalance.IsZero())
	assert.Empty(t, f.eventsOfType(t, events.EventTypeNotification))
}

func TestHandlePaymentConfirmed_FullyPaidConsumerSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 50, state: workflow.SalePaymentPendingConfirmation, quantities: []int{1}})
	f.confirmedPayment(t, seeded.order.ID, 30)
	f.confirmedPayment(t, seeded.order.ID, 20)

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, events.PaymentConfirmedPayload{SaleOrderID: seeded.order.ID.String()})
	require.NoError(t, err)
	assert.True(t, advanced)

	order, err := f.store.Sales().GetOrder(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPaid, order.Status)
	assert.Equal(t, sale.PhaseFulfillment, order.Phase)
}

func TestHandlePaymentConfirmed_AwaitingMethodNeedsRegisteredPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 50, state: workflow.SaleAwaitingPaymentMethod, quantities: []int{1}})
	f.confirmedPayment(t, seeded.order.ID, 50)
	payload := events.PaymentConfirmedPayload{SaleOrderID: seeded.order.ID.String()}

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, payload)
	require.NoError(t, err)
	assert.False(t, advanced)

	snap, err := f.sales.Snapshot(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SaleAwaitingPaymentMethod, snap.State)
	assert.Equal(t, sale.PhaseSale, snap.Phase)
	assert.Equal(t, sale.StatusPending, snap.Status)

	_, err = f.sales.RegisterPayment(ctx, RegisterPaymentInput{SaleOrderID: seeded.order.ID, Method: "CASH", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	advanced, err = f.sales.HandlePaymentConfirmed(ctx, seeded.order.ID, payload)
	require.NoError(t, err)
	assert.True(t, advanced)

	order, err := f.store.Sales().GetOrder(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.PhaseFulfillment, order.Phase)
	assert.Equal(t, sale.StatusPaid, order.Status)
}

func TestHandlePaymentConfirmed_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	advanced, err := f.sales.HandlePaymentConfirmed(context.Background(), id, events.PaymentConfirmedPayload{SaleOrderID: id.String()})
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestRegisterAndConfirmPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 80, quantities: []int{1}})

	_, err := f.sales.RegisterPayment(ctx, RegisterPaymentInput{SaleOrderID: seeded.order.ID, Method: "CARD"})
	assert.ErrorIs(t, err, salesflow_errors.ErrInvalidInput)

	p, err := f.sales.RegisterPayment(ctx, RegisterPaymentInput{SaleOrderID: seeded.order.ID, Method: "CARD", Amount: decimal.NewFromInt(80)})
	require.NoError(t, err)
	assert.Equal(t, sale.PaymentPending, p.Status)
	assert.Equal(t, sale.ChannelConsumer, p.Channel)

	snap, err := f.sales.Snapshot(ctx, seeded.order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SalePaymentInitiated, snap.State)

	confirmed, err := f.sales.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.PaymentConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	_, err = f.sales.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)

	published := f.eventsOfType(t, events.EventTypePaymentConfirmed)
	require.Len(t, published, 1)
	_, orderID, err := events.DecodePaymentConfirmed(published[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, seeded.order.ID, orderID)
	require.NotNil(t, published[0].AggregateID)
	assert.Equal(t, p.ID.String(), *published[0].AggregateID)

	advanced, err := f.sales.HandlePaymentConfirmed(ctx, orderID, events.PaymentConfirmedPayload{SaleOrderID: orderID.String()})
	require.NoError(t, err)
	assert.True(t, advanced)

	_, err = f.sales.ConfirmPayment(ctx, uuid.New())
	assert.ErrorIs(t, err, salesflow_errors.ErrNotFound)
}

func TestApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel syncs legacy status", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 10})

		snap, err := f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventCancel})
		require.NoError(t, err)
		assert.Equal(t, workflow.SaleCancelled, snap.State)
		assert.Equal(t, sale.StatusCancelled, snap.Status)

		_, err = f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventSetPaymentMethod})
		assert.ErrorIs(t, err, salesflow_errors.ErrInvalidTransition)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 10})
		_, err := f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: "TELEPORT"})
		assert.ErrorIs(t, err, salesflow_errors.ErrInvalidInput)
	})

	t.Run("admin override pre-empts payment", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 10, quantities: []int{1}})

		snap, err := f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventAdminOverrideApproved})
		require.NoError(t, err)
		assert.Equal(t, workflow.SaleClearedForFulfilment, snap.State)
		assert.Equal(t, sale.PhaseFulfillment, snap.Phase)
		assert.Equal(t, sale.StatusApproved, snap.Status)
		mustFulfillment(t, f, seeded.order.ID)

		_, err = f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventReset})
		assert.ErrorIs(t, err, salesflow_errors.ErrConflict)
	})

	t.Run("expired override stays in review", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seedOrder(t, orderSpec{orderType: sale.TypeConsumer, total: 10, state: workflow.SalePaymentInitiated})
		past := f.now.Add(-time.Hour)

		snap, err := f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventAdminOverrideApproved, ExpiresAt: &past})
		require.NoError(t, err)
		assert.Equal(t, workflow.SaleOverrideReview, snap.State)

		snap, err = f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventAdminOverrideApproved, ExpiresAt: &past})
		require.NoError(t, err)
		assert.Equal(t, workflow.SaleOverrideReview, snap.State)
		assert.Equal(t, sale.PhaseSale, snap.Phase)

		snap, err = f.sales.ApplyEvent(ctx, seeded.order.ID, workflow.SaleEvent{Type: workflow.SaleEventAdminOverrideDenied})
		require.NoError(t, err)
		assert.Equal(t, workflow.SalePaymentPendingConfirmation, snap.State)
		require.NotNil(t, snap.Context.Overrides.Admin)
		assert.Equal(t, workflow.OverrideDenied, snap.Context.Overrides.Admin.Status)
	})
}
