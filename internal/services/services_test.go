package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/inventory"
	"salesflow/internal/domain/outbox"
	"salesflow/internal/domain/sale"
	"salesflow/internal/domain/user"
	"salesflow/internal/events"
	"salesflow/internal/repository/memory"
	"salesflow/internal/workflow"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store        *memory.Store
	publisher    *EventPublisher
	recorder     *WorkflowRecorder
	coordinator  *PhaseCoordinator
	sales        *SaleService
	fulfillments *FulfillmentService
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.New()
	publisher := NewEventPublisher(store)
	publisher.clock = clock
	recorder := NewWorkflowRecorder()
	recorder.clock = clock
	l := logger.NewNop()
	coordinator := NewPhaseCoordinator(publisher, recorder, l)
	sales := NewSaleService(store, publisher, recorder, coordinator, l)
	sales.clock = clock

	return &fixture{
		store:        store,
		publisher:    publisher,
		recorder:     recorder,
		coordinator:  coordinator,
		sales:        sales,
		fulfillments: NewFulfillmentService(store, recorder, coordinator, l),
		now:          now,
	}
}

type seededOrder struct {
	order      sale.SaleOrder
	storeID    uuid.UUID
	managerID  uuid.UUID
	billerID   uuid.UUID
	resellerID uuid.UUID
	variants   []uuid.UUID
}

type orderSpec struct {
	orderType   sale.Type
	total       int64
	state       workflow.SaleState
	creditLimit int64
	outstanding int64
	quantities  []int
}

func (f *fixture) seedOrder(t *testing.T, o orderSpec) seededOrder {
	t.Helper()
	ctx := context.Background()

	managerID := uuid.New()
	store := &inventory.Store{Name: "Central", ManagerID: &managerID}
	require.NoError(t, f.store.Stock().CreateStore(ctx, store))

	seeded := seededOrder{storeID: store.ID, managerID: managerID, billerID: uuid.New(), resellerID: uuid.New()}
	order := sale.SaleOrder{
		Type:        o.orderType,
		Status:      sale.StatusPending,
		Phase:       sale.PhaseSale,
		TotalAmount: decimal.NewFromInt(o.total),
		StoreID:     store.ID,
		BillerID:    seeded.billerID,
	}
	if o.state != "" {
		s := string(o.state)
		order.WorkflowState = &s
	}
	require.NoError(t, f.store.Sales().CreateOrder(ctx, &order))

	for range o.quantities {
		seeded.variants = append(seeded.variants, uuid.New())
	}
	switch o.orderType {
	case sale.TypeReseller:
		rs := &sale.ResellerSale{SaleOrderID: order.ID, ResellerID: seeded.resellerID}
		for i, qty := range o.quantities {
			rs.Items = append(rs.Items, sale.ResellerSaleItem{ProductVariantID: seeded.variants[i], Quantity: qty, UnitPrice: decimal.NewFromInt(10)})
		}
		require.NoError(t, f.store.Sales().CreateResellerSale(ctx, rs))
		require.NoError(t, f.store.Sales().UpsertResellerProfile(ctx, &user.ResellerProfile{
			UserID:             seeded.resellerID,
			CreditLimit:        decimal.NewFromInt(o.creditLimit),
			OutstandingBalance: decimal.NewFromInt(o.outstanding),
		}))
	default:
		cs := &sale.ConsumerSale{SaleOrderID: order.ID, CustomerName: "Walk-in"}
		for i, qty := range o.quantities {
			cs.Items = append(cs.Items, sale.ConsumerSaleItem{ProductVariantID: seeded.variants[i], Quantity: qty, UnitPrice: decimal.NewFromInt(10)})
		}
		require.NoError(t, f.store.Sales().CreateConsumerSale(ctx, cs))
	}

	seeded.order = order
	return seeded
}

func (f *fixture) confirmedPayment(t *testing.T, orderID uuid.UUID, amount int64) uuid.UUID {
	t.Helper()
	p := &sale.Payment{
		SaleOrderID: orderID,
		Channel:     sale.ChannelReseller,
		Method:      "TRANSFER",
		Amount:      decimal.NewFromInt(amount),
		Status:      sale.PaymentConfirmed,
	}
	require.NoError(t, f.store.Sales().CreatePayment(context.Background(), p))
	return p.ID
}

func (f *fixture) eventsOfType(t *testing.T, eventType string) []outbox.OutboxEvent {
	t.Helper()
	ctx := context.Background()
	ids, err := f.store.Outbox().ListDueIDs(ctx, outbox.Filter{Status: outbox.StatusPending, Type: eventType, Limit: 1000}, f.now.Add(time.Hour))
	require.NoError(t, err)
	out := make([]outbox.OutboxEvent, 0, len(ids))
	for _, id := range ids {
		e, err := f.store.Outbox().GetByID(ctx, id)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func notificationTargets(t *testing.T, evs []outbox.OutboxEvent) map[string]string {
	t.Helper()
	targets := map[string]string{}
	for _, e := range evs {
		p, err := events.DecodeNotification(e.Payload)
		require.NoError(t, err)
		for _, n := range p.Notifications {
			targets[n.UserID] = n.Type
		}
	}
	return targets
}

func decodeJSON(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func mustFulfillment(t *testing.T, f *fixture, orderID uuid.UUID) fulfillment.Fulfillment {
	t.Helper()
	got, err := f.store.Fulfillments().GetBySaleOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return got
}
