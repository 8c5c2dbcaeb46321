package services

import (
	"context"
	"errors"
	"testing"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/sale"
	"salesflow/internal/repository"
	"salesflow/internal/workflow"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTxAborted = errors.New("current transaction is aborted")

// racingStore behaves like a Postgres transaction that lost a fulfillment insert race:
// the lookup misses the competing row, the insert fails with a unique violation and every
// later statement in the same scope fails until a savepoint rolls back.
type racingStore struct {
	repository.Store
	aborted *bool
}

func newRacingStore(inner repository.Store) racingStore {
	return racingStore{Store: inner, aborted: new(bool)}
}

func (s racingStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(racingStore{Store: tx, aborted: new(bool)})
	})
}

func (s racingStore) Fulfillments() repository.FulfillmentRepository {
	return racingFulfillments{FulfillmentRepository: s.Store.Fulfillments(), aborted: s.aborted}
}

func (s racingStore) Stock() repository.StockRepository {
	return racingStock{StockRepository: s.Store.Stock(), aborted: s.aborted}
}

type racingFulfillments struct {
	repository.FulfillmentRepository
	aborted *bool
}

func (r racingFulfillments) GetBySaleOrderID(context.Context, uuid.UUID) (fulfillment.Fulfillment, error) {
	return fulfillment.Fulfillment{}, salesflow_errors.ErrNotFound
}

func (r racingFulfillments) Create(ctx context.Context, f *fulfillment.Fulfillment) error {
	err := r.FulfillmentRepository.Create(ctx, f)
	if errors.Is(err, salesflow_errors.ErrAlreadyExists) {
		*r.aborted = true
	}
	return err
}

type racingStock struct {
	repository.StockRepository
	aborted *bool
}

func (r racingStock) Reserve(ctx context.Context, storeID, variantID uuid.UUID, qty int) error {
	if *r.aborted {
		return errTxAborted
	}
	return r.StockRepository.Reserve(ctx, storeID, variantID, qty)
}

func TestAdvanceSale_LostFulfillmentInsertRaceKeepsTransactionUsable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seedOrder(t, orderSpec{
		orderType:   sale.TypeReseller,
		total:       50,
		state:       workflow.SalePaymentInitiated,
		creditLimit: 1000,
		quantities:  []int{2},
	})

	winner := &fulfillment.Fulfillment{SaleOrderID: seeded.order.ID, Type: fulfillment.TypePickup, Status: fulfillment.StatusPending}
	require.NoError(t, f.store.Fulfillments().Create(ctx, winner))

	err := newRacingStore(f.store).WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Sales().GetOrderForUpdate(ctx, seeded.order.ID)
		if err != nil {
			return err
		}
		return f.coordinator.AdvanceSale(ctx, tx, ClearedSale{
			Order:   &order,
			From:    stateRef(string(workflow.SalePaymentInitiated)),
			Context: workflow.SaleContext{ClearToFulfil: true},
			Trigger: "PAYMENT_CONFIRMED",
		})
	})
	require.NoError(t, err)

	got := mustFulfillment(t, f, seeded.order.ID)
	assert.Equal(t, winner.ID, got.ID)
	logs, err := f.store.Fulfillments().ListTransitions(ctx, winner.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	stock, err := f.store.Stock().Get(ctx, seeded.storeID, seeded.variants[0])
	require.NoError(t, err)
	assert.Equal(t, 2, stock.Reserved)
}
