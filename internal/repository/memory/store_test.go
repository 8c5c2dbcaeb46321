package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salesflow/internal/domain/fulfillment"
	"salesflow/internal/domain/outbox"
	"salesflow/internal/domain/sale"
	"salesflow/internal/repository"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(t *testing.T, s *Store, n int, base time.Time) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		e := &outbox.OutboxEvent{Type: "NOTIFICATION", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Outbox().Create(context.Background(), e))
		ids = append(ids, e.ID)
	}
	return ids
}

func TestOutbox_ListDueIDsOrderAndDeliverAfter(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := seedEvents(t, s, 3, now.Add(-time.Hour))

	future := now.Add(time.Minute)
	later := &outbox.OutboxEvent{Type: "NOTIFICATION", DeliverAfter: &future, CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, s.Outbox().Create(ctx, later))

	due, err := s.Outbox().ListDueIDs(ctx, outbox.Filter{Status: outbox.StatusPending, Limit: 10}, now)
	require.NoError(t, err)
	assert.Equal(t, ids, due)

	due, err = s.Outbox().ListDueIDs(ctx, outbox.Filter{Status: outbox.StatusPending, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, ids[:2], due)
}

func TestOutbox_ClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	ids := seedEvents(t, s, 50, now.Add(-time.Minute))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
		seen  = map[uuid.UUID]uuid.UUID{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := uuid.New()
			n, err := s.Outbox().Claim(ctx, ids, outbox.StatusPending, token, now)
			assert.NoError(t, err)
			claimed, err := s.Outbox().ListClaimed(ctx, token)
			assert.NoError(t, err)
			assert.Len(t, claimed, int(n))

			mu.Lock()
			defer mu.Unlock()
			total += n
			for _, e := range claimed {
				_, dup := seen[e.ID]
				assert.False(t, dup, "event %s claimed twice", e.ID)
				seen[e.ID] = token
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, len(ids), total)
}

func TestOutbox_MarkFailedAndReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	ids := seedEvents(t, s, 1, now.Add(-time.Minute))
	token := uuid.New()

	_, err := s.Outbox().Claim(ctx, ids, outbox.StatusPending, token, now)
	require.NoError(t, err)
	require.NoError(t, s.Outbox().MarkFailed(ctx, ids[0], "boom", now.Add(time.Minute), now))

	e, err := s.Outbox().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusFailed, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.LastError)
	assert.Equal(t, "boom", *e.LastError)
	assert.Nil(t, e.ClaimToken)

	err = s.Outbox().MarkPublished(ctx, ids[0], now)
	assert.True(t, errors.Is(err, salesflow_errors.ErrConflict))

	n, err := s.Outbox().ResetFailed(ctx, outbox.Filter{Limit: 10}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	e, err = s.Outbox().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.Nil(t, e.LastError)
	assert.Nil(t, e.DeliverAfter)
	assert.Equal(t, 1, e.RetryCount)
}

func TestOutbox_ResetStaleProcessing(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	ids := seedEvents(t, s, 2, now.Add(-time.Hour))

	_, err := s.Outbox().Claim(ctx, ids[:1], outbox.StatusPending, uuid.New(), now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = s.Outbox().Claim(ctx, ids[1:], outbox.StatusPending, uuid.New(), now)
	require.NoError(t, err)

	n, err := s.Outbox().ResetStaleProcessing(ctx, now.Add(-10*time.Minute), 10, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	counts, err := s.Outbox().CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Pending)
	assert.EqualValues(t, 1, counts.Processing)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	order := &sale.SaleOrder{TotalAmount: decimal.NewFromInt(10)}
	require.NoError(t, s.Sales().CreateOrder(ctx, order))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Sales().GetOrderForUpdate(ctx, order.ID)
		require.NoError(t, err)
		o.Phase = sale.PhaseFulfillment
		require.NoError(t, tx.Sales().UpdateOrder(ctx, &o))
		require.NoError(t, tx.Fulfillments().Create(ctx, &fulfillment.Fulfillment{SaleOrderID: order.ID}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	o, err := s.Sales().GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.PhaseSale, o.Phase)
	_, err = s.Fulfillments().GetBySaleOrderID(ctx, order.ID)
	assert.ErrorIs(t, err, salesflow_errors.ErrNotFound)
}

func TestFulfillment_CreateIsUniquePerOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	orderID := uuid.New()

	require.NoError(t, s.Fulfillments().Create(ctx, &fulfillment.Fulfillment{SaleOrderID: orderID}))
	err := s.Fulfillments().Create(ctx, &fulfillment.Fulfillment{SaleOrderID: orderID})
	assert.ErrorIs(t, err, salesflow_errors.ErrAlreadyExists)
}

func TestStock_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := New()
	storeID, variantID := uuid.New(), uuid.New()

	require.NoError(t, s.Stock().Reserve(ctx, storeID, variantID, 2))
	require.NoError(t, s.Stock().Reserve(ctx, storeID, variantID, 3))
	row, err := s.Stock().Get(ctx, storeID, variantID)
	require.NoError(t, err)
	assert.Equal(t, 5, row.Reserved)
	assert.Equal(t, 0, row.Quantity)

	require.NoError(t, s.Stock().Release(ctx, storeID, variantID, 4))
	row, err = s.Stock().Get(ctx, storeID, variantID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.Reserved)

	assert.ErrorIs(t, s.Stock().Release(ctx, uuid.New(), variantID, 1), salesflow_errors.ErrNotFound)
}

func TestSales_SumConfirmedPayments(t *testing.T) {
	ctx := context.Background()
	s := New()
	orderID := uuid.New()

	require.NoError(t, s.Sales().CreatePayment(ctx, &sale.Payment{SaleOrderID: orderID, Amount: decimal.NewFromInt(40), Status: sale.PaymentConfirmed}))
	require.NoError(t, s.Sales().CreatePayment(ctx, &sale.Payment{SaleOrderID: orderID, Amount: decimal.NewFromInt(25), Status: sale.PaymentPending}))
	require.NoError(t, s.Sales().CreatePayment(ctx, &sale.Payment{SaleOrderID: uuid.New(), Amount: decimal.NewFromInt(99), Status: sale.PaymentConfirmed}))

	sum, err := s.Sales().SumConfirmedPayments(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(40)), sum.String())
}
