package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"salesflow/internal/domain/outbox"
	"salesflow/internal/repository"
	salesflow_errors "salesflow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	later := f.now.Add(5 * time.Minute)
	id, err := f.publisher.Publish(ctx, "PURCHASE_ORDER_CREATED", map[string]string{"orderId": "po-1"},
		WithAggregate("PurchaseOrder", "po-1"),
		WithDeliverAfter(later),
	)
	require.NoError(t, err)

	got, err := f.store.Outbox().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	require.NotNil(t, got.AggregateType)
	assert.Equal(t, "PurchaseOrder", *got.AggregateType)
	require.NotNil(t, got.AggregateID)
	assert.Equal(t, "po-1", *got.AggregateID)
	require.NotNil(t, got.DeliverAfter)
	assert.True(t, later.Equal(*got.DeliverAfter))
	assert.JSONEq(t, `{"orderId":"po-1"}`, string(got.Payload))

	ids, err := f.store.Outbox().ListDueIDs(ctx, outbox.Filter{Status: outbox.StatusPending, Limit: 10}, f.now)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)
}

func TestEventPublisher_Payloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{"nil", nil, `{}`},
		{"empty bytes", []byte{}, `{}`},
		{"raw message", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"struct", struct {
			Name string `json:"name"`
		}{"x"}, `{"name":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := f.publisher.Publish(ctx, "AUDIT_PING", tc.payload)
			require.NoError(t, err)
			got, err := f.store.Outbox().GetByID(ctx, id)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got.Payload))
			assert.Nil(t, got.AggregateType)
		})
	}

	_, err := f.publisher.Publish(ctx, "", nil)
	assert.ErrorIs(t, err, salesflow_errors.ErrInvalidInput)

	_, err = f.publisher.Publish(ctx, "BROKEN", func() {})
	assert.ErrorIs(t, err, salesflow_errors.ErrInvalidInput)
}

func TestEventPublisher_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := f.publisher.Publish(ctx, "RFQ_CREATED", nil, WithStore(tx)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.eventsOfType(t, "RFQ_CREATED"))

	err = f.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := f.publisher.Publish(ctx, "RFQ_CREATED", nil, WithStore(tx))
		return err
	})
	require.NoError(t, err)
	assert.Len(t, f.eventsOfType(t, "RFQ_CREATED"), 1)
}
