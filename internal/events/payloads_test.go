package events

import (
	"testing"

	salesflow_errors "salesflow/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNotification(t *testing.T) {
	p, err := DecodeNotification([]byte(`{"notifications":[{"userId":"u1","type":"T","message":"m"}]}`))
	require.NoError(t, err)
	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "u1", p.Notifications[0].UserID)

	p, err = DecodeNotification([]byte(`{"notifications":[]}`))
	require.NoError(t, err)
	assert.Empty(t, p.Notifications)

	_, err = DecodeNotification([]byte(`{"other":1}`))
	assert.ErrorIs(t, err, salesflow_errors.ErrMalformedPayload)

	_, err = DecodeNotification([]byte(`not json`))
	assert.ErrorIs(t, err, salesflow_errors.ErrMalformedPayload)
}

func TestDecodePaymentConfirmed(t *testing.T) {
	id := uuid.New()
	_, got, err := DecodePaymentConfirmed([]byte(`{"saleOrderId":"` + id.String() + `","amount":"60"}`))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, raw := range []string{`{}`, `{"saleOrderId":"nope"}`, `[]`} {
		_, _, err := DecodePaymentConfirmed([]byte(raw))
		assert.ErrorIs(t, err, salesflow_errors.ErrMalformedPayload, raw)
	}
}

func TestOrderChannelResolver(t *testing.T) {
	r := NewOrderChannelResolver()
	assert.Equal(t, []string{"channel:order:abc"}, r.ResolveChannels(EventTypeSaleCleared, "abc"))
	assert.Nil(t, r.ResolveChannels(EventTypeNotification, "abc"))
	assert.Nil(t, r.ResolveChannels(EventTypeFulfillmentStatusChanged, ""))
}
