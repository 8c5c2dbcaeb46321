package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/events"
)

// Sink publishes raw bytes to a pub/sub channel.
type Sink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BroadcastHandler fans order.* events out to read-model subscribers.
type BroadcastHandler struct {
	sink     Sink
	resolver events.ChannelResolver
}

func NewBroadcastHandler(sink Sink, resolver events.ChannelResolver) *BroadcastHandler {
	if resolver == nil {
		resolver = events.NewOrderChannelResolver()
	}
	return &BroadcastHandler{sink: sink, resolver: resolver}
}

func (h *BroadcastHandler) Name() string { return "broadcast" }

func (h *BroadcastHandler) TryHandle(ctx context.Context, e *outboxdomain.OutboxEvent) (bool, error) {
	if !strings.HasPrefix(e.Type, events.OrderEventPrefix) {
		return false, nil
	}
	env := events.Envelope{
		EventID:    e.ID.String(),
		EventType:  e.Type,
		OccurredAt: e.CreatedAt.UTC(),
		Payload:    json.RawMessage(e.Payload),
	}
	if e.AggregateType != nil {
		env.AggregateType = *e.AggregateType
	}
	if e.AggregateID != nil {
		env.AggregateID = *e.AggregateID
	}

	channels := h.resolver.ResolveChannels(e.Type, env.AggregateID)
	if len(channels) == 0 {
		return true, nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return true, fmt.Errorf("encode envelope: %w", err)
	}
	for _, ch := range channels {
		if err := h.sink.Publish(ctx, ch, data); err != nil {
			return true, fmt.Errorf("publish to %s: %w", ch, err)
		}
	}
	return true, nil
}
