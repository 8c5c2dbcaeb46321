package events

import (
	"fmt"
	"strings"
)

// ChannelResolver determines which Redis channels an outbox event is fanned out to
type ChannelResolver interface {
	ResolveChannels(eventType, aggregateID string) []string
}

// OrderChannelResolver routes order.* events to the per-order channel.
type OrderChannelResolver struct{}

func NewOrderChannelResolver() *OrderChannelResolver {
	return &OrderChannelResolver{}
}

func (r *OrderChannelResolver) ResolveChannels(eventType, aggregateID string) []string {
	if !strings.HasPrefix(eventType, OrderEventPrefix) || aggregateID == "" {
		return nil
	}
	return []string{OrderChannel(aggregateID)}
}

func OrderChannel(orderID string) string {
	return fmt.Sprintf("channel:order:%s", orderID)
}
