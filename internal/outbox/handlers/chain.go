package handlers

import (
	"salesflow/internal/events"
	"salesflow/internal/outbox"
	"salesflow/internal/repository"
	"salesflow/pkg/logger"
)

// DefaultChain wires the handlers in dispatch priority order. A nil sink leaves
// order events to the unhandled path.
func DefaultChain(store repository.Store, sales PaymentAdvancer, sink Sink, l *logger.Logger) outbox.Chain {
	chain := outbox.Chain{
		NewNotificationHandler(store.Users(), store.Notifications(), l),
		NewAuditHandler(store.Audit()),
		NewPaymentHandler(sales, l),
	}
	if sink != nil {
		chain = append(chain, NewBroadcastHandler(sink, events.NewOrderChannelResolver()))
	}
	return chain
}
