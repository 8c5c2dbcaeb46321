package outbox

import (
	"context"

	outboxdomain "salesflow/internal/domain/outbox"
)

// Handler is one link of the dispatch chain.
//
// TryHandle returns true when the event was fully handled and no further handler should see it,
// false when the event is not for this handler. A handler that accepts an event and then fails
// returns the error so the event goes through retry and backoff.
type Handler interface {
	Name() string
	TryHandle(ctx context.Context, e *outboxdomain.OutboxEvent) (bool, error)
}

// Chain runs handlers in priority order until one accepts the event.
type Chain []Handler

// Handle reports the name of the handler that took the event, or "" when none did.
func (c Chain) Handle(ctx context.Context, e *outboxdomain.OutboxEvent) (string, error) {
	for _, h := range c {
		handled, err := h.TryHandle(ctx, e)
		if err != nil {
			return h.Name(), err
		}
		if handled {
			return h.Name(), nil
		}
	}
	return "", nil
}
