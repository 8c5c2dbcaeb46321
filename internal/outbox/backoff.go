package outbox

import "time"

const (
	DefaultBackoffStep = time.Minute
	DefaultBackoffMax  = 10 * time.Minute
)

// Backoff is a linear retry delay capped at Max.
type Backoff struct {
	Step time.Duration
	Max  time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Step: DefaultBackoffStep, Max: DefaultBackoffMax}
}

// Delay returns how long an event that has already failed retryCount times waits after its next failure.
func (b Backoff) Delay(retryCount int) time.Duration {
	step, limit := b.Step, b.Max
	if step <= 0 {
		step = DefaultBackoffStep
	}
	if limit <= 0 {
		limit = DefaultBackoffMax
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if int64(retryCount) >= int64(limit/step) {
		return limit
	}
	return min(time.Duration(retryCount+1)*step, limit)
}
