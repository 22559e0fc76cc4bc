package transport

import "time"

// Default backoff bounds: 1s, 2s, 4s, 8s, 16s cap.
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 16 * time.Second
)

// ReconnectPolicy decides whether, and after how long, a session replaces a
// failed transport with a fresh one.
type ReconnectPolicy interface {
	// Delay returns the wait before reconnect attempt n (counting from 1),
	// or false when no further attempt should be made.
	Delay(attempt int) (time.Duration, bool)
}

type noReconnect struct{}

func (noReconnect) Delay(int) (time.Duration, bool) { return 0, false }

// NoReconnect never retries.
var NoReconnect ReconnectPolicy = noReconnect{}

// Backoff retries up to MaxAttempts times, doubling the delay from Initial
// up to Max.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > b.MaxAttempts {
		return 0, false
	}
	d, limit := b.Initial, b.Max
	if d <= 0 {
		d = DefaultBackoffInitial
	}
	if limit <= 0 {
		limit = DefaultBackoffMax
	}
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d, true
}

// PolicyFor returns NoReconnect when attempts <= 0 and a Backoff otherwise.
func PolicyFor(attempts int, initial, max time.Duration) ReconnectPolicy {
	if attempts <= 0 {
		return NoReconnect
	}
	return Backoff{Initial: initial, Max: max, MaxAttempts: attempts}
}
