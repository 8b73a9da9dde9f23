package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// IdleTimer tracks the most recent send/receive activity on a session and
// reports whether the configured idle timeout has elapsed since. Takes a
// clockwork.Clock rather than calling time.Now directly so tests can
// advance time deterministically instead of sleeping.
type IdleTimer struct {
	clock   clockwork.Clock
	timeout time.Duration
	last    time.Time
}

// NewIdleTimer builds an IdleTimer already touched as of clock's current
// time.
func NewIdleTimer(clock clockwork.Clock, timeout time.Duration) *IdleTimer {
	return &IdleTimer{clock: clock, timeout: timeout, last: clock.Now()}
}

// Touch records activity now, resetting the countdown to timeout.
func (t *IdleTimer) Touch() {
	t.last = t.clock.Now()
}

// Expired reports whether timeout has elapsed since the last Touch.
func (t *IdleTimer) Expired() bool {
	return t.clock.Now().Sub(t.last) >= t.timeout
}
