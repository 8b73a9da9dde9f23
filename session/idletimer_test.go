package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestIdleTimerExpiresAfterTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewIdleTimer(clock, 30*time.Second)
	require.False(t, timer.Expired())

	clock.Advance(29 * time.Second)
	require.False(t, timer.Expired())

	clock.Advance(2 * time.Second)
	require.True(t, timer.Expired())
}

func TestIdleTimerTouchResetsCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewIdleTimer(clock, 30*time.Second)

	clock.Advance(25 * time.Second)
	timer.Touch()
	clock.Advance(25 * time.Second)
	require.False(t, timer.Expired())
}
