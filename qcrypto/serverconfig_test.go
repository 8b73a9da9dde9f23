package qcrypto

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestConfigRotatorServesSameConfigUntilExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewConfigRotator(clock, time.Hour)

	first := r.Current()
	clock.Advance(30 * time.Minute)
	require.Equal(t, first, r.Current())
	require.True(t, r.AcceptsOrbit(first.Orbit))
}

func TestConfigRotatorRotatesAfterExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewConfigRotator(clock, time.Hour)

	first := r.Current()
	clock.Advance(2 * time.Hour)
	second := r.Current()

	require.NotEqual(t, first.ID, second.ID)
	require.False(t, r.AcceptsOrbit(first.Orbit))
}
