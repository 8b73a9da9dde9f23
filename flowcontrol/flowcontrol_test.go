package flowcontrol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTakeChargesBothWindows is spec.md §8 scenario 6: stream_fc=(100,0),
// conn_fc=(60,0); take(..., 75) returns 60, then take(..., 10) returns 0.
func TestTakeChargesBothWindows(t *testing.T) {
	streamFC := New(100)
	connFC := New(60)

	spent := Take(streamFC, connFC, 75)
	require.Equal(t, uint64(60), spent)
	require.Equal(t, uint64(60), streamFC.Used())
	require.Equal(t, uint64(60), connFC.Used())

	spent = Take(streamFC, connFC, 10)
	require.Equal(t, uint64(0), spent)
}

func TestAdvanceIsMonotone(t *testing.T) {
	fc := New(10)
	fc.Advance(20)
	require.Equal(t, uint64(20), fc.Max())
	fc.Advance(5)
	require.Equal(t, uint64(20), fc.Max())
}

func TestShouldAdvertiseMoreCrossesHalfway(t *testing.T) {
	fc := New(100)
	require.False(t, fc.ShouldAdvertiseMore())
	fc.charge(51)
	require.True(t, fc.ShouldAdvertiseMore())
}

func TestTakeLimitedByStreamWindow(t *testing.T) {
	streamFC := New(10)
	connFC := New(1000)

	spent := Take(streamFC, connFC, 50)
	require.Equal(t, uint64(10), spent)
}
