package pnspace

import (
	"testing"

	"github.com/quicforge/qcore/wire"
	"github.com/stretchr/testify/require"
)

func TestInsertThenInsertAgainIsNotNew(t *testing.T) {
	h := New()
	require.True(t, h.Insert(5))
	require.False(t, h.Insert(5))
}

func TestInsertMergesAdjacentRanges(t *testing.T) {
	h := New()
	require.True(t, h.Insert(10))
	require.True(t, h.Insert(12))
	require.True(t, h.Insert(11))

	highest, ok := h.HighestRange()
	require.True(t, ok)
	require.Equal(t, wire.PacketNumberRange{Start: 10, End: 12}, highest)
}

func TestForgetUpToMakesEverythingBelowADuplicate(t *testing.T) {
	h := New()
	h.Insert(1)
	h.Insert(2)
	h.Insert(3)
	h.Insert(10)

	h.ForgetUpTo(3)

	for k := wire.PacketNumber(0); k <= 3; k++ {
		require.True(t, h.IsDuplicate(k), "packet %d should be a duplicate after forgetting up to 3", k)
	}
	require.False(t, h.IsDuplicate(10))

	highest, ok := h.HighestRange()
	require.True(t, ok)
	require.Equal(t, wire.PacketNumberRange{Start: 10, End: 10}, highest)
}

func TestForgetUpToIsMonotone(t *testing.T) {
	h := New()
	h.Insert(5)
	h.ForgetUpTo(10)
	h.ForgetUpTo(2) // must not lower the watermark

	require.True(t, h.IsDuplicate(10))
	require.True(t, h.IsDuplicate(2))
}

func TestIsDuplicateFalseForEmptyHistory(t *testing.T) {
	h := New()
	require.False(t, h.IsDuplicate(0))
}

// TestSynthesizeAckMatchesWorkedExample is spec.md §8 scenario 3's
// received packet set, reused here to confirm PacketHistory produces
// the same ranges that wire.AckFrame's own round-trip test encodes
// directly.
func TestSynthesizeAckMatchesWorkedExample(t *testing.T) {
	h := New()
	for _, pn := range []wire.PacketNumber{10, 11, 12, 46, 47, 48, 50, 51, 52, 53, 54} {
		h.Insert(pn)
	}

	ack, ok := h.SynthesizeAck(0)
	require.True(t, ok)
	require.Equal(t, wire.PacketNumber(54), ack.LargestAcknowledged)
	require.Equal(t, []wire.PacketNumberRange{
		{Start: 50, End: 54},
		{Start: 46, End: 48},
		{Start: 10, End: 12},
	}, ack.Ranges)
}

func TestRangesDescendingOrder(t *testing.T) {
	h := New()
	h.Insert(1)
	h.Insert(100)
	h.Insert(50)

	ranges := h.Ranges()
	require.Len(t, ranges, 3)
	require.Equal(t, wire.PacketNumber(100), ranges[0].Start)
	require.Equal(t, wire.PacketNumber(50), ranges[1].Start)
	require.Equal(t, wire.PacketNumber(1), ranges[2].Start)
}
