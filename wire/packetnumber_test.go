package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferPacketNumberAcrossRollover(t *testing.T) {
	// spec.md §8 scenario 2: largest_acknowledged = 0x00FF, incoming
	// partial is 1 byte = 0x02; inference must yield 0x0102, not 0x0002.
	got := InferPacketNumber(0x00FF, true, 0x02, PartialLen1)
	require.Equal(t, PacketNumber(0x0102), got)
}

func TestInferPacketNumberNoPriorAck(t *testing.T) {
	got := InferPacketNumber(0, false, 0x2a, PartialLen2)
	require.Equal(t, PacketNumber(0x2a), got)
}

func TestInferPacketNumberSteadyState(t *testing.T) {
	// Common case: small forward progress, no rollover involved.
	got := InferPacketNumber(1000, true, PacketNumber(1001).Truncate(PartialLen2), PartialLen2)
	require.Equal(t, PacketNumber(1001), got)
}

func TestChoosePartialLenWidensAsDeltaGrows(t *testing.T) {
	l, err := ChoosePartialLen(10)
	require.NoError(t, err)
	require.Equal(t, PartialLen1, l)

	l, err = ChoosePartialLen(1000)
	require.NoError(t, err)
	require.Equal(t, PartialLen2, l)

	_, err = ChoosePartialLen(1 << 50)
	require.Error(t, err)
}

func TestTruncateMasksToWidth(t *testing.T) {
	pn := PacketNumber(0x1_0203)
	require.Equal(t, uint64(0x03), pn.Truncate(PartialLen1))
	require.Equal(t, uint64(0x0203), pn.Truncate(PartialLen2))
}
