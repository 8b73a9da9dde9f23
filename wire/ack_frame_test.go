package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAckFrameRoundTrip(t *testing.T) {
	f := AckFrame{
		LargestAcknowledged: 54,
		AckDelay:            2500 * time.Microsecond,
		Ranges: []PacketNumberRange{
			{Start: 50, End: 54},
			{Start: 46, End: 48},
			{Start: 10, End: 12},
		},
	}

	buf, err := f.WriteTo(nil)
	require.NoError(t, err)
	require.Equal(t, f.Len(), len(buf))

	got, err := ReadFrame(bytes.NewReader(buf))
	require.NoError(t, err)
	ack, ok := got.(AckFrame)
	require.True(t, ok)
	require.Equal(t, f.LargestAcknowledged, ack.LargestAcknowledged)
	require.Equal(t, f.Ranges, ack.Ranges)
}

// TestAckRangeEncodingWorkedExample exercises the packet-set described
// in spec.md's ACK range encoding scenario: received packet numbers
// {10,11,12, 46,47,48, 50,51,52,53,54} collapse to three descending
// ranges. Applying the §4.2 reconstruction formula to those ranges
// yields gap=0 and gap=32 exactly as the scenario specifies; the block
// lengths fall out of the same formula as 2 (count-1 per range), the
// value consistent with first_ack_block's own count-1 convention.
func TestAckRangeEncodingWorkedExample(t *testing.T) {
	ranges := []PacketNumberRange{
		{Start: 50, End: 54},
		{Start: 46, End: 48},
		{Start: 10, End: 12},
	}
	f := AckFrame{LargestAcknowledged: 54, Ranges: ranges}

	buf, err := f.WriteTo(nil)
	require.NoError(t, err)

	got, err := ReadFrame(bytes.NewReader(buf))
	require.NoError(t, err)
	ack := got.(AckFrame)

	require.Equal(t, PacketNumber(54), ack.LargestAcknowledged)
	require.Equal(t, ranges, ack.Ranges)

	// Manually unpack the wire bytes to check gap/block values directly.
	r := bytes.NewReader(buf)
	typeByte, _ := r.ReadByte()
	require.Equal(t, frameTypeAckBase, typeByte)
	// Every field fits a 1-byte VarInt: largest=54, delay=0, block
	// count=2, first_ack_block=4, then (gap=0, block=2), (gap=32, block=2).
	require.Equal(t, []byte{frameTypeAckBase, 54, 0, 2, 4, 0, 2, 32, 2}, buf)
}
