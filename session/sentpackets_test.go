package session

import (
	"testing"

	"github.com/quicforge/qcore/wire"
	"github.com/stretchr/testify/require"
)

func TestSentPacketTrackerRetiresAckedRange(t *testing.T) {
	tr := newSentPacketTracker()
	tr.OnSent(0, []wire.Frame{wire.PingFrame{}}, 30)
	tr.OnSent(1, []wire.Frame{wire.PingFrame{}}, 30)
	tr.OnSent(2, []wire.Frame{wire.PingFrame{}}, 30)
	require.Equal(t, 90, tr.InFlight())

	ackedSize, _ := tr.OnAck(wire.AckFrame{
		LargestAcknowledged: 1,
		Ranges:              []wire.PacketNumberRange{{Start: 0, End: 1}},
	})
	require.Equal(t, 60, ackedSize)
	require.Equal(t, 30, tr.InFlight())
}

func TestSentPacketTrackerIgnoresUnknownPacketNumbers(t *testing.T) {
	tr := newSentPacketTracker()
	tr.OnSent(5, []wire.Frame{wire.PingFrame{}}, 10)

	ackedSize, _ := tr.OnAck(wire.AckFrame{
		LargestAcknowledged: 100,
		Ranges:              []wire.PacketNumberRange{{Start: 90, End: 100}},
	})
	require.Equal(t, 0, ackedSize)
	require.Equal(t, 10, tr.InFlight())
}
