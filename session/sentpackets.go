package session

import "github.com/quicforge/qcore/wire"

// sentPacket records what a previously transmitted packet carried, so
// an incoming ACK can retire it.
type sentPacket struct {
	frames []wire.Frame
	size   int
}

// sentPacketTracker remembers outstanding sent packets per
// packet-number space until they are acknowledged (spec.md §4.8: "ACK
// → feed largest-acknowledged and ranges to the retransmission
// tracker; retire acknowledged sent frames"). No retransmission
// scheduling is implemented; congestion control and loss recovery are
// out of scope (spec.md Non-goals), so retiring a frame here simply
// means the session will not consider it pending any longer.
type sentPacketTracker struct {
	outstanding map[wire.PacketNumber]sentPacket
}

func newSentPacketTracker() *sentPacketTracker {
	return &sentPacketTracker{outstanding: make(map[wire.PacketNumber]sentPacket)}
}

// OnSent records that pn carried frames totalling size bytes.
func (t *sentPacketTracker) OnSent(pn wire.PacketNumber, frames []wire.Frame, size int) {
	t.outstanding[pn] = sentPacket{frames: frames, size: size}
}

// OnAck retires every outstanding packet covered by the ACK's ranges,
// returning their total byte size for the congestion controller and
// the frames they carried for any caller that wants to know what just
// got confirmed delivered.
func (t *sentPacketTracker) OnAck(ack wire.AckFrame) (ackedSize int, ackedFrames []wire.Frame) {
	for _, rng := range ack.Ranges {
		for pn := rng.Start; pn <= rng.End; pn++ {
			sp, ok := t.outstanding[pn]
			if !ok {
				continue
			}
			delete(t.outstanding, pn)
			ackedSize += sp.size
			ackedFrames = append(ackedFrames, sp.frames...)
		}
	}
	return ackedSize, ackedFrames
}

// InFlight returns the total size of packets not yet acknowledged.
func (t *sentPacketTracker) InFlight() int {
	total := 0
	for _, sp := range t.outstanding {
		total += sp.size
	}
	return total
}
