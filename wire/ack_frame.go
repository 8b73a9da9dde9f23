package wire

import (
	"time"

	"github.com/gravitational/trace"
	"github.com/quicforge/qcore/primitives"
	"github.com/quicforge/qcore/qerr"
)

// PacketNumberRange is an inclusive, contiguous run of acknowledged
// packet numbers.
type PacketNumberRange struct {
	Start PacketNumber
	End   PacketNumber
}

// AckFrame acknowledges one or more ranges of received packet numbers
// in a single packet-number space. Ranges must be supplied in
// descending order, matching the order a PacketHistory enumerates them
// (spec.md §4.7), with the first range containing LargestAcknowledged.
type AckFrame struct {
	LargestAcknowledged PacketNumber
	AckDelay            time.Duration
	Ranges              []PacketNumberRange
}

func (f AckFrame) WriteTo(buf []byte) ([]byte, error) {
	if len(f.Ranges) == 0 {
		return nil, trace.BadParameter("ack frame must acknowledge at least one range")
	}
	first := f.Ranges[0]
	if first.End != f.LargestAcknowledged {
		return nil, trace.BadParameter("first ack range must end at largest_acknowledged")
	}

	buf = append(buf, frameTypeAckBase)
	buf = primitives.AppendVarInt(buf, uint64(f.LargestAcknowledged))
	buf = primitives.AppendVarInt(buf, uint64(primitives.UFloat16(uint64(f.AckDelay.Microseconds()))))
	buf = primitives.AppendVarInt(buf, uint64(len(f.Ranges)-1))
	buf = primitives.AppendVarInt(buf, uint64(first.End-first.Start))

	smallestOfPrevious := first.Start
	for _, rng := range f.Ranges[1:] {
		if rng.End+2 > smallestOfPrevious {
			return nil, trace.BadParameter("ack ranges must be descending and non-adjacent")
		}
		gap := uint64(smallestOfPrevious) - uint64(rng.End) - 2
		block := uint64(rng.End - rng.Start)
		buf = primitives.AppendVarInt(buf, gap)
		buf = primitives.AppendVarInt(buf, block)
		smallestOfPrevious = rng.Start
	}
	return buf, nil
}

func (f AckFrame) Len() int {
	if len(f.Ranges) == 0 {
		return 1
	}
	first := f.Ranges[0]
	n := 1
	n += primitives.VarIntLen(uint64(f.LargestAcknowledged))
	n += primitives.VarIntLen(uint64(primitives.UFloat16(uint64(f.AckDelay.Microseconds()))))
	n += primitives.VarIntLen(uint64(len(f.Ranges) - 1))
	n += primitives.VarIntLen(uint64(first.End - first.Start))
	smallestOfPrevious := first.Start
	for _, rng := range f.Ranges[1:] {
		gap := uint64(smallestOfPrevious) - uint64(rng.End) - 2
		block := uint64(rng.End - rng.Start)
		n += primitives.VarIntLen(gap) + primitives.VarIntLen(block)
		smallestOfPrevious = rng.Start
	}
	return n
}

// readAckFrame ignores the type byte's low bits below the ACK marker
// (they carry no information in this version) and reconstructs
// descending ranges per spec.md §4.2:
//
//	largest ← largest_acknowledged; range ← [largest − first_ack_block, largest + 1)
//	for each (gap, block): largest ← (smallest_of_previous − gap − 2); range ← [largest − block, largest + 1)
//
// Underflow in either subtraction is a framing error.
func readAckFrame(r primitives.ByteReader, _ byte) (Frame, error) {
	largestAcked, err := primitives.ReadVarInt(r)
	if err != nil {
		return nil, trace.Wrap(err, "decoding ACK largest_acknowledged")
	}
	rawDelay, err := primitives.ReadVarIntMax(r, 0xFFFF)
	if err != nil {
		return nil, trace.Wrap(err, "decoding ACK ack_delay")
	}
	ackDelay := time.Duration(primitives.UFloat16Decode(uint16(rawDelay))) * time.Microsecond

	blockCount, err := primitives.ReadVarInt(r)
	if err != nil {
		return nil, trace.Wrap(err, "decoding ACK ack_block_count")
	}
	firstAckBlock, err := primitives.ReadVarInt(r)
	if err != nil {
		return nil, trace.Wrap(err, "decoding ACK first_ack_block")
	}
	if firstAckBlock > largestAcked {
		return nil, qerr.New(qerr.FrameFormatError, qerr.KindCodec, "first_ack_block %d underflows largest_acknowledged %d", firstAckBlock, largestAcked)
	}

	largest := largestAcked
	smallestOfPrevious := largest - firstAckBlock
	ranges := []PacketNumberRange{{Start: PacketNumber(smallestOfPrevious), End: PacketNumber(largest)}}

	for i := uint64(0); i < blockCount; i++ {
		gap, err := primitives.ReadVarInt(r)
		if err != nil {
			return nil, trace.Wrap(err, "decoding ACK gap")
		}
		block, err := primitives.ReadVarInt(r)
		if err != nil {
			return nil, trace.Wrap(err, "decoding ACK block_length")
		}
		if smallestOfPrevious < gap+2 {
			return nil, qerr.New(qerr.FrameFormatError, qerr.KindCodec, "ack gap %d underflows smallest_of_previous %d", gap, smallestOfPrevious)
		}
		largest = smallestOfPrevious - gap - 2
		if block > largest {
			return nil, qerr.New(qerr.FrameFormatError, qerr.KindCodec, "ack block_length %d underflows range largest %d", block, largest)
		}
		smallestOfPrevious = largest - block
		ranges = append(ranges, PacketNumberRange{Start: PacketNumber(smallestOfPrevious), End: PacketNumber(largest)})
	}

	return AckFrame{
		LargestAcknowledged: PacketNumber(largestAcked),
		AckDelay:            ackDelay,
		Ranges:              ranges,
	}, nil
}
