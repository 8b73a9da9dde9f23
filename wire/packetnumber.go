package wire

import "github.com/gravitational/trace"

// PacketNumber is a monotone 64-bit counter within one packet-number
// space (spec.md DATA MODEL). The sender never reuses a number within a
// space.
type PacketNumber uint64

// PartialLen is the on-wire truncation width of a packet number, one of
// {1, 2, 4, 6} bytes per spec.md DATA MODEL's PartialPacketNumber.
type PartialLen int

const (
	PartialLen1 PartialLen = 1
	PartialLen2 PartialLen = 2
	PartialLen4 PartialLen = 4
	PartialLen6 PartialLen = 6
)

// bits returns the bit width backing the truncation.
func (l PartialLen) bits() uint {
	return uint(l) * 8
}

// threshold is 2^(bit_length-2), the delta a given width can represent
// before the sender must widen, per spec.md §4.4.
func (l PartialLen) threshold() uint64 {
	return uint64(1) << (l.bits() - 2)
}

// ChoosePartialLen selects the shortest partial-packet-number width
// whose threshold exceeds delta (the distance from the lowest
// unacknowledged packet number), per spec.md §4.4's sender-side rule.
// Returns an error if even the widest (6-byte) width does not suffice.
func ChoosePartialLen(delta uint64) (PartialLen, error) {
	for _, l := range []PartialLen{PartialLen1, PartialLen2, PartialLen4, PartialLen6} {
		if delta < l.threshold() {
			return l, nil
		}
	}
	return 0, trace.BadParameter("packet number delta %d exceeds the largest partial encoding (6 bytes)", delta)
}

// Truncate extracts the low bytes of pn matching width l, producing the
// value placed on the wire.
func (pn PacketNumber) Truncate(l PartialLen) uint64 {
	mask := uint64(1)<<l.bits() - 1
	return uint64(pn) & mask
}

// InferPacketNumber reconstructs the full packet number from its
// truncated wire form, given the largest packet number acknowledged so
// far (or received so far, for a not-yet-acknowledging receiver) and the
// truncation width, per spec.md §4.4.
//
// If largestAcked is unset (hasLargestAcked is false — no packet has
// been processed yet in this space), the partial value is taken
// verbatim as the full value.
func InferPacketNumber(largestAcked PacketNumber, hasLargestAcked bool, partial uint64, l PartialLen) PacketNumber {
	if !hasLargestAcked {
		return PacketNumber(partial)
	}
	epochSize := uint64(1) << l.bits()
	expected := uint64(largestAcked) + 1

	epoch := (uint64(largestAcked) / epochSize) * epochSize

	candidates := make([]uint64, 0, 3)
	if epoch >= epochSize {
		candidates = append(candidates, epoch-epochSize+partial)
	}
	candidates = append(candidates, epoch+partial)
	candidates = append(candidates, epoch+epochSize+partial)

	best := candidates[0]
	bestDist := absDiff(best, expected)
	for _, c := range candidates[1:] {
		d := absDiff(c, expected)
		if d < bestDist || (d == bestDist && c < best) {
			best = c
			bestDist = d
		}
	}
	return PacketNumber(best)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
