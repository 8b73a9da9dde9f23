// Package pnspace implements the per-packet-number-space receive-side
// bookkeeping (spec.md §4.7): which packet numbers have been seen, a
// forgotten watermark below which everything counts as a duplicate, and
// ACK frame synthesis from the resulting ranges. Grounded on
// packet_history.rs in the retrieval pack's original_source, which
// backs the same operations with a discrete-interval tree (lz_diet);
// this port uses a sorted slice of non-overlapping half-open ranges,
// which is the idiomatic Go shape for a small, session-local interval
// set (no balanced-tree library in the retrieval pack offers this
// specific contract, and the set rarely holds more than a handful of
// gaps in practice).
package pnspace

import (
	"sort"
	"time"

	"github.com/quicforge/qcore/wire"
)

// halfOpenRange is [Start, End) over packet numbers.
type halfOpenRange struct {
	Start wire.PacketNumber
	End   wire.PacketNumber
}

// PacketHistory tracks received packet numbers for one packet-number
// space. Not safe for concurrent use; spec.md §5 scopes a session (and
// therefore each of its packet-number spaces) to a single cooperative
// task.
type PacketHistory struct {
	ranges        []halfOpenRange // ascending, non-overlapping, non-adjacent
	forgottenUpTo wire.PacketNumber
	hasForgotten  bool
}

// New constructs an empty PacketHistory.
func New() *PacketHistory {
	return &PacketHistory{}
}

// Insert records n as received. Returns true iff n had not previously
// been seen and is above the forgotten watermark (spec.md §4.7).
func (h *PacketHistory) Insert(n wire.PacketNumber) bool {
	if h.hasForgotten && n <= h.forgottenUpTo {
		return false
	}

	i := sort.Search(len(h.ranges), func(i int) bool { return h.ranges[i].End > n })
	if i < len(h.ranges) && h.ranges[i].Start <= n {
		return false // already contained
	}

	mergeLeft := i > 0 && h.ranges[i-1].End == n
	mergeRight := i < len(h.ranges) && h.ranges[i].Start == n+1

	switch {
	case mergeLeft && mergeRight:
		h.ranges[i-1].End = h.ranges[i].End
		h.ranges = append(h.ranges[:i], h.ranges[i+1:]...)
	case mergeLeft:
		h.ranges[i-1].End = n + 1
	case mergeRight:
		h.ranges[i].Start = n
	default:
		h.ranges = append(h.ranges, halfOpenRange{})
		copy(h.ranges[i+1:], h.ranges[i:])
		h.ranges[i] = halfOpenRange{Start: n, End: n + 1}
	}
	return true
}

// ForgetUpTo raises the forgotten watermark monotonically to at least
// n and discards any recorded ranges at or below it (spec.md §4.7).
func (h *PacketHistory) ForgetUpTo(n wire.PacketNumber) {
	if !h.hasForgotten || n > h.forgottenUpTo {
		h.forgottenUpTo = n
		h.hasForgotten = true
	}

	kept := h.ranges[:0]
	for _, r := range h.ranges {
		switch {
		case r.End-1 <= n:
			// entirely forgotten
		case r.Start <= n:
			kept = append(kept, halfOpenRange{Start: n + 1, End: r.End})
		default:
			kept = append(kept, r)
		}
	}
	h.ranges = kept
}

// IsDuplicate reports whether n has already been recorded, either
// explicitly or by falling at or below the forgotten watermark.
func (h *PacketHistory) IsDuplicate(n wire.PacketNumber) bool {
	if h.hasForgotten && n <= h.forgottenUpTo {
		return true
	}
	i := sort.Search(len(h.ranges), func(i int) bool { return h.ranges[i].End > n })
	return i < len(h.ranges) && h.ranges[i].Start <= n
}

// Ranges returns the received ranges in descending order, matching the
// order ACK frame synthesis consumes them in.
func (h *PacketHistory) Ranges() []wire.PacketNumberRange {
	out := make([]wire.PacketNumberRange, len(h.ranges))
	for i, r := range h.ranges {
		out[len(h.ranges)-1-i] = wire.PacketNumberRange{Start: r.Start, End: r.End - 1}
	}
	return out
}

// HighestRange returns the interval containing the largest packet
// number seen, and whether any packet has been recorded at all.
func (h *PacketHistory) HighestRange() (wire.PacketNumberRange, bool) {
	if len(h.ranges) == 0 {
		return wire.PacketNumberRange{}, false
	}
	last := h.ranges[len(h.ranges)-1]
	return wire.PacketNumberRange{Start: last.Start, End: last.End - 1}, true
}

// SynthesizeAck builds an AckFrame acknowledging every currently
// recorded range, per spec.md §4.7: highest_range() is the first
// block, and subsequent blocks walk ranges() in descending order.
func (h *PacketHistory) SynthesizeAck(ackDelay time.Duration) (wire.AckFrame, bool) {
	highest, ok := h.HighestRange()
	if !ok {
		return wire.AckFrame{}, false
	}
	return wire.AckFrame{
		LargestAcknowledged: highest.End,
		AckDelay:            ackDelay,
		Ranges:              h.Ranges(),
	}, true
}
