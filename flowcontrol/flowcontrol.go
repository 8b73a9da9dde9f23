// Package flowcontrol implements spec.md §4.9's per-stream and
// per-connection send/receive windows: a (max, used) counter pair with
// a monotone max, a paired charge operation that spends against both a
// stream and its connection atomically, and the receive-side window
// auto-advance that triggers MAX_DATA/MAX_STREAM_DATA emission.
// Grounded on the windowed send/receive accounting in
// src/streams/stream_map.rs's StreamFlowController (retrieval pack
// original_source), adapted to this spec's exact take()/advance
// contract.
package flowcontrol

import "sync"

// FlowControl is a (max, used) counter pair with used <= max and max
// monotone non-decreasing (spec.md §4.9).
type FlowControl struct {
	mu   sync.Mutex
	max  uint64
	used uint64
}

// New constructs a FlowControl with the given initial window.
func New(initialMax uint64) *FlowControl {
	return &FlowControl{max: initialMax}
}

// Remaining returns max - used.
func (f *FlowControl) Remaining() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remainingLocked()
}

func (f *FlowControl) remainingLocked() uint64 {
	if f.used >= f.max {
		return 0
	}
	return f.max - f.used
}

// Advance raises max to newMax, ignoring newMax values at or below the
// current max (spec.md §4.9: "max is monotone non-decreasing").
func (f *FlowControl) Advance(newMax uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if newMax > f.max {
		f.max = newMax
	}
}

// charge spends n against this window unconditionally; callers must
// already have established n <= Remaining().
func (f *FlowControl) charge(n uint64) {
	f.mu.Lock()
	f.used += n
	f.mu.Unlock()
}

// Used returns the current used counter.
func (f *FlowControl) Used() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used
}

// Max returns the current max counter.
func (f *FlowControl) Max() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.max
}

// ShouldAdvertiseMore reports whether used has crossed half of max, the
// point at which the session should emit a MAX_DATA/MAX_STREAM_DATA
// frame raising the peer's send window (spec.md §4.9).
func (f *FlowControl) ShouldAdvertiseMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.max == 0 {
		return false
	}
	return float64(f.used)/float64(f.max) > 0.5
}

// Take charges amount against both streamFC and connFC, spending only
// min(amount, streamFC.Remaining(), connFC.Remaining()) against each,
// and returns that spent amount (spec.md §4.9's paired take).
func Take(streamFC, connFC *FlowControl, amount uint64) uint64 {
	streamFC.mu.Lock()
	defer streamFC.mu.Unlock()
	if connFC != streamFC {
		connFC.mu.Lock()
		defer connFC.mu.Unlock()
	}
	spend := amount
	if r := streamFC.remainingLocked(); r < spend {
		spend = r
	}
	if r := connFC.remainingLocked(); r < spend {
		spend = r
	}
	streamFC.used += spend
	if connFC != streamFC {
		connFC.used += spend
	}
	return spend
}
