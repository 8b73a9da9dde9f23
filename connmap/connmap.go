// Package connmap implements the process-wide connection map (spec.md
// §4.10): a bidirectional, concurrency-safe association between a
// wire.ConnectionID and the AddressTuple a datagram for it was last
// observed on. The receive loop performs a lookup per inbound
// datagram while per-connection sessions mutate the map on migration
// or teardown, so every operation here is linearisable under a single
// mutex (grounded on teleport's srv/reversetunnel proxy
// connection-tracking maps, which use the same
// sync.RWMutex-plus-plain-map shape for a similar id⇋address index).
package connmap

import (
	"net/netip"
	"sync"

	"github.com/quicforge/qcore/wire"
)

// AddressTuple is the (source, destination) socket address pair a
// datagram was observed on (spec.md §4.10 DATA MODEL).
type AddressTuple struct {
	Src netip.AddrPort
	Dst netip.AddrPort
}

// LookupResult reports how many connection ids are associated with an
// address tuple.
type LookupResult int

const (
	// None means the tuple has no associated connection ids.
	None LookupResult = iota
	// Single means exactly one connection id is associated.
	Single
	// Multiple means more than one connection id is associated, as
	// happens when several connections share a NAT-rewritten tuple.
	Multiple
)

// Map is the bidirectional ConnectionID <-> AddressTuple index. The
// zero value is not usable; construct with New.
type Map struct {
	mu        sync.RWMutex
	idToTuple map[wire.ConnectionID]AddressTuple
	tupleToID map[AddressTuple]map[wire.ConnectionID]struct{}
}

// New constructs an empty Map.
func New() *Map {
	return &Map{
		idToTuple: make(map[wire.ConnectionID]AddressTuple),
		tupleToID: make(map[AddressTuple]map[wire.ConnectionID]struct{}),
	}
}

// Insert associates id with tuple. Returns false without mutating the
// map if id already maps to a different tuple (spec.md §4.10).
func (m *Map) Insert(id wire.ConnectionID, tuple AddressTuple) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.idToTuple[id]; ok {
		return existing == tuple
	}

	m.idToTuple[id] = tuple
	ids, ok := m.tupleToID[tuple]
	if !ok {
		ids = make(map[wire.ConnectionID]struct{})
		m.tupleToID[tuple] = ids
	}
	ids[id] = struct{}{}
	return true
}

// RemoveConnection removes id and prunes it from its tuple's set.
func (m *Map) RemoveConnection(id wire.ConnectionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tuple, ok := m.idToTuple[id]
	if !ok {
		return
	}
	delete(m.idToTuple, id)
	if ids, ok := m.tupleToID[tuple]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.tupleToID, tuple)
		}
	}
}

// RemoveAddress removes every connection id associated with tuple.
func (m *Map) RemoveAddress(tuple AddressTuple) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.tupleToID[tuple]
	if !ok {
		return
	}
	for id := range ids {
		delete(m.idToTuple, id)
	}
	delete(m.tupleToID, tuple)
}

// Lookup reports how many connection ids are associated with tuple,
// and the single id when there is exactly one.
func (m *Map) Lookup(tuple AddressTuple) (wire.ConnectionID, LookupResult) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.tupleToID[tuple]
	if !ok || len(ids) == 0 {
		return 0, None
	}
	if len(ids) > 1 {
		return 0, Multiple
	}
	for id := range ids {
		return id, Single
	}
	return 0, None // unreachable
}

// TupleFor returns the address tuple id currently maps to.
func (m *Map) TupleFor(id wire.ConnectionID) (AddressTuple, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tuple, ok := m.idToTuple[id]
	return tuple, ok
}
