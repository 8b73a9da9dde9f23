package connmap

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/quicforge/qcore/wire"
	"github.com/stretchr/testify/require"
)

func addr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
}

func TestInsertThenInsertDifferentTupleFails(t *testing.T) {
	m := New()
	t1 := AddressTuple{Src: addr(1000), Dst: addr(2000)}
	t2 := AddressTuple{Src: addr(1001), Dst: addr(2000)}

	require.True(t, m.Insert(1, t1))
	require.False(t, m.Insert(1, t2))

	id, res := m.Lookup(t1)
	require.Equal(t, Single, res)
	require.Equal(t, wire.ConnectionID(1), id)

	_, res = m.Lookup(t2)
	require.Equal(t, None, res)
}

func TestInsertSameTupleTwiceSucceeds(t *testing.T) {
	m := New()
	tuple := AddressTuple{Src: addr(1000), Dst: addr(2000)}
	require.True(t, m.Insert(1, tuple))
	require.True(t, m.Insert(1, tuple))
}

func TestLookupReportsMultiple(t *testing.T) {
	m := New()
	tuple := AddressTuple{Src: addr(1000), Dst: addr(2000)}
	require.True(t, m.Insert(1, tuple))
	require.True(t, m.Insert(2, tuple))

	_, res := m.Lookup(tuple)
	require.Equal(t, Multiple, res)
}

func TestRemoveConnectionPrunesTuple(t *testing.T) {
	m := New()
	tuple := AddressTuple{Src: addr(1000), Dst: addr(2000)}
	m.Insert(1, tuple)

	m.RemoveConnection(1)

	_, res := m.Lookup(tuple)
	require.Equal(t, None, res)
	_, ok := m.TupleFor(1)
	require.False(t, ok)
}

func TestRemoveAddressRemovesAllIDs(t *testing.T) {
	m := New()
	tuple := AddressTuple{Src: addr(1000), Dst: addr(2000)}
	m.Insert(1, tuple)
	m.Insert(2, tuple)

	m.RemoveAddress(tuple)

	_, ok := m.TupleFor(1)
	require.False(t, ok)
	_, ok = m.TupleFor(2)
	require.False(t, ok)
}

// TestConcurrentAccessIsLinearisable exercises spec.md §4.10's
// requirement that the map support concurrent lookup against
// concurrent per-connection mutation without torn updates: every
// successful Insert must be immediately visible via both Lookup and
// TupleFor.
func TestConcurrentAccessIsLinearisable(t *testing.T) {
	m := New()
	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := wire.ConnectionID(i)
			tuple := AddressTuple{Src: addr(uint16(i)), Dst: addr(2000)}
			require.True(t, m.Insert(id, tuple))

			gotTuple, ok := m.TupleFor(id)
			require.True(t, ok)
			require.Equal(t, tuple, gotTuple)

			gotID, res := m.Lookup(tuple)
			require.Equal(t, Single, res)
			require.Equal(t, id, gotID)
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, len(m.idToTuple))
}
