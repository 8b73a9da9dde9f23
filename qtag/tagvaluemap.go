package qtag

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/gravitational/trace"
)

// TagValueMap is an ordered map keyed by 4-byte tags, carrying the typed
// fields of a handshake message (spec.md DATA MODEL, TagValueMap).
//
// Wire format (all integers little-endian, per spec.md §6 — the one
// place in this protocol that departs from network byte order):
//
//	count           uint16
//	count * (tag uint32, cumulative_end_offset uint32)
//	concatenated entry data, one slice per tag in the index order above
//
// Invariant: entries are serialized in ascending tag order, and the
// cumulative offsets are non-decreasing.
type TagValueMap struct {
	entries map[Tag][]byte
	order   []Tag // ascending; re-sorted by Set whenever a new tag is added
}

// NewTagValueMap returns an empty map ready for Set calls.
func NewTagValueMap() *TagValueMap {
	return &TagValueMap{entries: make(map[Tag][]byte)}
}

// Set stores value under tag, overwriting any previous value.
func (m *TagValueMap) Set(tag Tag, value []byte) {
	if m.entries == nil {
		m.entries = make(map[Tag][]byte)
	}
	if _, exists := m.entries[tag]; !exists {
		m.order = append(m.order, tag)
		sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
	}
	m.entries[tag] = value
}

// Get returns the value stored under tag, and whether it was present.
func (m *TagValueMap) Get(tag Tag) ([]byte, bool) {
	v, ok := m.entries[tag]
	return v, ok
}

// Len reports the number of entries.
func (m *TagValueMap) Len() int { return len(m.entries) }

// Tags returns the stored tags in ascending order.
func (m *TagValueMap) Tags() []Tag {
	out := make([]Tag, len(m.order))
	copy(out, m.order)
	return out
}

type tagOffset struct {
	tag    Tag
	offset uint32
}

// WriteTo serializes the map per the wire format documented on
// TagValueMap.
func (m *TagValueMap) WriteTo(w io.Writer) (int64, error) {
	if len(m.order) > 0xFFFF {
		return 0, trace.BadParameter("tag value map has too many entries: %d", len(m.order))
	}
	var header []byte
	header = binary.LittleEndian.AppendUint16(header, uint16(len(m.order)))

	var cumulative uint32
	var body []byte
	for _, tag := range m.order {
		value := m.entries[tag]
		cumulative += uint32(len(value))
		header = binary.LittleEndian.AppendUint32(header, uint32(tag))
		header = binary.LittleEndian.AppendUint32(header, cumulative)
		body = append(body, value...)
	}
	n1, err := w.Write(header)
	if err != nil {
		return int64(n1), trace.Wrap(err, "writing tag value map index")
	}
	n2, err := w.Write(body)
	if err != nil {
		return int64(n1 + n2), trace.Wrap(err, "writing tag value map body")
	}
	return int64(n1 + n2), nil
}

// ReadTagValueMap decodes a TagValueMap from r. The ascending-tag and
// non-decreasing-offset invariants are enforced; violations are codec
// errors (spec.md §7).
func ReadTagValueMap(r io.Reader) (*TagValueMap, error) {
	var countBuf [2]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, trace.Wrap(err, "short read decoding tag value map entry count")
	}
	count := binary.LittleEndian.Uint16(countBuf[:])

	offsets := make([]tagOffset, count)
	indexBuf := make([]byte, 8)
	for i := range offsets {
		if _, err := io.ReadFull(r, indexBuf); err != nil {
			return nil, trace.Wrap(err, "short read decoding tag value map index entry %d", i)
		}
		offsets[i] = tagOffset{
			tag:    Tag(binary.LittleEndian.Uint32(indexBuf[0:4])),
			offset: binary.LittleEndian.Uint32(indexBuf[4:8]),
		}
		if i > 0 {
			if offsets[i].tag <= offsets[i-1].tag {
				return nil, trace.BadParameter("tag value map entries out of order: tag 0x%x after 0x%x", uint32(offsets[i].tag), uint32(offsets[i-1].tag))
			}
			if offsets[i].offset < offsets[i-1].offset {
				return nil, trace.BadParameter("tag value map cumulative offsets are not non-decreasing")
			}
		}
	}

	m := NewTagValueMap()
	var previous uint32
	for _, to := range offsets {
		length := to.offset - previous
		value := make([]byte, length)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, trace.Wrap(err, "short read decoding tag value map entry for tag %s", to.tag)
		}
		m.Set(to.tag, value)
		previous = to.offset
	}
	return m, nil
}
