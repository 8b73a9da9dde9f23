package qtag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagValueMapRoundTrip(t *testing.T) {
	m := NewTagValueMap()
	m.Set(TagSNI, []byte("example.com"))
	m.Set(TagVER, []byte{0x10, 0x00, 0x00, 0xff})
	m.Set(TagPAD, bytes.Repeat([]byte{0}, 12))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadTagValueMap(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, m.Tags(), got.Tags())
	for _, tag := range m.Tags() {
		want, _ := m.Get(tag)
		gotVal, ok := got.Get(tag)
		require.True(t, ok)
		require.Equal(t, want, gotVal)
	}
}

func TestTagValueMapAscendingOrder(t *testing.T) {
	m := NewTagValueMap()
	m.Set(TagVER, []byte{1})
	m.Set(TagPAD, []byte{2})
	m.Set(TagSNI, []byte{3})

	require.Equal(t, []Tag{TagPAD, TagSNI, TagVER}, m.Tags())
}

func TestReadTagValueMapRejectsOutOfOrderTags(t *testing.T) {
	var buf bytes.Buffer
	// count = 2
	buf.Write([]byte{2, 0})
	// first entry: TagVER at offset 1
	writeLE32(&buf, uint32(TagVER))
	writeLE32(&buf, 1)
	// second entry: TagPAD (< TagVER) at offset 2 -- violates ascending order
	writeLE32(&buf, uint32(TagPAD))
	writeLE32(&buf, 2)
	buf.Write([]byte{0xAA, 0xBB})

	_, err := ReadTagValueMap(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
}

func writeLE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}
