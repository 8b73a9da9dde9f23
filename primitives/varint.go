// Package primitives implements the wire-level integer encodings shared
// by every other qcore package: the QUIC variable-length integer
// (spec.md §4.1), fixed-width u24/u48, and the "unsigned float 16" used
// for ACK delays. It mirrors quic-go's internal/utils byte-order helpers
// (see e.g. the BigEndian helpers referenced from packet_packer.go in
// the retrieval pack): a set of free Read*/Write* functions over
// io.Reader/io.ByteReader and io.Writer, with the ByteReader and Writer
// interfaces in codec.go naming the reader and sink shapes they take.
package primitives

import (
	"encoding/binary"
	"io"

	"github.com/gravitational/trace"
)

// MaxVarInt is the largest value representable by the VarInt encoding:
// 2^62 - 1.
const MaxVarInt = (uint64(1) << 62) - 1

const (
	varIntLen1 = 1
	varIntLen2 = 2
	varIntLen4 = 4
	varIntLen8 = 8
)

// thresholds for choosing the shortest encoding; values at or below
// these fit in the respective length (after masking off the top two
// length bits of the first byte).
const (
	varIntMax1 = 1<<6 - 1
	varIntMax2 = 1<<14 - 1
	varIntMax4 = 1<<30 - 1
)

// VarIntLen returns the on-wire length, in bytes, that WriteVarInt would
// use for v. Panics if v exceeds MaxVarInt; callers that accept
// untrusted magnitudes must check against MaxVarInt first.
func VarIntLen(v uint64) int {
	switch {
	case v <= varIntMax1:
		return varIntLen1
	case v <= varIntMax2:
		return varIntLen2
	case v <= varIntMax4:
		return varIntLen4
	case v <= MaxVarInt:
		return varIntLen8
	default:
		panic("primitives: value too large for VarInt")
	}
}

// WriteVarInt appends the shortest valid VarInt encoding of v to w.
func WriteVarInt(w io.Writer, v uint64) error {
	switch VarIntLen(v) {
	case varIntLen1:
		return writeByte(w, byte(v))
	case varIntLen2:
		return writeUint16(w, uint16(v)|0x40<<8)
	case varIntLen4:
		return writeUint32(w, uint32(v)|0x80<<24)
	default:
		return writeUint64(w, v|uint64(0xC0)<<56)
	}
}

// AppendVarInt appends the shortest valid VarInt encoding of v to buf,
// returning the extended slice. Used by the packer for allocation-free
// outbound assembly (spec.md's "Ownership of buffers" design note).
func AppendVarInt(buf []byte, v uint64) []byte {
	switch VarIntLen(v) {
	case varIntLen1:
		return append(buf, byte(v))
	case varIntLen2:
		return append(buf, byte(v>>8)|0x40, byte(v))
	case varIntLen4:
		return append(buf,
			byte(v>>24)|0x80, byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(buf,
			byte(v>>56)|0xC0, byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// ReadVarInt decodes a VarInt from r, returning the decoded value.
func ReadVarInt(r io.ByteReader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, trace.Wrap(err, "short read decoding VarInt length prefix")
	}
	length := 1 << (first >> 6)
	v := uint64(first & 0x3f)
	for i := 1; i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, trace.Wrap(err, "short read decoding VarInt body")
		}
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// ReadVarIntMax decodes a VarInt and rejects any value greater than max,
// implementing the "value too large for requested integer width" error
// named in spec.md §4.1.
func ReadVarIntMax(r io.ByteReader, max uint64) (uint64, error) {
	v, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, trace.BadParameter("value %d too large for requested integer width (max %d)", v, max)
	}
	return v, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return trace.Wrap(err)
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return trace.Wrap(err)
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return trace.Wrap(err)
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return trace.Wrap(err)
}
