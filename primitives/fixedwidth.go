package primitives

import (
	"encoding/binary"
	"io"

	"github.com/gravitational/trace"
)

// WriteUint24 writes the low 24 bits of v in network byte order.
func WriteUint24(w io.Writer, v uint32) error {
	b := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(b)
	return trace.Wrap(err)
}

// ReadUint24 reads a 24-bit unsigned integer in network byte order.
func ReadUint24(r io.Reader) (uint32, error) {
	var b [3]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, trace.Wrap(err, "short read decoding u24")
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// WriteUint48 writes the low 48 bits of v in network byte order.
func WriteUint48(w io.Writer, v uint64) error {
	b := make([]byte, 6)
	for i := 0; i < 6; i++ {
		b[5-i] = byte(v >> (8 * i))
	}
	_, err := w.Write(b)
	return trace.Wrap(err)
}

// ReadUint48 reads a 48-bit unsigned integer in network byte order.
func ReadUint48(r io.Reader) (uint64, error) {
	var b [6]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, trace.Wrap(err, "short read decoding u48")
	}
	var v uint64
	for i := 0; i < 6; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// WriteUint16 writes v in network byte order. Exposed alongside the
// fixed-width helpers above since wire structures such as
// PartialPacketNumber's 2-byte form need it directly.
func WriteUint16(w io.Writer, v uint16) error {
	return writeUint16(w, v)
}

// ReadUint16 reads a 16-bit unsigned integer in network byte order.
func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, trace.Wrap(err, "short read decoding u16")
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// WriteUint32 writes v in network byte order.
func WriteUint32(w io.Writer, v uint32) error {
	return writeUint32(w, v)
}

// ReadUint32 reads a 32-bit unsigned integer in network byte order.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, trace.Wrap(err, "short read decoding u32")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// WriteUint64 writes v in network byte order.
func WriteUint64(w io.Writer, v uint64) error {
	return writeUint64(w, v)
}

// ReadUint64 reads a 64-bit unsigned integer in network byte order.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, trace.Wrap(err, "short read decoding u64")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// AppendUint32 appends v in network byte order to buf, returning the
// extended slice.
func AppendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// AppendUint64 appends v in network byte order to buf, returning the
// extended slice.
func AppendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// UFloat16 exponent/mantissa widths for the gQUIC-style "unsigned float
// 16" used to encode ACK delays: a 5-bit exponent and an 11-bit
// mantissa, with an implicit leading 1 once the exponent is non-zero.
const (
	uFloat16MantissaBits = 11
	uFloat16MantissaMask = 1<<uFloat16MantissaBits - 1
	uFloat16ImplicitBit  = 1 << uFloat16MantissaBits
	uFloat16MaxExponent  = 1<<5 - 2
)

// UFloat16 encodes microseconds into the 16-bit format. Values too
// large to represent saturate at 0xFFFF rather than overflowing.
func UFloat16(microseconds uint64) uint16 {
	if microseconds < uFloat16ImplicitBit {
		return uint16(microseconds)
	}
	exponent := 1
	v := microseconds
	for v >= 2*uFloat16ImplicitBit {
		v >>= 1
		exponent++
	}
	if exponent > uFloat16MaxExponent {
		return 0xFFFF
	}
	mantissa := uint16(v) & uFloat16MantissaMask
	return uint16(exponent)<<uFloat16MantissaBits | mantissa
}

// UFloat16Decode is the inverse of UFloat16.
func UFloat16Decode(v uint16) uint64 {
	exponent := v >> uFloat16MantissaBits
	mantissa := uint64(v & uFloat16MantissaMask)
	if exponent == 0 {
		return mantissa
	}
	return (mantissa | uFloat16ImplicitBit) << (exponent - 1)
}
