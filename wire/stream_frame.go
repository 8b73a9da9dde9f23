package wire

import (
	"io"

	"github.com/gravitational/trace"
	"github.com/quicforge/qcore/primitives"
)

// StreamFrame carries application data for one stream. The type byte
// packs three flags in its low bits (spec.md §4.2): whether this is the
// final frame of the stream (FIN), whether an explicit length follows
// (omitted only when the frame runs to the end of the packet), and
// whether a non-zero offset follows (omitted for offset 0).
type StreamFrame struct {
	StreamID StreamID
	Offset   uint64
	Fin      bool
	Data     []byte
}

func (f StreamFrame) WriteTo(buf []byte) ([]byte, error) {
	typeByte := frameTypeStreamBase
	if f.Fin {
		typeByte |= streamFlagFin
	}
	if f.Offset != 0 {
		typeByte |= streamFlagOffsetPresent
	}
	// The length field is always written here; the "runs to end of
	// packet" omission is a packer-level optimization this codec does
	// not perform, matching the conservative always-length-prefixed
	// STREAM encoding also used by quic-go's packet_packer.go.
	typeByte |= streamFlagLenPresent

	buf = append(buf, typeByte)
	buf = primitives.AppendVarInt(buf, uint64(f.StreamID))
	if f.Offset != 0 {
		buf = primitives.AppendVarInt(buf, f.Offset)
	}
	buf = primitives.AppendVarInt(buf, uint64(len(f.Data)))
	buf = append(buf, f.Data...)
	return buf, nil
}

func (f StreamFrame) Len() int {
	n := 1 + primitives.VarIntLen(uint64(f.StreamID))
	if f.Offset != 0 {
		n += primitives.VarIntLen(f.Offset)
	}
	n += primitives.VarIntLen(uint64(len(f.Data))) + len(f.Data)
	return n
}

func readStreamFrame(r primitives.ByteReader, typeByte byte) (Frame, error) {
	sid, err := primitives.ReadVarInt(r)
	if err != nil {
		return nil, trace.Wrap(err, "decoding STREAM stream id")
	}

	var offset uint64
	if typeByte&streamFlagOffsetPresent != 0 {
		offset, err = primitives.ReadVarInt(r)
		if err != nil {
			return nil, trace.Wrap(err, "decoding STREAM offset")
		}
	}

	var data []byte
	if typeByte&streamFlagLenPresent != 0 {
		length, err := primitives.ReadVarIntMax(r, 1<<20)
		if err != nil {
			return nil, trace.Wrap(err, "decoding STREAM length")
		}
		data = make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, trace.Wrap(err, "short read decoding STREAM data")
		}
	} else {
		// No explicit length: the frame consumes the remainder of the
		// packet. Callers that know the packet boundary must slice the
		// rest of the datagram themselves before invoking ReadFrame
		// again; at the bare io.Reader level here we read whatever
		// remains of r.
		rest, err := io.ReadAll(r)
		if err != nil {
			return nil, trace.Wrap(err, "reading remainder of STREAM frame")
		}
		data = rest
	}

	return StreamFrame{
		StreamID: StreamID(sid),
		Offset:   offset,
		Fin:      typeByte&streamFlagFin != 0,
		Data:     data,
	}, nil
}
