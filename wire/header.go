package wire

import (
	"io"

	"github.com/gravitational/trace"
	"github.com/quicforge/qcore/primitives"
	"github.com/quicforge/qcore/qerr"
)

// PacketType selects the long-header packet's role, occupying the low 7
// bits of the first byte alongside the LONG_HEADER flag (spec.md §4.3).
type PacketType byte

const (
	PacketTypeInitial   PacketType = 0
	PacketTypeRetry     PacketType = 1
	PacketTypeHandshake PacketType = 2
	PacketTypeZeroRTT   PacketType = 3
)

const longHeaderFlag byte = 0x80

// VersionNegotiation is the reserved version value signalling a version
// negotiation packet (spec.md §4.3).
const VersionNegotiation uint32 = 0

// LongHeader is the packet form used before the connection has agreed
// on a stable 4-tuple / short-header state: handshake packets and
// version negotiation.
type LongHeader struct {
	Type          PacketType
	DestConnID    ConnectionID
	SrcConnID     ConnectionID
	Version       uint32
	PayloadLen    uint64
	PacketNumber  uint64
	PartialLength PartialLen
}

// WriteTo encodes the long header, including the partial packet number
// at the width given by PartialLength. The payload (frames, then AEAD
// tag) is appended by the caller.
func (h LongHeader) WriteTo(w io.Writer) error {
	if h.Type&0x80 != 0 {
		return trace.BadParameter("packet type %d does not fit in 7 bits", h.Type)
	}
	firstByte := longHeaderFlag | byte(h.Type)
	if _, err := w.Write([]byte{firstByte}); err != nil {
		return trace.Wrap(err, "writing long header flags")
	}
	if err := h.DestConnID.WriteTo(w); err != nil {
		return trace.Wrap(err, "writing destination connection id")
	}
	if err := h.SrcConnID.WriteTo(w); err != nil {
		return trace.Wrap(err, "writing source connection id")
	}
	if err := primitives.WriteUint32(w, h.Version); err != nil {
		return trace.Wrap(err, "writing version")
	}
	if err := primitives.WriteVarInt(w, h.PayloadLen); err != nil {
		return trace.Wrap(err, "writing payload length")
	}
	if err := writePartialPacketNumber(w, h.PacketNumber, h.PartialLength); err != nil {
		return trace.Wrap(err, "writing partial packet number")
	}
	return nil
}

// ReadLongHeader decodes a long header whose first byte has already
// been consumed and confirmed to carry LONG_HEADER; firstByte is passed
// in so the low 7 bits (packet type) can be extracted.
func ReadLongHeader(r primitives.ByteReader, firstByte byte, partialLen PartialLen) (LongHeader, error) {
	h := LongHeader{Type: PacketType(firstByte &^ longHeaderFlag), PartialLength: partialLen}

	destID, err := ReadConnectionID(r)
	if err != nil {
		return LongHeader{}, trace.Wrap(err, "reading destination connection id")
	}
	h.DestConnID = destID

	srcID, err := ReadConnectionID(r)
	if err != nil {
		return LongHeader{}, trace.Wrap(err, "reading source connection id")
	}
	h.SrcConnID = srcID

	version, err := primitives.ReadUint32(r)
	if err != nil {
		return LongHeader{}, trace.Wrap(err, "reading version")
	}
	h.Version = version

	payloadLen, err := primitives.ReadVarInt(r)
	if err != nil {
		return LongHeader{}, trace.Wrap(err, "reading payload length")
	}
	h.PayloadLen = payloadLen

	if version != VersionNegotiation {
		pn, err := readPartialPacketNumber(r, partialLen)
		if err != nil {
			return LongHeader{}, trace.Wrap(err, "reading partial packet number")
		}
		h.PacketNumber = pn
	}
	return h, nil
}

// ShortHeader is used once the connection is established and both
// sides have agreed to compress the per-packet overhead.
type ShortHeader struct {
	KeyPhase      bool
	OmitConnID    bool
	ConnID        ConnectionID
	PacketNumber  uint64
	PartialLength PartialLen
}

// Short-header flag bits, packed below the (unset) LONG_HEADER bit.
const (
	shortFlagKeyPhase   byte = 0x20
	shortFlagOmitConnID byte = 0x10
	shortFlagPNLenMask  byte = 0x03
)

func shortPartialLenCode(l PartialLen) (byte, error) {
	switch l {
	case PartialLen1:
		return 0, nil
	case PartialLen2:
		return 1, nil
	case PartialLen4:
		return 2, nil
	default:
		return 0, trace.BadParameter("short header cannot carry a %d-byte partial packet number", l)
	}
}

func shortPartialLenFromCode(code byte) (PartialLen, error) {
	switch code {
	case 0:
		return PartialLen1, nil
	case 1:
		return PartialLen2, nil
	case 2:
		return PartialLen4, nil
	default:
		return 0, qerr.New(qerr.ProtocolViolation, qerr.KindCodec, "unknown short header packet-number-length code %d", code)
	}
}

func (h ShortHeader) WriteTo(w io.Writer) error {
	lenCode, err := shortPartialLenCode(h.PartialLength)
	if err != nil {
		return trace.Wrap(err)
	}
	firstByte := lenCode & shortFlagPNLenMask
	if h.KeyPhase {
		firstByte |= shortFlagKeyPhase
	}
	if h.OmitConnID {
		firstByte |= shortFlagOmitConnID
	}
	if _, err := w.Write([]byte{firstByte}); err != nil {
		return trace.Wrap(err, "writing short header flags")
	}
	if !h.OmitConnID {
		if err := h.ConnID.WriteTo(w); err != nil {
			return trace.Wrap(err, "writing connection id")
		}
	}
	if err := writePartialPacketNumber(w, h.PacketNumber, h.PartialLength); err != nil {
		return trace.Wrap(err, "writing partial packet number")
	}
	return nil
}

// ReadShortHeader decodes a short header whose first byte has already
// been consumed (and confirmed to NOT carry LONG_HEADER).
func ReadShortHeader(r primitives.ByteReader, firstByte byte) (ShortHeader, error) {
	partialLen, err := shortPartialLenFromCode(firstByte & shortFlagPNLenMask)
	if err != nil {
		return ShortHeader{}, trace.Wrap(err)
	}
	h := ShortHeader{
		KeyPhase:      firstByte&shortFlagKeyPhase != 0,
		OmitConnID:    firstByte&shortFlagOmitConnID != 0,
		PartialLength: partialLen,
	}
	if !h.OmitConnID {
		connID, err := ReadConnectionID(r)
		if err != nil {
			return ShortHeader{}, trace.Wrap(err, "reading connection id")
		}
		h.ConnID = connID
	}
	pn, err := readPartialPacketNumber(r, partialLen)
	if err != nil {
		return ShortHeader{}, trace.Wrap(err, "reading partial packet number")
	}
	h.PacketNumber = pn
	return h, nil
}

// VersionNegotiationPacket is sent by the server, unencrypted, when a
// client Initial names an unsupported version (spec.md §4.3).
type VersionNegotiationPacket struct {
	DestConnID       ConnectionID
	SrcConnID        ConnectionID
	SupportedVersions []uint32
}

func (p VersionNegotiationPacket) WriteTo(w io.Writer) error {
	if _, err := w.Write([]byte{longHeaderFlag}); err != nil {
		return trace.Wrap(err, "writing version negotiation flags")
	}
	if err := p.DestConnID.WriteTo(w); err != nil {
		return trace.Wrap(err, "writing destination connection id")
	}
	if err := p.SrcConnID.WriteTo(w); err != nil {
		return trace.Wrap(err, "writing source connection id")
	}
	if err := primitives.WriteUint32(w, VersionNegotiation); err != nil {
		return trace.Wrap(err, "writing version")
	}
	for _, v := range p.SupportedVersions {
		if err := primitives.WriteUint32(w, v); err != nil {
			return trace.Wrap(err, "writing supported version")
		}
	}
	return nil
}

// ReadVersionNegotiationPacket decodes the payload following a first
// byte already confirmed to be exactly longHeaderFlag with version 0;
// remaining contains whatever bytes followed the version field.
func ReadVersionNegotiationPacket(destID, srcID ConnectionID, remaining []byte) (VersionNegotiationPacket, error) {
	if len(remaining)%4 != 0 {
		return VersionNegotiationPacket{}, qerr.New(qerr.FrameFormatError, qerr.KindCodec, "version negotiation payload length %d is not a multiple of 4", len(remaining))
	}
	versions := make([]uint32, 0, len(remaining)/4)
	for i := 0; i < len(remaining); i += 4 {
		versions = append(versions, uint32(remaining[i])<<24|uint32(remaining[i+1])<<16|uint32(remaining[i+2])<<8|uint32(remaining[i+3]))
	}
	return VersionNegotiationPacket{DestConnID: destID, SrcConnID: srcID, SupportedVersions: versions}, nil
}

func writePartialPacketNumber(w io.Writer, pn uint64, l PartialLen) error {
	switch l {
	case PartialLen1:
		_, err := w.Write([]byte{byte(pn)})
		return trace.Wrap(err)
	case PartialLen2:
		return primitives.WriteUint16(w, uint16(pn))
	case PartialLen4:
		return primitives.WriteUint32(w, uint32(pn))
	case PartialLen6:
		return primitives.WriteUint48(w, pn)
	default:
		return trace.BadParameter("unsupported partial packet number length %d", l)
	}
}

func readPartialPacketNumber(r primitives.ByteReader, l PartialLen) (uint64, error) {
	switch l {
	case PartialLen1:
		b, err := r.ReadByte()
		if err != nil {
			return 0, trace.Wrap(err, "short read decoding 1-byte partial packet number")
		}
		return uint64(b), nil
	case PartialLen2:
		v, err := primitives.ReadUint16(r)
		return uint64(v), trace.Wrap(err)
	case PartialLen4:
		v, err := primitives.ReadUint32(r)
		return uint64(v), trace.Wrap(err)
	case PartialLen6:
		return primitives.ReadUint48(r)
	default:
		return 0, trace.BadParameter("unsupported partial packet number length %d", l)
	}
}

// IsLongHeader reports whether firstByte (the first byte of a packet on
// the wire) selects the long header form.
func IsLongHeader(firstByte byte) bool {
	return firstByte&longHeaderFlag != 0
}
