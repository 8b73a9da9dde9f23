package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/quicforge/qcore/primitives"
	"github.com/stretchr/testify/require"
)

func TestLongHeaderRoundTrip(t *testing.T) {
	h := LongHeader{
		Type:          PacketTypeHandshake,
		DestConnID:    ConnectionID(0xDEADBEEFCAFEBABE),
		SrcConnID:     ConnectionID(0x0102030405060708),
		Version:       1,
		PayloadLen:    1200,
		PacketNumber:  0x0102,
		PartialLength: PartialLen2,
	}

	var buf bytes.Buffer
	require.NoError(t, h.WriteTo(&buf))

	r := bufio.NewReader(&buf)
	firstByte, err := r.ReadByte()
	require.NoError(t, err)
	require.True(t, IsLongHeader(firstByte))

	got, err := ReadLongHeader(r, firstByte, PartialLen2)
	require.NoError(t, err)
	require.Equal(t, h.Type, got.Type)
	require.Equal(t, h.DestConnID, got.DestConnID)
	require.Equal(t, h.SrcConnID, got.SrcConnID)
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.PayloadLen, got.PayloadLen)
	require.Equal(t, h.PacketNumber, got.PacketNumber)
}

func TestShortHeaderRoundTrip(t *testing.T) {
	h := ShortHeader{
		KeyPhase:      true,
		OmitConnID:    false,
		ConnID:        ConnectionID(42),
		PacketNumber:  0x0102,
		PartialLength: PartialLen2,
	}

	var buf bytes.Buffer
	require.NoError(t, h.WriteTo(&buf))

	r := bufio.NewReader(&buf)
	firstByte, err := r.ReadByte()
	require.NoError(t, err)
	require.False(t, IsLongHeader(firstByte))

	got, err := ReadShortHeader(r, firstByte)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestShortHeaderOmitsConnectionID(t *testing.T) {
	h := ShortHeader{OmitConnID: true, PacketNumber: 7, PartialLength: PartialLen1}

	var buf bytes.Buffer
	require.NoError(t, h.WriteTo(&buf))
	require.Equal(t, 2, buf.Len())

	r := bufio.NewReader(&buf)
	firstByte, err := r.ReadByte()
	require.NoError(t, err)
	got, err := ReadShortHeader(r, firstByte)
	require.NoError(t, err)
	require.Equal(t, ConnectionID(0), got.ConnID)
	require.Equal(t, uint64(7), got.PacketNumber)
}

func TestVersionNegotiationRoundTrip(t *testing.T) {
	p := VersionNegotiationPacket{
		DestConnID:        ConnectionID(1),
		SrcConnID:         ConnectionID(2),
		SupportedVersions: []uint32{1, 0x0a0a0a0a},
	}
	var buf bytes.Buffer
	require.NoError(t, p.WriteTo(&buf))

	r := bufio.NewReader(&buf)
	firstByte, err := r.ReadByte()
	require.NoError(t, err)
	require.True(t, IsLongHeader(firstByte))
	require.Equal(t, byte(0x80), firstByte)

	destID, err := ReadConnectionID(r)
	require.NoError(t, err)
	srcID, err := ReadConnectionID(r)
	require.NoError(t, err)
	version, err := primitives.ReadUint32(r)
	require.NoError(t, err)
	require.Equal(t, VersionNegotiation, version)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	got, err := ReadVersionNegotiationPacket(destID, srcID, rest)
	require.NoError(t, err)
	require.Equal(t, p.SupportedVersions, got.SupportedVersions)
}
