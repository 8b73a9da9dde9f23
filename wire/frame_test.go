package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTripFrame(t *testing.T, f Frame) Frame {
	t.Helper()
	buf, err := f.WriteTo(nil)
	require.NoError(t, err)
	require.Equal(t, f.Len(), len(buf))

	got, err := ReadFrame(bytes.NewReader(buf))
	require.NoError(t, err)
	return got
}

func TestSimpleFramesRoundTrip(t *testing.T) {
	require.Equal(t, PaddingFrame{}, roundTripFrame(t, PaddingFrame{}))
	require.Equal(t, PingFrame{}, roundTripFrame(t, PingFrame{}))
	require.Equal(t, BlockedFrame{}, roundTripFrame(t, BlockedFrame{}))
}

func TestResetStreamFrameRoundTrip(t *testing.T) {
	f := ResetStreamFrame{StreamID: 4, ErrorCode: 0x11, FinalOffset: 9000}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestStopSendingFrameRoundTrip(t *testing.T) {
	f := StopSendingFrame{StreamID: 8, ErrorCode: 0x22}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	f := CryptoFrame{Offset: 128, Data: []byte("client hello bytes")}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestMaxDataFrameRoundTrip(t *testing.T) {
	f := MaxDataFrame{MaximumData: 65536}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestMaxStreamDataFrameRoundTrip(t *testing.T) {
	f := MaxStreamDataFrame{StreamID: 12, MaximumData: 8192}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestMaxStreamIDFrameRoundTrip(t *testing.T) {
	f := MaxStreamIDFrame{MaximumStreamID: 44}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestStreamBlockedFramesRoundTrip(t *testing.T) {
	require.Equal(t, StreamBlockedFrame{StreamID: 4}, roundTripFrame(t, StreamBlockedFrame{StreamID: 4}))
	require.Equal(t, StreamIDBlockedFrame{StreamID: 16}, roundTripFrame(t, StreamIDBlockedFrame{StreamID: 16}))
}

func TestNewConnectionIDFrameRoundTrip(t *testing.T) {
	f := NewConnectionIDFrame{Sequence: 3, ConnectionID: ConnectionID(0x1122334455667788)}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestPathChallengeResponseRoundTrip(t *testing.T) {
	var data [8]byte
	copy(data[:], []byte("12345678"))
	require.Equal(t, PathChallengeFrame{Data: data}, roundTripFrame(t, PathChallengeFrame{Data: data}))
	require.Equal(t, PathResponseFrame{Data: data}, roundTripFrame(t, PathResponseFrame{Data: data}))
}

func TestConnectionCloseFrameRoundTrip(t *testing.T) {
	f := ConnectionCloseFrame{ErrorCode: 0x7, FrameType: uint64(frameTypeCrypto), Reason: "malformed crypto frame"}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestApplicationCloseFrameRoundTrip(t *testing.T) {
	f := ConnectionCloseFrame{IsApplication: true, ErrorCode: 0x1, Reason: "bye"}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestStreamFrameRoundTrip(t *testing.T) {
	f := StreamFrame{StreamID: 5, Offset: 100, Fin: true, Data: []byte("payload")}
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestStreamFrameZeroOffsetOmitsField(t *testing.T) {
	f := StreamFrame{StreamID: 3, Data: []byte("hi")}
	buf, err := f.WriteTo(nil)
	require.NoError(t, err)
	// type byte + varint(streamID=3, 1 byte) + varint(len=2, 1 byte) + 2 bytes data
	require.Equal(t, 1+1+1+2, len(buf))
	require.Equal(t, f, roundTripFrame(t, f))
}

func TestUnknownFrameTypeIsError(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x3f}))
	require.Error(t, err)
}
