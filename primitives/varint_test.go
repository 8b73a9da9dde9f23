package primitives

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 63, 64, 16383, 16384,
		1073741823, 1073741824,
		MaxVarInt, MaxVarInt - 1,
		37, 15293, 494878333, 151288809941952652,
	}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		got, err := ReadVarInt(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarIntLengthThresholds(t *testing.T) {
	tests := []struct {
		value      uint64
		wantLength int
	}{
		{0, 1},
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{1073741823, 4},
		{1073741824, 8},
		{MaxVarInt, 8},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, tt.value))
		require.Equal(t, tt.wantLength, buf.Len(), "value %d", tt.value)
	}
}

func TestAppendVarIntMatchesWriteVarInt(t *testing.T) {
	for _, v := range []uint64{0, 100, 20000, 2000000, MaxVarInt} {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		appended := AppendVarInt(nil, v)
		require.Equal(t, buf.Bytes(), appended)
	}
}

func TestReadVarIntMaxRejectsOversizedValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 1<<20))
	_, err := ReadVarIntMax(bytes.NewReader(buf.Bytes()), 1<<10)
	require.Error(t, err)
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint24(&buf, 0xABCDEF))
	got, err := ReadUint24(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint32(0xABCDEF), got)

	buf.Reset()
	require.NoError(t, WriteUint48(&buf, 0x0102030405AB))
	got48, err := ReadUint48(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405AB), got48)
}

func TestUFloat16RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2047, 2048, 3000, 5000, 1 << 20, 1 << 40}
	for _, v := range values {
		encoded := UFloat16(v)
		decoded := UFloat16Decode(encoded)
		// UFloat16 is lossy above the mantissa precision; require the
		// decoded value to be within the representable error bound
		// rather than bit-exact, except for values that fit exactly.
		if v < 2048 {
			require.Equal(t, v, decoded)
			continue
		}
		require.LessOrEqual(t, decoded, v)
	}
}
