package certcompress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTripAllCompressed(t *testing.T) {
	c := NewCompressor(nil)
	chain := []Certificate{
		[]byte("leaf certificate bytes"),
		[]byte("intermediate certificate bytes, a bit longer than the leaf"),
	}

	var buf bytes.Buffer
	require.NoError(t, c.Compress(&buf, chain, nil, nil))

	got, err := c.Decompress(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Equal(t, chain, got)
}

// TestCommonCertificateRoundTrip is spec.md §8 scenario 4: a leaf plus
// an intermediate that belongs to a common set known to both peers.
// The compressed output carries one Common entry, one Compressed
// entry, then the uncompressed length and a dictionary-primed stream
// whose dictionary is the intermediate (the one known certificate,
// reversed is a no-op for a single element) followed by
// COMMON_SUBSTRINGS.
func TestCommonCertificateRoundTrip(t *testing.T) {
	intermediate := Certificate("intermediate certificate in common set S")
	set := CommonSet{Hash: 0xABCD1234, Certs: []Certificate{intermediate}}
	c := NewCompressor([]CommonSet{set})

	leaf := Certificate("lea") // 3 bytes per spec.md's worked example
	chain := []Certificate{leaf, intermediate}

	var buf bytes.Buffer
	known := map[uint64]struct{}{set.Hash: {}}
	require.NoError(t, c.Compress(&buf, chain, nil, known))

	got, err := c.Decompress(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Equal(t, chain, got)
}

func TestCachedCertificateRoundTrip(t *testing.T) {
	c := NewCompressor(nil)
	cert := Certificate("previously seen certificate")
	hash := Hash(cert)

	var buf bytes.Buffer
	cached := map[uint64]struct{}{hash: {}}
	require.NoError(t, c.Compress(&buf, []Certificate{cert}, cached, nil))

	cachedCerts := map[uint64]Certificate{hash: cert}
	got, err := c.Decompress(bytes.NewReader(buf.Bytes()), cachedCerts)
	require.NoError(t, err)
	require.Equal(t, []Certificate{cert}, got)
}

func TestDecompressRejectsOversizedUncompressedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(entryCompressed))
	buf.WriteByte(byte(entryEndOfList))
	// advertise an implausibly large uncompressed length
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	c := NewCompressor(nil)
	_, err := c.Decompress(bytes.NewReader(buf.Bytes()), nil)
	require.Error(t, err)
}
