// Package certcompress implements certificate-chain compression
// (spec.md §4.6): replacing certificates the peer already has (by hash,
// or by index into a shared common set) with a short reference, and
// DEFLATE-compressing whatever remains using a dictionary primed with
// the known certificates plus a fixed table of common PKI byte
// fragments. Grounded on certificate_compressor.rs in the retrieval
// pack's original_source, adapted from flate2's Compress/Decompress
// streaming API to klauspost/compress/flate's io.Writer/io.Reader
// dictionary-aware constructors.
package certcompress

import (
	"hash/fnv"
	"io"

	"github.com/gravitational/trace"
	"github.com/klauspost/compress/flate"
	"github.com/quicforge/qcore/primitives"
	"github.com/quicforge/qcore/qerr"
)

// Certificate is a single DER-encoded certificate.
type Certificate []byte

// Hash returns the 64-bit FNV-1a hash identifying cert for the Cached
// entry form (spec.md GLOSSARY: "Common certificate set ... identified
// by a 64-bit FNV-1a hash").
func Hash(cert Certificate) uint64 {
	h := fnv.New64a()
	h.Write(cert)
	return h.Sum64()
}

// CommonSet is a precomputed, widely shared list of certificates that
// both peers may reference by hash and index instead of transmitting.
type CommonSet struct {
	Hash  uint64
	Certs []Certificate
}

func (s CommonSet) indexOf(cert Certificate) (uint32, bool) {
	for i, c := range s.Certs {
		if string(c) == string(cert) {
			return uint32(i), true
		}
	}
	return 0, false
}

// entryKind tags one compressed-chain entry.
type entryKind byte

const (
	entryEndOfList  entryKind = 0
	entryCompressed entryKind = 1
	entryCached     entryKind = 2
	entryCommon     entryKind = 3
)

// maxUncompressedLen caps decompression output to guard against a peer
// advertising an unreasonable total (spec.md §4.6: "Decompression
// refuses totals above 128 KiB").
const maxUncompressedLen = 128 * 1024

// Compressor resolves certificates against a fixed set of common
// certificate sets known to both peers.
type Compressor struct {
	commonSets map[uint64]CommonSet
}

// NewCompressor indexes sets by their hash for lookup during
// compression and decompression.
func NewCompressor(sets []CommonSet) *Compressor {
	c := &Compressor{commonSets: make(map[uint64]CommonSet, len(sets))}
	for _, s := range sets {
		c.commonSets[s.Hash] = s
	}
	return c
}

type resolvedEntry struct {
	kind entryKind
	hash uint64 // Cached
	set  uint64 // Common
	idx  uint32 // Common
	cert Certificate
}

// Compress writes the compressed representation of chain to w. cached
// is the set of certificate hashes the peer is already known to hold;
// knownCommonSets is the subset of the compressor's common sets the
// peer has also acknowledged.
func (c *Compressor) Compress(w io.Writer, chain []Certificate, cached map[uint64]struct{}, knownCommonSets map[uint64]struct{}) error {
	resolved := make([]resolvedEntry, len(chain))
	for i, cert := range chain {
		resolved[i] = c.resolve(cert, cached, knownCommonSets)
	}

	for _, e := range resolved {
		if err := writeEntry(w, e); err != nil {
			return trace.Wrap(err, "writing certificate entry")
		}
	}
	if err := writeEntryKind(w, entryEndOfList); err != nil {
		return trace.Wrap(err, "writing end-of-list entry")
	}

	var toCompress []Certificate
	var known []Certificate
	for _, e := range resolved {
		if e.kind == entryCompressed {
			toCompress = append(toCompress, e.cert)
		} else {
			known = append(known, e.cert)
		}
	}

	if len(toCompress) == 0 {
		return nil
	}

	uncompressedLen := 0
	for _, cert := range toCompress {
		uncompressedLen += 4 + len(cert)
	}
	if err := primitives.WriteUint32(w, uint32(uncompressedLen)); err != nil {
		return trace.Wrap(err, "writing uncompressed length")
	}

	dict := buildDictionary(known)
	fw, err := flate.NewWriterDict(w, flate.DefaultCompression, dict)
	if err != nil {
		return trace.Wrap(err, "constructing dictionary-primed flate writer")
	}
	for _, cert := range toCompress {
		if err := primitives.WriteUint32(fw, uint32(len(cert))); err != nil {
			return trace.Wrap(err, "writing compressed certificate length")
		}
		if _, err := fw.Write(cert); err != nil {
			return trace.Wrap(err, "writing compressed certificate bytes")
		}
	}
	if err := fw.Close(); err != nil {
		return trace.Wrap(err, "flushing compressed certificate stream")
	}
	return nil
}

// Decompress is the inverse of Compress. cachedCerts maps a hash to the
// certificate bytes the peer is expected to have cached. r must
// implement io.ByteReader (*bytes.Reader and *bufio.Reader both do).
func (c *Compressor) Decompress(r io.Reader, cachedCerts map[uint64]Certificate) ([]Certificate, error) {
	entries, err := readEntries(r)
	if err != nil {
		return nil, trace.Wrap(err, "reading certificate entries")
	}

	results := make([]Certificate, len(entries))
	var missingCompressed int
	var known []Certificate

	for i, e := range entries {
		switch e.kind {
		case entryCached:
			cert, ok := cachedCerts[e.hash]
			if !ok {
				return nil, qerr.New(qerr.InternalError, qerr.KindResource, "no cached certificate for hash %x", e.hash)
			}
			results[i] = cert
			known = append(known, cert)
		case entryCommon:
			set, ok := c.commonSets[e.set]
			if !ok {
				return nil, qerr.New(qerr.InternalError, qerr.KindResource, "unknown common certificate set %x", e.set)
			}
			if int(e.idx) >= len(set.Certs) {
				return nil, qerr.New(qerr.InternalError, qerr.KindResource, "common certificate index %d out of range for set %x", e.idx, e.set)
			}
			results[i] = set.Certs[e.idx]
			known = append(known, results[i])
		case entryCompressed:
			missingCompressed++
		}
	}

	if missingCompressed == 0 {
		return results, nil
	}

	uncompressedLen, err := primitives.ReadUint32(r)
	if err != nil {
		return nil, trace.Wrap(err, "reading uncompressed length")
	}
	if uncompressedLen > maxUncompressedLen {
		return nil, qerr.New(qerr.InternalError, qerr.KindResource, "compressed certificates uncompressed length %d exceeds 128 KiB", uncompressedLen)
	}

	dict := buildDictionary(known)
	fr := flate.NewReaderDict(r, dict)
	defer fr.Close()

	remaining := 0
	for i := range entries {
		if entries[i].kind != entryCompressed {
			continue
		}
		certLen, err := primitives.ReadUint32(fr)
		if err != nil {
			return nil, trace.Wrap(err, "reading compressed certificate length")
		}
		cert := make(Certificate, certLen)
		if _, err := io.ReadFull(fr, cert); err != nil {
			return nil, trace.Wrap(err, "reading compressed certificate bytes")
		}
		results[i] = cert
		remaining += 4 + int(certLen)
	}
	if remaining != int(uncompressedLen) {
		return nil, qerr.New(qerr.InternalError, qerr.KindResource, "decoded length %d does not match advertised length %d", remaining, uncompressedLen)
	}

	return results, nil
}

func (c *Compressor) resolve(cert Certificate, cached map[uint64]struct{}, knownCommonSets map[uint64]struct{}) resolvedEntry {
	hash := Hash(cert)
	if _, ok := cached[hash]; ok {
		return resolvedEntry{kind: entryCached, hash: hash, cert: cert}
	}
	for setHash := range knownCommonSets {
		set, ok := c.commonSets[setHash]
		if !ok {
			continue
		}
		if idx, ok := set.indexOf(cert); ok {
			return resolvedEntry{kind: entryCommon, set: setHash, idx: idx, cert: cert}
		}
	}
	return resolvedEntry{kind: entryCompressed, cert: cert}
}

// buildDictionary returns the concatenation of the known (cached +
// common-resolved) certificates in reverse order, followed by the fixed
// 1484-byte commonSubstrings table.
func buildDictionary(known []Certificate) []byte {
	var dict []byte
	for i := len(known) - 1; i >= 0; i-- {
		dict = append(dict, known[i]...)
	}
	dict = append(dict, commonSubstrings...)
	return dict
}

func writeEntryKind(w io.Writer, k entryKind) error {
	_, err := w.Write([]byte{byte(k)})
	return trace.Wrap(err)
}

func writeEntry(w io.Writer, e resolvedEntry) error {
	switch e.kind {
	case entryCached:
		if err := writeEntryKind(w, entryCached); err != nil {
			return err
		}
		return primitives.WriteUint64(w, e.hash)
	case entryCommon:
		if err := writeEntryKind(w, entryCommon); err != nil {
			return err
		}
		if err := primitives.WriteUint64(w, e.set); err != nil {
			return err
		}
		return primitives.WriteUint32(w, e.idx)
	default:
		return writeEntryKind(w, entryCompressed)
	}
}

func readEntries(r io.Reader) ([]resolvedEntry, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		return nil, trace.BadParameter("certcompress requires a ByteReader-capable source")
	}

	var entries []resolvedEntry
	for {
		kindByte, err := br.ReadByte()
		if err != nil {
			return nil, trace.Wrap(err, "short read decoding entry type")
		}
		switch entryKind(kindByte) {
		case entryEndOfList:
			return entries, nil
		case entryCompressed:
			entries = append(entries, resolvedEntry{kind: entryCompressed})
		case entryCached:
			hash, err := primitives.ReadUint64(r)
			if err != nil {
				return nil, trace.Wrap(err, "reading cached certificate hash")
			}
			entries = append(entries, resolvedEntry{kind: entryCached, hash: hash})
		case entryCommon:
			setHash, err := primitives.ReadUint64(r)
			if err != nil {
				return nil, trace.Wrap(err, "reading common certificate set hash")
			}
			idx, err := primitives.ReadUint32(r)
			if err != nil {
				return nil, trace.Wrap(err, "reading common certificate index")
			}
			entries = append(entries, resolvedEntry{kind: entryCommon, set: setHash, idx: idx})
		default:
			return nil, qerr.New(qerr.InternalError, qerr.KindCodec, "invalid compressed certificate entry type %d", kindByte)
		}
	}
}
