// Package qcrypto implements the QUIC crypto state machine (spec.md
// §4.5): the encryption-level ladder, HKDF-based key schedule, the
// null/AES-GCM/ChaCha20-Poly1305 AEAD family, and the PKI interfaces
// consumed by the handshake driver. Grounded on crypto_state.rs and
// crypto_setup_serv.go (the caddy-vendored quic-go handshake package)
// in the retrieval pack; the HKDF plumbing itself is golang.org/x/
// crypto/hkdf rather than a hand-rolled HMAC loop.
package qcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"io"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/hkdf"
)

// HashFunc constructs the hash used throughout the handshake's HKDF
// operations. SHA-256 is the only hash this version negotiates (spec.md
// §4.5 names hash_len without specifying a choice; crypto_state.rs
// fixes it to SHA-256 for the handshake ladder).
func HashFunc() func() hash.Hash { return sha256.New }

// HashLen is the output length, in bytes, of HashFunc.
const HashLen = sha256.Size

// Extract runs HKDF-Extract(salt, ikm) -> prk.
func Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(HashFunc(), ikm, salt)
}

// QHKDFExpand runs HKDF-Expand with the QUIC-specific info encoding
// described in spec.md §4.5:
//
//	info = u16(out_len) || u8(5 + len(label)) || "QUIC " || label
//
// Verified against crypto_state.rs's own encode_hkdf_info test vector:
// label "key", out_len 32 encodes to
// 00 20 08 51 55 49 43 20 6b 65 79.
func QHKDFExpand(secret []byte, label string, outLen int) ([]byte, error) {
	info := encodeQHKDFInfo(label, outLen)
	out := make([]byte, outLen)
	r := hkdf.Expand(HashFunc(), secret, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, trace.Wrap(err, "QHKDF-Expand label=%q out_len=%d", label, outLen)
	}
	return out, nil
}

func encodeQHKDFInfo(label string, outLen int) []byte {
	const prefix = "QUIC "
	labelLen := len(prefix) + len(label)

	info := make([]byte, 0, 2+1+labelLen)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(outLen))
	info = append(info, lenBuf[:]...)
	info = append(info, byte(labelLen))
	info = append(info, prefix...)
	info = append(info, label...)
	return info
}
