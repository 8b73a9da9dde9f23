package qcrypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/gravitational/trace"
	"github.com/quicforge/qcore/primitives"
	"github.com/quicforge/qcore/qerr"
	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD authenticates and optionally encrypts one packet's payload,
// keyed to a single direction and encryption level (spec.md §4.5).
type AEAD interface {
	// Seal appends the authenticated (and, except for the null AEAD,
	// encrypted) payload to dst and returns the extended slice.
	Seal(dst []byte, packetNumber uint64, aad, plaintext []byte) ([]byte, error)
	// Open authenticates and decrypts ciphertext, returning the
	// recovered plaintext. Returns a qerr error of kind KindCrypto
	// ("FailedToAuthenticateReceivedData") on any authentication failure.
	Open(dst []byte, packetNumber uint64, aad, ciphertext []byte) ([]byte, error)
}

// nullTagLen is the size, in bytes, of the null AEAD's FNV1a-128-based
// authentication tag: an 8-byte low limb followed by a 4-byte
// truncation of the high limb (spec.md §4.5: "a keyed-hash null AEAD
// ... compares it with a 96-bit truncation").
const nullTagLen = 12

// NullAEAD is used at the Unencrypted level, before any handshake
// secret exists. It authenticates without confidentiality: an FNV1a-128
// hash over aad‖plaintext is truncated to 96 bits and appended as the
// tag. Grounded on null_aead_encryptor.rs / null_aead_decryptor.rs.
type NullAEAD struct{}

func (NullAEAD) Seal(dst []byte, _ uint64, aad, plaintext []byte) ([]byte, error) {
	hi, lo := fnv1a128(aad, plaintext)
	dst = append(dst, plaintext...)
	dst = primitives.AppendUint64(dst, lo)
	dst = primitives.AppendUint32(dst, uint32(hi))
	return dst, nil
}

func (NullAEAD) Open(dst []byte, _ uint64, aad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nullTagLen {
		return nil, qerr.New(qerr.InternalError, qerr.KindCrypto, "null AEAD ciphertext too short: %d bytes", len(ciphertext))
	}
	plaintext := ciphertext[:len(ciphertext)-nullTagLen]
	tag := ciphertext[len(ciphertext)-nullTagLen:]

	wantLo := uint64(tag[0])<<56 | uint64(tag[1])<<48 | uint64(tag[2])<<40 | uint64(tag[3])<<32 |
		uint64(tag[4])<<24 | uint64(tag[5])<<16 | uint64(tag[6])<<8 | uint64(tag[7])
	wantHi := uint32(tag[8])<<24 | uint32(tag[9])<<16 | uint32(tag[10])<<8 | uint32(tag[11])

	hi, lo := fnv1a128(aad, plaintext)
	if lo != wantLo || uint32(hi) != wantHi {
		return nil, qerr.New(qerr.InternalError, qerr.KindCrypto, "FailedToAuthenticateReceivedData")
	}
	return append(dst, plaintext...), nil
}

// cipherAEAD adapts a stdlib/x-crypto cipher.AEAD (AES-GCM or
// ChaCha20-Poly1305) plus a fixed IV into this package's AEAD
// interface, deriving the per-packet nonce per spec.md §4.5.
type cipherAEAD struct {
	aead cipher.AEAD
	iv   []byte
}

// NewAESGCMAEAD builds an AEAD backed by AES-GCM, the AEAD negotiated
// by the NonForwardSecure/ForwardSecure levels in crypto_state.rs
// (AEAD_AES_128_GCM / AEAD_AES_256_GCM depending on key length).
func NewAESGCMAEAD(key, iv []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, trace.Wrap(err, "constructing AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, trace.Wrap(err, "constructing AES-GCM")
	}
	return &cipherAEAD{aead: gcm, iv: iv}, nil
}

// NewChaCha20Poly1305AEAD builds an AEAD backed by ChaCha20-Poly1305,
// the alternative ciphersuite named in spec.md §4.5.
func NewChaCha20Poly1305AEAD(key, iv []byte) (AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, trace.Wrap(err, "constructing ChaCha20-Poly1305")
	}
	return &cipherAEAD{aead: aead, iv: iv}, nil
}

func (c *cipherAEAD) Seal(dst []byte, packetNumber uint64, aad, plaintext []byte) ([]byte, error) {
	nonce := BuildNonce(c.iv, packetNumber)
	return c.aead.Seal(dst, nonce, plaintext, aad), nil
}

func (c *cipherAEAD) Open(dst []byte, packetNumber uint64, aad, ciphertext []byte) ([]byte, error) {
	nonce := BuildNonce(c.iv, packetNumber)
	out, err := c.aead.Open(dst, nonce, ciphertext, aad)
	if err != nil {
		return nil, qerr.New(qerr.InternalError, qerr.KindCrypto, "FailedToAuthenticateReceivedData: %v", err)
	}
	return out, nil
}
