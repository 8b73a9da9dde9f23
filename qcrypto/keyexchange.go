package qcrypto

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/gravitational/trace"
)

// KeyExchange performs one side of an ephemeral Diffie-Hellman
// exchange. Implementations wrap crypto/ecdh curves (spec.md §6 names
// key exchange as part of the negotiated ciphersuite but leaves curve
// choice to the implementation; X25519 and P-256 are the two offered
// here, matching the KEXS tag values in qtag).
type KeyExchange interface {
	// PublicKey returns this side's public key bytes to send to the peer.
	PublicKey() []byte
	// SharedSecret computes the shared secret given the peer's public
	// key bytes.
	SharedSecret(peerPublicKey []byte) ([]byte, error)
}

type ecdhKeyExchange struct {
	curve   ecdh.Curve
	private *ecdh.PrivateKey
}

// NewX25519KeyExchange generates a fresh X25519 key pair.
func NewX25519KeyExchange() (KeyExchange, error) {
	return newECDHKeyExchange(ecdh.X25519())
}

// NewP256KeyExchange generates a fresh P-256 (NIST secp256r1) key pair.
func NewP256KeyExchange() (KeyExchange, error) {
	return newECDHKeyExchange(ecdh.P256())
}

func newECDHKeyExchange(curve ecdh.Curve) (KeyExchange, error) {
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, trace.Wrap(err, "generating ephemeral key exchange key")
	}
	return &ecdhKeyExchange{curve: curve, private: priv}, nil
}

func (k *ecdhKeyExchange) PublicKey() []byte {
	return k.private.PublicKey().Bytes()
}

func (k *ecdhKeyExchange) SharedSecret(peerPublicKey []byte) ([]byte, error) {
	peer, err := k.curve.NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, trace.Wrap(err, "parsing peer public key")
	}
	secret, err := k.private.ECDH(peer)
	if err != nil {
		return nil, trace.Wrap(err, "computing ECDH shared secret")
	}
	return secret, nil
}
