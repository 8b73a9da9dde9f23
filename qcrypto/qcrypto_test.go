package qcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQHKDFExpandInfoEncoding(t *testing.T) {
	// Verified against crypto_state.rs's encode_hkdf_info test vector.
	info := encodeQHKDFInfo("key", 32)
	require.Equal(t, []byte{0x00, 0x20, 0x08, 0x51, 0x55, 0x49, 0x43, 0x20, 0x6b, 0x65, 0x79}, info)
}

func TestNullAEADSealOpenRoundTrip(t *testing.T) {
	var aead NullAEAD
	sealed, err := aead.Seal(nil, 1, []byte("aad"), []byte("hello"))
	require.NoError(t, err)

	opened, err := aead.Open(nil, 1, []byte("aad"), sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), opened)
}

// TestNullAEADAuthenticationFailure is spec.md §8 scenario 5: flipping
// one ciphertext bit must cause Open to fail authentication.
func TestNullAEADAuthenticationFailure(t *testing.T) {
	var aead NullAEAD
	sealed, err := aead.Seal(nil, 1, []byte("aad"), []byte("hello"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[0] ^= 0x01

	_, err = aead.Open(nil, 1, []byte("aad"), tampered)
	require.Error(t, err)
}

func TestAESGCMAEADSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 12)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range iv {
		iv[i] = byte(i + 1)
	}

	aead, err := NewAESGCMAEAD(key, iv)
	require.NoError(t, err)

	sealed, err := aead.Seal(nil, 42, []byte("header"), []byte("stream data"))
	require.NoError(t, err)

	opened, err := aead.Open(nil, 42, []byte("header"), sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("stream data"), opened)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = aead.Open(nil, 42, []byte("header"), tampered)
	require.Error(t, err)
}

func TestDeriveHandshakeSecretsDeterministic(t *testing.T) {
	connID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	s1, err := DeriveHandshakeSecrets(connID)
	require.NoError(t, err)
	s2, err := DeriveHandshakeSecrets(connID)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
	require.NotEqual(t, s1.ClientSecret, s1.ServerSecret)
}

func TestCryptoStateMonotoneTransitions(t *testing.T) {
	state := NewState()
	require.Equal(t, Unencrypted, state.Level())

	key := make([]byte, 16)
	iv := make([]byte, 12)
	tx, err := NewAESGCMAEAD(key, iv)
	require.NoError(t, err)
	rx, err := NewAESGCMAEAD(key, iv)
	require.NoError(t, err)

	require.NoError(t, state.InstallNonForwardSecure(tx, rx))
	require.Equal(t, NonForwardSecure, state.Level())

	require.NoError(t, state.InstallForwardSecure(tx, rx))
	require.Equal(t, ForwardSecure, state.Level())

	// Downgrade attempts are rejected.
	require.Error(t, state.InstallNonForwardSecure(tx, rx))
}

func TestBuildNonceXorsPacketNumberIntoIV(t *testing.T) {
	iv := make([]byte, 12)
	nonce := BuildNonce(iv, 1)
	require.Equal(t, byte(1), nonce[11])
	for i := 0; i < 11; i++ {
		require.Equal(t, byte(0), nonce[i])
	}
}

func TestKeyExchangeRoundTrip(t *testing.T) {
	alice, err := NewX25519KeyExchange()
	require.NoError(t, err)
	bob, err := NewX25519KeyExchange()
	require.NoError(t, err)

	aliceSecret, err := alice.SharedSecret(bob.PublicKey())
	require.NoError(t, err)
	bobSecret, err := bob.SharedSecret(alice.PublicKey())
	require.NoError(t, err)
	require.Equal(t, aliceSecret, bobSecret)
}
