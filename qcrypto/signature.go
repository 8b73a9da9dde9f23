package qcrypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// VerifyError is returned by CertificateChainVerifier/SignatureVerifier
// implementations on any validation failure (spec.md §6).
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string { return "verify: " + e.Reason }

// CertificateChainVerifier validates a peer's certificate chain against
// a requested host name. Implementations typically wrap the standard
// library's x509 verification with this connection's trust roots.
type CertificateChainVerifier interface {
	Verify(chain [][]byte, hostName string) error
}

// Signer produces a detached signature over data using the server's
// configuration private key.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// SignatureVerifier checks a detached signature against a certificate's
// public key.
type SignatureVerifier interface {
	Verify(cert []byte, data, signature []byte) error
}

// signatureInputLabel is the ASCII label prefixed to every signature
// input this core constructs (spec.md §6 / Open Question (a)). Later
// gQUIC drafts used a NUL-terminated variant
// ("QUIC CHLO and server config signature\x00"); this implementation
// targets the draft version whose label is the shorter, unterminated
// string, matching the retrieval pack's certificate_manager.rs.
const signatureInputLabel = "QUIC server config signature"

// BuildSignatureInput constructs the SHA-256 input this core signs and
// verifies over a server configuration, per spec.md §6:
//
//	label ‖ u32(8) ‖ SHA256(serialized ClientHello) ‖ 0x00 ‖ serialized ServerConfiguration
func BuildSignatureInput(serializedClientHello, serializedServerConfig []byte) []byte {
	chloHash := sha256.Sum256(serializedClientHello)

	input := make([]byte, 0, len(signatureInputLabel)+4+len(chloHash)+1+len(serializedServerConfig))
	input = append(input, signatureInputLabel...)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 8)
	input = append(input, lenBuf[:]...)

	input = append(input, chloHash[:]...)
	input = append(input, 0x00)
	input = append(input, serializedServerConfig...)
	return input
}
