package qcrypto

// BuildNonce left-pads the 64-bit packet number with zeros to the IV's
// length, then XORs it with iv, producing the per-packet AEAD nonce
// (spec.md §4.5 "Per-packet nonce").
func BuildNonce(iv []byte, packetNumber uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)

	var pnBytes [8]byte
	pnBytes[0] = byte(packetNumber >> 56)
	pnBytes[1] = byte(packetNumber >> 48)
	pnBytes[2] = byte(packetNumber >> 40)
	pnBytes[3] = byte(packetNumber >> 32)
	pnBytes[4] = byte(packetNumber >> 24)
	pnBytes[5] = byte(packetNumber >> 16)
	pnBytes[6] = byte(packetNumber >> 8)
	pnBytes[7] = byte(packetNumber)

	skip := len(nonce) - len(pnBytes)
	for i := 0; i < len(pnBytes); i++ {
		nonce[skip+i] ^= pnBytes[i]
	}
	return nonce
}
