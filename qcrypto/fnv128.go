package qcrypto

import "math/bits"

// FNV-1a 128-bit offset basis and prime, split into high/low 64-bit
// limbs. Values from the canonical FNV parameters (the same constants
// the lz_fnv crate ships with).
const (
	fnvOffsetHi uint64 = 0x6c62272e07bb0142
	fnvOffsetLo uint64 = 0x62b821756295c58d
	fnvPrimeHi  uint64 = 0x0000000001000000
	fnvPrimeLo  uint64 = 0x000000000000013b
)

// fnv1a128 hashes the concatenation of chunks with 128-bit FNV-1a,
// returning the result as (high, low) 64-bit limbs.
func fnv1a128(chunks ...[]byte) (hi, lo uint64) {
	hi, lo = fnvOffsetHi, fnvOffsetLo
	for _, chunk := range chunks {
		for _, b := range chunk {
			lo ^= uint64(b)
			hi, lo = mul128(hi, lo, fnvPrimeHi, fnvPrimeLo)
		}
	}
	return hi, lo
}

// mul128 computes the low 128 bits of (hi1:lo1) * (hi2:lo2), discarding
// any overflow beyond bit 127 -- the standard wraparound semantics of
// fixed-width multiplication.
func mul128(hi1, lo1, hi2, lo2 uint64) (hi, lo uint64) {
	prodHi, prodLo := bits.Mul64(lo1, lo2)
	cross := hi1*lo2 + lo1*hi2
	return prodHi + cross, prodLo
}
