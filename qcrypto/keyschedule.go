package qcrypto

// KeyLabel and IVLabel name the sub-derivations spec.md §4.5 runs on a
// directional secret to reach usable AEAD key material.
const (
	KeyLabel = "key"
	IVLabel  = "iv"
)

// minIVLen is the floor on IV length named in spec.md §4.5 ("iv =
// QHKDF-Expand(secret, "iv", max(8, aead.n_min))"); every AEAD this
// version negotiates has n_min = 12, so this floor is never binding in
// practice but is kept for fidelity to the formula.
const minIVLen = 8

// DirectionalKeys is the key/iv pair one direction of one encryption
// level uses to construct its AEAD.
type DirectionalKeys struct {
	Key []byte
	IV  []byte
}

// DeriveDirectionalKeys expands a directional secret into an AEAD key
// of aeadKeyLen bytes and an IV of max(minIVLen, aeadNMin) bytes.
func DeriveDirectionalKeys(secret []byte, aeadKeyLen, aeadNMin int) (DirectionalKeys, error) {
	ivLen := aeadNMin
	if ivLen < minIVLen {
		ivLen = minIVLen
	}

	key, err := QHKDFExpand(secret, KeyLabel, aeadKeyLen)
	if err != nil {
		return DirectionalKeys{}, err
	}
	iv, err := QHKDFExpand(secret, IVLabel, ivLen)
	if err != nil {
		return DirectionalKeys{}, err
	}
	return DirectionalKeys{Key: key, IV: iv}, nil
}
