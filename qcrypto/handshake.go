package qcrypto

// HandshakeSalt is mixed into HKDF-Extract as the salt when deriving
// the Initial/handshake secret from a connection id (spec.md §4.5:
// "handshake_secret = HKDF-Extract(salt = HANDSHAKE_SALT, ikm =
// destination_connection_id_bytes)"). Value taken verbatim from
// crypto_state.rs's HANDSHAKE_SALT.
var HandshakeSalt = []byte{
	0x9c, 0x10, 0x8f, 0x98, 0x52, 0x0a, 0x5c, 0x5c, 0x32, 0x96, 0x8e, 0x95, 0x0e, 0x8a, 0x2c, 0x5f,
	0xe0, 0x6d, 0x6c, 0x38,
}

// Directional HKDF labels for the two sides of the handshake secret.
const (
	ClientInLabel = "client in"
	ServerInLabel = "server in"
)

// DirectionalSecrets holds the independently derived client- and
// server-direction handshake secrets, keyed to a single connection id.
type DirectionalSecrets struct {
	ClientSecret []byte
	ServerSecret []byte
}

// DeriveHandshakeSecrets implements spec.md §4.5's Initial handshake
// secret derivation: extract once against HandshakeSalt, then expand
// twice (once per direction label) to produce the client and server
// traffic secrets.
func DeriveHandshakeSecrets(destConnIDBytes []byte) (DirectionalSecrets, error) {
	handshakeSecret := Extract(HandshakeSalt, destConnIDBytes)

	clientSecret, err := QHKDFExpand(handshakeSecret, ClientInLabel, HashLen)
	if err != nil {
		return DirectionalSecrets{}, err
	}
	serverSecret, err := QHKDFExpand(handshakeSecret, ServerInLabel, HashLen)
	if err != nil {
		return DirectionalSecrets{}, err
	}
	return DirectionalSecrets{ClientSecret: clientSecret, ServerSecret: serverSecret}, nil
}

// KeyUpdateLabel names the label used to derive the next traffic
// secret from the current one (spec.md §4.5 "Key update").
const KeyUpdateLabel = "traffic upd"

// UpdateSecret derives the next traffic secret from the current one.
func UpdateSecret(currentSecret []byte) ([]byte, error) {
	return QHKDFExpand(currentSecret, KeyUpdateLabel, HashLen)
}
