package wire

// StreamID is a variable-length integer identifying a stream. The two
// low bits encode the initiator (client=odd, server=even) and the
// directionality (bidirectional vs unidirectional), per spec.md DATA
// MODEL. Stream 0 is reserved for the cryptographic handshake.
type StreamID uint64

// CryptoStreamID is the reserved handshake stream.
const CryptoStreamID StreamID = 0

// Bit layout, matching the "two low bits" description in spec.md: bit 0
// selects the initiator (client streams are odd, starting at 1; server
// streams are even, starting at 2), bit 1 selects directionality.
const (
	streamInitiatorBit      = 1 << 0
	streamUnidirectionalBit = 1 << 1
)

// InitiatedByServer reports whether id was allocated by the server.
func (id StreamID) InitiatedByServer() bool {
	return id != CryptoStreamID && id&streamInitiatorBit == 0
}

// InitiatedByClient reports whether id was allocated by the client.
func (id StreamID) InitiatedByClient() bool {
	return id == CryptoStreamID || id&streamInitiatorBit != 0
}

// Unidirectional reports whether id is a unidirectional stream.
func (id StreamID) Unidirectional() bool {
	return id&streamUnidirectionalBit != 0
}

// Bidirectional reports whether id is a bidirectional stream.
func (id StreamID) Bidirectional() bool {
	return !id.Unidirectional()
}

// FirstClientBidiStreamID is the first bidirectional stream id a client
// allocates (odd/even encoding means bit0=1 for client).
const FirstClientBidiStreamID StreamID = 1

// FirstServerBidiStreamID is the first bidirectional stream id a server
// allocates.
const FirstServerBidiStreamID StreamID = 2

// NextBidiStreamID returns the next stream id a peer on the given side
// should allocate, advancing by 2 per spec.md's stream id allocation
// rule (§4.8).
func NextBidiStreamID(previous StreamID) StreamID {
	return previous + 2
}
