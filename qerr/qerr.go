// Package qerr defines the QUIC protocol error taxonomy described in
// spec.md §7: codec, crypto, protocol, and resource errors, each carrying
// a stable numeric code alongside the usual gravitational/trace context.
package qerr

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// Code is a QUIC connection error code, sent on the wire in
// CONNECTION_CLOSE / APPLICATION_CLOSE frames. Values below 0x100 are
// generic; 0x100|frame_type is reserved for frame-specific errors.
type Code uint16

// Generic error codes, per spec.md §7.
const (
	NoError                  Code = 0x0
	InternalError            Code = 0x1
	ServerBusy                Code = 0x2
	FlowControlError          Code = 0x3
	StreamIDError             Code = 0x4
	StreamStateError          Code = 0x5
	FinalOffsetError          Code = 0x6
	FrameFormatError          Code = 0x7
	TransportParameterError   Code = 0x8
	VersionNegotiationError   Code = 0x9
	ProtocolViolation         Code = 0xA
	UnsolicitedPathResponse   Code = 0xB
)

// FrameError builds the frame-type-specific error code 0x100|frame_type.
func FrameError(frameType byte) Code {
	return Code(0x100 | uint16(frameType))
}

// Kind classifies an error for propagation-policy decisions (spec.md §7):
// whether a datagram is merely dropped, silently ignored, or escalated to
// a connection-level CONNECTION_CLOSE.
type Kind int

const (
	// KindCodec: malformed wire data. The datagram is dropped; the rest
	// of the socket is unaffected.
	KindCodec Kind = iota
	// KindCrypto: AEAD open failure or key-schedule error.
	KindCrypto
	// KindProtocol: a rule violation detected after successful
	// authentication. Escalates to CONNECTION_CLOSE.
	KindProtocol
	// KindResource: a resource limit was exceeded (oversized compressed
	// chain, replacement-count mismatch).
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindCodec:
		return "codec"
	case KindCrypto:
		return "crypto"
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// qerror is the concrete error type threaded through trace.Wrap chains.
// It is never compared by identity; callers recover structured data with
// CodeOf/KindOf.
type qerror struct {
	kind Code
	k    Kind
	msg  string
}

func (e *qerror) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("qerr: code=0x%x kind=%s", uint16(e.kind), e.k)
	}
	return fmt.Sprintf("qerr: code=0x%x kind=%s: %s", uint16(e.kind), e.k, e.msg)
}

// New constructs a trace-wrapped error carrying the given code and kind.
// Matches the quic-go-family idiom of qerr.Error(code, message) seen
// throughout the handshake/crypto sources in the retrieval pack.
func New(code Code, k Kind, format string, args ...any) error {
	return trace.Wrap(&qerror{kind: code, k: k, msg: fmt.Sprintf(format, args...)})
}

// Wrap attaches a code/kind to an existing error without discarding its
// cause, mirroring trace.Wrap's chaining semantics.
func Wrap(err error, code Code, k Kind) error {
	if err == nil {
		return nil
	}
	return trace.Wrap(&qerror{kind: code, k: k, msg: err.Error()})
}

// CodeOf extracts the Code from err if it (or a wrapped cause) is a
// qerror produced by this package; ok is false otherwise.
func CodeOf(err error) (code Code, ok bool) {
	var q *qerror
	if errors.As(err, &q) {
		return q.kind, true
	}
	return 0, false
}

// KindOf extracts the Kind from err, defaulting to KindProtocol when err
// does not carry one (the conservative choice: unclassified errors
// encountered post-authentication are treated as protocol violations).
func KindOf(err error) Kind {
	var q *qerror
	if errors.As(err, &q) {
		return q.k
	}
	return KindProtocol
}
