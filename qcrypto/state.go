package qcrypto

import (
	"sync"

	"github.com/gravitational/trace"
)

// EncryptionLevel orders the three stages a connection's crypto state
// passes through (spec.md §4.5). Ordering matters: levels compare with
// < and > so callers can gate behaviour ("has this packet reached
// ForwardSecure yet") without a type switch.
type EncryptionLevel int

const (
	Unencrypted EncryptionLevel = iota
	NonForwardSecure
	ForwardSecure
)

func (l EncryptionLevel) String() string {
	switch l {
	case Unencrypted:
		return "unencrypted"
	case NonForwardSecure:
		return "non_forward_secure"
	case ForwardSecure:
		return "forward_secure"
	default:
		return "unknown"
	}
}

// directionalAEADs bundles the tx/rx AEAD pair active at one
// encryption level.
type directionalAEADs struct {
	tx AEAD
	rx AEAD
}

// State is the per-connection crypto state machine. Level transitions
// are monotone -- the state never downgrades -- and require exclusive
// access, while sealing/opening at the current level may proceed
// concurrently; this mirrors the "readers/writer discipline" spec.md
// §5 calls for.
type State struct {
	mu    sync.RWMutex
	level EncryptionLevel

	unencrypted directionalAEADs

	nonForwardSecure directionalAEADs

	legacy        directionalAEADs // superseded NonForwardSecure keys, kept during the ForwardSecure transition window
	forwardSecure directionalAEADs
}

// NewState constructs a crypto state pinned at Unencrypted, using the
// null AEAD for both directions until handshake secrets are installed.
func NewState() *State {
	return &State{
		level:       Unencrypted,
		unencrypted: directionalAEADs{tx: NullAEAD{}, rx: NullAEAD{}},
	}
}

// Level returns the current encryption level.
func (s *State) Level() EncryptionLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// InstallNonForwardSecure installs the handshake-derived AEADs and
// advances the state to NonForwardSecure. Returns an error if the state
// has already progressed past this level (transitions never downgrade).
func (s *State) InstallNonForwardSecure(tx, rx AEAD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level > Unencrypted {
		return trace.BadParameter("cannot install non-forward-secure keys from level %s", s.level)
	}
	s.nonForwardSecure = directionalAEADs{tx: tx, rx: rx}
	s.level = NonForwardSecure
	return nil
}

// InstallForwardSecure installs the post-handshake AEADs and advances
// the state to ForwardSecure, retaining the outgoing NonForwardSecure
// keys as "legacy" so that packets already in flight under them can
// still be opened during the transition window (spec.md §4.5: "After
// the peer's first decryptable non-forward-secure packet arrives, the
// endpoint may install forward-secure keys").
func (s *State) InstallForwardSecure(tx, rx AEAD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level > NonForwardSecure {
		return trace.BadParameter("cannot install forward-secure keys from level %s", s.level)
	}
	s.legacy = s.nonForwardSecure
	s.forwardSecure = directionalAEADs{tx: tx, rx: rx}
	s.level = ForwardSecure
	return nil
}

// Seal authenticates plaintext at the current encryption level.
func (s *State) Seal(dst []byte, packetNumber uint64, aad, plaintext []byte) ([]byte, EncryptionLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aead, err := s.txLocked(s.level)
	if err != nil {
		return nil, s.level, err
	}
	out, err := aead.Seal(dst, packetNumber, aad, plaintext)
	return out, s.level, err
}

// OpenAt authenticates ciphertext sent at the given encryption level,
// trying the legacy key set too when the current level is
// ForwardSecure (packets reordered from just before the transition).
func (s *State) OpenAt(level EncryptionLevel, dst []byte, packetNumber uint64, aad, ciphertext []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aead, err := s.rxLocked(level)
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(dst, packetNumber, aad, ciphertext)
	if err == nil {
		return out, nil
	}
	if level == NonForwardSecure && s.level == ForwardSecure && s.legacy.rx != nil {
		return s.legacy.rx.Open(dst, packetNumber, aad, ciphertext)
	}
	return nil, err
}

func (s *State) txLocked(level EncryptionLevel) (AEAD, error) {
	switch level {
	case Unencrypted:
		return s.unencrypted.tx, nil
	case NonForwardSecure:
		if s.nonForwardSecure.tx == nil {
			return nil, trace.BadParameter("non-forward-secure keys not installed")
		}
		return s.nonForwardSecure.tx, nil
	case ForwardSecure:
		if s.forwardSecure.tx == nil {
			return nil, trace.BadParameter("forward-secure keys not installed")
		}
		return s.forwardSecure.tx, nil
	default:
		return nil, trace.BadParameter("unknown encryption level %d", level)
	}
}

func (s *State) rxLocked(level EncryptionLevel) (AEAD, error) {
	switch level {
	case Unencrypted:
		return s.unencrypted.rx, nil
	case NonForwardSecure:
		if s.nonForwardSecure.rx == nil {
			return nil, trace.BadParameter("non-forward-secure keys not installed")
		}
		return s.nonForwardSecure.rx, nil
	case ForwardSecure:
		if s.forwardSecure.rx == nil {
			return nil, trace.BadParameter("forward-secure keys not installed")
		}
		return s.forwardSecure.rx, nil
	default:
		return nil, trace.BadParameter("unknown encryption level %d", level)
	}
}
