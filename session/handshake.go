package session

import (
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// HandshakeRole distinguishes the client and server sides of the
// handshake driver, which follow different message sequences (spec.md
// §9 design notes supplement: client sends CHLO, may be rejected with
// REJ carrying a ServerConfiguration and certificate chain, resends a
// full CHLO, and completes on SHLO; server mirrors this in reverse).
// Grounded on ClientCryptoInitializer/CryptoStage in the retrieval
// pack's original_source (src/handshake/client_crypto_initializer.rs,
// src/handshake/crypto_stage.rs).
type HandshakeRole int

const (
	RoleClient HandshakeRole = iota
	RoleServer
)

// HandshakeStage is a point in the CHLO/REJ/SHLO progression.
type HandshakeStage int

const (
	StageStart HandshakeStage = iota
	// Client: sent an inchoate CHLO and is waiting for REJ or SHLO.
	// Server: waiting for the client's first CHLO.
	StageAwaitingPeer
	// Client: received REJ, cached the server configuration, and must
	// send a full CHLO carrying proof of the server's identity.
	StageRejected
	// Both sides: forward-secure keys are ready to install on the
	// next outbound/inbound packet.
	StageReadyForForwardSecure
	// The handshake is complete; forward-secure keys are installed.
	StageComplete
)

// Driver advances a session's handshake stage as CRYPTO stream bytes
// arrive, independent of the AEAD/key-schedule machinery in qcrypto
// (which actually performs the key derivation once the driver says a
// transition is due).
type Driver struct {
	role  HandshakeRole
	stage HandshakeStage
	log   logrus.FieldLogger

	// cryptoOffset tracks how many bytes of the crypto stream this
	// side has already consumed, so repeated/overlapping CRYPTO frames
	// don't re-trigger a stage transition.
	cryptoOffset uint64
}

// NewDriver constructs a handshake driver at StageStart for the given
// role.
func NewDriver(role HandshakeRole, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{role: role, stage: StageStart, log: log}
}

// Stage returns the current handshake stage.
func (d *Driver) Stage() HandshakeStage { return d.stage }

// IsComplete reports whether the handshake has finished.
func (d *Driver) IsComplete() bool { return d.stage == StageComplete }

// Start transitions out of StageStart: the client sends its inchoate
// CHLO, the server starts waiting for one.
func (d *Driver) Start() {
	if d.stage != StageStart {
		return
	}
	d.stage = StageAwaitingPeer
	d.log.WithField("role", d.role).Debug("handshake started")
}

// FeedCryptoData advances the stage in response to newly arrived,
// in-order crypto-stream bytes (spec.md §4.8: "CRYPTO → append to the
// handshake stream; feed the handshake driver"). The actual
// CHLO/REJ/SHLO tag-value message is decoded by the caller (qtag);
// isRejection/isFinal classify what kind of message just arrived.
func (d *Driver) FeedCryptoData(offset uint64, length int, isRejection, isFinal bool) error {
	if offset < d.cryptoOffset {
		return nil // old data, already accounted for
	}
	d.cryptoOffset = offset + uint64(length)

	switch d.stage {
	case StageStart:
		return trace.BadParameter("handshake driver received crypto data before Start")
	case StageAwaitingPeer:
		switch {
		case isRejection:
			d.stage = StageRejected
			d.log.Debug("handshake rejected, expecting a full CHLO resend")
		case isFinal:
			d.stage = StageReadyForForwardSecure
			d.log.Debug("handshake peer message accepted, ready for forward-secure keys")
		}
	case StageRejected:
		if isFinal {
			d.stage = StageReadyForForwardSecure
		}
	case StageReadyForForwardSecure:
		// Extra crypto bytes (e.g. a server's session ticket) don't
		// change the stage once forward-secure keys are pending.
	}
	return nil
}

// CompleteForwardSecure marks the handshake complete once the caller
// has actually installed forward-secure AEAD keys in qcrypto.State
// (spec.md §4.5: "the endpoint may install forward-secure keys on the
// next exported-key message").
func (d *Driver) CompleteForwardSecure() error {
	if d.stage != StageReadyForForwardSecure {
		return trace.BadParameter("cannot complete handshake from stage %d", d.stage)
	}
	d.stage = StageComplete
	d.log.WithField("role", d.role).Debug("handshake complete")
	return nil
}
