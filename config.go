// Package qcore is a QUIC transport endpoint core: packet framing and
// codec, the crypto state machine, packet-number-space/ACK handling,
// and per-connection session dispatch. It deliberately stops short of
// owning a UDP socket, an async runtime, or a Client/Server façade
// (spec.md §1) — those belong to whatever embeds this module.
package qcore

import (
	"crypto/tls"
	"time"

	"github.com/gravitational/trace"
)

// TerminationMode selects whether connection shutdown sends
// CONNECTION_CLOSE or simply stops responding (spec.md §5
// "Cancellation", §6 connection_termination_mode).
type TerminationMode int

const (
	// Explicit sends CONNECTION_CLOSE/APPLICATION_CLOSE on shutdown.
	Explicit TerminationMode = iota
	// Implicit stops sending without notifying the peer, relying on
	// the peer's idle timeout.
	Implicit
)

func (m TerminationMode) String() string {
	if m == Implicit {
		return "implicit"
	}
	return "explicit"
}

// Config holds the options spec.md §6 names as recognised
// configuration, following teleport's CheckAndSetDefaults idiom: a
// caller builds a Config, calls CheckAndSetDefaults once, and the
// zero-value fields are filled with documented defaults.
type Config struct {
	// TerminationMode selects the shutdown behavior (default Explicit).
	TerminationMode TerminationMode

	// MaxIncomingDataPerStream is the initial per-stream receive
	// window (spec.md §6 default 8192).
	MaxIncomingDataPerStream uint64

	// MaxIncomingData is the initial connection-level receive window
	// (spec.md §6 default 65536).
	MaxIncomingData uint64

	// MaxPacketSize bounds outbound datagrams (spec.md §6: default
	// 1252, floor 1200 for path-MTU safety).
	MaxPacketSize int

	// IdleTimeout closes a connection that exchanges no packets for
	// this long. Not named explicitly in spec.md §6 but required by
	// the cooperative event loop's suspension points (§5): without it
	// a connection that stops exchanging packets is never given up on.
	IdleTimeout time.Duration

	// TLSConfig is the external TLS configuration handle spec.md §6
	// names as tls_config; it carries certificates and verification
	// policy, consumed by the qcrypto signing/verification interfaces.
	TLSConfig *tls.Config
}

const (
	defaultMaxIncomingDataPerStream = 8192
	defaultMaxIncomingData          = 65536
	defaultMaxPacketSize            = 1252
	minPacketSize                   = 1200
	defaultIdleTimeout              = 30 * time.Second
)

// CheckAndSetDefaults validates c and fills unset fields with their
// documented defaults, mirroring teleport's config-struct convention.
func (c *Config) CheckAndSetDefaults() error {
	if c.MaxIncomingDataPerStream == 0 {
		c.MaxIncomingDataPerStream = defaultMaxIncomingDataPerStream
	}
	if c.MaxIncomingData == 0 {
		c.MaxIncomingData = defaultMaxIncomingData
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = defaultMaxPacketSize
	}
	if c.MaxPacketSize < minPacketSize {
		return trace.BadParameter("max_packet_size %d is below the path-MTU safety floor of %d", c.MaxPacketSize, minPacketSize)
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.MaxIncomingDataPerStream > c.MaxIncomingData {
		return trace.BadParameter("max_incoming_data_per_stream %d cannot exceed max_incoming_data %d", c.MaxIncomingDataPerStream, c.MaxIncomingData)
	}
	return nil
}
