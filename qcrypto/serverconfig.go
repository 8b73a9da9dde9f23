package qcrypto

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ServerConfiguration is the rotating, server-side identity a source
// address token is bound to: an opaque id, an orbit value mixed into
// issued tokens, and an expiry past which tokens signed under it must be
// rejected. Mirrors server_configuration.rs/server_configuration_id.rs,
// minus the tag-value wire encoding and key-exchange bookkeeping that
// belong to the full CHLO/REJ/SHLO message layer.
type ServerConfiguration struct {
	ID        uuid.UUID
	Orbit     uint64
	expiresAt time.Time
}

// IsExpired reports whether clock's current time is at or past expiresAt.
func (c ServerConfiguration) IsExpired(clock clockwork.Clock) bool {
	return !clock.Now().Before(c.expiresAt)
}

// ConfigRotator owns the server's current ServerConfiguration and
// replaces it once it expires. The interval between rotations backs off
// exponentially so that a burst of connections whose tokens expire near a
// boundary doesn't thrash the server into rotating on every packet.
type ConfigRotator struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	lifetime time.Duration
	backoff  *backoff.ExponentialBackOff
	current  ServerConfiguration
}

// NewConfigRotator builds a rotator whose first configuration is already
// live, valid for lifetime before it first becomes eligible for rotation.
func NewConfigRotator(clock clockwork.Clock, lifetime time.Duration) *ConfigRotator {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lifetime
	b.MaxInterval = lifetime * 4
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Clock = clock
	b.Reset()

	r := &ConfigRotator{clock: clock, lifetime: lifetime, backoff: b}
	r.current = r.generateLocked()
	return r
}

func (r *ConfigRotator) generateLocked() ServerConfiguration {
	var orbitBytes [8]byte
	if _, err := rand.Read(orbitBytes[:]); err != nil {
		panic(err) // crypto/rand failing means the platform CSPRNG is broken
	}

	return ServerConfiguration{
		ID:        uuid.New(),
		Orbit:     binary.BigEndian.Uint64(orbitBytes[:]),
		expiresAt: r.clock.Now().Add(r.backoff.NextBackOff()),
	}
}

// Current returns the live configuration, rotating in a fresh one first
// if the previous one has expired.
func (r *ConfigRotator) Current() ServerConfiguration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current.IsExpired(r.clock) {
		r.current = r.generateLocked()
	}
	return r.current
}

// AcceptsOrbit reports whether orbit matches the currently-live
// configuration, i.e. whether a source address token stamped with it
// should still be honored.
func (r *ConfigRotator) AcceptsOrbit(orbit uint64) bool {
	return r.Current().Orbit == orbit
}
