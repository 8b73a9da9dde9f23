package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quicforge/qcore"
	"github.com/quicforge/qcore/qcrypto"
	"github.com/quicforge/qcore/wire"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *qcore.Config {
	cfg := &qcore.Config{}
	require.NoError(t, cfg.CheckAndSetDefaults())
	return cfg
}

// TestUnencryptedHandshakePacketRoundTrip sends a CRYPTO frame from a
// client session to a server session over the Unencrypted level (the
// null AEAD, which needs no shared secret) and confirms the server's
// handshake driver observes it and the client's sent-packet tracker
// retires once the server's synthesized ACK comes back.
func TestUnencryptedHandshakePacketRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	client := New(1, RoleClient, cfg, nil, nil)
	server := New(2, RoleServer, cfg, nil, nil)

	client.QueueCrypto(wire.CryptoFrame{Offset: 0, Data: []byte("CHLO")})
	datagram, ok, err := client.PackDatagram(1252)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, server.HandleDatagram(datagram))
	require.True(t, server.ackDirty[qcrypto.Unencrypted])

	got := make([]byte, 4)
	n, err := server.cryptoRecv.Read(got)
	require.NoError(t, err)
	require.Equal(t, "CHLO", string(got[:n]))

	ackDatagram, ok, err := server.PackDatagram(1252)
	require.NoError(t, err)
	require.True(t, ok)

	require.Greater(t, client.sent.InFlight(), 0)
	require.NoError(t, client.HandleDatagram(ackDatagram))
	require.Equal(t, 0, client.sent.InFlight())
}

func TestPackDatagramReturnsFalseWhenNothingPending(t *testing.T) {
	cfg := testConfig(t)
	s := New(1, RoleClient, cfg, nil, nil)
	datagram, ok, err := s.PackDatagram(1252)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, datagram)
}

func TestStreamDataAppliesFlowControl(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxIncomingDataPerStream = 4
	s := New(1, RoleServer, cfg, nil, nil)

	err := s.applyFrame(qcrypto.ForwardSecure, wire.StreamFrame{
		StreamID: wire.FirstClientBidiStreamID,
		Offset:   0,
		Data:     []byte("12345"),
	})
	require.Error(t, err)
}

func TestServerConfigurationOnlyAvailableServerSide(t *testing.T) {
	cfg := testConfig(t)
	client := New(1, RoleClient, cfg, nil, nil)
	_, ok := client.CurrentServerConfiguration()
	require.False(t, ok)

	server := New(2, RoleServer, cfg, nil, nil)
	sc, ok := server.CurrentServerConfiguration()
	require.True(t, ok)
	require.NotEqual(t, uuid.Nil, sc.ID)
}

// TestPackDatagramDeltaDoesNotUnderflowAfterMultipleInboundPackets
// reproduces a server that has decoded several client packets (pushing
// largestRx well past its own, still-zero, send counter) before packing
// its first reply. The outbound packet-number delta must be computed
// against what the peer has acknowledged of *our* sends, not against
// what we've received of theirs, or it underflows.
func TestPackDatagramDeltaDoesNotUnderflowAfterMultipleInboundPackets(t *testing.T) {
	cfg := testConfig(t)
	client := New(1, RoleClient, cfg, nil, nil)
	server := New(2, RoleServer, cfg, nil, nil)

	for i := 0; i < 5; i++ {
		client.QueueCrypto(wire.CryptoFrame{Offset: uint64(i * 4), Data: []byte("CHLO")})
		datagram, ok, err := client.PackDatagram(1252)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, server.HandleDatagram(datagram))
	}

	ackDatagram, ok, err := server.PackDatagram(1252)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, ackDatagram)
}

// TestHandshakeInstallsForwardSecureKeys confirms the crypto state
// machine is actually driven by a live session rather than only by
// qcrypto's own unit tests: once the Unencrypted exchange has nothing
// left to ack, the next pack advances the session straight to
// forward-secure keys.
func TestHandshakeInstallsForwardSecureKeys(t *testing.T) {
	cfg := testConfig(t)
	client := New(1, RoleClient, cfg, nil, nil)
	server := New(2, RoleServer, cfg, nil, nil)

	client.QueueCrypto(wire.CryptoFrame{Offset: 0, Data: []byte("CHLO")})
	datagram, ok, err := client.PackDatagram(1252)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, server.HandleDatagram(datagram))

	ackDatagram, ok, err := server.PackDatagram(1252)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, qcrypto.Unencrypted, server.CryptoLevel())

	require.NoError(t, client.HandleDatagram(ackDatagram))

	_, ok, err = server.PackDatagram(1252)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, qcrypto.ForwardSecure, server.CryptoLevel())
}

func TestPathChallengeQueuesResponse(t *testing.T) {
	cfg := testConfig(t)
	s := New(1, RoleServer, cfg, nil, nil)

	challenge := wire.PathChallengeFrame{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	require.NoError(t, s.applyFrame(qcrypto.ForwardSecure, challenge))
	require.Len(t, s.pendingOther, 1)
	require.Equal(t, wire.PathResponseFrame{Data: challenge.Data}, s.pendingOther[0])
}
