package session

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamInOrderDelivery(t *testing.T) {
	s := newStream(1, 1000, 1000)
	require.NoError(t, s.ReceiveData(0, []byte("hello "), false))
	require.NoError(t, s.ReceiveData(6, []byte("world"), true))

	got := make([]byte, 11)
	n, err := s.Read(got)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got[:n]))
	require.True(t, s.IsFinished())
}

func TestStreamOutOfOrderDelivery(t *testing.T) {
	s := newStream(1, 1000, 1000)
	require.NoError(t, s.ReceiveData(6, []byte("world"), false))
	require.NoError(t, s.ReceiveData(0, []byte("hello "), false))

	got, err := io.ReadAll(&s.recvBuf)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestStreamDuplicateDataIgnored(t *testing.T) {
	s := newStream(1, 1000, 1000)
	require.NoError(t, s.ReceiveData(0, []byte("hello"), false))
	require.NoError(t, s.ReceiveData(0, []byte("hello"), false))

	got, err := io.ReadAll(&s.recvBuf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestStreamDataPastFinalOffsetErrors(t *testing.T) {
	s := newStream(1, 1000, 1000)
	require.NoError(t, s.ReceiveData(0, []byte("hello"), true))
	require.Error(t, s.ReceiveData(5, []byte("!"), false))
}

func TestStreamReset(t *testing.T) {
	s := newStream(1, 1000, 1000)
	require.NoError(t, s.ReceiveData(4, []byte("late"), false))
	s.Reset()
	require.Nil(t, s.pending)
}
