package session

import (
	"bytes"

	"github.com/gravitational/trace"
	"github.com/quicforge/qcore/flowcontrol"
	"github.com/quicforge/qcore/wire"
)

// Stream holds the per-stream state the session map owns (spec.md
// §4.8): an in-order receive buffer fed by out-of-order STREAM frames,
// the send offset cursor, and the stream's own pair of flow-control
// windows. Grounded on the reassembly-by-offset shape of
// src/streams/stream_map.rs in the retrieval pack's original_source,
// expressed here as a plain offset-keyed pending map rather than that
// source's interval tree, since a stream rarely has more than a
// handful of out-of-order gaps outstanding at once.
type Stream struct {
	ID wire.StreamID

	sendFC *flowcontrol.FlowControl
	recvFC *flowcontrol.FlowControl

	sendOffset uint64

	recvNextOffset uint64
	recvBuf        bytes.Buffer
	pending        map[uint64][]byte

	finalOffset  uint64
	haveFinal    bool
	resetLocally bool
}

func newStream(id wire.StreamID, initialSendWindow, initialRecvWindow uint64) *Stream {
	return &Stream{
		ID:      id,
		sendFC:  flowcontrol.New(initialSendWindow),
		recvFC:  flowcontrol.New(initialRecvWindow),
		pending: make(map[uint64][]byte),
	}
}

// ReceiveData applies a STREAM frame's payload, honouring its offset
// and delivering any now-contiguous bytes into the receive buffer
// (spec.md §4.8: "deliver bytes to its receive queue honouring
// offset"). fin marks data's end as the stream's final offset.
func (s *Stream) ReceiveData(offset uint64, data []byte, fin bool) error {
	if s.haveFinal {
		end := offset + uint64(len(data))
		if end > s.finalOffset || (fin && offset+uint64(len(data)) != s.finalOffset) {
			return trace.BadParameter("stream %d: data extends past previously announced final offset %d", s.ID, s.finalOffset)
		}
	}
	if fin {
		s.finalOffset = offset + uint64(len(data))
		s.haveFinal = true
	}

	if offset > s.recvNextOffset {
		s.pending[offset] = append([]byte(nil), data...)
		return nil
	}
	if offset+uint64(len(data)) <= s.recvNextOffset {
		return nil // fully duplicate
	}

	overlap := s.recvNextOffset - offset
	s.recvBuf.Write(data[overlap:])
	s.recvNextOffset += uint64(len(data)) - overlap

	for {
		chunk, ok := s.pending[s.recvNextOffset]
		if !ok {
			break
		}
		delete(s.pending, s.recvNextOffset)
		s.recvBuf.Write(chunk)
		s.recvNextOffset += uint64(len(chunk))
	}
	return nil
}

// Read drains bytes delivered in order so far.
func (s *Stream) Read(p []byte) (int, error) {
	return s.recvBuf.Read(p)
}

// IsFinished reports whether every byte up to the final offset has
// been delivered in order.
func (s *Stream) IsFinished() bool {
	return s.haveFinal && s.recvNextOffset >= s.finalOffset
}

// Reset terminates the stream locally and discards its buffered
// out-of-order data; the session charges no later STREAM frame for a
// reset stream against flow control. Bytes already charged are not
// returned to the stream or connection window.
func (s *Stream) Reset() {
	s.resetLocally = true
	s.pending = nil
}
