package corerpc

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// StreamState tracks where a Stream sits in its half-close lifecycle
// (http://httpwg.org/specs/rfc7540.html#StreamStates), collapsed to the
// subset this runtime's call shapes actually exercise: there is no
// "reserved" state, since this core never sends PUSH_PROMISE.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

// Stream is one HTTP/2 stream multiplexed over a Connection, carrying
// exactly one RPC call's request and response. A Stream is created the
// moment a Call is started and is never reused for a second call.
type Stream struct {
	mu sync.Mutex

	id   uint32
	conn *Conn
	call interface{} // *rpc.Call; held as interface{} to avoid an import cycle

	state StreamState

	send *flowControl
	recv *flowControl

	initialMetadata Metadata
	trailerMetadata Metadata

	incoming *bytebufferpool.ByteBuffer
}

// newStream allocates a Stream with the given id on conn, with fresh flow
// control windows sized from the connection's current settings.
func newStream(conn *Conn, id uint32, sendWindow, recvWindow uint32) *Stream {
	return &Stream{
		id:       id,
		conn:     conn,
		state:    StreamIdle,
		send:     newFlowControl(sendWindow),
		recv:     newFlowControl(recvWindow),
		incoming: bytebufferpool.Get(),
	}
}

// ID is the stream's HTTP/2 identifier.
func (s *Stream) ID() uint32 { return s.id }

// State returns the stream's recorded state. Nothing in this package calls
// setState, so it reports StreamIdle for the stream's whole life.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(st StreamState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SetCall associates c (a *rpc.Call) with this stream. Called once, right
// after the stream is registered with its connection.
func (s *Stream) SetCall(c interface{}) {
	s.mu.Lock()
	s.call = c
	s.mu.Unlock()
}

// Call returns the call previously set with SetCall, or nil.
func (s *Stream) Call() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call
}

// InitialMetadata returns the stream's initial (non-trailing) metadata.
func (s *Stream) InitialMetadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialMetadata
}

// SetInitialMetadata records the stream's initial metadata.
func (s *Stream) SetInitialMetadata(md Metadata) {
	s.mu.Lock()
	s.initialMetadata = md
	s.mu.Unlock()
}

// TrailerMetadata returns the stream's trailing metadata.
func (s *Stream) TrailerMetadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailerMetadata
}

// SetTrailerMetadata records the stream's trailing metadata.
func (s *Stream) SetTrailerMetadata(md Metadata) {
	s.mu.Lock()
	s.trailerMetadata = md
	s.mu.Unlock()
}

// AppendIncoming appends raw DATA bytes to the stream's reassembly buffer.
func (s *Stream) AppendIncoming(b []byte) {
	s.mu.Lock()
	s.incoming.Write(b) //nolint:errcheck // bytebufferpool.Write never errors
	s.mu.Unlock()
}

// TakeIncoming drains and returns everything reassembled so far, resetting
// the buffer for the next message.
func (s *Stream) TakeIncoming() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, len(s.incoming.B))
	copy(b, s.incoming.B)
	s.incoming.Reset()
	return b
}

// release returns the stream's pooled resources. Nothing in this package
// calls it; a stream dropped from the registry keeps its buffer until it
// is garbage collected.
func (s *Stream) release() {
	s.mu.Lock()
	buf := s.incoming
	s.incoming = nil
	s.mu.Unlock()
	if buf != nil {
		bytebufferpool.Put(buf)
	}
}
