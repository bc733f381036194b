package rpc

import "github.com/dgrr/corerpc"

// connHandler adapts a corerpc.Conn's frame-dispatch callbacks onto the
// Call objects multiplexed over it. One connHandler is installed per
// Conn via corerpc.Conn.SetHandler; it never makes call-shape decisions
// itself, it only routes events to the Stream.Call() already associated
// with each id, waking whatever recv op that Call has blocked on it.
type connHandler struct {
	conn *corerpc.Conn

	// onNewStream is set by Server for the accept side: a peer-initiated
	// stream with no associated Call yet needs one created before its
	// headers can be delivered. Client connections leave this nil, since
	// every stream a client sees was already registered by Channel.NewCall
	// before any frame for it arrives.
	onNewStream func(streamID uint32, md Metadata, endStream bool)
}

func (h *connHandler) OnHeaders(streamID uint32, md Metadata, isTrailer bool, endStream bool) {
	s := h.streamFor(streamID)
	if s == nil {
		return
	}
	if call, ok := s.Call().(*Call); ok && call != nil {
		// Initial/trailer metadata is already recorded on the Stream by
		// corerpc; wake whichever recv op is waiting on it.
		call.onHeaders(isTrailer, endStream)
		return
	}
	if h.onNewStream != nil {
		h.onNewStream(streamID, md, endStream)
	}
}

func (h *connHandler) OnData(streamID uint32, message []byte, endStream bool) {
	s := h.streamFor(streamID)
	if s == nil {
		return
	}
	call, ok := s.Call().(*Call)
	if !ok || call == nil {
		return
	}
	call.onData(message, endStream)
}

func (h *connHandler) OnRstStream(streamID uint32, code corerpc.ErrorCode) {
	s := h.streamFor(streamID)
	if s == nil {
		return
	}
	if call, ok := s.Call().(*Call); ok && call != nil {
		call.onReset(code)
	}
}

// OnGoAway marks the connection draining; corerpc.Conn itself has already
// reset every unprocessed locally-initiated stream (each surfaced through
// OnRstStream above) by the time this fires. There's nothing further to
// route here: Channel checks Conn.IsDraining() before reusing a
// connection for a new call.
func (h *connHandler) OnGoAway(lastStreamID uint32, code corerpc.ErrorCode) {}

func (h *connHandler) OnStreamClosed(streamID uint32) {}

func (h *connHandler) streamFor(streamID uint32) *corerpc.Stream {
	return h.conn.StreamByID(streamID)
}
