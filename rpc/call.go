package rpc

import (
	"strconv"
	"sync"
	"time"

	"github.com/dgrr/corerpc"
)

// CallState mirrors a Call's position in its send/receive half-close
// lifecycle, one level above the Stream it owns.
type CallState int

const (
	CallInit CallState = iota
	CallSending
	CallHalfClosedLocal
	CallFinished
)

// OpKind identifies one operation within a start_batch call.
type OpKind int

const (
	OpSendInitialMetadata OpKind = iota
	OpSendMessage
	OpSendCloseFromClient
	OpSendStatusFromServer
	OpRecvInitialMetadata
	OpRecvMessage
	OpRecvStatusOnClient
	OpRecvCloseOnServer
)

// maxBatchOps bounds a single start_batch call, per the 6 op kinds the
// completion-queue model recognizes in a single in-flight batch (closing
// a call combines two of the 8 OpKinds above into one wire action, so 6
// is the actual concurrent ceiling rather than 8).
const maxBatchOps = 6

// Op is one operation within a Batch. Exactly one of the payload fields is
// meaningful, depending on Kind.
type Op struct {
	Kind OpKind

	Metadata Metadata // OpSendInitialMetadata
	Message  []byte   // OpSendMessage
	Status   Status   // OpSendStatusFromServer

	// Out fields, populated once the batch's tag is delivered:
	RecvMetadata Metadata
	RecvMessage  *ByteBuffer
	RecvStatus   Status
	Cancelled    bool // OpRecvCloseOnServer
}

// Call is one RPC invocation: a client call owns exactly one Stream for
// its whole lifetime, and a server call is handed a Stream already opened
// by its peer. Calls are driven through StartBatch, with completions
// delivered asynchronously to a CompletionQueue the Call was started on.
//
// Every recv op (OpRecvInitialMetadata, OpRecvMessage,
// OpRecvStatusOnClient, OpRecvCloseOnServer) blocks inside its batch's
// goroutine until the awaited event has actually arrived: connHandler
// signals onHeaders/onData as frames are decoded off the wire, onReset on
// an RST_STREAM, Cancel and the deadline timer signal themselves. cond is
// the single wait/wake point all of these share.
type Call struct {
	mu   sync.Mutex
	cond *sync.Cond

	isClient bool
	conn     *corerpc.Conn
	stream   *corerpc.Stream
	cq       *CompletionQueue

	state CallState

	deadline      TimePoint
	deadlineTimer *time.Timer
	method        string
	recvQueue     [][]byte

	haveInitialMD bool
	haveTrailers  bool
	streamClosed  bool // peer half-closed, was reset, was cancelled, or deadline fired
	cancelled     bool
	localStatus   Status // valid once cancelled is true, takes priority over trailers

	inFlight bool // a batch's send or recv half is outstanding
}

// newCall is shared set-up for both client- and server-originated calls.
func newCall(conn *corerpc.Conn, stream *corerpc.Stream, cq *CompletionQueue, isClient bool) *Call {
	c := &Call{
		conn:     conn,
		stream:   stream,
		cq:       cq,
		isClient: isClient,
		state:    CallInit,
	}
	c.cond = sync.NewCond(&c.mu)
	stream.SetCall(c)
	return c
}

// Deadline returns the call's deadline, or the zero TimePoint if none was
// set.
func (c *Call) Deadline() TimePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// SetDeadline sets the call's deadline and (re)arms the timer that
// transitions the call to CodeDeadlineExceeded if it hasn't finished by
// then. Passing the zero TimePoint clears any deadline.
func (c *Call) SetDeadline(t TimePoint) {
	c.mu.Lock()
	c.deadline = t
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
		c.deadlineTimer = nil
	}
	if !t.IsZero() {
		c.deadlineTimer = time.AfterFunc(time.Until(t), c.expireDeadline)
	}
	c.mu.Unlock()
}

// State returns the call's current lifecycle state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CompletionQueue returns the queue this call's batch completions are
// delivered to.
func (c *Call) CompletionQueue() *CompletionQueue {
	return c.cq
}

// StartBatch submits ops as one atomic batch tagged by tag: tag is
// returned via the call's CompletionQueue once every op in the batch has
// completed. It returns immediately with a CallError describing whether
// the batch was accepted, not whether it ultimately succeeded — that
// outcome arrives later as an Event with Success set.
func (c *Call) StartBatch(ops []Op, tag interface{}) CallError {
	if len(ops) == 0 || len(ops) > maxBatchOps {
		return CallErrorTooManyOps
	}

	c.mu.Lock()
	if c.state == CallFinished {
		c.mu.Unlock()
		return CallErrorAlreadyFinished
	}
	if c.inFlight {
		c.mu.Unlock()
		return CallErrorAlreadyInvoked
	}
	c.inFlight = true
	c.mu.Unlock()

	c.cq.RegisterPending()
	go c.runBatch(ops, tag)
	return CallOK
}

func (c *Call) runBatch(ops []Op, tag interface{}) {
	success := true
	for i := range ops {
		if err := c.runOp(&ops[i]); err != nil {
			success = false
			break
		}
	}

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()

	c.cq.Push(Event{Kind: EventOpComplete, Tag: tag, Success: success})
}

func (c *Call) runOp(op *Op) error {
	switch op.Kind {
	case OpSendInitialMetadata:
		c.mu.Lock()
		c.state = CallSending
		c.mu.Unlock()
		return c.conn.SendHeaders(c.stream.ID(), op.Metadata, false)

	case OpSendMessage:
		return c.conn.SendMessage(c.stream, op.Message, false, false)

	case OpSendCloseFromClient:
		c.mu.Lock()
		c.state = CallHalfClosedLocal
		c.mu.Unlock()
		return c.conn.SendMessage(c.stream, nil, false, true)

	case OpSendStatusFromServer:
		md := Metadata{{Name: "grpc-status", Value: statusCodeString(op.Status.Code)}}
		if op.Status.Message != "" {
			md = append(md, corerpc.HeaderField{Name: "grpc-message", Value: op.Status.Message})
		}
		md = append(md, op.Status.Details...)
		c.finish()
		return c.conn.SendHeaders(c.stream.ID(), md, true)

	case OpRecvInitialMetadata:
		c.waitUntil(func() bool { return c.haveInitialMD })
		op.RecvMetadata = c.stream.InitialMetadata()
		return nil

	case OpRecvMessage:
		c.waitUntil(func() bool { return len(c.recvQueue) > 0 })
		if msg, ok := c.takeRecvMessage(); ok {
			op.RecvMessage = NewByteBufferFromBytes(msg)
		}
		return nil

	case OpRecvStatusOnClient:
		c.waitUntil(func() bool { return c.haveTrailers })
		op.RecvStatus = c.resolveStatus()
		c.finish()
		return nil

	case OpRecvCloseOnServer:
		c.waitUntil(func() bool { return c.streamClosed })
		c.mu.Lock()
		op.Cancelled = c.cancelled
		c.mu.Unlock()
		return nil
	}
	return nil
}

// waitUntil blocks until ready reports true or the call's stream has
// closed for any reason (peer half-close, RST_STREAM, Cancel, or deadline
// expiry — all of which set streamClosed and broadcast cond).
func (c *Call) waitUntil(ready func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !ready() && !c.streamClosed {
		c.cond.Wait()
	}
}

// Cancel atomically marks the call cancelled with status CANCELLED, wakes
// any op blocked on it, and resets the underlying stream with CANCEL so
// the peer observes the cancellation immediately.
func (c *Call) Cancel() CallError {
	c.mu.Lock()
	if c.state == CallFinished {
		c.mu.Unlock()
		return CallErrorAlreadyFinished
	}
	c.streamClosed = true
	c.cancelled = true
	c.localStatus = Status{Code: CodeCancelled, Message: "cancelled"}
	c.state = CallFinished
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if err := c.conn.SendRstStream(c.stream.ID(), corerpc.CancelError); err != nil {
		return CallErrorGeneric
	}
	return CallOK
}

// expireDeadline fires from the deadline timer if the call hasn't
// finished by then: transitions it to DEADLINE_EXCEEDED, wakes any
// blocked op, and resets the stream so the peer stops processing it.
func (c *Call) expireDeadline() {
	c.mu.Lock()
	if c.state == CallFinished || c.streamClosed {
		c.mu.Unlock()
		return
	}
	c.streamClosed = true
	c.cancelled = true
	c.localStatus = Status{Code: CodeDeadlineExceeded, Message: "deadline exceeded"}
	c.state = CallFinished
	c.cond.Broadcast()
	c.mu.Unlock()

	c.conn.SendRstStream(c.stream.ID(), corerpc.CancelError) //nolint:errcheck // best-effort notice to the peer
}

func (c *Call) finish() {
	c.mu.Lock()
	c.state = CallFinished
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	c.mu.Unlock()
}

// onHeaders is signalled by connHandler once the stream's initial or
// trailing metadata has actually been decoded off the wire.
func (c *Call) onHeaders(isTrailer, endStream bool) {
	c.mu.Lock()
	if isTrailer {
		c.haveTrailers = true
	} else {
		c.haveInitialMD = true
	}
	if endStream {
		c.streamClosed = true
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// onData is signalled by connHandler for every reassembled gRPC message,
// and once more with msg=nil when the peer half-closes its send side.
func (c *Call) onData(msg []byte, endStream bool) {
	c.mu.Lock()
	if msg != nil {
		c.recvQueue = append(c.recvQueue, msg)
	}
	if endStream {
		c.streamClosed = true
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// onReset is signalled by connHandler when the peer, or corerpc's own
// GOAWAY-draining logic, resets the stream.
func (c *Call) onReset(code corerpc.ErrorCode) {
	c.mu.Lock()
	if c.state == CallFinished {
		c.mu.Unlock()
		return
	}
	c.streamClosed = true
	c.cancelled = true
	c.localStatus = statusFromErrorCode(code)
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

func statusFromErrorCode(code corerpc.ErrorCode) Status {
	if code == corerpc.CancelError {
		return Status{Code: CodeCancelled, Message: "stream reset: cancel"}
	}
	return Status{Code: CodeUnavailable, Message: "stream reset: " + code.String()}
}

func (c *Call) takeRecvMessage() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recvQueue) == 0 {
		return nil, false
	}
	msg := c.recvQueue[0]
	c.recvQueue = c.recvQueue[1:]
	return msg, true
}

// resolveStatus returns the locally-synthesized status (cancel, deadline,
// or stream reset) if one was recorded, otherwise parses the peer's
// trailing metadata.
func (c *Call) resolveStatus() Status {
	c.mu.Lock()
	cancelled := c.cancelled
	local := c.localStatus
	c.mu.Unlock()

	if cancelled {
		return local
	}
	return c.statusFromTrailers()
}

func (c *Call) statusFromTrailers() Status {
	md := c.stream.TrailerMetadata()
	st := Status{Code: CodeOK}
	for _, f := range md {
		switch f.Name {
		case "grpc-status":
			st.Code = parseStatusCode(f.Value)
		case "grpc-message":
			st.Message = f.Value
		default:
			st.Details = append(st.Details, f)
		}
	}
	return st
}

func statusCodeString(c Code) string {
	return strconv.Itoa(int(c))
}

func parseStatusCode(s string) Code {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(CodeUnauthenticated) {
		return CodeUnknown
	}
	return Code(n)
}
