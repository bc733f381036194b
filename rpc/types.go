// Package rpc is the application-facing layer on top of corerpc's HTTP/2
// transport: the call state machine, the tag-based completion queue, and
// the channel/server lifecycle objects a caller actually programs
// against.
package rpc

import (
	"time"

	"github.com/dgrr/corerpc"
	"github.com/valyala/bytebufferpool"
)

// TimePoint is an absolute deadline. A zero TimePoint means "no deadline".
type TimePoint = time.Time

// Metadata is an ordered list of request/response/trailer header fields.
type Metadata = corerpc.Metadata

// HeaderField is one metadata name/value pair.
type HeaderField = corerpc.HeaderField

// ByteBuffer is an owned, poolable message payload. Callers that receive
// one in an Op's RecvMessage must Release it once done; Acquire/Release
// mirror the pooling idiom bytebufferpool itself uses.
type ByteBuffer struct {
	buf *bytebufferpool.ByteBuffer
}

// AcquireByteBuffer returns an empty ByteBuffer from the pool.
func AcquireByteBuffer() *ByteBuffer {
	return &ByteBuffer{buf: bytebufferpool.Get()}
}

// NewByteBufferFromBytes copies b into a ByteBuffer from the pool; the
// caller keeps ownership of b.
func NewByteBufferFromBytes(b []byte) *ByteBuffer {
	bb := AcquireByteBuffer()
	bb.buf.Write(b) //nolint:errcheck
	return bb
}

// Bytes returns the buffer's contents. The slice is invalidated by the
// next Release.
func (b *ByteBuffer) Bytes() []byte {
	if b == nil || b.buf == nil {
		return nil
	}
	return b.buf.B
}

// Release returns the buffer to the pool. The ByteBuffer must not be used
// afterwards.
func (b *ByteBuffer) Release() {
	if b == nil || b.buf == nil {
		return
	}
	bytebufferpool.Put(b.buf)
	b.buf = nil
}

// Code is a call's terminal status code
// (https://grpc.io/docs/guides/status-codes/, trimmed to the 17 codes
// this runtime's calls can terminate with).
type Code uint32

const (
	CodeOK Code = iota
	CodeCancelled
	CodeUnknown
	CodeInvalidArgument
	CodeDeadlineExceeded
	CodeNotFound
	CodeAlreadyExists
	CodePermissionDenied
	CodeResourceExhausted
	CodeFailedPrecondition
	CodeAborted
	CodeOutOfRange
	CodeUnimplemented
	CodeInternal
	CodeUnavailable
	CodeDataLoss
	CodeUnauthenticated
)

var codeStrings = [...]string{
	"OK", "CANCELLED", "UNKNOWN", "INVALID_ARGUMENT", "DEADLINE_EXCEEDED",
	"NOT_FOUND", "ALREADY_EXISTS", "PERMISSION_DENIED", "RESOURCE_EXHAUSTED",
	"FAILED_PRECONDITION", "ABORTED", "OUT_OF_RANGE", "UNIMPLEMENTED",
	"INTERNAL", "UNAVAILABLE", "DATA_LOSS", "UNAUTHENTICATED",
}

func (c Code) String() string {
	if int(c) < len(codeStrings) {
		return codeStrings[c]
	}
	return "UNKNOWN"
}

// Status is a call's terminal outcome, surfaced to the application in the
// RecvStatus field of an OpRecvStatusOnClient op once that op's batch
// completes. The completion queue Event itself carries no Status.
type Status struct {
	Code    Code
	Message string
	Details Metadata
}

// CallError is the synchronous return code of a batch or call-control
// operation (start_batch, cancel, ...). Unlike Status, which is the call's
// eventual outcome delivered through the completion queue, a CallError is
// returned immediately and means the operation itself was rejected.
type CallError int

const (
	CallOK CallError = iota
	CallErrorGeneric
	CallErrorNotOnServer
	CallErrorNotOnClient
	CallErrorAlreadyInvoked
	CallErrorNotInvoked
	CallErrorAlreadyFinished
	CallErrorTooManyOps
	CallErrorInvalidFlags
)

var callErrorStrings = [...]string{
	"OK", "ERROR", "NOT_ON_SERVER", "NOT_ON_CLIENT", "ALREADY_INVOKED",
	"NOT_INVOKED", "ALREADY_FINISHED", "TOO_MANY_OPERATIONS", "INVALID_FLAGS",
}

func (e CallError) String() string {
	if int(e) < len(callErrorStrings) {
		return callErrorStrings[e]
	}
	return "UNKNOWN"
}

// Error satisfies the error interface so a non-OK CallError can be
// returned directly from an API that reports failure via error.
func (e CallError) Error() string { return "rpc: " + e.String() }

// EventKind identifies what a completion queue Event represents.
type EventKind int

const (
	EventQueueTimeout EventKind = iota
	EventQueueShutdown
	EventOpComplete
)

// Event is what CompletionQueue.Next delivers: the outcome of exactly one
// previously start_batch'd tag, or a queue lifecycle notification.
type Event struct {
	Kind    EventKind
	Tag     interface{}
	Success bool
}
