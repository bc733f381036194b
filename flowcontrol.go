package corerpc

import "sync"

// DefaultWindowSize is the flow control window both endpoints start with
// before any WINDOW_UPDATE or SETTINGS_INITIAL_WINDOW_SIZE is applied
// (http://httpwg.org/specs/rfc7540.html#InitialWindowSize).
const DefaultWindowSize = 65535

// MaxWindowSize is the largest value a flow control window may ever reach;
// a WINDOW_UPDATE that would push it higher is a flow control error.
const MaxWindowSize = 1<<31 - 1

// flowControl tracks one direction's worth of window accounting for either
// a stream or a connection. The zero value is not ready to use; construct
// with newFlowControl.
type flowControl struct {
	mu     sync.Mutex
	send   int64 // bytes we may still send before blocking
	recv   int64 // bytes the peer may still send us
	recvHi int64 // the recv window size last advertised to the peer
}

func newFlowControl(initial uint32) *flowControl {
	return &flowControl{
		send:   int64(initial),
		recv:   int64(initial),
		recvHi: int64(initial),
	}
}

// canSend reports how many of the requested n bytes may be sent right now
// without exceeding the send window.
func (fc *flowControl) canSend(n int) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if int64(n) > fc.send {
		n = int(fc.send)
	}
	if n < 0 {
		n = 0
	}
	return n
}

// consumeSend debits n bytes from the send window; n must not exceed the
// value last returned by canSend.
func (fc *flowControl) consumeSend(n int) {
	fc.mu.Lock()
	fc.send -= int64(n)
	fc.mu.Unlock()
}

// receiveWindowUpdate credits the send window by increment, returning
// ErrWindowOverflow if doing so would exceed MaxWindowSize.
func (fc *flowControl) receiveWindowUpdate(increment uint32) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.send += int64(increment)
	if fc.send > MaxWindowSize {
		return ErrWindowOverflow
	}
	return nil
}

// consumeRecv debits n bytes from the receive window, returning
// ErrWindowUnderflow if the peer sent more than it was entitled to. When
// the remaining window has dropped below half of recvHi, it reports that a
// WINDOW_UPDATE of the given increment should be sent to top it back up.
func (fc *flowControl) consumeRecv(n int) (increment uint32, needUpdate bool, err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.recv -= int64(n)
	if fc.recv < 0 {
		return 0, false, ErrWindowUnderflow
	}

	if fc.recv < fc.recvHi/2 {
		increment = uint32(fc.recvHi - fc.recv)
		fc.recv = fc.recvHi
		return increment, true, nil
	}
	return 0, false, nil
}

// setRecvHigh updates the advertised receive window size, e.g. in response
// to a local SETTINGS_INITIAL_WINDOW_SIZE change, crediting or debiting the
// outstanding window by the delta.
func (fc *flowControl) setRecvHigh(size uint32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delta := int64(size) - fc.recvHi
	fc.recvHi = int64(size)
	fc.recv += delta
}
