package corerpc

import "errors"

// ErrorCode is an HTTP/2 error code, carried in RST_STREAM and GOAWAY
// frames (http://httpwg.org/specs/rfc7540.html#ErrorCodes).
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectError         ErrorCode = 0xa
	EnhanceYourCalmError ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11RequiredError  ErrorCode = 0xd
)

var errCodeStrings = map[ErrorCode]string{
	NoError:              "no error",
	ProtocolError:        "protocol error",
	InternalError:        "internal error",
	FlowControlError:     "flow control error",
	SettingsTimeoutError: "settings timeout",
	StreamClosedError:    "stream closed",
	FrameSizeError:       "frame size error",
	RefusedStreamError:   "refused stream",
	CancelError:          "cancel",
	CompressionError:     "compression error",
	ConnectError:         "connect error",
	EnhanceYourCalmError: "enhance your calm",
	InadequateSecurity:   "inadequate security",
	HTTP11RequiredError:  "http/1.1 required",
}

func (e ErrorCode) String() string {
	if s, ok := errCodeStrings[e]; ok {
		return s
	}
	return "unknown error code"
}

// TransportError is a fatal, connection-level error: the framer desynced,
// a frame was malformed, or a negotiated limit was exceeded. Per §4.1/§7,
// a TransportError always tears down the whole connection, as opposed to a
// single stream reset.
type TransportError struct {
	Code ErrorCode
	msg  string
}

func (e *TransportError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "transport error: " + e.Code.String()
}

func newTransportError(code ErrorCode, msg string) *TransportError {
	return &TransportError{Code: code, msg: msg}
}

var (
	// ErrShortFrame is returned when a frame's declared length does not
	// match the bytes actually available to satisfy it.
	ErrShortFrame = newTransportError(FrameSizeError, "short read: incomplete frame")
	// ErrFrameTooLarge is returned when a frame's length exceeds the
	// negotiated MAX_FRAME_SIZE.
	ErrFrameTooLarge = newTransportError(FrameSizeError, "frame length exceeds negotiated max frame size")
	// ErrBadPreface is returned when the client connection preface does
	// not match the expected 24 octets.
	ErrBadPreface = newTransportError(ProtocolError, "bad connection preface")
	// ErrHPACKMalformed is returned by the HPACK decoder on any truncated
	// or otherwise malformed header block.
	ErrHPACKMalformed = newTransportError(CompressionError, "malformed HPACK block")
	// ErrWindowOverflow is returned when a WINDOW_UPDATE increment would
	// push a flow control window above 2^31-1.
	ErrWindowOverflow = newTransportError(FlowControlError, "flow control window overflow")
	// ErrWindowUnderflow is returned when more bytes are consumed from a
	// receive window than remain in it.
	ErrWindowUnderflow = newTransportError(FlowControlError, "flow control window underflow")
	// ErrMissingBytes is returned by a frame Deserialize when the payload
	// is shorter than the frame type requires.
	ErrMissingBytes = errors.New("corerpc: frame payload shorter than required")
	// ErrBadWindowIncrement is returned for a WINDOW_UPDATE increment of 0
	// or one that does not fit the 31-bit wire field.
	ErrBadWindowIncrement = errors.New("corerpc: window increment out of range")
	// ErrUnknownFrameType names an unrecognized frame type. Conn's read
	// loop never returns it: it discards every frame type it does not
	// dispatch, as RFC 7540 allows.
	ErrUnknownFrameType = errors.New("corerpc: unknown critical frame type")
)
