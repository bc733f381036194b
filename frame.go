package corerpc

// FrameType identifies the kind of an HTTP/2 frame
// (http://httpwg.org/specs/rfc7540.html#FrameTypes).
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRstStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRstStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	}
	return "UNKNOWN"
}

// coreFrameTypes are the frame types this runtime dispatches, per §4.1.
// PRIORITY and PUSH_PROMISE are valid HTTP/2 frames but are not part of the
// gRPC call shapes this core implements; they are read (to stay in sync
// with the stream) and discarded rather than treated as critical/unknown.
var coreFrameTypes = map[FrameType]bool{
	FrameData:         true,
	FrameHeaders:      true,
	FrameRstStream:    true,
	FrameSettings:     true,
	FramePing:         true,
	FrameGoAway:       true,
	FrameWindowUpdate: true,
	FrameContinuation: true,
}

// FrameFlags are the 8 flag bits carried in a frame header. Only the flags
// actually used by the frame types in §4.1 are named.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

// Has reports whether f contains every bit of other.
func (f FrameFlags) Has(other FrameFlags) bool {
	return f&other == other
}

// Add returns f with other's bits set.
func (f FrameFlags) Add(other FrameFlags) FrameFlags {
	return f | other
}

// Frame is the payload of one HTTP/2 frame: a type-specific view that knows
// how to encode itself into, and decode itself from, a FrameHeader's raw
// payload bytes. Each concrete frame type (Data, Headers, Settings, ...)
// implements it and is pooled via its own Acquire/Release pair.
//
// A Frame must not be used from more than one goroutine at a time.
type Frame interface {
	Type() FrameType
	Reset()
	// Deserialize populates the frame from fr's decoded header and payload.
	Deserialize(fr *FrameHeader) error
	// Serialize writes the frame's wire representation into fr's payload,
	// and sets any flags on fr that the frame type requires.
	Serialize(fr *FrameHeader)
}

func acquireFrameByType(t FrameType) Frame {
	switch t {
	case FrameData:
		return AcquireData()
	case FrameHeaders:
		return AcquireHeaders()
	case FrameRstStream:
		return AcquireRstStream()
	case FrameSettings:
		return AcquireSettings()
	case FramePing:
		return AcquirePing()
	case FrameGoAway:
		return AcquireGoAway()
	case FrameWindowUpdate:
		return AcquireWindowUpdate()
	case FrameContinuation:
		return AcquireContinuation()
	default:
		return nil
	}
}

func releaseFrameByType(fr Frame) {
	if fr == nil {
		return
	}
	switch v := fr.(type) {
	case *Data:
		ReleaseData(v)
	case *Headers:
		ReleaseHeaders(v)
	case *RstStream:
		ReleaseRstStream(v)
	case *Settings:
		ReleaseSettings(v)
	case *Ping:
		ReleasePing(v)
	case *GoAway:
		ReleaseGoAway(v)
	case *WindowUpdate:
		ReleaseWindowUpdate(v)
	case *Continuation:
		ReleaseContinuation(v)
	}
}
