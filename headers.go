package corerpc

import "sync"

// Headers is the HEADERS frame: an HPACK-encoded header block fragment
// that opens a stream and/or carries request, response, or trailer
// metadata (http://httpwg.org/specs/rfc7540.html#rfc.section.6.2).
//
// A header block spanning more than one frame arrives as a Headers frame
// without END_HEADERS followed by one or more Continuation frames; the
// connection reassembles the fragments before HPACK-decoding them.
type Headers struct {
	endStream  bool
	endHeaders bool
	block      []byte
}

var headersPool = sync.Pool{
	New: func() interface{} { return &Headers{} },
}

// AcquireHeaders returns a Headers from the pool.
func AcquireHeaders() *Headers { return headersPool.Get().(*Headers) }

// ReleaseHeaders resets h and returns it to the pool.
func ReleaseHeaders(h *Headers) {
	h.Reset()
	headersPool.Put(h)
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.endStream = false
	h.endHeaders = false
	h.block = h.block[:0]
}

// EndStream reports whether this frame closes the sending side (a request
// or response with no body, e.g. trailers-only).
func (h *Headers) EndStream() bool { return h.endStream }

// SetEndStream sets the END_STREAM flag.
func (h *Headers) SetEndStream(v bool) { h.endStream = v }

// EndHeaders reports whether the header block fragment is complete in this
// frame, with no CONTINUATION to follow.
func (h *Headers) EndHeaders() bool { return h.endHeaders }

// SetEndHeaders sets the END_HEADERS flag.
func (h *Headers) SetEndHeaders(v bool) { h.endHeaders = v }

// HeaderBlockFragment is the raw HPACK-encoded bytes carried by this frame.
func (h *Headers) HeaderBlockFragment() []byte { return h.block }

// SetHeaderBlockFragment replaces the frame's HPACK-encoded bytes.
func (h *Headers) SetHeaderBlockFragment(b []byte) {
	h.block = append(h.block[:0], b...)
}

func (h *Headers) Deserialize(fr *FrameHeader) error {
	p := fr.Payload()
	h.endStream = fr.Flags.Has(FlagEndStream)
	h.endHeaders = fr.Flags.Has(FlagEndHeaders)

	if fr.Flags.Has(FlagPadded) {
		if len(p) < 1 {
			return ErrMissingBytes
		}
		padLen := int(p[0])
		p = p[1:]
		if padLen > len(p) {
			return newTransportError(ProtocolError, "HEADERS pad length exceeds frame")
		}
		p = p[:len(p)-padLen]
	}

	if fr.Flags.Has(FlagPriority) {
		if len(p) < 5 {
			return ErrMissingBytes
		}
		p = p[5:]
	}

	h.block = append(h.block[:0], p...)
	return nil
}

func (h *Headers) Serialize(fr *FrameHeader) {
	if h.endStream {
		fr.Flags = fr.Flags.Add(FlagEndStream)
	}
	if h.endHeaders {
		fr.Flags = fr.Flags.Add(FlagEndHeaders)
	}
	fr.SetPayload(h.block)
}
