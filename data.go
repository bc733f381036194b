package corerpc

import "sync"

// Data is the DATA frame: a chunk of the gRPC length-prefixed message
// stream for a request or response body
// (http://httpwg.org/specs/rfc7540.html#rfc.section.6.1).
type Data struct {
	endStream bool
	padLen    uint8
	payload   []byte
}

var dataPool = sync.Pool{
	New: func() interface{} { return &Data{} },
}

// AcquireData returns a Data from the pool.
func AcquireData() *Data { return dataPool.Get().(*Data) }

// ReleaseData resets d and returns it to the pool.
func ReleaseData(d *Data) {
	d.Reset()
	dataPool.Put(d)
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.padLen = 0
	d.payload = d.payload[:0]
}

// EndStream reports whether this frame closes the sending side.
func (d *Data) EndStream() bool { return d.endStream }

// SetEndStream sets the END_STREAM flag for this frame.
func (d *Data) SetEndStream(v bool) { d.endStream = v }

// Payload is the frame's unpadded data bytes.
func (d *Data) Payload() []byte { return d.payload }

// SetPayload replaces the frame's data bytes.
func (d *Data) SetPayload(b []byte) {
	d.payload = append(d.payload[:0], b...)
}

func (d *Data) Deserialize(fr *FrameHeader) error {
	p := fr.Payload()
	d.endStream = fr.Flags.Has(FlagEndStream)

	if fr.Flags.Has(FlagPadded) {
		if len(p) < 1 {
			return ErrMissingBytes
		}
		d.padLen = p[0]
		p = p[1:]
		if int(d.padLen) > len(p) {
			return newTransportError(ProtocolError, "DATA pad length exceeds frame")
		}
		p = p[:len(p)-int(d.padLen)]
	}

	d.payload = append(d.payload[:0], p...)
	return nil
}

func (d *Data) Serialize(fr *FrameHeader) {
	if d.endStream {
		fr.Flags = fr.Flags.Add(FlagEndStream)
	}
	fr.SetPayload(d.payload)
}
