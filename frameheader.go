package corerpc

import (
	"bufio"
	"io"
	"sync"

	"github.com/dgrr/corerpc/wireutil"
)

// FrameDefaultMaxLen is the largest frame payload a peer must accept
// without having advertised a larger SETTINGS_MAX_FRAME_SIZE
// (http://httpwg.org/specs/rfc7540.html#SettingsFormat).
const FrameDefaultMaxLen = 1 << 14

// clientPreface is the fixed 24-octet sequence a client must send before
// any frame, so that a server expecting an HTTP/1.1 request fails fast
// instead of attempting to parse HTTP/2 as text (§3.5 of RFC 7540).
const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// FrameHeader is the 9-octet header shared by every HTTP/2 frame, plus its
// decoded payload. It is the unit of I/O: one FrameHeader is read off the
// wire, its Type dispatches to the matching Frame for payload decoding, and
// the process reverses on write.
type FrameHeader struct {
	Length   uint32
	Type     FrameType
	Flags    FrameFlags
	StreamID uint32

	payload []byte
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{} },
}

// AcquireFrameHeader returns a FrameHeader from the pool, ready for reuse.
func AcquireFrameHeader() *FrameHeader {
	return frameHeaderPool.Get().(*FrameHeader)
}

// ReleaseFrameHeader resets fr and returns it to the pool. Callers must not
// touch fr afterwards.
func ReleaseFrameHeader(fr *FrameHeader) {
	fr.Reset()
	frameHeaderPool.Put(fr)
}

// Reset clears fr so it can be reused for a different frame.
func (fr *FrameHeader) Reset() {
	fr.Length = 0
	fr.Type = 0
	fr.Flags = 0
	fr.StreamID = 0
	fr.payload = fr.payload[:0]
}

// Payload is the raw, not-yet-decoded frame body. Frame.Deserialize reads
// from it; Frame.Serialize writes into it via SetPayload.
func (fr *FrameHeader) Payload() []byte {
	return fr.payload
}

// SetPayload replaces fr's payload wholesale and updates Length to match.
func (fr *FrameHeader) SetPayload(b []byte) {
	fr.payload = append(fr.payload[:0], b...)
	fr.Length = uint32(len(fr.payload))
}

// ReadFrom reads one frame header and its payload from r. It returns
// ErrFrameTooLarge if Length exceeds maxLen (the locally negotiated
// SETTINGS_MAX_FRAME_SIZE).
func (fr *FrameHeader) ReadFrom(br *bufio.Reader, maxLen uint32) error {
	var buf [9]byte
	if _, err := readFull(br, buf[:]); err != nil {
		return err
	}

	fr.Length = wireutil.Uint24(buf[0:3])
	fr.Type = FrameType(buf[3])
	fr.Flags = FrameFlags(buf[4])
	fr.StreamID = wireutil.StreamID(buf[5:9])

	if fr.Length > maxLen {
		return ErrFrameTooLarge
	}

	fr.payload = wireutil.Resize(fr.payload, int(fr.Length))
	if fr.Length > 0 {
		if _, err := readFull(br, fr.payload); err != nil {
			if err == io.EOF {
				return ErrShortFrame
			}
			return err
		}
	}
	return nil
}

// WriteTo serializes fr's 9-octet header followed by its payload into bw.
func (fr *FrameHeader) WriteTo(bw *bufio.Writer) error {
	var buf [9]byte
	wireutil.PutUint24(buf[0:3], uint32(len(fr.payload)))
	buf[3] = byte(fr.Type)
	buf[4] = byte(fr.Flags)
	wireutil.PutUint32(buf[5:9], fr.StreamID)

	if _, err := bw.Write(buf[:]); err != nil {
		return err
	}
	if len(fr.payload) > 0 {
		if _, err := bw.Write(fr.payload); err != nil {
			return err
		}
	}
	return nil
}

func readFull(br *bufio.Reader, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := br.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// writePreface writes the client connection preface to bw.
func writePreface(bw *bufio.Writer) error {
	_, err := bw.WriteString(clientPreface)
	return err
}

// readPreface consumes and validates the client connection preface from br.
func readPreface(br *bufio.Reader) error {
	buf := make([]byte, len(clientPreface))
	if _, err := readFull(br, buf); err != nil {
		return err
	}
	if string(buf) != clientPreface {
		return ErrBadPreface
	}
	return nil
}
