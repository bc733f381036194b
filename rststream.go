package corerpc

import (
	"sync"

	"github.com/dgrr/corerpc/wireutil"
)

// RstStream abruptly terminates a single stream without affecting the rest
// of the connection (http://httpwg.org/specs/rfc7540.html#rfc.section.6.4).
type RstStream struct {
	code ErrorCode
}

var rstStreamPool = sync.Pool{
	New: func() interface{} { return &RstStream{} },
}

// AcquireRstStream returns a RstStream from the pool.
func AcquireRstStream() *RstStream { return rstStreamPool.Get().(*RstStream) }

// ReleaseRstStream resets r and returns it to the pool.
func ReleaseRstStream(r *RstStream) {
	r.Reset()
	rstStreamPool.Put(r)
}

func (r *RstStream) Type() FrameType { return FrameRstStream }

func (r *RstStream) Reset() { r.code = NoError }

// Code is the reason the stream was reset.
func (r *RstStream) Code() ErrorCode { return r.code }

// SetCode sets the reason the stream is being reset.
func (r *RstStream) SetCode(code ErrorCode) { r.code = code }

func (r *RstStream) Deserialize(fr *FrameHeader) error {
	p := fr.Payload()
	if len(p) != 4 {
		return ErrMissingBytes
	}
	r.code = ErrorCode(wireutil.Uint32(p))
	return nil
}

func (r *RstStream) Serialize(fr *FrameHeader) {
	buf := make([]byte, 4)
	wireutil.PutUint32(buf, uint32(r.code))
	fr.SetPayload(buf)
}
