package corerpc

import (
	"sync"

	"github.com/dgrr/corerpc/wireutil"
)

// GoAway announces that the sender will process no new streams above
// LastStreamID and is about to close the connection
// (http://httpwg.org/specs/rfc7540.html#rfc.section.6.8).
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	debugData    []byte
}

var goAwayPool = sync.Pool{
	New: func() interface{} { return &GoAway{} },
}

// AcquireGoAway returns a GoAway from the pool.
func AcquireGoAway() *GoAway { return goAwayPool.Get().(*GoAway) }

// ReleaseGoAway resets g and returns it to the pool.
func ReleaseGoAway(g *GoAway) {
	g.Reset()
	goAwayPool.Put(g)
}

func (g *GoAway) Type() FrameType { return FrameGoAway }

func (g *GoAway) Reset() {
	g.lastStreamID = 0
	g.code = NoError
	g.debugData = g.debugData[:0]
}

// LastStreamID is the highest-numbered stream the sender may have acted on.
func (g *GoAway) LastStreamID() uint32 { return g.lastStreamID }

// SetLastStreamID sets the highest-numbered stream the sender acted on.
func (g *GoAway) SetLastStreamID(id uint32) { g.lastStreamID = id }

// Code is the reason for the shutdown.
func (g *GoAway) Code() ErrorCode { return g.code }

// SetCode sets the reason for the shutdown.
func (g *GoAway) SetCode(code ErrorCode) { g.code = code }

// DebugData is opaque diagnostic data; it is not protocol-significant.
func (g *GoAway) DebugData() []byte { return g.debugData }

// SetDebugData sets the opaque diagnostic data.
func (g *GoAway) SetDebugData(b []byte) { g.debugData = append(g.debugData[:0], b...) }

func (g *GoAway) Deserialize(fr *FrameHeader) error {
	p := fr.Payload()
	if len(p) < 8 {
		return ErrMissingBytes
	}
	g.lastStreamID = wireutil.StreamID(p[0:4])
	g.code = ErrorCode(wireutil.Uint32(p[4:8]))
	g.debugData = append(g.debugData[:0], p[8:]...)
	return nil
}

func (g *GoAway) Serialize(fr *FrameHeader) {
	buf := make([]byte, 8, 8+len(g.debugData))
	wireutil.PutUint32(buf[0:4], g.lastStreamID)
	wireutil.PutUint32(buf[4:8], uint32(g.code))
	buf = append(buf, g.debugData...)
	fr.SetPayload(buf)
}
