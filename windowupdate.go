package corerpc

import (
	"sync"

	"github.com/dgrr/corerpc/wireutil"
)

// WindowUpdate credits a flow control window, at either connection scope
// (StreamID 0 on the frame header) or stream scope
// (http://httpwg.org/specs/rfc7540.html#rfc.section.6.9).
type WindowUpdate struct {
	increment uint32
}

var windowUpdatePool = sync.Pool{
	New: func() interface{} { return &WindowUpdate{} },
}

// AcquireWindowUpdate returns a WindowUpdate from the pool.
func AcquireWindowUpdate() *WindowUpdate { return windowUpdatePool.Get().(*WindowUpdate) }

// ReleaseWindowUpdate resets w and returns it to the pool.
func ReleaseWindowUpdate(w *WindowUpdate) {
	w.Reset()
	windowUpdatePool.Put(w)
}

func (w *WindowUpdate) Type() FrameType { return FrameWindowUpdate }

func (w *WindowUpdate) Reset() { w.increment = 0 }

// Increment is the number of bytes to add to the window.
func (w *WindowUpdate) Increment() uint32 { return w.increment }

// SetIncrement sets the number of bytes to add to the window; it must be
// in [1, 2^31-1].
func (w *WindowUpdate) SetIncrement(n uint32) { w.increment = n }

func (w *WindowUpdate) Deserialize(fr *FrameHeader) error {
	p := fr.Payload()
	if len(p) != 4 {
		return ErrMissingBytes
	}
	inc := wireutil.StreamID(p)
	if inc == 0 {
		return ErrBadWindowIncrement
	}
	w.increment = inc
	return nil
}

func (w *WindowUpdate) Serialize(fr *FrameHeader) {
	buf := make([]byte, 4)
	wireutil.PutUint32(buf, w.increment&(1<<31-1))
	fr.SetPayload(buf)
}
