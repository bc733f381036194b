package corerpc

import "sync"

// Continuation carries the overflow of a header block that did not fit in
// its HEADERS frame (http://httpwg.org/specs/rfc7540.html#rfc.section.6.10).
type Continuation struct {
	endHeaders bool
	block      []byte
}

var continuationPool = sync.Pool{
	New: func() interface{} { return &Continuation{} },
}

// AcquireContinuation returns a Continuation from the pool.
func AcquireContinuation() *Continuation { return continuationPool.Get().(*Continuation) }

// ReleaseContinuation resets c and returns it to the pool.
func ReleaseContinuation(c *Continuation) {
	c.Reset()
	continuationPool.Put(c)
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.block = c.block[:0]
}

// EndHeaders reports whether this is the final fragment of the header
// block.
func (c *Continuation) EndHeaders() bool { return c.endHeaders }

// SetEndHeaders sets the END_HEADERS flag.
func (c *Continuation) SetEndHeaders(v bool) { c.endHeaders = v }

// HeaderBlockFragment is this frame's slice of the header block.
func (c *Continuation) HeaderBlockFragment() []byte { return c.block }

// SetHeaderBlockFragment replaces this frame's slice of the header block.
func (c *Continuation) SetHeaderBlockFragment(b []byte) {
	c.block = append(c.block[:0], b...)
}

func (c *Continuation) Deserialize(fr *FrameHeader) error {
	c.endHeaders = fr.Flags.Has(FlagEndHeaders)
	c.block = append(c.block[:0], fr.Payload()...)
	return nil
}

func (c *Continuation) Serialize(fr *FrameHeader) {
	if c.endHeaders {
		fr.Flags = fr.Flags.Add(FlagEndHeaders)
	}
	fr.SetPayload(c.block)
}
