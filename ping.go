package corerpc

import "sync"

// Ping is an 8-byte connection-level keepalive and RTT probe
// (http://httpwg.org/specs/rfc7540.html#rfc.section.6.7).
type Ping struct {
	ack  bool
	data [8]byte
}

var pingPool = sync.Pool{
	New: func() interface{} { return &Ping{} },
}

// AcquirePing returns a Ping from the pool.
func AcquirePing() *Ping { return pingPool.Get().(*Ping) }

// ReleasePing resets p and returns it to the pool.
func ReleasePing(p *Ping) {
	p.Reset()
	pingPool.Put(p)
}

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Reset() {
	p.ack = false
	p.data = [8]byte{}
}

// IsAck reports whether this Ping acknowledges a previously received Ping.
func (p *Ping) IsAck() bool { return p.ack }

// SetAck sets the PING ACK flag.
func (p *Ping) SetAck(v bool) { p.ack = v }

// Data is the 8 opaque bytes carried by the frame.
func (p *Ping) Data() [8]byte { return p.data }

// SetData sets the 8 opaque bytes to echo back.
func (p *Ping) SetData(b [8]byte) { p.data = b }

func (p *Ping) Deserialize(fr *FrameHeader) error {
	payload := fr.Payload()
	if len(payload) != 8 {
		return ErrMissingBytes
	}
	p.ack = fr.Flags.Has(FlagAck)
	copy(p.data[:], payload)
	return nil
}

func (p *Ping) Serialize(fr *FrameHeader) {
	if p.ack {
		fr.Flags = fr.Flags.Add(FlagAck)
	}
	fr.SetPayload(p.data[:])
}
