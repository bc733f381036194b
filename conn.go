package corerpc

import (
	"bufio"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgrr/corerpc/wireutil"
)

// Handler receives the connection-level events a Conn's read loop
// dispatches. The rpc package's Call and Server types implement it to
// drive the call state machine; corerpc itself never looks inside a call.
type Handler interface {
	// OnHeaders is called once per HEADERS (+ CONTINUATION) block received
	// on stream id, with the header block already HPACK-decoded. isTrailer
	// distinguishes a call's trailing metadata from its initial metadata,
	// since both arrive as the same frame type.
	OnHeaders(id uint32, md Metadata, isTrailer bool, endStream bool)
	// OnData is called with a reassembled, already length-unprefixed gRPC
	// message, or with endStream=true and no further message on a half close.
	OnData(id uint32, message []byte, endStream bool)
	// OnRstStream is called when id is reset: by the peer's RST_STREAM, by
	// a GOAWAY that leaves id unprocessed (RefusedStreamError), or by the
	// read loop ending, which resets every remaining stream with
	// InternalError.
	OnRstStream(id uint32, code ErrorCode)
	// OnGoAway is called once the peer has sent a GOAWAY.
	OnGoAway(lastStreamID uint32, code ErrorCode)
	// OnStreamClosed is called after both directions of id have reached
	// half-closed, just before the stream is dropped from the registry.
	OnStreamClosed(id uint32)
}

// noopHandler discards every event; used until a real Handler is attached,
// so the read loop never has to nil-check.
type noopHandler struct{}

func (noopHandler) OnHeaders(uint32, Metadata, bool, bool) {}
func (noopHandler) OnData(uint32, []byte, bool)            {}
func (noopHandler) OnRstStream(uint32, ErrorCode)          {}
func (noopHandler) OnGoAway(uint32, ErrorCode)             {}
func (noopHandler) OnStreamClosed(uint32)                  {}

// Accept wraps an already-accepted net.Conn as the server side of an
// HTTP/2 connection, completing the preface and SETTINGS handshake.
func Accept(nc net.Conn, tlsConfig *tls.Config) (*Conn, error) {
	return newConnFromNetConn(nc, false, tlsConfig)
}

// Conn is one HTTP/2 connection to a peer, multiplexing any number of
// concurrent streams. It owns the socket and the per-connection flow
// control window; each Stream it creates owns its own stream-scoped
// window on top of that.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	isClient bool

	writeMu sync.Mutex // held only while a frame is being emitted, per the lock order documented in SPEC_FULL.md §5

	streams *streamRegistry
	connFC  struct {
		send *flowControl
		recv *flowControl
	}

	remoteMaxFrameSize uint32
	localMaxFrameSize  uint32

	handler Handler

	closed   int32 // atomic; 0 = open, 1 = closed
	draining int32 // atomic; 1 once a GOAWAY has been received from the peer

	// continuation reassembly state for the stream currently mid-header-block.
	contStreamID uint32
	contBuf      []byte
	contEndSt    bool

	pingWaiters struct {
		mu   sync.Mutex
		list []chan<- struct{}
	}

	// sendCond wakes SendMessage callers blocked on a flow control window
	// whenever a WINDOW_UPDATE credits either scope.
	sendMu   sync.Mutex
	sendCond *sync.Cond
}

// DialerConfig configures Dial's handshake.
type DialerConfig struct {
	// TLSConfig, when non-nil, is used to negotiate TLS with ALPN "h2"
	// before the HTTP/2 preface is sent. When nil, Dial speaks plaintext
	// HTTP/2 (h2c), which this runtime only supports for tests against a
	// trusted loopback peer.
	TLSConfig *tls.Config
}

// Dial opens a net.Conn to addr, optionally performs a TLS handshake with
// ALPN negotiation to "h2", and completes the client side of the HTTP/2
// connection preface and initial SETTINGS exchange.
func Dial(addr string, cfg DialerConfig) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConnFromNetConn(nc, true, cfg.TLSConfig)
}

func newConnFromNetConn(nc net.Conn, isClient bool, tlsConfig *tls.Config) (*Conn, error) {
	if tlsConfig != nil {
		tc := tlsConfig.Clone()
		tc.NextProtos = appendH2(tc.NextProtos)
		if tc.MinVersion == 0 {
			tc.MinVersion = tls.VersionTLS12
		}
		tlsConn := tls.Client(nc, tc)
		if !isClient {
			tlsConn = tls.Server(nc, tc)
		}
		if err := tlsConn.Handshake(); err != nil {
			return nil, err
		}
		nc = tlsConn
	}

	c := &Conn{
		netConn:            nc,
		br:                 bufio.NewReader(nc),
		bw:                 bufio.NewWriter(nc),
		isClient:           isClient,
		streams:            newStreamRegistry(isClient),
		remoteMaxFrameSize: FrameDefaultMaxLen,
		localMaxFrameSize:  FrameDefaultMaxLen,
		handler:            noopHandler{},
	}
	c.connFC.send = newFlowControl(DefaultWindowSize)
	c.connFC.recv = newFlowControl(DefaultWindowSize)
	c.sendCond = sync.NewCond(&c.sendMu)

	if err := c.handshake(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func appendH2(protos []string) []string {
	for _, p := range protos {
		if p == "h2" {
			return protos
		}
	}
	return append(protos, "h2")
}

// SetHandler attaches h to receive frame-dispatch callbacks. It must be
// called before Serve starts, and is not safe to change
// concurrently with reads.
func (c *Conn) SetHandler(h Handler) {
	c.handler = h
}

func (c *Conn) handshake() error {
	if c.isClient {
		if err := writePreface(c.bw); err != nil {
			return err
		}
	} else {
		if err := readPreface(c.br); err != nil {
			return err
		}
	}

	local := defaultLocalSettings()
	if err := c.writeFrame(0, local); err != nil {
		return err
	}

	// Per §4.3.1 of RFC 7540 peers may interleave other frames before their
	// SETTINGS ack; this runtime keeps the handshake simple and assumes
	// the first SETTINGS frame it reads is the peer's initial settings.
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	for {
		if err := fr.ReadFrom(c.br, c.localMaxFrameSize); err != nil {
			return err
		}
		if fr.Type == FrameSettings {
			st := AcquireSettings()
			err := st.Deserialize(fr)
			if err == nil && !st.IsAck() {
				c.applyRemoteSettings(st)
				err = c.ackSettings()
			}
			ReleaseSettings(st)
			if err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (c *Conn) applyRemoteSettings(st *Settings) {
	if v, ok := st.Get(SettingMaxFrameSize); ok {
		c.remoteMaxFrameSize = v
	}
}

func (c *Conn) ackSettings() error {
	ack := AcquireSettings()
	ack.SetAck(true)
	defer ReleaseSettings(ack)
	return c.writeFrame(0, ack)
}

// writeFrame HPACK/length-prefix-agnostic low-level frame emission: it
// serializes f into a pooled FrameHeader under the connection's write
// lock, which per the documented lock order is the innermost lock held
// during any frame send.
func (c *Conn) writeFrame(streamID uint32, f Frame) error {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	fr.Type = f.Type()
	fr.StreamID = streamID
	f.Serialize(fr)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

// StreamByID returns the registered stream for id, or nil if none exists
// (e.g. already closed and removed from the registry).
func (c *Conn) StreamByID(id uint32) *Stream {
	return c.streams.get(id)
}

// NewStream allocates and registers a locally-initiated stream.
func (c *Conn) NewStream() *Stream {
	id := c.streams.nextStreamID()
	s := newStream(c, id, DefaultWindowSize, DefaultWindowSize)
	c.streams.add(s)
	return s
}

// SendHeaders HPACK-encodes md and writes it as one or more HEADERS/
// CONTINUATION frames on id, splitting at the remote's negotiated max
// frame size.
func (c *Conn) SendHeaders(id uint32, md Metadata, endStream bool) error {
	block := EncodeMetadata(md)
	maxLen := int(c.remoteMaxFrameSize)

	first := true
	for {
		chunk := block
		last := true
		if len(chunk) > maxLen {
			chunk = block[:maxLen]
			last = false
		}

		if first {
			h := AcquireHeaders()
			h.SetHeaderBlockFragment(chunk)
			h.SetEndHeaders(last)
			h.SetEndStream(endStream)
			err := c.writeFrame(id, h)
			ReleaseHeaders(h)
			if err != nil {
				return err
			}
			first = false
		} else {
			ct := AcquireContinuation()
			ct.SetHeaderBlockFragment(chunk)
			ct.SetEndHeaders(last)
			err := c.writeFrame(id, ct)
			ReleaseContinuation(ct)
			if err != nil {
				return err
			}
		}

		block = block[len(chunk):]
		if last {
			return nil
		}
	}
}

// SendMessage gRPC-frames message ([1-byte flag][4-byte length][payload])
// and writes it as one or more DATA frames respecting both the remote max
// frame size and the connection/stream flow control windows. When the
// window is insufficient for the whole frame it blocks until a
// WINDOW_UPDATE (stream- or connection-scoped) opens enough of it to make
// progress, per RFC 7540 §6.9.
func (c *Conn) SendMessage(s *Stream, message []byte, compressed bool, endStream bool) error {
	framed := make([]byte, 5+len(message))
	if compressed {
		framed[0] = 1
	}
	wireutil.PutUint32(framed[1:5], uint32(len(message)))
	copy(framed[5:], message)

	maxLen := int(c.remoteMaxFrameSize)
	for len(framed) > 0 {
		want := len(framed)
		if want > maxLen {
			want = maxLen
		}

		n := c.acquireSendWindow(s, want)

		d := AcquireData()
		d.SetPayload(framed[:n])
		d.SetEndStream(n == len(framed) && endStream)
		err := c.writeFrame(s.id, d)
		ReleaseData(d)
		if err != nil {
			return err
		}

		framed = framed[n:]
	}
	return nil
}

// acquireSendWindow blocks until at least one byte of window is available
// at both stream and connection scope, debits min(want, available) from
// both, and returns the debited amount.
func (c *Conn) acquireSendWindow(s *Stream, want int) int {
	for {
		n := s.send.canSend(want)
		n = minInt(n, c.connFC.send.canSend(want))
		if n > 0 {
			s.send.consumeSend(n)
			c.connFC.send.consumeSend(n)
			return n
		}

		c.sendMu.Lock()
		timer := time.AfterFunc(100*time.Millisecond, c.signalSendReady)
		c.sendCond.Wait()
		timer.Stop()
		c.sendMu.Unlock()
	}
}

// signalSendReady wakes every goroutine blocked in acquireSendWindow so it
// re-checks whether its window has opened up.
func (c *Conn) signalSendReady() {
	c.sendMu.Lock()
	c.sendCond.Broadcast()
	c.sendMu.Unlock()
}

// SendRstStream resets id with code.
func (c *Conn) SendRstStream(id uint32, code ErrorCode) error {
	r := AcquireRstStream()
	r.SetCode(code)
	err := c.writeFrame(id, r)
	ReleaseRstStream(r)
	return err
}

// SendGoAway announces that this side is going away.
func (c *Conn) SendGoAway(lastStreamID uint32, code ErrorCode) error {
	g := AcquireGoAway()
	g.SetLastStreamID(lastStreamID)
	g.SetCode(code)
	err := c.writeFrame(0, g)
	ReleaseGoAway(g)
	return err
}

// Close marks the connection closed and closes the underlying socket. It
// is safe to call more than once.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.netConn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Serve runs the read loop until the connection closes or a fatal
// TransportError is encountered. It is meant to run in its own goroutine;
// callers drive writes (SendHeaders/SendMessage/...) from elsewhere.
func (c *Conn) Serve() error {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	// Once the loop ends the connection is gone: reset every stream still
	// registered so the calls on them stop waiting.
	defer func() {
		var ids []uint32
		c.streams.each(func(s *Stream) { ids = append(ids, s.ID()) })
		for _, id := range ids {
			c.handler.OnRstStream(id, InternalError)
			c.streams.remove(id)
		}
	}()

	for {
		if err := fr.ReadFrom(c.br, c.localMaxFrameSize); err != nil {
			c.Close()
			return err
		}
		if err := c.dispatch(fr); err != nil {
			c.Close()
			return err
		}
	}
}

func (c *Conn) dispatch(fr *FrameHeader) error {
	if !coreFrameTypes[fr.Type] {
		// Unknown/ignorable frame type per RFC 7540 §4.1 ("implementations
		// MUST ignore and discard frames of unknown types").
		return nil
	}

	f := acquireFrameByType(fr.Type)
	defer releaseFrameByType(f)
	if err := f.Deserialize(fr); err != nil {
		return err
	}

	switch v := f.(type) {
	case *Settings:
		if v.IsAck() {
			return nil
		}
		c.applyRemoteSettings(v)
		return c.ackSettings()

	case *Ping:
		if v.IsAck() {
			c.observePingAck()
			return nil
		}
		return c.sendPingAck(v.Data())

	case *WindowUpdate:
		return c.handleWindowUpdate(fr.StreamID, v.Increment())

	case *GoAway:
		c.handleGoAway(v.LastStreamID(), v.Code())
		return nil

	case *RstStream:
		c.handler.OnRstStream(fr.StreamID, v.Code())
		c.streams.remove(fr.StreamID)
		return nil

	case *Headers:
		return c.handleHeaders(fr.StreamID, v.HeaderBlockFragment(), v.EndHeaders(), v.EndStream())

	case *Continuation:
		return c.handleContinuation(fr.StreamID, v.HeaderBlockFragment(), v.EndHeaders())

	case *Data:
		return c.handleData(fr.StreamID, v.Payload(), v.EndStream())
	}
	return nil
}

// IsDraining reports whether a GOAWAY has been received from the peer.
// Callers (Channel) use this to stop issuing new calls on this Conn even
// though it isn't closed yet.
func (c *Conn) IsDraining() bool {
	return atomic.LoadInt32(&c.draining) == 1
}

// handleGoAway marks the connection draining and resets, as UNAVAILABLE,
// every locally-initiated stream the peer's GOAWAY says it never
// processed, per RFC 7540 §6.8: ids above lastStreamID must be retried
// elsewhere, not assumed in-flight.
func (c *Conn) handleGoAway(lastStreamID uint32, code ErrorCode) {
	atomic.StoreInt32(&c.draining, 1)

	var unprocessed []uint32
	c.streams.each(func(s *Stream) {
		if c.isLocallyInitiated(s.ID()) && s.ID() > lastStreamID {
			unprocessed = append(unprocessed, s.ID())
		}
	})
	for _, id := range unprocessed {
		// REFUSED_STREAM tells the rpc layer the call was never processed
		// by the peer and maps to a retryable UNAVAILABLE status there.
		c.handler.OnRstStream(id, RefusedStreamError)
		c.streams.remove(id)
	}

	c.handler.OnGoAway(lastStreamID, code)
}

func (c *Conn) isLocallyInitiated(streamID uint32) bool {
	return (streamID%2 == 1) == c.isClient
}

func (c *Conn) sendPingAck(data [8]byte) error {
	p := AcquirePing()
	p.SetAck(true)
	p.SetData(data)
	err := c.writeFrame(0, p)
	ReleasePing(p)
	return err
}

func (c *Conn) handleWindowUpdate(streamID uint32, increment uint32) error {
	if streamID == 0 {
		if err := c.connFC.send.receiveWindowUpdate(increment); err != nil {
			return err
		}
		c.signalSendReady()
		return nil
	}
	s := c.streams.get(streamID)
	if s == nil {
		return nil // stream already closed; update is stale, not an error
	}
	if err := s.send.receiveWindowUpdate(increment); err != nil {
		return err
	}
	c.signalSendReady()
	return nil
}

func (c *Conn) handleHeaders(streamID uint32, block []byte, endHeaders, endStream bool) error {
	if endHeaders {
		return c.finishHeaderBlock(streamID, block, endStream)
	}
	c.contStreamID = streamID
	c.contBuf = append(c.contBuf[:0], block...)
	c.contEndSt = endStream
	return nil
}

func (c *Conn) handleContinuation(streamID uint32, block []byte, endHeaders bool) error {
	if streamID != c.contStreamID {
		return newTransportError(ProtocolError, "CONTINUATION for unexpected stream")
	}
	c.contBuf = append(c.contBuf, block...)
	if !endHeaders {
		return nil
	}
	block, endStream := c.contBuf, c.contEndSt
	c.contBuf = nil
	c.contStreamID = 0
	return c.finishHeaderBlock(streamID, block, endStream)
}

func (c *Conn) finishHeaderBlock(streamID uint32, block []byte, endStream bool) error {
	md, err := DecodeMetadata(block)
	if err != nil {
		return err
	}

	s := c.streams.get(streamID)
	if s == nil && !c.isClient {
		s = newStream(c, streamID, DefaultWindowSize, DefaultWindowSize)
		c.streams.add(s)
	}
	isTrailer := false
	if s != nil {
		if len(s.InitialMetadata()) == 0 {
			s.SetInitialMetadata(md)
		} else {
			s.SetTrailerMetadata(md)
			isTrailer = true
		}
	}

	c.handler.OnHeaders(streamID, md, isTrailer, endStream)
	if endStream {
		c.handler.OnStreamClosed(streamID)
		c.streams.remove(streamID)
	}
	return nil
}

func (c *Conn) handleData(streamID uint32, payload []byte, endStream bool) error {
	s := c.streams.get(streamID)
	if s == nil {
		return nil
	}

	inc, needUpdate, err := s.recv.consumeRecv(len(payload))
	if err != nil {
		return err
	}
	if needUpdate {
		if werr := c.sendWindowUpdate(streamID, inc); werr != nil {
			return werr
		}
	}
	if cinc, cneed, cerr := c.connFC.recv.consumeRecv(len(payload)); cerr != nil {
		return cerr
	} else if cneed {
		if werr := c.sendWindowUpdate(0, cinc); werr != nil {
			return werr
		}
	}

	s.AppendIncoming(payload)

	for {
		buf := s.TakeIncoming()
		if len(buf) < 5 {
			s.AppendIncoming(buf)
			break
		}
		msgLen := wireutil.Uint32(buf[1:5])
		if uint32(len(buf)-5) < msgLen {
			s.AppendIncoming(buf)
			break
		}
		message := buf[5 : 5+msgLen]
		c.handler.OnData(streamID, message, false)
		s.AppendIncoming(buf[5+msgLen:])
	}

	if endStream {
		c.handler.OnData(streamID, nil, true)
		c.handler.OnStreamClosed(streamID)
		c.streams.remove(streamID)
	}
	return nil
}

func (c *Conn) sendWindowUpdate(streamID uint32, increment uint32) error {
	w := AcquireWindowUpdate()
	w.SetIncrement(increment)
	err := c.writeFrame(streamID, w)
	ReleaseWindowUpdate(w)
	return err
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
