package rpc

import (
	"crypto/tls"
	"sync"

	"github.com/dgrr/corerpc"
)

// Channel is a client's lazily-connected handle to one peer: the
// connection is dialed on first use and shared by every Call created
// through NewCall afterwards, the way a gRPC channel multiplexes many
// calls over one HTTP/2 connection. Once that connection is closed or
// has received a GOAWAY, the next NewCall dials a new one.
type Channel struct {
	target    string
	tlsConfig *tls.Config

	mu   sync.Mutex
	conn *corerpc.Conn
}

// NewChannel returns a Channel targeting addr. tlsConfig may be nil for a
// plaintext (h2c) connection, which this runtime only supports against a
// trusted loopback peer.
func NewChannel(addr string, tlsConfig *tls.Config) *Channel {
	return &Channel{target: addr, tlsConfig: tlsConfig}
}

func (ch *Channel) connect() (*corerpc.Conn, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.conn != nil && !ch.conn.IsClosed() && !ch.conn.IsDraining() {
		return ch.conn, nil
	}

	conn, err := corerpc.Dial(ch.target, corerpc.DialerConfig{TLSConfig: ch.tlsConfig})
	if err != nil {
		return nil, err
	}
	handler := &connHandler{conn: conn}
	conn.SetHandler(handler)
	go conn.Serve() //nolint:errcheck // connection teardown surfaces to in-flight calls via RST_STREAM/closed stream

	ch.conn = conn
	return conn, nil
}

// NewCall starts a call for method over cq, dialing the channel's
// connection if it isn't already open.
func (ch *Channel) NewCall(method string, cq *CompletionQueue, deadline TimePoint) (*Call, error) {
	conn, err := ch.connect()
	if err != nil {
		return nil, err
	}

	stream := conn.NewStream()
	call := newCall(conn, stream, cq, true)
	call.method = method
	call.SetDeadline(deadline)
	return call, nil
}

// Close tears down the channel's underlying connection, if any. In-flight
// calls observe this as their stream closing.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
