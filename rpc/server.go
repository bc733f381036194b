package rpc

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/dgrr/corerpc"
)

// defaultWorkerPoolSize is the capacity of a Server's queue of new calls
// awaiting RequestCall when no explicit WorkerPoolSize is given.
const defaultWorkerPoolSize = 4

// ServerConfig configures a Server's listeners and worker pool.
type ServerConfig struct {
	TLSConfig *tls.Config

	// WorkerPoolSize is how many new calls may wait for RequestCall before
	// a connection's read loop blocks handing over the next one. It does
	// not start a fixed pool of goroutines: Start runs one accept goroutine
	// per listener and one goroutine per accepted connection. 0 selects
	// defaultWorkerPoolSize.
	WorkerPoolSize int
}

// incomingCall is what RequestCall hands the application once a peer has
// opened a stream for a method: request metadata plus the Call object
// already wired to a CompletionQueue for its lifetime.
type incomingCall struct {
	Call     *Call
	Method   string
	Metadata Metadata
}

// Server accepts HTTP/2 connections, multiplexes any number of calls per
// connection, and hands each newly opened call to RequestCall callers
// through a buffered channel, the way a grpc-core server delivers
// server_request_call completions through its registered completion
// queues.
type Server struct {
	cfg ServerConfig

	mu        sync.Mutex
	listeners []net.Listener
	cqs       []*CompletionQueue
	incoming  chan incomingCall
	wg        sync.WaitGroup

	shutdownOnce sync.Once
	done         chan struct{}
}

// NewServer returns a Server ready to have listeners added and be
// started.
func NewServer(cfg ServerConfig) *Server {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	return &Server{
		cfg:      cfg,
		incoming: make(chan incomingCall, cfg.WorkerPoolSize),
		done:     make(chan struct{}),
	}
}

// AddListener adds l as a source of incoming connections. Must be called
// before Start.
func (s *Server) AddListener(l net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// RegisterCompletionQueue registers cq with this server. More than one
// queue may be registered, but every new call is bound to the first one;
// the others are only shut down by ShutdownAndNotify.
func (s *Server) RegisterCompletionQueue(cq *CompletionQueue) {
	s.mu.Lock()
	s.cqs = append(s.cqs, cq)
	s.mu.Unlock()
}

// Start begins accepting on every registered listener. It returns
// immediately; accept loops run in background goroutines.
func (s *Server) Start() {
	s.mu.Lock()
	listeners := append([]net.Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		s.wg.Add(1)
		go s.acceptLoop(l)
	}
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := l.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer s.wg.Done()

	conn, err := corerpc.Accept(nc, s.cfg.TLSConfig)
	if err != nil {
		nc.Close()
		return
	}

	handler := &connHandler{conn: conn}
	handler.onNewStream = func(streamID uint32, md Metadata, endStream bool) {
		s.handleNewStream(conn, streamID, md, endStream)
	}
	conn.SetHandler(handler)

	conn.Serve() //nolint:errcheck // errors tear the connection down; nothing further to report here
}

func (s *Server) handleNewStream(conn *corerpc.Conn, streamID uint32, md Metadata, endStream bool) {
	stream := conn.StreamByID(streamID)
	if stream == nil {
		return
	}

	cq := s.pickCompletionQueue()
	call := newCall(conn, stream, cq, false)
	// The HEADERS that opened the stream arrived before the call existed.
	call.onHeaders(false, endStream)

	method, _ := md.Get(":path")

	select {
	case s.incoming <- incomingCall{Call: call, Method: method, Metadata: md}:
	case <-s.done:
	}
}

func (s *Server) pickCompletionQueue() *CompletionQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cqs) == 0 {
		return NewCompletionQueue()
	}
	return s.cqs[0]
}

// RequestCall blocks until a peer has opened a new call, returning its
// Call, the method it targeted, and its initial metadata. It is the
// server-side counterpart of Channel.NewCall: application code loops on
// RequestCall to drive a dispatch table of method handlers.
func (s *Server) RequestCall() (*Call, string, Metadata, error) {
	select {
	case ic := <-s.incoming:
		return ic.Call, ic.Method, ic.Metadata, nil
	case <-s.done:
		return nil, "", nil, ErrServerShutdown
	}
}

// ShutdownAndNotify stops accepting new connections, closes every
// listener, waits for every accept/serve worker to finish, shuts down
// every registered completion queue, and finally enqueues {tag,
// success=true} onto cq — the caller's signal that shutdown has
// completed. It is safe to call more than once; the listener/worker
// teardown only happens the first time, but cq is notified on every call.
func (s *Server) ShutdownAndNotify(cq *CompletionQueue, tag interface{}) {
	s.shutdownOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		listeners := s.listeners
		registered := s.cqs
		s.mu.Unlock()

		for _, l := range listeners {
			l.Close()
		}

		s.wg.Wait()

		for _, rcq := range registered {
			rcq.Shutdown()
		}
	})

	if cq != nil {
		cq.RegisterPending()
		cq.Push(Event{Kind: EventOpComplete, Tag: tag, Success: true})
	}
}
