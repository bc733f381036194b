package corerpc

import "sync"

// streamRegistry is a Connection's concurrency-safe map of live streams,
// keyed by stream id. Unlike a sorted slice, insertion, lookup and removal
// are all O(1) amortized, which matters once a connection is carrying
// hundreds of concurrent calls.
type streamRegistry struct {
	mu      sync.Mutex
	streams map[uint32]*Stream
	nextID  uint32 // next id this side will assign; odd for clients, even for servers
}

func newStreamRegistry(isClient bool) *streamRegistry {
	r := &streamRegistry{streams: make(map[uint32]*Stream)}
	if isClient {
		r.nextID = 1
	} else {
		r.nextID = 2
	}
	return r
}

// nextStreamID returns the next locally-initiated stream id and advances
// the counter by 2, keeping client ids odd and server ids even per
// http://httpwg.org/specs/rfc7540.html#StreamIdentifiers.
func (r *streamRegistry) nextStreamID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID += 2
	return id
}

// add registers s under its id. It is an error to add two streams with
// the same id; callers must obtain ids from nextStreamID or validate a
// peer-assigned id is new before calling add.
func (r *streamRegistry) add(s *Stream) {
	r.mu.Lock()
	r.streams[s.id] = s
	r.mu.Unlock()
}

// get looks up the stream for id, returning nil if none is registered.
func (r *streamRegistry) get(id uint32) *Stream {
	r.mu.Lock()
	s := r.streams[id]
	r.mu.Unlock()
	return s
}

// remove drops id from the registry, e.g. once the stream reaches
// StreamClosed and both ends have observed the terminal status.
func (r *streamRegistry) remove(id uint32) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
}

// len reports the number of live streams. Nothing calls it, and
// SETTINGS_MAX_CONCURRENT_STREAMS is not enforced against it.
func (r *streamRegistry) len() int {
	r.mu.Lock()
	n := len(r.streams)
	r.mu.Unlock()
	return n
}

// each calls fn for every registered stream. fn must not call back into
// the registry (add/get/remove) — it should collect streams and act on
// them afterwards if that's needed.
func (r *streamRegistry) each(fn func(*Stream)) {
	r.mu.Lock()
	snapshot := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}
