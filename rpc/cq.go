package rpc

import (
	"container/list"
	"sync"
	"time"
)

// CompletionQueue is a FIFO queue of completed operation tags, the single
// point through which a Channel or Server's asynchronous completions are
// delivered to application code. A CompletionQueue is independently owned
// from the Calls that post events to it: it outlives any one Call, and a
// Call only ever holds a non-owning reference to the queue it was started
// on.
type CompletionQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   *list.List
	shutdown bool
	drained  bool
	pending  int // outstanding tags not yet delivered; blocks Shutdown from draining
}

// NewCompletionQueue creates an empty, open queue.
func NewCompletionQueue() *CompletionQueue {
	cq := &CompletionQueue{events: list.New()}
	cq.cond = sync.NewCond(&cq.mu)
	return cq
}

// RegisterPending notes that one more tag will eventually be pushed, so
// Shutdown knows to wait for it instead of draining immediately.
func (cq *CompletionQueue) RegisterPending() {
	cq.mu.Lock()
	cq.pending++
	cq.mu.Unlock()
}

// Push enqueues ev for delivery by Next, and unblocks one waiter.
func (cq *CompletionQueue) Push(ev Event) {
	cq.mu.Lock()
	cq.events.PushBack(ev)
	if cq.pending > 0 {
		cq.pending--
	}
	cq.maybeDrainLocked()
	cq.cond.Signal()
	cq.mu.Unlock()
}

// Next blocks until an event is available, the deadline passes, or the
// queue shuts down and fully drains, whichever happens first. A deadline
// already in the past never blocks: it returns a queued event if one is
// ready and EventQueueTimeout otherwise, matching the synchronous-poll
// idiom callers use to drain a queue without risking an indefinite wait.
func (cq *CompletionQueue) Next(deadline TimePoint) Event {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if !deadline.IsZero() && !time.Now().Before(deadline) {
		if ev, ok := cq.popLocked(); ok {
			return ev
		}
		return Event{Kind: EventQueueTimeout}
	}

	for {
		if ev, ok := cq.popLocked(); ok {
			return ev
		}
		if cq.drained {
			return Event{Kind: EventQueueShutdown}
		}

		if deadline.IsZero() {
			cq.cond.Wait()
			continue
		}

		if !cq.waitUntil(deadline) {
			if ev, ok := cq.popLocked(); ok {
				return ev
			}
			return Event{Kind: EventQueueTimeout}
		}
	}
}

// waitUntil blocks on cq.cond until signaled or deadline passes, returning
// false on timeout. cq.mu must be held on entry; it is held again on
// return.
func (cq *CompletionQueue) waitUntil(deadline TimePoint) bool {
	timer := time.AfterFunc(time.Until(deadline), func() {
		cq.mu.Lock()
		cq.cond.Broadcast()
		cq.mu.Unlock()
	})
	defer timer.Stop()

	cq.cond.Wait()
	return time.Now().Before(deadline)
}

func (cq *CompletionQueue) popLocked() (Event, bool) {
	front := cq.events.Front()
	if front == nil {
		return Event{}, false
	}
	cq.events.Remove(front)
	cq.maybeDrainLocked()
	return front.Value.(Event), true
}

// Shutdown begins queue shutdown: no further Push calls are valid once all
// pending tags have been delivered, at which point Next starts returning
// EventQueueShutdown forever. Shutdown is idempotent.
func (cq *CompletionQueue) Shutdown() {
	cq.mu.Lock()
	if !cq.shutdown {
		cq.shutdown = true
		cq.maybeDrainLocked()
	}
	cq.cond.Broadcast()
	cq.mu.Unlock()
}

func (cq *CompletionQueue) maybeDrainLocked() {
	if cq.shutdown && cq.pending == 0 && cq.events.Len() == 0 {
		cq.drained = true
	}
}

// IsShutdown reports whether Shutdown has been called.
func (cq *CompletionQueue) IsShutdown() bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return cq.shutdown
}
