package rpc

import (
	"testing"
	"time"
)

func TestCompletionQueuePushNextFIFO(t *testing.T) {
	cq := NewCompletionQueue()
	cq.RegisterPending()
	cq.RegisterPending()

	cq.Push(Event{Kind: EventOpComplete, Tag: "first", Success: true})
	cq.Push(Event{Kind: EventOpComplete, Tag: "second", Success: true})

	ev := cq.Next(time.Time{})
	if ev.Tag != "first" {
		t.Fatalf("got %v want first", ev.Tag)
	}
	ev = cq.Next(time.Time{})
	if ev.Tag != "second" {
		t.Fatalf("got %v want second", ev.Tag)
	}
}

func TestCompletionQueuePastDeadlineDoesNotBlock(t *testing.T) {
	cq := NewCompletionQueue()
	ev := cq.Next(time.Now().Add(-time.Second))
	if ev.Kind != EventQueueTimeout {
		t.Fatalf("got %v want EventQueueTimeout", ev.Kind)
	}
}

func TestCompletionQueueShutdownDrainsExactlyOnce(t *testing.T) {
	cq := NewCompletionQueue()
	cq.Shutdown()

	ev := cq.Next(time.Time{})
	if ev.Kind != EventQueueShutdown {
		t.Fatalf("got %v want EventQueueShutdown", ev.Kind)
	}
	ev = cq.Next(time.Time{})
	if ev.Kind != EventQueueShutdown {
		t.Fatalf("second Next: got %v want EventQueueShutdown", ev.Kind)
	}
}

func TestCompletionQueueNextDeliversPendingBeforeShutdown(t *testing.T) {
	cq := NewCompletionQueue()
	cq.RegisterPending()
	cq.Shutdown() // marks shutdown, but Next must still deliver the pending tag first

	cq.Push(Event{Kind: EventOpComplete, Tag: "late", Success: true})

	ev := cq.Next(time.Time{})
	if ev.Tag != "late" {
		t.Fatalf("got %v want late", ev.Tag)
	}

	ev = cq.Next(time.Time{})
	if ev.Kind != EventQueueShutdown {
		t.Fatalf("got %v want EventQueueShutdown once drained", ev.Kind)
	}
}
