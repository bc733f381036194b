package corerpc

import (
	"time"

	"github.com/valyala/fastrand"
)

// KeepaliveConfig controls a Conn's idle PING probing, mirroring the
// ping/idle timer idiom the transport otherwise uses time.Timer/
// time.AfterFunc for.
type KeepaliveConfig struct {
	// Interval is the base time between keepalive pings. 0 disables
	// keepalive entirely.
	Interval time.Duration
	// Jitter adds up to this much random delay to each interval, so that
	// many connections opened at once don't all probe in lockstep.
	Jitter time.Duration
	// Timeout is how long to wait for a PING ack before closing the
	// connection as unresponsive.
	Timeout time.Duration
}

// keepalive runs Conn's periodic PING loop until stop is closed or a PING
// ack fails to arrive within cfg.Timeout, blocking its caller meanwhile.
// Nothing in this package starts it: Dial, Accept and Serve take no
// KeepaliveConfig, so no keepalive PING is sent.
func (c *Conn) keepalive(cfg KeepaliveConfig, stop <-chan struct{}) {
	if cfg.Interval <= 0 {
		return
	}

	for {
		delay := cfg.Interval
		if cfg.Jitter > 0 {
			delay += time.Duration(fastrand.Uint32n(uint32(cfg.Jitter)))
		}

		timer := time.NewTimer(delay)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if c.IsClosed() {
			return
		}

		acked := make(chan struct{}, 1)
		c.awaitPingAck(acked)

		p := AcquirePing()
		p.SetData(pingPayload())
		err := c.writeFrame(0, p)
		ReleasePing(p)
		if err != nil {
			return
		}

		select {
		case <-acked:
		case <-time.After(cfg.Timeout):
			c.Close()
			return
		case <-stop:
			return
		}
	}
}

func (c *Conn) awaitPingAck(ch chan<- struct{}) {
	c.pingWaiters.mu.Lock()
	c.pingWaiters.list = append(c.pingWaiters.list, ch)
	c.pingWaiters.mu.Unlock()
}

func (c *Conn) observePingAck() {
	c.pingWaiters.mu.Lock()
	waiters := c.pingWaiters.list
	c.pingWaiters.list = nil
	c.pingWaiters.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func pingPayload() (data [8]byte) {
	v := fastrand.Uint32n(1<<32 - 1)
	data[0], data[1], data[2], data[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	return data
}
