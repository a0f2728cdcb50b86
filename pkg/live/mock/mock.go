// Package mock provides in-memory implementations of [live.Dialer] and
// [live.Conn] for use in unit tests.
//
// The Dialer records every Dial call and keeps the handler it was given, so
// tests can drive the session from the "server" side:
//
//	d := &mock.Dialer{}
//	sess.Start(ctx) // in a goroutine
//	d.WaitDial(time.Second)
//	d.Handler().OnOpen()
//	d.Handler().OnMessage(&live.Message{...})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/mockmate/pkg/live"
)

// ─── Dialer ───────────────────────────────────────────────────────────────────

// Dialer is a mock implementation of [live.Dialer].
type Dialer struct {
	mu sync.Mutex

	// DialErrs are returned by successive Dial calls until exhausted; a nil
	// entry means success.
	DialErrs []error

	// AutoOpen makes Dial call OnOpen on the handler before returning.
	AutoOpen bool

	// AfterOpen, when non-nil, is called with the handler after AutoOpen and
	// before Dial returns.
	AfterOpen func(live.Handler)

	// DialGate, when non-nil, makes Dial block until it is closed or ctx is
	// done.
	DialGate chan struct{}

	// CallCountDial records how many times Dial was called.
	CallCountDial int

	// Configs records the config passed to each Dial call.
	Configs []live.Config

	// Conns holds every connection returned by Dial, in order.
	Conns []*Conn

	handler live.Handler
	dialed  chan struct{}
}

func (d *Dialer) dialedCh() chan struct{} {
	if d.dialed == nil {
		d.dialed = make(chan struct{}, 64)
	}
	return d.dialed
}

// Dial implements [live.Dialer].
func (d *Dialer) Dial(ctx context.Context, cfg live.Config, h live.Handler) (live.Conn, error) {
	d.mu.Lock()
	d.CallCountDial++
	d.Configs = append(d.Configs, cfg)
	var err error
	if len(d.DialErrs) > 0 {
		err = d.DialErrs[0]
		d.DialErrs = d.DialErrs[1:]
	}
	gate := d.DialGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	c := &Conn{handler: h}
	d.mu.Lock()
	d.handler = h
	d.Conns = append(d.Conns, c)
	auto, after := d.AutoOpen, d.AfterOpen
	ch := d.dialedCh()
	d.mu.Unlock()

	if auto {
		h.OnOpen()
	}
	if after != nil {
		after(h)
	}
	ch <- struct{}{}
	return c, nil
}

// Handler returns the handler passed to the last successful Dial.
func (d *Dialer) Handler() live.Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler
}

// LastConn returns the last connection returned by Dial, or nil.
func (d *Dialer) LastConn() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Conns) == 0 {
		return nil
	}
	return d.Conns[len(d.Conns)-1]
}

// Dials returns CallCountDial under the lock.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CallCountDial
}

// WaitDial blocks until a Dial call has succeeded or timeout passes. It
// reports whether a dial happened.
func (d *Dialer) WaitDial(timeout time.Duration) bool {
	d.mu.Lock()
	ch := d.dialedCh()
	d.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ─── Conn ─────────────────────────────────────────────────────────────────────

// Conn is a mock implementation of [live.Conn].
type Conn struct {
	mu sync.Mutex

	handler live.Handler

	// SendErr is returned by the send methods when non-nil.
	SendErr error

	// Media records every SendMedia payload.
	Media []live.MediaMessage

	// Turns records every SendClientContent turn.
	Turns []live.Turn

	// CloseReasons records the reason of every Close call.
	CloseReasons []string

	closed bool
}

// SendMedia implements [live.Conn].
func (c *Conn) SendMedia(_ context.Context, msg live.MediaMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return live.ErrClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Media = append(c.Media, msg)
	return nil
}

// SendClientContent implements [live.Conn].
func (c *Conn) SendClientContent(_ context.Context, turn live.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return live.ErrClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Turns = append(c.Turns, turn)
	return nil
}

// Close implements [live.Conn]. The first call reports OnClose to the
// handler, user-initiated when reason is [live.CloseReasonUserEnded].
func (c *Conn) Close(reason string) error {
	c.mu.Lock()
	c.CloseReasons = append(c.CloseReasons, reason)
	first := !c.closed
	c.closed = true
	h := c.handler
	c.mu.Unlock()

	if first && h != nil {
		h.OnClose(live.CloseEvent{
			Code:          1000,
			Reason:        reason,
			UserInitiated: reason == live.CloseReasonUserEnded,
		})
	}
	return nil
}

// SentMedia returns a copy of the recorded media messages.
func (c *Conn) SentMedia() []live.MediaMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.MediaMessage(nil), c.Media...)
}

// SentTurns returns a copy of the recorded turns.
func (c *Conn) SentTurns() []live.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.Turn(nil), c.Turns...)
}

// Closes returns the number of Close calls.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CloseReasons)
}
