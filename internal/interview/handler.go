package interview

import (
	"sync"
	"sync/atomic"

	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/live"
)

// handler adapts one connection attempt to the session. A detached handler
// belongs to an abandoned attempt and drops every callback.
type handler struct {
	s *Session

	opened      chan struct{}
	closedEarly chan live.CloseEvent
	openOnce    sync.Once
	isOpen      atomic.Bool
	detached    atomic.Bool
}

var _ live.Handler = (*handler)(nil)

func newHandler(s *Session) *handler {
	return &handler{
		s:           s,
		opened:      make(chan struct{}),
		closedEarly: make(chan live.CloseEvent, 1),
	}
}

func (h *handler) detach() { h.detached.Store(true) }

func (h *handler) OnOpen() {
	if h.detached.Load() {
		return
	}
	h.isOpen.Store(true)
	h.openOnce.Do(func() { close(h.opened) })
}

func (h *handler) OnMessage(msg *live.Message) {
	if h.detached.Load() {
		return
	}
	h.s.handleMessage(msg)
}

func (h *handler) OnError(err error) {
	if h.detached.Load() {
		return
	}
	if !h.isOpen.Load() {
		// The close that follows ends the attempt.
		h.s.log.Debug("transport error during handshake", "err", err)
		return
	}
	h.s.handleError(err)
}

func (h *handler) OnClose(ev live.CloseEvent) {
	if h.detached.Load() {
		return
	}
	if !h.isOpen.Load() {
		select {
		case h.closedEarly <- ev:
		default:
		}
		return
	}
	h.s.handleClose(ev)
}

// outbound is the capture pipeline's view of the session: packets are queued
// without blocking the device callback and written by sendLoop.
type outbound struct {
	s *Session
}

func (o *outbound) Ready() bool {
	return o.s.connected.Load() && !o.s.tearing.Load()
}

func (o *outbound) SendAudio(pkt audio.PCMPacket) error {
	if !o.Ready() {
		return ErrNotConnected
	}
	select {
	case o.s.out <- live.MediaMessage{Media: live.Media{Data: pkt.Data, MIMEType: pkt.MIMEType}}:
		return nil
	default:
		return ErrQueueFull
	}
}
