// Package pagebus models the page-local broadcast channel: a window that
// receives posted messages and hands them to its listeners one at a time,
// in arrival order, on the window's own event loop.
package pagebus

import (
	"sync"
	"sync/atomic"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// AnyOrigin as targetOrigin delivers regardless of the receiver's origin.
const AnyOrigin = "*"

// MessageEvent is what a listener receives.
type MessageEvent struct {
	Source *Window
	Origin string
	Data   protocol.Envelope
}

type Listener func(MessageEvent)

var windowIDs atomic.Uint64

type Window struct {
	id     uint64
	origin string

	mu        sync.Mutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
	queue     []MessageEvent
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// NewWindow starts the event loop of a window served from origin.
func NewWindow(origin string) *Window {
	w := &Window{
		id:        windowIDs.Add(1),
		origin:    origin,
		listeners: map[uint64]Listener{},
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Window) Origin() string { return w.origin }

// AddListener registers fn and returns a func that removes it.
func (w *Window) AddListener(fn Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	w.order = append(w.order, id)

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
		for i, v := range w.order {
			if v == id {
				w.order = append(w.order[:i:i], w.order[i+1:]...)
				break
			}
		}
	}
}

// PostMessage queues env for delivery on w as if posted by source. The
// message is dropped when targetOrigin does not match w's origin.
func (w *Window) PostMessage(source *Window, env protocol.Envelope, targetOrigin string) {
	if targetOrigin != AnyOrigin && targetOrigin != w.origin {
		return
	}
	origin := ""
	if source != nil {
		origin = source.origin
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, MessageEvent{Source: source, Origin: origin, Data: env})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close stops the event loop. Queued messages are discarded.
func (w *Window) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.queue = nil
	w.mu.Unlock()
	close(w.done)
}

func (w *Window) loop() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if w.closed || len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			ev := w.queue[0]
			w.queue = w.queue[1:]
			listeners := make([]Listener, 0, len(w.order))
			for _, id := range w.order {
				listeners = append(listeners, w.listeners[id])
			}
			w.mu.Unlock()

			for _, l := range listeners {
				w.deliver(l, ev)
			}
		}
	}
}

func (w *Window) deliver(l Listener, ev MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("message listener panicked", "window", w.id, "type", ev.Data.Type, "panic", rec)
		}
	}()
	l(ev)
}
