// Package events is the provider's typed event subscription registry.
//
// Listeners are identified by reference: registering the same *Listener
// twice makes it fire twice, and Off removes the first matching
// registration only.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Topic binds an event name to its payload type.
type Topic[T any] struct {
	name protocol.EventName
}

func NewTopic[T any](name protocol.EventName) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() protocol.EventName { return t.name }

func (t Topic[T]) decode(raw json.RawMessage) (any, error) {
	var v T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t.name, err)
	}
	return v, nil
}

// Void is the payload of events that carry no data.
type Void struct{}

var (
	Connect         = NewTopic[protocol.AccountInfo](protocol.EventConnect)
	Disconnect      = NewTopic[Void](protocol.EventDisconnect)
	AccountChange   = NewTopic[protocol.AccountInfo](protocol.EventAccountChange)
	NetworkChange   = NewTopic[protocol.NetworkInfo](protocol.EventNetworkChange)
	ColorModeChange = NewTopic[protocol.ColorMode](protocol.EventColorModeChange)
	GetAccount      = NewTopic[[]protocol.AccountInfo](protocol.EventGetAccount)
	Init            = NewTopic[Void](protocol.EventInit)
	WalletInitLoad  = NewTopic[Void](protocol.EventWalletInitLoad)
	Open            = NewTopic[Void](protocol.EventOpen)
	Close           = NewTopic[Void](protocol.EventClose)
)

// Listener wraps a callback so it has a stable identity for Off.
type Listener[T any] struct {
	fn func(T)
}

func NewListener[T any](fn func(T)) *Listener[T] {
	return &Listener[T]{fn: fn}
}

type entry struct {
	ref  any
	call func(any)
}

type Registry struct {
	mu        sync.Mutex
	listeners map[protocol.EventName][]entry
	decoders  map[protocol.EventName]func(json.RawMessage) (any, error)
}

func NewRegistry() *Registry {
	return &Registry{
		listeners: map[protocol.EventName][]entry{},
		decoders:  map[protocol.EventName]func(json.RawMessage) (any, error){},
	}
}

// On appends l to the listeners of t.
func On[T any](r *Registry, t Topic[T], l *Listener[T]) {
	if l == nil || l.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.decoders[t.name] = t.decode
	r.listeners[t.name] = append(r.listeners[t.name], entry{
		ref:  l,
		call: func(v any) { l.fn(v.(T)) },
	})
}

// Off removes the first registration of l for t. It reports whether one
// was found.
func Off[T any](r *Registry, t Topic[T], l *Listener[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[t.name]
	for i, e := range list {
		if e.ref == any(l) {
			r.listeners[t.name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Emit delivers payload to the listeners of t in registration order.
func Emit[T any](r *Registry, t Topic[T], payload T) {
	r.deliver(t.name, payload)
}

// Count returns how many registrations t currently has.
func Count[T any](r *Registry, t Topic[T]) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[t.name])
}

// Dispatch decodes a wire event and delivers it. Events nobody listens to
// are dropped.
func (r *Registry) Dispatch(ev protocol.WalletEvent) {
	r.mu.Lock()
	decode, ok := r.decoders[ev.Event]
	r.mu.Unlock()
	if !ok {
		return
	}

	v, err := decode(ev.Data)
	if err != nil {
		log.Warn("dropping malformed wallet event", "event", ev.Event, "error", err)
		return
	}
	r.deliver(ev.Event, v)
}

func (r *Registry) deliver(name protocol.EventName, v any) {
	r.mu.Lock()
	snapshot := append([]entry(nil), r.listeners[name]...)
	r.mu.Unlock()

	for _, e := range snapshot {
		invoke(name, e, v)
	}
}

func invoke(name protocol.EventName, e entry, v any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("wallet event listener panicked", "event", name, "panic", rec)
		}
	}()
	e.call(v)
}
