// Package provider is the wallet object injected into the page. Every call
// is correlated by id over the page window and settles exactly once: on the
// first matching response, on timeout, or on context cancellation.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/events"
	"github.com/eternalab/hop-wallet/internal/pagebus"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	ErrRequestTimeout = errors.New("wallet request timed out")
	ErrClosed         = errors.New("wallet provider closed")
)

// BackendError carries the error string of a CapabilityResponse.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }

type Option func(*Provider)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

type result struct {
	raw json.RawMessage
	err error
}

type call struct {
	done  chan result
	timer *time.Timer
}

type Provider struct {
	win     *pagebus.Window
	events  *events.Registry
	timeout time.Duration

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]*call
	closed  bool

	detach func()
}

func newProvider(win *pagebus.Window, opts ...Option) *Provider {
	p := &Provider{
		win:     win,
		events:  events.NewRegistry(),
		timeout: constants.DefaultRequestTimeout,
		pending: map[string]*call{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.detach = win.AddListener(p.onMessage)
	return p
}

// IsEndless marks the object as an Endless wallet provider.
func (p *Provider) IsEndless() bool { return true }

func (p *Provider) Events() *events.Registry { return p.events }

// Pending returns the number of in-flight calls.
func (p *Provider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close detaches from the window and fails every in-flight call.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	p.detach()
	for _, id := range ids {
		p.settle(id, result{err: ErrClosed})
	}
	forget(p)
}

func (p *Provider) request(ctx context.Context, method protocol.Method, params any) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		raw = b
	}

	id := strconv.FormatUint(p.nextID.Add(1), 10)
	env, err := protocol.NewEnvelope(constants.EnvelopeRequest, protocol.CapabilityRequest{
		ID:     id,
		Method: method,
		Params: raw,
	})
	if err != nil {
		return nil, err
	}

	c := &call{done: make(chan result, 1)}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.pending[id] = c
	c.timer = time.AfterFunc(p.timeout, func() {
		p.settle(id, result{err: fmt.Errorf("%w: %s after %s", ErrRequestTimeout, method, p.timeout)})
	})
	p.mu.Unlock()

	p.win.PostMessage(p.win, env, p.win.Origin())

	select {
	case r := <-c.done:
		return r.raw, r.err
	case <-ctx.Done():
		p.settle(id, result{err: ctx.Err()})
		r := <-c.done
		return r.raw, r.err
	}
}

// settle resolves the call registered under id. Only the first settle for
// an id has any effect.
func (p *Provider) settle(id string, r result) bool {
	p.mu.Lock()
	c, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	c.timer.Stop()
	c.done <- r
	return true
}

func (p *Provider) onMessage(ev pagebus.MessageEvent) {
	if ev.Source != p.win || ev.Origin != p.win.Origin() {
		return
	}

	switch ev.Data.Type {
	case constants.EnvelopeResponse:
		var resp protocol.CapabilityResponse
		if err := ev.Data.Decode(&resp); err != nil {
			log.Warn("dropping malformed wallet response", "error", err)
			return
		}
		r := result{raw: resp.Result}
		if resp.Error != "" {
			r = result{err: &BackendError{Message: resp.Error}}
		}
		p.settle(resp.ID, r)

	case constants.EnvelopeEvent:
		var we protocol.WalletEvent
		if err := ev.Data.Decode(&we); err != nil {
			log.Warn("dropping malformed wallet event", "error", err)
			return
		}
		p.events.Dispatch(we)
	}
}

func decodeResult[T any](method protocol.Method, raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("%s: empty result", method)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return out, nil
}
