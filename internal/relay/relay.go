// Package relay bridges one page window to the privileged backend. It
// listens for provider requests on the window, forwards them as broker
// commands over a runtime port and posts the shaped response back. Wallet
// events pushed by the backend are re-posted on the window.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/pagebus"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/eternalab/hop-wallet/internal/runtime"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Option func(*Relay)

// WithTabID tags every forwarded command with the page's tab id.
func WithTabID(id int) Option {
	return func(r *Relay) { r.tabID = id }
}

type Relay struct {
	win   *pagebus.Window
	port  runtime.Port
	tabID int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	detach func()
	sub    event.Subscription
}

// Start attaches a relay to win. Requests in flight are abandoned when ctx
// ends or Close is called.
func Start(ctx context.Context, win *pagebus.Window, port runtime.Port, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(ctx)
	r := &Relay{
		win:    win,
		port:   port,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.detach = win.AddListener(r.onMessage)

	events := make(chan protocol.RuntimeEvent, 16)
	r.sub = port.SubscribeEvents(events)
	r.wg.Add(1)
	go r.forwardEvents(events)

	return r
}

// Close detaches from the window and the event feed and waits for handlers
// to return.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.detach()
	r.cancel()
	r.sub.Unsubscribe()
	r.wg.Wait()
}

func (r *Relay) onMessage(ev pagebus.MessageEvent) {
	if ev.Source != r.win || ev.Origin != r.win.Origin() {
		return
	}
	if ev.Data.Type != constants.EnvelopeRequest {
		return
	}

	var req protocol.CapabilityRequest
	if err := ev.Data.Decode(&req); err != nil {
		log.Warn("dropping malformed wallet request", "origin", ev.Origin, "error", err)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.reply(r.handle(r.ctx, req))
	}()
}

func (r *Relay) reply(resp protocol.CapabilityResponse) {
	env, err := protocol.NewEnvelope(constants.EnvelopeResponse, resp)
	if err != nil {
		log.Error("encode wallet response", "id", resp.ID, "error", err)
		return
	}
	r.win.PostMessage(r.win, env, r.win.Origin())
}

// forwardEvents leaves the feed on return. A subscriber that stops reading
// would block every Broadcast on the shared feed.
func (r *Relay) forwardEvents(ch <-chan protocol.RuntimeEvent) {
	defer r.wg.Done()
	defer r.sub.Unsubscribe()
	for {
		select {
		case ev := <-ch:
			env, err := protocol.NewEnvelope(constants.EnvelopeEvent, protocol.WalletEvent{
				Event: ev.Event,
				Data:  ev.Data,
			})
			if err != nil {
				log.Error("encode wallet event", "event", ev.Event, "error", err)
				continue
			}
			r.win.PostMessage(r.win, env, r.win.Origin())
		case <-r.sub.Err():
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// send forwards one command stamped with this page's origin and tab.
func (r *Relay) send(ctx context.Context, typ protocol.MessageType, data any) (protocol.BrokerResponse, error) {
	req := protocol.BrokerRequest{
		Type:   typ,
		TabID:  r.tabID,
		Origin: r.win.Origin(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return protocol.BrokerResponse{}, err
		}
		req.Data = raw
	}
	return r.port.SendMessage(ctx, req)
}
