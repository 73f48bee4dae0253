package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Hub is the in-process transport. The backend handler can be detached and
// re-attached, which is how a restart of the privileged context looks to
// relays: calls made in between fail with ErrBackendUnavailable.
type Hub struct {
	mu      sync.RWMutex
	handler Handler

	feed event.Feed
}

func NewHub(h Handler) *Hub {
	return &Hub{handler: h}
}

// SetHandler swaps the backend. nil detaches it.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *Hub) SendMessage(ctx context.Context, req protocol.BrokerRequest) (protocol.BrokerResponse, error) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return protocol.BrokerResponse{}, ErrBackendUnavailable
	}

	type outcome struct {
		resp protocol.BrokerResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("backend handler panicked", "type", req.Type, "panic", rec)
				done <- outcome{err: fmt.Errorf("%w: handler panic", ErrBackendUnavailable)}
			}
		}()
		resp := handler.HandleMessage(ctx, req)
		if resp.RequestID == "" {
			resp.RequestID = req.RequestID
		}
		done <- outcome{resp: resp}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return protocol.BrokerResponse{}, ctx.Err()
	}
}

func (h *Hub) SubscribeEvents(ch chan<- protocol.RuntimeEvent) event.Subscription {
	return h.feed.Subscribe(ch)
}

// Broadcast sends ev to every subscriber and returns how many received it.
func (h *Hub) Broadcast(ev protocol.RuntimeEvent) int {
	if ev.Type == "" {
		ev.Type = constants.RuntimeEvent
	}
	return h.feed.Send(ev)
}
