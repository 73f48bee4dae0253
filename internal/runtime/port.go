// Package runtime is the cross-context transport between relays and the
// privileged backend: request/response commands one way, wallet events
// fanned out the other way.
package runtime

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eternalab/hop-wallet/internal/protocol"
)

// ErrBackendUnavailable is returned while no backend is attached, or when
// the connection to it is gone.
var ErrBackendUnavailable = errors.New("wallet backend unavailable")

// Handler is the privileged side of the transport.
type Handler interface {
	HandleMessage(ctx context.Context, req protocol.BrokerRequest) protocol.BrokerResponse
}

type HandlerFunc func(ctx context.Context, req protocol.BrokerRequest) protocol.BrokerResponse

func (f HandlerFunc) HandleMessage(ctx context.Context, req protocol.BrokerRequest) protocol.BrokerResponse {
	return f(ctx, req)
}

// Port is what a relay holds.
type Port interface {
	SendMessage(ctx context.Context, req protocol.BrokerRequest) (protocol.BrokerResponse, error)
	SubscribeEvents(ch chan<- protocol.RuntimeEvent) event.Subscription
}

// Broadcaster pushes wallet events to every connected relay.
type Broadcaster interface {
	Broadcast(ev protocol.RuntimeEvent) int
}
