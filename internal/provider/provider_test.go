package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/events"
	"github.com/eternalab/hop-wallet/internal/pagebus"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

const dappOrigin = "https://dapp.example"

type reply struct {
	result any
	err    string
}

// fakeBackend answers provider requests on the page window the way a relay
// would. handle returning nil leaves the request unanswered.
type fakeBackend struct {
	win *pagebus.Window

	mu     sync.Mutex
	handle func(protocol.CapabilityRequest) *reply
	seen   []protocol.CapabilityRequest
}

func newFakeBackend(win *pagebus.Window, handle func(protocol.CapabilityRequest) *reply) *fakeBackend {
	f := &fakeBackend{win: win, handle: handle}
	win.AddListener(func(ev pagebus.MessageEvent) {
		if ev.Data.Type != constants.EnvelopeRequest {
			return
		}
		var req protocol.CapabilityRequest
		if err := ev.Data.Decode(&req); err != nil {
			return
		}
		f.mu.Lock()
		f.seen = append(f.seen, req)
		handle := f.handle
		f.mu.Unlock()

		if r := handle(req); r != nil {
			f.respond(f.win, req.ID, r.result, r.err)
		}
	})
	return f
}

func (f *fakeBackend) respond(from *pagebus.Window, id string, result any, errMsg string) {
	resp := protocol.CapabilityResponse{ID: id, Error: errMsg}
	if result != nil {
		b, _ := json.Marshal(result)
		resp.Result = b
	}
	env, _ := protocol.NewEnvelope(constants.EnvelopeResponse, resp)
	f.win.PostMessage(from, env, pagebus.AnyOrigin)
}

func (f *fakeBackend) setHandle(h func(protocol.CapabilityRequest) *reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handle = h
}

func (f *fakeBackend) requests() []protocol.CapabilityRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.CapabilityRequest(nil), f.seen...)
}

func setup(t *testing.T, handle func(protocol.CapabilityRequest) *reply, opts ...Option) (*Provider, *fakeBackend) {
	t.Helper()
	win := pagebus.NewWindow(dappOrigin)
	t.Cleanup(win.Close)
	backend := newFakeBackend(win, handle)
	p, ok := Install(win, opts...)
	require.True(t, ok)
	t.Cleanup(p.Close)
	return p, backend
}

func account(addr string) protocol.AccountInfo {
	return protocol.AccountInfo{Account: addr, Address: addr, AuthKey: "0x" + addr}
}

func TestConcurrentCallsSettleIndependently(t *testing.T) {
	var mu sync.Mutex
	parked := map[string]protocol.CapabilityRequest{}

	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply {
		mu.Lock()
		parked[req.ID] = req
		mu.Unlock()
		return nil
	})

	type out struct {
		network protocol.UserResponse[protocol.NetworkInfo]
		account protocol.UserResponse[protocol.AccountInfo]
		err     error
	}
	netCh := make(chan out, 1)
	accCh := make(chan out, 1)
	go func() {
		r, err := p.GetNetwork(context.Background())
		netCh <- out{network: r, err: err}
	}()
	go func() {
		r, err := p.GetAccount(context.Background())
		accCh <- out{account: r, err: err}
	}()

	require.Eventually(t, func() bool { return len(backend.requests()) == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	var netID, accID string
	for id, req := range parked {
		switch req.Method {
		case protocol.MethodGetNetwork:
			netID = id
		case protocol.MethodGetAccount:
			accID = id
		}
	}
	mu.Unlock()
	require.NotEqual(t, netID, accID)

	// Answer in reverse order of the calls.
	backend.respond(backend.win, accID, protocol.Approved(account("acc1")), "")
	backend.respond(backend.win, netID, protocol.Approved(protocol.NetworkInfo{Name: "mainnet", ChainID: 220}), "")

	acc := <-accCh
	require.NoError(t, acc.err)
	assert.Equal(t, "acc1", acc.account.Args.Address)

	network := <-netCh
	require.NoError(t, network.err)
	assert.Equal(t, 220, network.network.Args.ChainID)
	assert.Equal(t, 0, p.Pending())
}

func TestManyCallsUnderShuffledResponses(t *testing.T) {
	const n = 50
	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	t.Logf("seed %d", seed)

	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil })

	// answer derives each call's reply from its own params.
	answer := func(req protocol.CapabilityRequest) any {
		switch req.Method {
		case protocol.MethodSignAndSubmitTransaction:
			var tx protocol.SignAndSubmitTransaction
			require.NoError(t, json.Unmarshal(req.Params, &tx))
			return protocol.Approved(protocol.SubmitResult{Hash: tx.Payload.Function})
		case protocol.MethodSignMessage:
			var in protocol.SignMessageInput
			require.NoError(t, json.Unmarshal(req.Params, &in))
			return protocol.SignMessageOutput{Message: in.Message, FullMessage: "Endless" + in.Message}
		case protocol.MethodIsConnected:
			var addr string
			require.NoError(t, json.Unmarshal(req.Params, &addr))
			return strings.HasPrefix(addr, "yes-")
		}
		t.Fatalf("unexpected method %s", req.Method)
		return nil
	}

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			switch i % 3 {
			case 0:
				fn := fmt.Sprintf("0x1::call::f%d", i)
				r, err := p.SignAndSubmitTransaction(ctx, protocol.SignAndSubmitTransaction{
					Payload: protocol.EntryFunctionPayload{Function: fn},
				})
				if err == nil && (!r.IsApproved() || r.Args.Hash != fn) {
					err = fmt.Errorf("call %d got hash %+v", i, r.Args)
				}
				errs <- err
			case 1:
				msg := fmt.Sprintf("message %d", i)
				out, err := p.SignMessage(ctx, protocol.SignMessageInput{Message: msg})
				if err == nil && out.Message != msg {
					err = fmt.Errorf("call %d got message %q", i, out.Message)
				}
				errs <- err
			default:
				addr := fmt.Sprintf("no-%d", i)
				if i%2 == 0 {
					addr = fmt.Sprintf("yes-%d", i)
				}
				ok, err := p.IsConnected(ctx, addr)
				if err == nil && ok != (i%2 == 0) {
					err = fmt.Errorf("call %d got %v", i, ok)
				}
				errs <- err
			}
		}(i)
	}

	require.Eventually(t, func() bool { return len(backend.requests()) == n }, 2*time.Second, 5*time.Millisecond)
	reqs := backend.requests()

	for _, k := range rng.Perm(n) {
		req := reqs[k]
		backend.respond(backend.win, req.ID, answer(req), "")
		switch rng.Intn(4) {
		case 0:
			backend.respond(backend.win, req.ID, nil, "duplicate")
		case 1:
			backend.respond(backend.win, fmt.Sprintf("unknown-%d", rng.Int()), true, "")
		}
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, p.Pending())
}

func TestSignAndSubmitTimeoutThenLateResponse(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil },
		WithTimeout(30*time.Millisecond))

	tx := protocol.SignAndSubmitTransaction{Payload: protocol.EntryFunctionPayload{Function: constants.NativeTransferFunction}}
	_, err := p.SignAndSubmitTransaction(context.Background(), tx)
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 0, p.Pending())

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, protocol.MethodSignAndSubmitTransaction, reqs[0].Method)
	backend.respond(backend.win, reqs[0].ID, protocol.Approved(protocol.SubmitResult{Hash: "0xlate"}), "")

	backend.setHandle(func(req protocol.CapabilityRequest) *reply {
		return &reply{result: protocol.Approved(protocol.SubmitResult{Hash: "0xnext"})}
	})
	resp, err := p.SignAndSubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, resp.IsApproved())
	assert.Equal(t, "0xnext", resp.Args.Hash)
	assert.Equal(t, 0, p.Pending())
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply {
		return &reply{result: true}
	})

	for i := 0; i < 3; i++ {
		ok, err := p.IsConnected(context.Background(), "")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	reqs := backend.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{reqs[0].ID, reqs[1].ID, reqs[2].ID})
}

func TestTimeoutThenLateResponseIsDropped(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil },
		WithTimeout(30*time.Millisecond))

	_, err := p.GetAccount(context.Background())
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 0, p.Pending())

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	backend.respond(backend.win, reqs[0].ID, protocol.Approved(account("late")), "")

	// The late answer must not leak into the next call.
	backend.setHandle(func(req protocol.CapabilityRequest) *reply {
		return &reply{result: protocol.Rejected[protocol.AccountInfo]("no")}
	})
	resp, err := p.GetAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.IsApproved())

	reqs = backend.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "2", reqs[1].ID)
}

func TestDuplicateResponsesSettleOnce(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil })

	done := make(chan error, 1)
	go func() {
		_, err := p.SignMessage(context.Background(), protocol.SignMessageInput{Message: "hi"})
		done <- err
	}()
	require.Eventually(t, func() bool { return len(backend.requests()) == 1 }, time.Second, 5*time.Millisecond)
	id := backend.requests()[0].ID

	backend.respond(backend.win, id, protocol.SignMessageOutput{Message: "hi", Prefix: constants.SignMessagePrefixTag}, "")
	backend.respond(backend.win, id, nil, "second answer")

	require.NoError(t, <-done)
	assert.Equal(t, 0, p.Pending())
}

func TestConnectEmitsOnlyOnApproval(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply {
		return &reply{result: protocol.Approved(account("a1"))}
	})

	var got []protocol.AccountInfo
	events.On(p.Events(), events.Connect, events.NewListener(func(a protocol.AccountInfo) {
		got = append(got, a)
	}))

	resp, err := p.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, resp.IsApproved())
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].Address)

	backend.setHandle(func(req protocol.CapabilityRequest) *reply {
		return &reply{result: protocol.Rejected[protocol.AccountInfo]("user reject")}
	})
	resp, err = p.Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.IsApproved())
	assert.Equal(t, "user reject", resp.Message)
	assert.Len(t, got, 1)
}

func TestDisconnectEmitsAfterRoundTrip(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply {
		return &reply{err: "Disconnection failed"}
	}, WithTimeout(30*time.Millisecond))

	disconnects := 0
	events.On(p.Events(), events.Disconnect, events.NewListener(func(events.Void) { disconnects++ }))

	err := p.Disconnect(context.Background())
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "Disconnection failed", backendErr.Message)
	assert.Equal(t, 1, disconnects)

	backend.setHandle(func(req protocol.CapabilityRequest) *reply { return &reply{} })
	require.NoError(t, p.Disconnect(context.Background()))
	assert.Equal(t, 2, disconnects)

	backend.setHandle(func(req protocol.CapabilityRequest) *reply { return nil })
	err = p.Disconnect(context.Background())
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 2, disconnects)
}

func TestBackendErrorSurfaces(t *testing.T) {
	p, _ := setup(t, func(req protocol.CapabilityRequest) *reply {
		return &reply{err: "Unsupported method: " + string(req.Method)}
	})

	_, err := p.SignAndSubmitTransaction(context.Background(), protocol.SignAndSubmitTransaction{})
	require.Error(t, err)
	assert.Equal(t, "Unsupported method: signAndSubmitTransaction", err.Error())
}

func TestIgnoresForeignWindowResponses(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil },
		WithTimeout(80*time.Millisecond))

	frame := pagebus.NewWindow("https://ads.example")
	t.Cleanup(frame.Close)
	spoofer := pagebus.NewWindow(dappOrigin)
	t.Cleanup(spoofer.Close)

	done := make(chan error, 1)
	go func() {
		_, err := p.IsConnected(context.Background(), "addr")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(backend.requests()) == 1 }, time.Second, 5*time.Millisecond)
	id := backend.requests()[0].ID

	backend.respond(frame, id, true, "")
	backend.respond(spoofer, id, true, "")

	require.ErrorIs(t, <-done, ErrRequestTimeout)
}

func TestContextCancellation(t *testing.T) {
	p, _ := setup(t, func(req protocol.CapabilityRequest) *reply { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := p.GetNetwork(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Pending())
}

func TestEventsFromTransportReachListeners(t *testing.T) {
	p, backend := setup(t, func(req protocol.CapabilityRequest) *reply { return nil })

	got := make(chan protocol.NetworkInfo, 1)
	events.On(p.Events(), events.NetworkChange, events.NewListener(func(n protocol.NetworkInfo) { got <- n }))

	env, err := protocol.NewEnvelope(constants.EnvelopeEvent, protocol.WalletEvent{
		Event: protocol.EventNetworkChange,
		Data:  json.RawMessage(`{"name":"testnet","chainId":221,"url":"https://rpc-test.endless.link/v1"}`),
	})
	require.NoError(t, err)
	backend.win.PostMessage(backend.win, env, dappOrigin)

	select {
	case n := <-got:
		assert.Equal(t, 221, n.ChainID)
	case <-time.After(time.Second):
		t.Fatal("network change not delivered")
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	win := pagebus.NewWindow(dappOrigin)
	t.Cleanup(win.Close)

	first, ok := Install(win)
	require.True(t, ok)
	t.Cleanup(first.Close)
	assert.True(t, first.IsEndless())

	second, ok := Install(win, WithTimeout(time.Millisecond))
	assert.False(t, ok)
	assert.Same(t, first, second)
	assert.Equal(t, constants.DefaultRequestTimeout, second.timeout)

	found, ok := Lookup(win)
	require.True(t, ok)
	assert.Same(t, first, found)
}

func TestCloseFailsInFlightCalls(t *testing.T) {
	win := pagebus.NewWindow(dappOrigin)
	t.Cleanup(win.Close)
	p, _ := Install(win)

	done := make(chan error, 1)
	go func() {
		_, err := p.GetAccount(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Pending() == 1 }, time.Second, 5*time.Millisecond)

	p.Close()
	assert.True(t, errors.Is(<-done, ErrClosed))

	_, ok := Lookup(win)
	assert.False(t, ok)
}
