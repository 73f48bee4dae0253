// Package approval is the privileged backend behind the relay. It holds the
// unlocked account and the connected-origin allowlist, answers read-only
// commands directly and parks anything that needs user consent until the
// approval UI settles it.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/permissions"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/eternalab/hop-wallet/internal/runtime"
	"github.com/eternalab/hop-wallet/internal/signing"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	ErrLocked         = errors.New("wallet is locked")
	ErrNotConnected   = errors.New("origin is not connected")
	ErrUnknownNetwork = errors.New("unknown network")
)

// Network is one chain the wallet can talk to.
type Network struct {
	Info   protocol.NetworkInfo
	Ledger ledger.Client
}

type Options struct {
	Account     *signing.Account
	Permissions *permissions.Store
	Networks    map[string]Network
	Active      string
	Events      runtime.Broadcaster
	// OnPending is called for every request that needs the approval UI.
	OnPending func(protocol.PendingApproval)
}

type Broker struct {
	mu        sync.Mutex
	account   *signing.Account
	networks  map[string]Network
	active    string
	pending   map[string]*pendingEntry
	onPending func(protocol.PendingApproval)

	perms  *permissions.Store
	events runtime.Broadcaster
	now    func() time.Time
}

func New(opts Options) (*Broker, error) {
	if opts.Permissions == nil {
		return nil, errors.New("approval: permissions store is required")
	}
	networks := make(map[string]Network, len(opts.Networks))
	for k, n := range opts.Networks {
		networks[networkKey(k)] = n
	}
	active := networkKey(opts.Active)
	if _, ok := networks[active]; !ok {
		return nil, fmt.Errorf("approval: %w: %q", ErrUnknownNetwork, opts.Active)
	}

	return &Broker{
		account:   opts.Account,
		networks:  networks,
		active:    active,
		pending:   map[string]*pendingEntry{},
		onPending: opts.OnPending,
		perms:     opts.Permissions,
		events:    opts.Events,
		now:       time.Now,
	}, nil
}

// HandleMessage dispatches one command. It blocks while the command waits
// for the user.
func (b *Broker) HandleMessage(ctx context.Context, req protocol.BrokerRequest) protocol.BrokerResponse {
	var (
		data any
		err  error
	)

	switch req.Type {
	case protocol.MsgWalletConnect:
		data, err = b.connect(ctx, req)
	case protocol.MsgWalletDisconnect:
		err = b.perms.Disconnect(b.origin(req))
	case protocol.MsgWalletIsConnected:
		data, err = b.isConnected(req)
	case protocol.MsgWalletGetAccount:
		data, err = b.getAccount(req)
	case protocol.MsgWalletGetNetwork:
		data, err = b.ActiveNetwork(), nil
	case protocol.MsgWalletSignMessage:
		data, err = b.requestSignMessage(ctx, req)
	case protocol.MsgWalletSignAndSubmitTransaction:
		data, err = b.requestSignTransaction(ctx, req)

	case protocol.MsgGetPendingSignRequestByID:
		data, err = b.getPendingByID(req)
	case protocol.MsgNotifyConfirmOrSignResult:
		err = b.notify(req)

	case protocol.MsgInternalSignMessage:
		data, err = b.internalSignMessage(req)
	case protocol.MsgInternalSignTransaction:
		data, err = b.internalSignTransaction(ctx, req)
	case protocol.MsgInternalSendEDS:
		data, err = b.internalSendEDS(ctx, req)
	case protocol.MsgInternalSendCoin:
		data, err = b.internalSendCoin(ctx, req)
	case protocol.MsgSendNftTransaction:
		data, err = b.sendNft(ctx, req)
	case protocol.MsgCheckUnlockStatus:
		data = b.Account() != nil

	default:
		err = fmt.Errorf("unknown message type %q", req.Type)
	}

	if err != nil {
		log.Warn("broker command failed", "type", req.Type, "origin", req.Origin, "error", err)
		return protocol.BrokerFail(err.Error())
	}
	return protocol.BrokerOK(data)
}

func (b *Broker) Account() *signing.Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account
}

// SetAccount swaps the unlocked account and tells every page.
func (b *Broker) SetAccount(a *signing.Account) {
	b.mu.Lock()
	b.account = a
	b.mu.Unlock()

	if a != nil {
		b.broadcast(protocol.EventAccountChange, a.Info())
	}
}

func (b *Broker) ActiveNetwork() protocol.NetworkInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.networks[b.active].Info
}

// SetNetwork switches the active network and tells every page.
func (b *Broker) SetNetwork(name string) (protocol.NetworkInfo, error) {
	key := networkKey(name)

	b.mu.Lock()
	n, ok := b.networks[key]
	if ok {
		b.active = key
	}
	b.mu.Unlock()

	if !ok {
		return protocol.NetworkInfo{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	b.broadcast(protocol.EventNetworkChange, n.Info)
	return n.Info, nil
}

// Networks lists the configured network names, sorted.
func (b *Broker) Networks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.networks))
	for k := range b.networks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *Broker) broadcast(name protocol.EventName, payload any) {
	if b.events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshal wallet event", "event", name, "error", err)
		return
	}
	n := b.events.Broadcast(protocol.RuntimeEvent{Event: name, Data: raw})
	log.Info("wallet event broadcast", "event", name, "receivers", n)
}

func (b *Broker) activeLedger() (ledger.Client, protocol.NetworkInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.networks[b.active]
	return n.Ledger, n.Info
}

func (b *Broker) unlocked() (*signing.Account, error) {
	a := b.Account()
	if a == nil {
		return nil, ErrLocked
	}
	return a, nil
}

// origin prefers the relay-supplied sender origin over request data.
func (b *Broker) origin(req protocol.BrokerRequest) string {
	if req.Origin != "" {
		return req.Origin
	}
	var d protocol.OriginData
	if len(req.Data) > 0 && json.Unmarshal(req.Data, &d) == nil {
		return d.Origin
	}
	return ""
}

func (b *Broker) connect(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	a, err := b.unlocked()
	if err != nil {
		return nil, err
	}
	origin := b.origin(req)
	if permissions.NormalizeOrigin(origin) == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	if b.perms.IsConnected(origin, a.Address()) {
		return a.Info(), nil
	}

	d, err := b.park(ctx, req, protocol.ConfirmInput{Origin: origin})
	if err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, errors.New(*d.err)
	}

	var approved protocol.ConnectApproval
	if err := json.Unmarshal(d.resp, &approved); err != nil {
		return nil, fmt.Errorf("decode connect approval: %w", err)
	}
	info := approved.AccountInfo
	if info.Address == "" {
		info = a.Info()
	}
	if err := b.perms.Connect(origin, info.Address); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *Broker) isConnected(req protocol.BrokerRequest) (bool, error) {
	var d protocol.OriginData
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &d); err != nil {
			return false, fmt.Errorf("decode isConnected data: %w", err)
		}
	}
	return b.perms.IsConnected(b.origin(req), d.Addr), nil
}

func (b *Broker) getAccount(req protocol.BrokerRequest) (any, error) {
	a, err := b.unlocked()
	if err != nil {
		return nil, err
	}
	if !b.perms.IsConnected(b.origin(req), "") {
		return nil, ErrNotConnected
	}
	return a.Info(), nil
}

func (b *Broker) requireConnected(req protocol.BrokerRequest) error {
	if _, err := b.unlocked(); err != nil {
		return err
	}
	if !b.perms.IsConnected(b.origin(req), "") {
		return ErrNotConnected
	}
	return nil
}

func (b *Broker) requestSignMessage(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	if err := b.requireConnected(req); err != nil {
		return nil, err
	}
	var in protocol.SignMessageInput
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode sign message input: %w", err)
	}
	return b.awaitResult(ctx, req, in)
}

func (b *Broker) requestSignTransaction(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	if err := b.requireConnected(req); err != nil {
		return nil, err
	}
	var tx protocol.SignAndSubmitTransaction
	if err := json.Unmarshal(req.Data, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if strings.TrimSpace(tx.Payload.Function) == "" {
		return nil, errors.New("transaction payload has no function")
	}
	return b.awaitResult(ctx, req, tx)
}

// awaitResult parks the request and passes the approval UI's resp through
// unchanged.
func (b *Broker) awaitResult(ctx context.Context, req protocol.BrokerRequest, data any) (any, error) {
	d, err := b.park(ctx, req, data)
	if err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, errors.New(*d.err)
	}
	if len(d.resp) == 0 {
		return nil, nil
	}
	return d.resp, nil
}

func (b *Broker) getPendingByID(req protocol.BrokerRequest) (any, error) {
	var in protocol.PendingLookup
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode pending lookup: %w", err)
	}
	p, ok := b.GetPending(in.RequestID)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return p, nil
}

func (b *Broker) notify(req protocol.BrokerRequest) error {
	var n protocol.NotifyResult
	if err := json.Unmarshal(req.Data, &n); err != nil {
		return fmt.Errorf("decode notify result: %w", err)
	}
	return b.Notify(n)
}

func networkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
