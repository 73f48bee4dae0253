package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalab/hop-wallet/internal/approval"
	"github.com/eternalab/hop-wallet/internal/assets"
	"github.com/eternalab/hop-wallet/internal/balance"
	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/estimator"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/permissions"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/eternalab/hop-wallet/internal/runtime"
	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/eternalab/hop-wallet/internal/signing"
)

const (
	uiOrigin = "http://localhost:5173"
	dapp     = "https://dapp.example"
	token    = "test-session"
	password = "correct horse"
)

type stubLedger struct {
	sim     []ledger.UserTransaction
	history []ledger.UserTransaction
}

func (s *stubLedger) AccountCoins(ctx context.Context, address string, page, pageSize int) (ledger.Page[ledger.CoinBalance], error) {
	return ledger.Page[ledger.CoinBalance]{Page: page, PageSize: pageSize, Total: 1, Data: []ledger.CoinBalance{
		{Balance: "150000000", Metadata: ledger.NativeCoin()},
	}}, nil
}

func (s *stubLedger) AccountTransactions(ctx context.Context, address string, limit int) ([]ledger.UserTransaction, error) {
	return s.history, nil
}

func (s *stubLedger) AccountCollections(ctx context.Context, address string, pageSize int) (ledger.Page[ledger.Collection], error) {
	return ledger.Page[ledger.Collection]{}, errors.New("indexer down")
}

func (s *stubLedger) BuildTransaction(ctx context.Context, sender string, payload protocol.EntryFunctionPayload, opts protocol.TransactionOptions) (*ledger.RawTransaction, error) {
	return &ledger.RawTransaction{Sender: sender}, nil
}

func (s *stubLedger) Simulate(ctx context.Context, tx *ledger.RawTransaction, publicKey []byte) ([]ledger.UserTransaction, error) {
	return s.sim, nil
}

func (s *stubLedger) SignAndSubmit(ctx context.Context, tx *ledger.RawTransaction, signer ledger.Signer) (string, error) {
	return "0xhash", nil
}

func (s *stubLedger) CoinData(ctx context.Context, coinID string) (ledger.CoinMetadata, error) {
	if coinID == "usdt" {
		return ledger.CoinMetadata{ID: "usdt", Symbol: "USDT", Name: "Tether", Decimals: 6}, nil
	}
	return ledger.CoinMetadata{}, errors.New("unknown coin")
}

func faEvent(typ, owner, coin, amount string) ledger.Event {
	data, _ := json.Marshal(map[string]string{"amount": amount, "coin": coin, "owner": owner, "store": "s"})
	return ledger.Event{Type: typ, Data: data}
}

type fixture struct {
	srv     *Server
	broker  *approval.Broker
	hub     *runtime.Hub
	perms   *permissions.Store
	account *signing.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seed := make([]byte, 32)
	seed[31] = 3
	account, err := signing.NewAccount(seed)
	require.NoError(t, err)

	l := &stubLedger{sim: []ledger.UserTransaction{{
		Success: true,
		GasUsed: "12",
		Events: []ledger.Event{
			faEvent(constants.WithdrawEventType, account.Address(), constants.NativeCoinID, "100000000"),
			faEvent(constants.DepositEventType, account.Address(), "usdt", "2500000"),
		},
	}}}
	l.history = []ledger.UserTransaction{
		{
			Hash:      "0x1",
			Sender:    account.Address(),
			Success:   true,
			Timestamp: "1700000000000000",
			Payload:   json.RawMessage(`{"function":"0x1::endless_coin::transfer","arguments":["bob","100000000"]}`),
			Events:    []ledger.Event{faEvent(constants.WithdrawEventType, account.Address(), constants.NativeCoinID, "100000000")},
		},
		{Hash: "0x2", Sender: "alice", Success: false, Events: []ledger.Event{{Type: constants.DepositEventType, Data: json.RawMessage(`not json`)}}},
		{Hash: "0x3", Sender: "alice", Success: true},
	}
	clients := map[string]ledger.Client{"mainnet": l, "testnet": l}

	keystore := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, signing.SaveKeystore(keystore, account, []byte(password), securefile.KDF{Time: 1, Memory: 1024, Threads: 1}))

	hub := runtime.NewHub(nil)
	perms := permissions.NewStore("")
	b, err := approval.New(approval.Options{
		Account:     account,
		Permissions: perms,
		Networks: map[string]approval.Network{
			"mainnet": {Info: protocol.NetworkInfo{Name: "mainnet", ChainID: 220}, Ledger: l},
			"testnet": {Info: protocol.NetworkInfo{Name: "testnet", ChainID: 221}, Ledger: l},
		},
		Active: "mainnet",
		Events: hub,
	})
	require.NoError(t, err)
	hub.SetHandler(b)

	srv, err := NewServer(Options{
		Broker:           b,
		Backend:          hub,
		Estimator:        estimator.New(clients),
		Assets:           assets.NewManager("", map[string]assets.Source{"mainnet": l, "testnet": l}),
		Permissions:      perms,
		Indexers:         map[string]ledger.Indexer{"MainNet": l},
		Unlock: func(pw []byte) (*signing.Account, error) {
			return signing.LoadKeystore(keystore, pw)
		},
		UIAllowedOrigins: []string{uiOrigin},
		SessionToken:     token,
	})
	require.NoError(t, err)

	return &fixture{srv: srv, broker: b, hub: hub, perms: perms, account: account}
}

type reqOpt func(*http.Request)

func withoutToken(r *http.Request) { r.Header.Del(UISessionHeader) }

func fromRemote(addr string) reqOpt {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (f *fixture) do(t *testing.T, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, "http://127.0.0.1:6137"+path, &buf)
	r.RemoteAddr = "127.0.0.1:40000"
	r.Header.Set(UISessionHeader, token)
	r.Header.Set("Origin", uiOrigin)
	for _, opt := range opts {
		opt(r)
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type envelope[T any] struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Data  T      `json:"data"`
}

func TestHealthIsLoopbackOnly(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil, withoutToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/healthz", nil, fromRemote("10.0.0.8:1234"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUIGuards(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		opts []reqOpt
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"missing token", []reqOpt{withoutToken}, http.StatusUnauthorized},
		{"wrong token", []reqOpt{withHeader(UISessionHeader, "nope")}, http.StatusUnauthorized},
		{"foreign origin", []reqOpt{withHeader("Origin", dapp)}, http.StatusForbidden},
		{"remote client", []reqOpt{fromRemote("192.168.1.2:999")}, http.StatusForbidden},
		{"rebinding host", []reqOpt{func(r *http.Request) { r.Host = "evil.example:6137" }}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/status", nil, tt.opts...)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := f.do(t, http.MethodOptions, "/status", nil, withoutToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, uiOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), UISessionHeader)

	w = f.do(t, http.MethodPost, "/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestApproveConnectOverHTTP(t *testing.T) {
	f := newFixture(t)

	done := make(chan protocol.BrokerResponse, 1)
	go func() {
		done <- f.broker.HandleMessage(context.Background(), protocol.BrokerRequest{Type: protocol.MsgWalletConnect, Origin: dapp})
	}()

	var pending []protocol.PendingApproval
	require.Eventually(t, func() bool {
		pending = decode[envelope[[]protocol.PendingApproval]](t, f.do(t, http.MethodGet, "/approval/pending", nil)).Data
		return len(pending) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, protocol.MsgWalletConnect, pending[0].Type)
	assert.Equal(t, dapp, pending[0].Origin)

	byID := decode[protocol.BrokerResponse](t, f.do(t, http.MethodGet, "/approval/pending?requestId="+pending[0].RequestID, nil))
	require.True(t, byID.Success, byID.Error)

	resp, _ := json.Marshal(protocol.ConnectApproval{AccountInfo: f.account.Info(), Origin: dapp})
	w := f.do(t, http.MethodPost, "/approval/notify", protocol.NotifyResult{RequestID: pending[0].RequestID, Resp: resp})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[protocol.BrokerResponse](t, w).Success)

	select {
	case out := <-done:
		assert.True(t, out.Success, out.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("connect never settled")
	}
	assert.True(t, f.perms.IsConnected(dapp, f.account.Address()))

	// settled requests are gone
	again := decode[protocol.BrokerResponse](t, f.do(t, http.MethodPost, "/approval/notify", protocol.NotifyResult{RequestID: pending[0].RequestID}))
	assert.False(t, again.Success)

	perms := decode[envelope[map[string]permissions.Connection]](t, f.do(t, http.MethodGet, "/wallet/permissions", nil))
	assert.Equal(t, f.account.Address(), perms.Data[dapp].Address)

	w = f.do(t, http.MethodPost, "/wallet/permissions/revoke", originRequest{Origin: dapp})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.perms.IsConnected(dapp, ""))
}

func TestNotifyRequiresRequestID(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/approval/notify", protocol.NotifyResult{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandAllowlist(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/approval/command", commandRequest{Type: protocol.MsgWalletConnect})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/approval/command", commandRequest{Type: protocol.MsgCheckUnlockStatus})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[protocol.BrokerResponse](t, w)
	require.True(t, resp.Success)
	assert.JSONEq(t, `true`, string(resp.Data))

	data, _ := json.Marshal(protocol.InternalSignMessageRequest{Address: f.account.Address(), Message: "hi"})
	resp = decode[protocol.BrokerResponse](t, f.do(t, http.MethodPost, "/approval/command", commandRequest{Type: protocol.MsgInternalSignMessage, Data: data}))
	require.True(t, resp.Success, resp.Error)
	var out protocol.SignMessageOutput
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.True(t, signing.VerifyMessage(out))
}

func TestCommandWithDetachedBackend(t *testing.T) {
	f := newFixture(t)
	f.hub.SetHandler(nil)

	w := f.do(t, http.MethodPost, "/approval/command", commandRequest{Type: protocol.MsgCheckUnlockStatus})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, runtime.ErrBackendUnavailable.Error(), decode[protocol.BrokerResponse](t, w).Error)
}

func TestPreviewTransaction(t *testing.T) {
	f := newFixture(t)

	args, err := ledger.Args("to", "100000000")
	require.NoError(t, err)
	tx := protocol.SignAndSubmitTransaction{Payload: protocol.EntryFunctionPayload{
		Function:          constants.NativeTransferFunction,
		FunctionArguments: args,
	}}

	w := f.do(t, http.MethodPost, "/approval/preview", previewRequest{Transaction: &tx})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[envelope[estimator.DetailedPreview]](t, w)
	require.True(t, p.OK)
	assert.True(t, p.Data.Success)
	assert.Equal(t, "0.00000012", p.Data.GasFee.String())

	changes := p.Data.Changes[f.account.Address()]
	require.Len(t, changes, 2)
	assert.Equal(t, "EDS", changes[0].Metadata.Symbol)
	assert.Equal(t, "-1", changes[0].Amount)
	assert.Equal(t, "USDT", changes[1].Metadata.Symbol)
	assert.Equal(t, "2.5", changes[1].Amount)

	// the resolved coin is now cached
	list := decode[envelope[[]ledger.CoinMetadata]](t, f.do(t, http.MethodGet, "/wallet/assets", nil))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "usdt", list.Data[0].ID)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wallet/assets/remove", removeAssetRequest{CoinID: "usdt"}).Code)
	list = decode[envelope[[]ledger.CoinMetadata]](t, f.do(t, http.MethodGet, "/wallet/assets", nil))
	assert.Empty(t, list.Data)
}

func TestPreviewRejectsMissingTarget(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/approval/preview", previewRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/approval/preview", previewRequest{RequestID: "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeePreview(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/approval/fee", feeRequest{Kind: FeeKindNative, ToAddress: "to", Amount: "1"})
	require.Equal(t, http.StatusOK, w.Code)
	fee := decode[envelope[feeResponse]](t, w)
	assert.Equal(t, "0.00000012", fee.Data.Fee)

	// an unparsable amount degrades to the fallback
	fee = decode[envelope[feeResponse]](t, f.do(t, http.MethodPost, "/approval/fee", feeRequest{Kind: FeeKindNative, ToAddress: "to", Amount: "abc"}))
	assert.Equal(t, constants.FallbackNativeFee, fee.Data.Fee)

	w = f.do(t, http.MethodPost, "/approval/fee", feeRequest{Kind: "bridge"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwitchNetwork(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/wallet/network", setNetworkRequest{Network: "TestNet"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 221, f.broker.ActiveNetwork().ChainID)

	w = f.do(t, http.MethodPost, "/wallet/network", setNetworkRequest{Network: "devnet"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/wallet/network", setNetworkRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	nets := decode[envelope[map[string]json.RawMessage]](t, f.do(t, http.MethodGet, "/wallet/networks", nil))
	assert.JSONEq(t, `["mainnet","testnet"]`, string(nets.Data[JSONKeyNetworks]))
}

func TestLockedWalletRefusesPreviews(t *testing.T) {
	f := newFixture(t)
	f.broker.SetAccount(nil)

	w := f.do(t, http.MethodPost, "/approval/fee", feeRequest{Kind: FeeKindNative})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = f.do(t, http.MethodGet, "/wallet/history", nil)
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestLockingDuringRequestsIsSafe(t *testing.T) {
	f := newFixture(t)

	stop := make(chan struct{})
	toggled := make(chan struct{})
	go func() {
		defer close(toggled)
		for {
			select {
			case <-stop:
				f.broker.SetAccount(f.account)
				return
			default:
				f.broker.SetAccount(nil)
				f.broker.SetAccount(f.account)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		w := f.do(t, http.MethodPost, "/approval/fee", feeRequest{Kind: FeeKindNative, ToAddress: "to", Amount: "1"})
		require.Contains(t, []int{http.StatusOK, http.StatusLocked}, w.Code)
		w = f.do(t, http.MethodGet, "/wallet/coins", nil)
		require.Contains(t, []int{http.StatusOK, http.StatusLocked}, w.Code)
	}
	close(stop)
	<-toggled
}

func TestAccountViews(t *testing.T) {
	f := newFixture(t)

	coins := decode[envelope[ledger.Page[ledger.CoinBalance]]](t, f.do(t, http.MethodGet, "/wallet/coins?page=2", nil))
	require.True(t, coins.OK)
	assert.Equal(t, 2, coins.Data.Page)
	assert.Equal(t, "EDS", coins.Data.Data[0].Metadata.Symbol)

	w := f.do(t, http.MethodGet, "/wallet/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[envelope[[]balance.Summary]](t, w).Data
	require.Len(t, rows, 2)
	assert.Equal(t, balance.DirectionSend, rows[0].Type)
	assert.Equal(t, "bob", rows[0].Receiver)
	assert.Equal(t, "-1", rows[0].Amount.String())
	assert.EqualValues(t, 1700000000000, rows[0].Timestamp)
	assert.Equal(t, balance.DirectionReceive, rows[1].Type)
	assert.Equal(t, "0x3", rows[1].Hash)

	w = f.do(t, http.MethodGet, "/wallet/collections", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = f.do(t, http.MethodGet, "/wallet/history?network=testnet", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLockAndUnlock(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wallet/lock", nil).Code)
	assert.Nil(t, f.broker.Account())

	w := f.do(t, http.MethodPost, "/wallet/unlock", unlockRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, f.broker.Account())

	events := make(chan protocol.RuntimeEvent, 1)
	sub := f.hub.SubscribeEvents(events)
	defer sub.Unsubscribe()

	w = f.do(t, http.MethodPost, "/wallet/unlock", unlockRequest{Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[envelope[protocol.AccountInfo]](t, w).Data
	assert.Equal(t, f.account.Address(), info.Address)
	require.NotNil(t, f.broker.Account())
	assert.Equal(t, f.account.Address(), f.broker.Account().Address())

	select {
	case ev := <-events:
		assert.Equal(t, protocol.EventAccountChange, ev.Event)
	case <-time.After(time.Second):
		t.Fatal("no account change event")
	}
}
