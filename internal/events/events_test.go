package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalab/hop-wallet/internal/protocol"
)

func TestDuplicateRegistrationFiresTwice(t *testing.T) {
	r := NewRegistry()
	calls := 0
	l := NewListener(func(protocol.AccountInfo) { calls++ })

	On(r, Connect, l)
	On(r, Connect, l)
	Emit(r, Connect, protocol.AccountInfo{Address: "a"})
	assert.Equal(t, 2, calls)

	require.True(t, Off(r, Connect, l))
	assert.Equal(t, 1, Count(r, Connect))

	Emit(r, Connect, protocol.AccountInfo{Address: "a"})
	assert.Equal(t, 3, calls)

	require.True(t, Off(r, Connect, l))
	assert.False(t, Off(r, Connect, l))
	assert.Equal(t, 0, Count(r, Connect))
}

func TestOffRemovesOnlyMatchingReference(t *testing.T) {
	r := NewRegistry()
	var order []string
	a := NewListener(func(protocol.NetworkInfo) { order = append(order, "a") })
	b := NewListener(func(protocol.NetworkInfo) { order = append(order, "b") })
	c := NewListener(func(protocol.NetworkInfo) { order = append(order, "c") })

	On(r, NetworkChange, a)
	On(r, NetworkChange, b)
	On(r, NetworkChange, c)
	Off(r, NetworkChange, b)

	Emit(r, NetworkChange, protocol.NetworkInfo{})
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	r := NewRegistry()
	var got []string

	On(r, AccountChange, NewListener(func(protocol.AccountInfo) { got = append(got, "first") }))
	On(r, AccountChange, NewListener(func(protocol.AccountInfo) { panic("listener bug") }))
	On(r, AccountChange, NewListener(func(a protocol.AccountInfo) { got = append(got, a.Address) }))

	assert.NotPanics(t, func() {
		r.Dispatch(protocol.WalletEvent{
			Event: protocol.EventAccountChange,
			Data:  json.RawMessage(`{"account":"x","address":"addr2","authKey":"k"}`),
		})
	})
	assert.Equal(t, []string{"first", "addr2"}, got)
}

func TestDispatchDecodesPerTopic(t *testing.T) {
	r := NewRegistry()

	var accounts []protocol.AccountInfo
	On(r, GetAccount, NewListener(func(v []protocol.AccountInfo) { accounts = v }))

	disconnected := 0
	On(r, Disconnect, NewListener(func(Void) { disconnected++ }))

	r.Dispatch(protocol.WalletEvent{
		Event: protocol.EventGetAccount,
		Data:  json.RawMessage(`[{"address":"a1"},{"address":"a2"}]`),
	})
	r.Dispatch(protocol.WalletEvent{Event: protocol.EventDisconnect})
	r.Dispatch(protocol.WalletEvent{Event: protocol.EventDisconnect, Data: json.RawMessage("null")})

	require.Len(t, accounts, 2)
	assert.Equal(t, "a2", accounts[1].Address)
	assert.Equal(t, 2, disconnected)
}

func TestDispatchIgnoresUnknownAndMalformed(t *testing.T) {
	r := NewRegistry()
	called := false
	On(r, ColorModeChange, NewListener(func(protocol.ColorMode) { called = true }))

	r.Dispatch(protocol.WalletEvent{Event: "somethingElse", Data: json.RawMessage(`{}`)})
	r.Dispatch(protocol.WalletEvent{Event: protocol.EventColorModeChange, Data: json.RawMessage(`[1,2]`)})
	assert.False(t, called)

	r.Dispatch(protocol.WalletEvent{Event: protocol.EventColorModeChange, Data: json.RawMessage(`{"colorMode":"dark"}`)})
	assert.True(t, called)
}

func TestListenerMayUnsubscribeDuringDelivery(t *testing.T) {
	r := NewRegistry()
	calls := 0
	var self *Listener[Void]
	self = NewListener(func(Void) {
		calls++
		Off(r, Open, self)
	})
	On(r, Open, self)

	Emit(r, Open, Void{})
	Emit(r, Open, Void{})
	assert.Equal(t, 1, calls)
}
