package provider

import (
	"context"
	"errors"

	"github.com/eternalab/hop-wallet/internal/events"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

// Connect asks the user to connect this page. A connect event fires once for
// every approved call.
func (p *Provider) Connect(ctx context.Context) (protocol.UserResponse[protocol.AccountInfo], error) {
	raw, err := p.request(ctx, protocol.MethodConnect, nil)
	if err != nil {
		return protocol.UserResponse[protocol.AccountInfo]{}, err
	}
	resp, err := decodeResult[protocol.UserResponse[protocol.AccountInfo]](protocol.MethodConnect, raw)
	if err != nil {
		return resp, err
	}
	if resp.IsApproved() {
		events.Emit(p.events, events.Connect, *resp.Args)
	}
	return resp, nil
}

// Disconnect emits a disconnect event once the backend has answered, even
// when it reported an error.
func (p *Provider) Disconnect(ctx context.Context) error {
	_, err := p.request(ctx, protocol.MethodDisconnect, nil)

	var backendErr *BackendError
	if err == nil || errors.As(err, &backendErr) {
		events.Emit(p.events, events.Disconnect, events.Void{})
	}
	return err
}

func (p *Provider) IsConnected(ctx context.Context, address string) (bool, error) {
	var params any
	if address != "" {
		params = address
	}
	raw, err := p.request(ctx, protocol.MethodIsConnected, params)
	if err != nil {
		return false, err
	}
	return decodeResult[bool](protocol.MethodIsConnected, raw)
}

func (p *Provider) GetAccount(ctx context.Context) (protocol.UserResponse[protocol.AccountInfo], error) {
	raw, err := p.request(ctx, protocol.MethodGetAccount, nil)
	if err != nil {
		return protocol.UserResponse[protocol.AccountInfo]{}, err
	}
	return decodeResult[protocol.UserResponse[protocol.AccountInfo]](protocol.MethodGetAccount, raw)
}

func (p *Provider) GetNetwork(ctx context.Context) (protocol.UserResponse[protocol.NetworkInfo], error) {
	raw, err := p.request(ctx, protocol.MethodGetNetwork, nil)
	if err != nil {
		return protocol.UserResponse[protocol.NetworkInfo]{}, err
	}
	return decodeResult[protocol.UserResponse[protocol.NetworkInfo]](protocol.MethodGetNetwork, raw)
}

func (p *Provider) SignAndSubmitTransaction(ctx context.Context, tx protocol.SignAndSubmitTransaction) (protocol.UserResponse[protocol.SubmitResult], error) {
	raw, err := p.request(ctx, protocol.MethodSignAndSubmitTransaction, tx)
	if err != nil {
		return protocol.UserResponse[protocol.SubmitResult]{}, err
	}
	return decodeResult[protocol.UserResponse[protocol.SubmitResult]](protocol.MethodSignAndSubmitTransaction, raw)
}

func (p *Provider) SignMessage(ctx context.Context, in protocol.SignMessageInput) (protocol.SignMessageOutput, error) {
	raw, err := p.request(ctx, protocol.MethodSignMessage, in)
	if err != nil {
		return protocol.SignMessageOutput{}, err
	}
	return decodeResult[protocol.SignMessageOutput](protocol.MethodSignMessage, raw)
}
