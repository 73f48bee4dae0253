package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	signFailedText         = "Sign Failed"
	disconnectFailedText   = "Disconnection failed"
	signMessageFailedText  = "Message signing failed"
	unsupportedMethodTempl = "Unsupported method: %s"
)

// handle forwards one provider call and shapes the backend answer the way
// the provider expects it for that method.
func (r *Relay) handle(ctx context.Context, req protocol.CapabilityRequest) protocol.CapabilityResponse {
	out := protocol.CapabilityResponse{ID: req.ID}

	var (
		result any
		err    error
	)
	switch req.Method {
	case protocol.MethodConnect:
		result, err = r.accountCall(ctx, protocol.MsgWalletConnect)
	case protocol.MethodGetAccount:
		result, err = r.accountCall(ctx, protocol.MsgWalletGetAccount)
	case protocol.MethodGetNetwork:
		result, err = r.getNetwork(ctx)
	case protocol.MethodDisconnect:
		result, err = r.disconnect(ctx)
	case protocol.MethodIsConnected:
		result, err = r.isConnected(ctx, req.Params)
	case protocol.MethodSignAndSubmitTransaction:
		result, err = r.signAndSubmit(ctx, req.Params)
	case protocol.MethodSignMessage:
		result, err = r.signMessage(ctx, req.Params)
	default:
		out.Error = fmt.Sprintf(unsupportedMethodTempl, req.Method)
		return out
	}

	if err != nil {
		log.Warn("wallet request failed", "id", req.ID, "method", req.Method, "origin", r.win.Origin(), "error", err)
		out.Error = err.Error()
		return out
	}

	raw, err := json.Marshal(result)
	if err != nil {
		out.Error = fmt.Sprintf("encode %s result: %v", req.Method, err)
		return out
	}
	out.Result = raw
	return out
}

func (r *Relay) originData() protocol.OriginData {
	return protocol.OriginData{Origin: r.win.Origin()}
}

// accountCall serves connect and getAccount. A backend refusal becomes a
// rejected user response, not an error.
func (r *Relay) accountCall(ctx context.Context, typ protocol.MessageType) (protocol.UserResponse[protocol.AccountInfo], error) {
	resp, err := r.send(ctx, typ, r.originData())
	if err != nil {
		return protocol.UserResponse[protocol.AccountInfo]{}, err
	}
	if !resp.Success {
		return protocol.Rejected[protocol.AccountInfo](resp.Error), nil
	}
	var info protocol.AccountInfo
	if err := decodeData(resp, &info); err != nil {
		return protocol.UserResponse[protocol.AccountInfo]{}, err
	}
	return protocol.Approved(info), nil
}

func (r *Relay) getNetwork(ctx context.Context) (protocol.UserResponse[protocol.NetworkInfo], error) {
	resp, err := r.send(ctx, protocol.MsgWalletGetNetwork, nil)
	if err != nil {
		return protocol.UserResponse[protocol.NetworkInfo]{}, err
	}
	if !resp.Success {
		return protocol.Rejected[protocol.NetworkInfo](resp.Error), nil
	}
	var n protocol.NetworkInfo
	if err := decodeData(resp, &n); err != nil {
		return protocol.UserResponse[protocol.NetworkInfo]{}, err
	}
	return protocol.Approved(n), nil
}

func (r *Relay) disconnect(ctx context.Context) (any, error) {
	resp, err := r.send(ctx, protocol.MsgWalletDisconnect, r.originData())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", orDefault(resp.Error, disconnectFailedText))
	}
	return nil, nil
}

// isConnected never fails on a backend refusal; it answers false.
func (r *Relay) isConnected(ctx context.Context, params json.RawMessage) (bool, error) {
	data := r.originData()
	if len(params) > 0 {
		var addr string
		if err := json.Unmarshal(params, &addr); err != nil {
			return false, fmt.Errorf("isConnected: address must be a string: %w", err)
		}
		data.Addr = addr
	}
	resp, err := r.send(ctx, protocol.MsgWalletIsConnected, data)
	if err != nil {
		return false, err
	}
	if !resp.Success {
		return false, nil
	}
	var ok bool
	if err := decodeData(resp, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Relay) signAndSubmit(ctx context.Context, params json.RawMessage) (protocol.UserResponse[protocol.SubmitResult], error) {
	resp, err := r.send(ctx, protocol.MsgWalletSignAndSubmitTransaction, params)
	if err != nil {
		return protocol.UserResponse[protocol.SubmitResult]{}, err
	}
	if !resp.Success {
		return protocol.Rejected[protocol.SubmitResult](orDefault(resp.Error, signFailedText)), nil
	}
	var hash string
	if err := decodeData(resp, &hash); err != nil {
		return protocol.UserResponse[protocol.SubmitResult]{}, err
	}
	return protocol.Approved(protocol.SubmitResult{Hash: hash}), nil
}

func (r *Relay) signMessage(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	resp, err := r.send(ctx, protocol.MsgWalletSignMessage, params)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", orDefault(resp.Error, signMessageFailedText))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s", signMessageFailedText)
	}
	return resp.Data, nil
}

func decodeData(resp protocol.BrokerResponse, out any) error {
	if len(resp.Data) == 0 {
		return fmt.Errorf("backend returned no data")
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode backend data: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
