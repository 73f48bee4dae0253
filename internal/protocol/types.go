// Package protocol holds the wire types shared by the page, the relay and
// the privileged backend.
package protocol

import (
	"encoding/json"
	"fmt"
)

type Method string

const (
	MethodConnect                  Method = "connect"
	MethodDisconnect               Method = "disconnect"
	MethodIsConnected              Method = "isConnected"
	MethodGetAccount               Method = "getAccount"
	MethodGetNetwork               Method = "getNetwork"
	MethodSignAndSubmitTransaction Method = "signAndSubmitTransaction"
	MethodSignMessage              Method = "signMessage"
)

type EventName string

const (
	EventConnect         EventName = "connect"
	EventDisconnect      EventName = "disconnect"
	EventAccountChange   EventName = "accountChange"
	EventNetworkChange   EventName = "networkChange"
	EventColorModeChange EventName = "colorModeChange"
	EventGetAccount      EventName = "getAccount"
	EventInit            EventName = "init"
	EventWalletInitLoad  EventName = "walletInitLoad"
	EventOpen            EventName = "open"
	EventClose           EventName = "close"
)

// CapabilityRequest is posted by the provider on the page transport.
type CapabilityRequest struct {
	ID     string          `json:"id"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CapabilityResponse answers exactly one CapabilityRequest. Error is set
// instead of Result when the call failed.
type CapabilityResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type WalletEvent struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is what travels on the page-local broadcast channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(typ string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: b}, nil
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type AccountInfo struct {
	Account string `json:"account"`
	Address string `json:"address"`
	AuthKey string `json:"authKey"`
	AnsName string `json:"ansName,omitempty"`
}

type NetworkInfo struct {
	Name    string `json:"name"`
	ChainID int    `json:"chainId"`
	URL     string `json:"url"`
}

type ColorMode struct {
	ColorMode string `json:"colorMode"`
}

// EntryFunctionPayload is the transaction payload a page asks to sign.
type EntryFunctionPayload struct {
	Function          string            `json:"function"`
	TypeArguments     []string          `json:"typeArguments,omitempty"`
	FunctionArguments []json.RawMessage `json:"functionArguments,omitempty"`
}

type TransactionOptions struct {
	MaxGasAmount          uint64 `json:"maxGasAmount,omitempty"`
	GasUnitPrice          uint64 `json:"gasUnitPrice,omitempty"`
	ExpireTimestamp       uint64 `json:"expireTimestamp,omitempty"`
	AccountSequenceNumber uint64 `json:"accountSequenceNumber,omitempty"`
}

type SignAndSubmitTransaction struct {
	GasUnitPrice uint64               `json:"gasUnitPrice,omitempty"`
	MaxGasAmount uint64               `json:"maxGasAmount,omitempty"`
	Payload      EntryFunctionPayload `json:"payload"`
	Options      *TransactionOptions  `json:"options,omitempty"`
}

// EffectiveOptions merges the top-level gas overrides into the options.
func (s SignAndSubmitTransaction) EffectiveOptions() TransactionOptions {
	var o TransactionOptions
	if s.Options != nil {
		o = *s.Options
	}
	if s.GasUnitPrice > 0 {
		o.GasUnitPrice = s.GasUnitPrice
	}
	if s.MaxGasAmount > 0 {
		o.MaxGasAmount = s.MaxGasAmount
	}
	return o
}

type SubmitResult struct {
	Hash string `json:"hash"`
}

type SignMessageInput struct {
	Address     string `json:"address,omitempty"`
	Application string `json:"application,omitempty"`
	ChainID     int    `json:"chainId,omitempty"`
	Message     string `json:"message"`
	Nonce       string `json:"nonce,omitempty"`
}

type SignMessageOutput struct {
	Address     string `json:"address,omitempty"`
	Application string `json:"application,omitempty"`
	ChainID     int    `json:"chainId,omitempty"`
	FullMessage string `json:"fullMessage"`
	PublicKey   string `json:"publicKey"`
	Message     string `json:"message"`
	Nonce       string `json:"nonce"`
	Prefix      string `json:"prefix"`
	Signature   string `json:"signature"`
}
