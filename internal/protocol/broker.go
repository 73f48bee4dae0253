package protocol

import (
	"encoding/json"
	"time"
)

// MessageType is the command enum of the privileged backend.
type MessageType string

const (
	MsgWalletConnect                  MessageType = "walletConnect"
	MsgWalletDisconnect               MessageType = "walletDisconnect"
	MsgWalletIsConnected              MessageType = "walletIsConnected"
	MsgWalletGetAccount               MessageType = "walletGetAccount"
	MsgWalletGetNetwork               MessageType = "walletGetNetwork"
	MsgWalletSignAndSubmitTransaction MessageType = "walletSignAndSubmitTransaction"
	MsgWalletSignMessage              MessageType = "walletSignMessage"

	MsgGetPendingSignRequestByID MessageType = "getPendingSignRequestById"
	MsgNotifyConfirmOrSignResult MessageType = "notifyConfirmOrSignResult"

	MsgInternalSignMessage     MessageType = "internalSignMessage"
	MsgInternalSignTransaction MessageType = "internalSignTransaction"
	MsgInternalSendEDS         MessageType = "internalSendEDS"
	MsgInternalSendCoin        MessageType = "internalSendCoin"
	MsgSendNftTransaction      MessageType = "sendNftTransaction"
	MsgCheckUnlockStatus       MessageType = "checkUnlockStatus"
)

// BrokerRequest is a command sent to the backend. Origin is filled in by the
// relay from the page it serves, never from page-supplied data.
type BrokerRequest struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	TabID     int             `json:"tabId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Origin    string          `json:"origin,omitempty"`
}

type BrokerResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

func BrokerOK(data any) BrokerResponse {
	if data == nil {
		return BrokerResponse{Success: true}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return BrokerFail("marshal response: " + err.Error())
	}
	return BrokerResponse{Success: true, Data: b}
}

func BrokerFail(msg string) BrokerResponse {
	return BrokerResponse{Success: false, Error: msg}
}

// RuntimeEvent is pushed by the backend to every relay.
type RuntimeEvent struct {
	Type  string          `json:"type"`
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OriginData is the data of connect, disconnect, isConnected and getAccount.
type OriginData struct {
	Origin string `json:"origin"`
	Addr   string `json:"addr,omitempty"`
}

// ConfirmInput is the pending payload of a connect approval.
type ConfirmInput struct {
	Origin string `json:"Origin"`
}

// PendingApproval is a request parked until the approval UI settles it.
type PendingApproval struct {
	RequestID string          `json:"requestId"`
	Type      MessageType     `json:"type"`
	Origin    string          `json:"origin,omitempty"`
	TabID     int             `json:"tabId,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"timestamp"`
}

type PendingLookup struct {
	RequestID string `json:"requestId"`
}

type NotifyResult struct {
	RequestID string          `json:"requestId"`
	Resp      json.RawMessage `json:"resp,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// ConnectApproval is the resp the approval UI sends for a connect request.
type ConnectApproval struct {
	AccountInfo AccountInfo `json:"accountInfo"`
	Origin      string      `json:"origin"`
}

type InternalSendEDSRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      string `json:"amount"`
}

type InternalSendCoinRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      string `json:"amount"`
	CoinID      string `json:"coinId"`
}

type InternalSendNftRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	NftAddress  string `json:"nftAddress"`
}

type InternalSignMessageRequest struct {
	Address string `json:"address"`
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"`
}

type InternalSignTransactionRequest struct {
	Address string               `json:"address"`
	Payload EntryFunctionPayload `json:"payload"`
	Options *TransactionOptions  `json:"options,omitempty"`
}
