package http

import (
	"encoding/json"

	"github.com/eternalab/hop-wallet/internal/protocol"
)

type corsPolicy struct {
	allowedOrigins map[string]struct{}
	allowMethods   string

	allowHeaders string
	maxAge       int
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// previewRequest asks for a detailed estimate of a parked transaction, or
// of Transaction when RequestID is empty.
type previewRequest struct {
	RequestID   string                             `json:"requestId,omitempty"`
	Transaction *protocol.SignAndSubmitTransaction `json:"transaction,omitempty"`
	Network     string                             `json:"network,omitempty"`
}

type feeRequest struct {
	Kind       string `json:"kind"`
	ToAddress  string `json:"toAddress"`
	Amount     string `json:"amount,omitempty"`
	CoinID     string `json:"coinId,omitempty"`
	NftAddress string `json:"nftAddress,omitempty"`
	Network    string `json:"network,omitempty"`
}

type feeResponse struct {
	Kind string `json:"kind"`
	Fee  string `json:"fee"`
}

// commandRequest is an approval UI command forwarded to the broker.
type commandRequest struct {
	Type protocol.MessageType `json:"type"`
	Data json.RawMessage      `json:"data,omitempty"`
}

type setNetworkRequest struct {
	Network string `json:"network"`
}

type originRequest struct {
	Origin string `json:"origin"`
}

type removeAssetRequest struct {
	Network string `json:"network"`
	CoinID  string `json:"coinId"`
}

type unlockRequest struct {
	Password string `json:"password"`
}
