package ledger

import (
	"context"
	"encoding/json"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

// Event is one event emitted by a (simulated) transaction.
type Event struct {
	GUID           json.RawMessage `json:"guid,omitempty"`
	SequenceNumber string          `json:"sequence_number,omitempty"`
	Type           string          `json:"type"`
	Data           json.RawMessage `json:"data"`
}

// UserTransaction is a committed or simulated user transaction as the node
// reports it.
type UserTransaction struct {
	Hash         string          `json:"hash"`
	Sender       string          `json:"sender"`
	Success      bool            `json:"success"`
	VMStatus     string          `json:"vm_status"`
	GasUsed      string          `json:"gas_used"`
	GasUnitPrice string          `json:"gas_unit_price,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Events       []Event         `json:"events"`
}

// RawTransaction is an unsigned transaction ready to be simulated or signed.
type RawTransaction struct {
	Sender                  string               `json:"sender"`
	SequenceNumber          string               `json:"sequence_number"`
	MaxGasAmount            string               `json:"max_gas_amount"`
	GasUnitPrice            string               `json:"gas_unit_price"`
	ExpirationTimestampSecs string               `json:"expiration_timestamp_secs"`
	Payload                 EntryFunctionPayload `json:"payload"`
	ChainID                 int                  `json:"-"`
}

// EntryFunctionPayload is the node's JSON payload encoding.
type EntryFunctionPayload struct {
	Type          string            `json:"type"`
	Function      string            `json:"function"`
	TypeArguments []string          `json:"type_arguments"`
	Arguments     []json.RawMessage `json:"arguments"`
}

type CoinMetadata struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Decimals   int    `json:"decimals"`
	Supply     string `json:"supply,omitempty"`
	ProjectURI string `json:"project_uri,omitempty"`
	IconURI    string `json:"icon_uri,omitempty"`
}

type CoinBalance struct {
	Balance  string       `json:"balance"`
	Frozen   bool         `json:"frozen"`
	Metadata CoinMetadata `json:"metadata"`
}

type Collection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

type Page[T any] struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Data     []T `json:"data"`
}

// Signer signs transaction signing messages for one account.
type Signer interface {
	Address() string
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// Client is what the estimator and the approval broker need from a node.
type Client interface {
	BuildTransaction(ctx context.Context, sender string, payload protocol.EntryFunctionPayload, opts protocol.TransactionOptions) (*RawTransaction, error)
	Simulate(ctx context.Context, tx *RawTransaction, publicKey []byte) ([]UserTransaction, error)
	SignAndSubmit(ctx context.Context, tx *RawTransaction, signer Signer) (string, error)
	CoinData(ctx context.Context, coinID string) (CoinMetadata, error)
}

// Indexer is the read-only account view behind the wallet's account pages.
type Indexer interface {
	AccountCoins(ctx context.Context, address string, page, pageSize int) (Page[CoinBalance], error)
	AccountTransactions(ctx context.Context, address string, limit int) ([]UserTransaction, error)
	AccountCollections(ctx context.Context, address string, pageSize int) (Page[Collection], error)
}

// NativeCoin is the metadata of EDS. Lookups for it never hit the network.
func NativeCoin() CoinMetadata {
	return CoinMetadata{
		ID:         constants.NativeCoinID,
		Symbol:     constants.NativeSymbol,
		Name:       constants.NativeName,
		Decimals:   constants.NativeDecimals,
		Supply:     constants.NativeSupply,
		ProjectURI: constants.NativeProjectURI,
		IconURI:    constants.NativeIconURI,
	}
}
