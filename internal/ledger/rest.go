// Package ledger talks to an Endless full node over its REST API and to the
// network's indexer.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/quantumauth-io/quantum-go-utils/retry"

	"github.com/eternalab/hop-wallet/internal/protocol"
)

const (
	DefaultMaxGasAmount  = 200000
	DefaultExpirationSec = 20

	entryFunctionPayloadType = "entry_function_payload"
	ed25519SignatureType     = "ed25519_signature"
)

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status    int
	Message   string
	ErrorCode string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("node returned %d (%s): %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("node returned %d: %s", e.Status, e.Message)
}

type RESTClient struct {
	nodeURL    string
	indexerURL string
	http       *http.Client
	now        func() time.Time

	retryInitial time.Duration
	retryMax     time.Duration
}

type RESTOption func(*RESTClient)

func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) { r.http = c }
}

// WithRetryDelays tunes the backoff used for idempotent reads.
func WithRetryDelays(initial, max time.Duration) RESTOption {
	return func(r *RESTClient) {
		r.retryInitial = initial
		r.retryMax = max
	}
}

func NewRESTClient(nodeURL, indexerURL string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		nodeURL:    strings.TrimRight(nodeURL, "/"),
		indexerURL: strings.TrimRight(indexerURL, "/"),
		http:       &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type accountResource struct {
	SequenceNumber string `json:"sequence_number"`
}

type gasEstimate struct {
	GasEstimate uint64 `json:"gas_estimate"`
}

type ledgerInfo struct {
	ChainID int `json:"chain_id"`
}

func (c *RESTClient) BuildTransaction(ctx context.Context, sender string, payload protocol.EntryFunctionPayload, opts protocol.TransactionOptions) (*RawTransaction, error) {
	if strings.Count(payload.Function, "::") != 2 {
		return nil, errors.Newf("invalid entry function %q", payload.Function)
	}

	seq := strconv.FormatUint(opts.AccountSequenceNumber, 10)
	if opts.AccountSequenceNumber == 0 {
		var acct accountResource
		if err := c.getJSON(ctx, c.nodeURL+"/accounts/"+url.PathEscape(sender), &acct); err != nil {
			return nil, errors.Wrapf(err, "fetch account %s", sender)
		}
		seq = acct.SequenceNumber
	}

	gasPrice := opts.GasUnitPrice
	if gasPrice == 0 {
		var est gasEstimate
		if err := c.getJSON(ctx, c.nodeURL+"/estimate_gas_price", &est); err != nil {
			return nil, errors.Wrap(err, "estimate gas price")
		}
		gasPrice = est.GasEstimate
	}

	maxGas := opts.MaxGasAmount
	if maxGas == 0 {
		maxGas = DefaultMaxGasAmount
	}

	expire := opts.ExpireTimestamp
	if expire == 0 {
		expire = uint64(c.now().Unix()) + DefaultExpirationSec
	}

	var info ledgerInfo
	if err := c.getJSON(ctx, c.nodeURL+"/", &info); err != nil {
		return nil, errors.Wrap(err, "fetch ledger info")
	}

	typeArgs := payload.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	args := payload.FunctionArguments
	if args == nil {
		args = []json.RawMessage{}
	}

	return &RawTransaction{
		Sender:                  sender,
		SequenceNumber:          seq,
		MaxGasAmount:            strconv.FormatUint(maxGas, 10),
		GasUnitPrice:            strconv.FormatUint(gasPrice, 10),
		ExpirationTimestampSecs: strconv.FormatUint(expire, 10),
		Payload: EntryFunctionPayload{
			Type:          entryFunctionPayloadType,
			Function:      payload.Function,
			TypeArguments: typeArgs,
			Arguments:     args,
		},
		ChainID: info.ChainID,
	}, nil
}

type signature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type signedTransaction struct {
	*RawTransaction
	Signature signature `json:"signature"`
}

// Simulate runs tx without a valid signature; only the public key is
// needed.
func (c *RESTClient) Simulate(ctx context.Context, tx *RawTransaction, publicKey []byte) ([]UserTransaction, error) {
	body := signedTransaction{
		RawTransaction: tx,
		Signature: signature{
			Type:      ed25519SignatureType,
			PublicKey: hexutil.Encode(publicKey),
			Signature: hexutil.Encode(make([]byte, 64)),
		},
	}
	var out []UserTransaction
	if err := c.postJSON(ctx, c.nodeURL+"/transactions/simulate", body, &out); err != nil {
		return nil, errors.Wrap(err, "simulate transaction")
	}
	return out, nil
}

func (c *RESTClient) SignAndSubmit(ctx context.Context, tx *RawTransaction, signer Signer) (string, error) {
	var signingMessage string
	if err := c.postJSON(ctx, c.nodeURL+"/transactions/encode_submission", tx, &signingMessage); err != nil {
		return "", errors.Wrap(err, "encode submission")
	}
	msg, err := hexutil.Decode(signingMessage)
	if err != nil {
		return "", errors.Wrap(err, "decode signing message")
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}

	body := signedTransaction{
		RawTransaction: tx,
		Signature: signature{
			Type:      ed25519SignatureType,
			PublicKey: hexutil.Encode(signer.PublicKey()),
			Signature: hexutil.Encode(sig),
		},
	}
	var pending struct {
		Hash string `json:"hash"`
	}
	if err := c.postJSON(ctx, c.nodeURL+"/transactions", body, &pending); err != nil {
		return "", errors.Wrap(err, "submit transaction")
	}
	return pending.Hash, nil
}

func (c *RESTClient) CoinData(ctx context.Context, coinID string) (CoinMetadata, error) {
	var out CoinMetadata
	if err := c.getJSON(ctx, c.indexerURL+"/coins/"+url.PathEscape(coinID), &out); err != nil {
		return CoinMetadata{}, errors.Wrapf(err, "fetch coin %s", coinID)
	}
	if out.ID == "" {
		out.ID = coinID
	}
	return out, nil
}

func (c *RESTClient) AccountCoins(ctx context.Context, address string, page, pageSize int) (Page[CoinBalance], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var out Page[CoinBalance]
	if err := c.getJSON(ctx, c.indexerURL+"/accounts/"+url.PathEscape(address)+"/coins?"+q.Encode(), &out); err != nil {
		return Page[CoinBalance]{}, errors.Wrapf(err, "fetch coins of %s", address)
	}
	return out, nil
}

func (c *RESTClient) AccountTransactions(ctx context.Context, address string, limit int) ([]UserTransaction, error) {
	var out []UserTransaction
	u := fmt.Sprintf("%s/accounts/%s/transactions?limit=%d", c.nodeURL, url.PathEscape(address), limit)
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, errors.Wrapf(err, "fetch transactions of %s", address)
	}
	return out, nil
}

type collectionRow struct {
	Collection struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		URI         string `json:"uri"`
		Description string `json:"description"`
	} `json:"collection"`
	Count int `json:"count"`
}

func (c *RESTClient) AccountCollections(ctx context.Context, address string, pageSize int) (Page[Collection], error) {
	u := fmt.Sprintf("%s/accounts/%s/nfts/collections?page=0&pageSize=%d&collection=", c.indexerURL, url.PathEscape(address), pageSize)

	var raw Page[collectionRow]
	if err := c.getJSON(ctx, u, &raw); err != nil {
		return Page[Collection]{}, errors.Wrapf(err, "fetch collections of %s", address)
	}

	out := Page[Collection]{Total: raw.Total, Page: raw.Page, PageSize: raw.PageSize, Data: make([]Collection, 0, len(raw.Data))}
	for _, row := range raw.Data {
		out.Data = append(out.Data, Collection{
			ID:          row.Collection.ID,
			Name:        row.Collection.Name,
			URI:         row.Collection.URI,
			Description: row.Collection.Description,
			Count:       row.Count,
		})
	}
	return out, nil
}

// getJSON retries transport failures and 5xx answers; 4xx answers fail
// immediately.
func (c *RESTClient) getJSON(ctx context.Context, u string, out any) error {
	cfg := retry.DefaultConfig()
	if c.retryInitial > 0 {
		cfg.InitialDelayBeforeRetrying = c.retryInitial
	}
	if c.retryMax > 0 {
		cfg.MaxDelayBeforeRetrying = c.retryMax
	}

	var permanent error
	_, err := retry.Retry(ctx, cfg,
		func(ctx context.Context) ([]interface{}, error) {
			err := c.do(ctx, http.MethodGet, u, nil, out)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
				permanent = err
				return nil, nil
			}
			return nil, err
		},
		nil,
		"GET "+u)
	if permanent != nil {
		return permanent
	}
	return err
}

func (c *RESTClient) postJSON(ctx context.Context, u string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}
	return c.do(ctx, http.MethodPost, u, b, out)
}

func (c *RESTClient) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body struct {
			Message   string `json:"message"`
			ErrorCode string `json:"error_code"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Message = body.Message
			apiErr.ErrorCode = body.ErrorCode
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
