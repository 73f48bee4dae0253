package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/eternalab/hop-wallet/internal/signing"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Commands in this file are only sent by the approval UI. They sign with the
// unlocked account and never reach a page directly.

func (b *Broker) signer(address string) (*signing.Account, error) {
	a, err := b.unlocked()
	if err != nil {
		return nil, err
	}
	if address != "" && address != a.Address() {
		return nil, fmt.Errorf("account %s is not unlocked", address)
	}
	return a, nil
}

func (b *Broker) internalSignMessage(req protocol.BrokerRequest) (any, error) {
	var in protocol.InternalSignMessageRequest
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode sign message request: %w", err)
	}
	a, err := b.signer(in.Address)
	if err != nil {
		return nil, err
	}
	_, network := b.activeLedger()
	return a.SignMessage(protocol.SignMessageInput{Message: in.Message, Nonce: in.Nonce}, network.ChainID), nil
}

func (b *Broker) internalSignTransaction(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	var in protocol.InternalSignTransactionRequest
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode sign transaction request: %w", err)
	}
	a, err := b.signer(in.Address)
	if err != nil {
		return nil, err
	}
	var opts protocol.TransactionOptions
	if in.Options != nil {
		opts = *in.Options
	}
	return b.submit(ctx, a, in.Payload, opts, true)
}

func (b *Broker) internalSendEDS(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	var in protocol.InternalSendEDSRequest
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode send request: %w", err)
	}
	a, err := b.signer(in.FromAddress)
	if err != nil {
		return nil, err
	}
	if err := signing.ValidateAddress(in.ToAddress); err != nil {
		return nil, err
	}
	octas, err := ledger.ParseNativeAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, a, ledger.NativeTransfer(in.ToAddress, octas), protocol.TransactionOptions{}, false)
}

func (b *Broker) internalSendCoin(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	var in protocol.InternalSendCoinRequest
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode send coin request: %w", err)
	}
	a, err := b.signer(in.FromAddress)
	if err != nil {
		return nil, err
	}
	if err := signing.ValidateAddress(in.ToAddress); err != nil {
		return nil, err
	}
	if in.CoinID == "" || in.Amount == "" {
		return nil, errors.New("coinId and amount are required")
	}
	return b.submit(ctx, a, ledger.CoinTransfer(in.ToAddress, in.Amount, in.CoinID), protocol.TransactionOptions{}, false)
}

func (b *Broker) sendNft(ctx context.Context, req protocol.BrokerRequest) (any, error) {
	var in protocol.InternalSendNftRequest
	if err := json.Unmarshal(req.Data, &in); err != nil {
		return nil, fmt.Errorf("decode send nft request: %w", err)
	}
	a, err := b.signer(in.FromAddress)
	if err != nil {
		return nil, err
	}
	if err := signing.ValidateAddress(in.ToAddress); err != nil {
		return nil, err
	}
	if in.NftAddress == "" {
		return nil, errors.New("nftAddress is required")
	}
	return b.submit(ctx, a, ledger.NftTransfer(in.NftAddress, in.ToAddress), protocol.TransactionOptions{}, false)
}

// submit builds, optionally simulates, signs and submits a transaction and
// returns its hash.
func (b *Broker) submit(ctx context.Context, a *signing.Account, payload protocol.EntryFunctionPayload, opts protocol.TransactionOptions, simulate bool) (string, error) {
	client, network := b.activeLedger()
	if client == nil {
		return "", fmt.Errorf("no ledger client for %s", network.Name)
	}

	tx, err := client.BuildTransaction(ctx, a.Address(), payload, opts)
	if err != nil {
		return "", err
	}

	if simulate {
		res, err := client.Simulate(ctx, tx, a.PublicKey())
		if err != nil {
			return "", err
		}
		if len(res) == 0 {
			return "", errors.New("simulate resp is null")
		}
		if !res[0].Success {
			return "", errors.New(res[0].VMStatus)
		}
	}

	hash, err := client.SignAndSubmit(ctx, tx, a)
	if err != nil {
		return "", err
	}
	log.Info("transaction submitted", "hash", hash, "function", payload.Function, "network", network.Name)
	return hash, nil
}
