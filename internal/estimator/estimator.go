// Package estimator previews transactions before the user approves them:
// it simulates them against the node and reports the balance changes and
// the gas fee.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eternalab/hop-wallet/internal/balance"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

var (
	ErrEmptySimulation = errors.New("simulation returned no result")
	ErrUnknownNetwork  = errors.New("unknown network")
)

// Preview is the outcome of simulating one transaction. When Success is
// false only VMStatus is meaningful.
type Preview struct {
	Success       bool              `json:"success"`
	VMStatus      string            `json:"vmStatus,omitempty"`
	BalanceChange balance.ChangeMap `json:"balanceChange,omitempty"`
	GasUsed       string            `json:"gasUsed,omitempty"`
	GasFee        decimal.Decimal   `json:"gasFee"`
}

// DetailedPreview adds coin metadata to the balance changes and the row the
// transaction will produce in the sender's activity list.
type DetailedPreview struct {
	Preview
	Changes  map[string][]balance.AssetDelta `json:"changes,omitempty"`
	Activity *balance.Summary                `json:"activity,omitempty"`
}

type Estimator struct {
	clients map[string]ledger.Client
}

// New takes one ledger client per network name.
func New(clients map[string]ledger.Client) *Estimator {
	norm := make(map[string]ledger.Client, len(clients))
	for k, c := range clients {
		norm[networkKey(k)] = c
	}
	return &Estimator{clients: norm}
}

func (e *Estimator) client(network string) (ledger.Client, error) {
	c, ok := e.clients[networkKey(network)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return c, nil
}

// Estimate builds req for sender, simulates it with the sender's public key
// and derives balance changes from the simulated events. A failed
// simulation is reported in the preview, not as an error.
func (e *Estimator) Estimate(ctx context.Context, sender string, publicKey []byte, req protocol.SignAndSubmitTransaction, network string) (Preview, error) {
	p, _, err := e.estimate(ctx, sender, publicKey, req, network)
	return p, err
}

func (e *Estimator) estimate(ctx context.Context, sender string, publicKey []byte, req protocol.SignAndSubmitTransaction, network string) (Preview, ledger.UserTransaction, error) {
	sim, err := e.simulate(ctx, sender, publicKey, req.Payload, req.EffectiveOptions(), network)
	if err != nil {
		return Preview{}, sim, err
	}
	if !sim.Success {
		return Preview{Success: false, VMStatus: sim.VMStatus}, sim, nil
	}

	deltas, err := balance.ComputeDeltas(sim.Events)
	if err != nil {
		return Preview{}, sim, fmt.Errorf("balance changes: %w", err)
	}
	fee, err := gasFee(sim.GasUsed)
	if err != nil {
		return Preview{}, sim, err
	}

	return Preview{
		Success:       true,
		VMStatus:      sim.VMStatus,
		BalanceChange: deltas,
		GasUsed:       sim.GasUsed,
		GasFee:        fee,
	}, sim, nil
}

// EstimateDetailed is Estimate followed by metadata enrichment.
func (e *Estimator) EstimateDetailed(ctx context.Context, sender string, publicKey []byte, req protocol.SignAndSubmitTransaction, network string, resolver balance.Resolver) (DetailedPreview, error) {
	p, sim, err := e.estimate(ctx, sender, publicKey, req, network)
	if err != nil {
		return DetailedPreview{}, err
	}
	out := DetailedPreview{Preview: p}
	if !p.Success {
		return out, nil
	}

	out.Changes = balance.Enrich(ctx, resolver, p.BalanceChange)
	if sim.Sender == "" {
		sim.Sender = sender
	}
	if row, err := balance.Summarize(sim, sender); err == nil {
		out.Activity = &row
	}
	return out, nil
}

func (e *Estimator) simulate(ctx context.Context, sender string, publicKey []byte, payload protocol.EntryFunctionPayload, opts protocol.TransactionOptions, network string) (ledger.UserTransaction, error) {
	c, err := e.client(network)
	if err != nil {
		return ledger.UserTransaction{}, err
	}

	tx, err := c.BuildTransaction(ctx, sender, payload, opts)
	if err != nil {
		return ledger.UserTransaction{}, fmt.Errorf("build transaction: %w", err)
	}
	res, err := c.Simulate(ctx, tx, publicKey)
	if err != nil {
		return ledger.UserTransaction{}, fmt.Errorf("simulate transaction: %w", err)
	}
	if len(res) == 0 {
		return ledger.UserTransaction{}, ErrEmptySimulation
	}
	return res[0], nil
}

func gasFee(gasUsed string) (decimal.Decimal, error) {
	g, err := decimal.NewFromString(gasUsed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse gas used %q: %w", gasUsed, err)
	}
	return ledger.OctasToCoin(g), nil
}

func networkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
