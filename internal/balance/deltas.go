// Package balance turns transaction events into per-account, per-coin
// balance changes.
package balance

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/ledger"
)

// ChangeMap is owner address -> coin id -> signed raw amount.
type ChangeMap map[string]map[string]decimal.Decimal

// Get returns the change of coin for owner, zero when absent.
func (m ChangeMap) Get(owner, coin string) decimal.Decimal {
	return m[owner][coin]
}

func (m ChangeMap) add(owner, coin string, amount decimal.Decimal) {
	byCoin := m[owner]
	if byCoin == nil {
		byCoin = map[string]decimal.Decimal{}
		m[owner] = byCoin
	}
	byCoin[coin] = byCoin[coin].Add(amount)
}

type fungibleEvent struct {
	Amount decimal.NullDecimal `json:"amount"`
	Coin   string              `json:"coin"`
	Owner  string              `json:"owner"`
	Store  string              `json:"store"`
}

// ComputeDeltas sums withdrawals (negative) and deposits (positive) per
// owner and coin. Other event types are ignored. A withdraw or deposit event
// that cannot be read fails the whole computation.
func ComputeDeltas(events []ledger.Event) (ChangeMap, error) {
	out := ChangeMap{}
	for i, ev := range events {
		var sign int64
		switch ev.Type {
		case constants.WithdrawEventType:
			sign = -1
		case constants.DepositEventType:
			sign = 1
		default:
			continue
		}

		var data fungibleEvent
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Type, err)
		}
		if !data.Amount.Valid {
			return nil, fmt.Errorf("event %d (%s): missing amount", i, ev.Type)
		}
		if data.Owner == "" || data.Coin == "" {
			return nil, fmt.Errorf("event %d (%s): missing owner or coin", i, ev.Type)
		}

		out.add(data.Owner, data.Coin, data.Amount.Decimal.Mul(decimal.NewFromInt(sign)))
	}
	return out, nil
}

// SenderNativeChange is the net EDS change of sender, in EDS.
func SenderNativeChange(deltas ChangeMap, sender string) decimal.Decimal {
	return ledger.OctasToCoin(deltas.Get(sender, constants.NativeCoinID))
}
