package balance

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/eternalab/hop-wallet/internal/ledger"
)

type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// Summary is one row of an account's activity list.
type Summary struct {
	Hash      string          `json:"hash"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	Status    string          `json:"status"`
	Type      Direction       `json:"type"`
}

// Summarize describes tx from user's point of view. The receiver of an
// outgoing transaction is the first payload argument. Amount is the sender's
// net EDS change.
func Summarize(tx ledger.UserTransaction, user string) (Summary, error) {
	deltas, err := ComputeDeltas(tx.Events)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Hash:     tx.Hash,
		Sender:   tx.Sender,
		Receiver: tx.Sender,
		Amount:   SenderNativeChange(deltas, tx.Sender),
		Status:   "failed",
		Type:     DirectionReceive,
	}
	if tx.Success {
		s.Status = "success"
	}
	if tx.Sender == user {
		s.Type = DirectionSend
		s.Receiver = firstArgument(tx.Payload)
	}
	// node timestamps are microseconds
	if us, err := strconv.ParseInt(tx.Timestamp, 10, 64); err == nil {
		s.Timestamp = us / 1000
	}
	return s, nil
}

func firstArgument(payload json.RawMessage) string {
	var p struct {
		Arguments []json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || len(p.Arguments) == 0 {
		return "Unknown"
	}
	var s string
	if err := json.Unmarshal(p.Arguments[0], &s); err != nil || s == "" {
		return "Unknown"
	}
	return s
}
