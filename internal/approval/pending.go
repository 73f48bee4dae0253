package approval

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	userRejectText      = "user reject"
	requestNotFoundText = "request not found"
	teardownText        = "approval window closed"
)

var ErrRequestNotFound = errors.New(requestNotFoundText)

type decision struct {
	resp json.RawMessage
	err  *string
}

type pendingEntry struct {
	approval protocol.PendingApproval
	done     chan decision
}

// park stores a pending approval and blocks until the approval UI settles
// it, the broker is torn down, or ctx ends.
func (b *Broker) park(ctx context.Context, req protocol.BrokerRequest, data any) (decision, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return decision{}, err
	}

	entry := &pendingEntry{
		approval: protocol.PendingApproval{
			RequestID: uuid.NewString(),
			Type:      req.Type,
			Origin:    req.Origin,
			TabID:     req.TabID,
			Data:      raw,
			CreatedAt: b.now().UTC(),
		},
		done: make(chan decision, 1),
	}

	b.mu.Lock()
	b.pending[entry.approval.RequestID] = entry
	onPending := b.onPending
	b.mu.Unlock()

	log.Info("approval requested", "requestId", entry.approval.RequestID, "type", req.Type, "origin", req.Origin)
	if onPending != nil {
		onPending(entry.approval)
	}

	select {
	case d := <-entry.done:
		return d, nil
	case <-ctx.Done():
		b.take(entry.approval.RequestID)
		return decision{}, ctx.Err()
	}
}

func (b *Broker) take(id string) (*pendingEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	return e, ok
}

// GetPending returns a parked request by id.
func (b *Broker) GetPending(id string) (protocol.PendingApproval, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[id]
	if !ok {
		return protocol.PendingApproval{}, false
	}
	return e.approval, true
}

// PendingApprovals lists parked requests, oldest first.
func (b *Broker) PendingApprovals() []protocol.PendingApproval {
	b.mu.Lock()
	out := make([]protocol.PendingApproval, 0, len(b.pending))
	for _, e := range b.pending {
		out = append(out, e.approval)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Notify settles a parked request with the approval UI's result. A nil
// errMsg approves with resp.
func (b *Broker) Notify(n protocol.NotifyResult) error {
	e, ok := b.take(n.RequestID)
	if !ok {
		return ErrRequestNotFound
	}
	e.done <- decision{resp: n.Resp, err: n.Error}
	log.Info("approval settled", "requestId", n.RequestID, "type", e.approval.Type, "approved", n.Error == nil)
	return nil
}

// Teardown rejects every parked request, as when the approval UI goes
// away.
func (b *Broker) Teardown() int {
	b.mu.Lock()
	entries := b.pending
	b.pending = map[string]*pendingEntry{}
	b.mu.Unlock()

	msg := teardownText
	for _, e := range entries {
		e.done <- decision{err: &msg}
	}
	if len(entries) > 0 {
		log.Warn("approval teardown rejected pending requests", "count", len(entries))
	}
	return len(entries)
}
