package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// POST /approval/preview  { requestId } or { transaction }
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	a, ok := requireUnlocked(w, s)
	if !ok {
		return
	}
	var req previewRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	tx, err := s.previewTarget(req)
	if err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}

	network := req.Network
	if network == "" {
		network = s.broker.ActiveNetwork().Name
	}

	p, err := s.estimator.EstimateDetailed(r.Context(), a.Address(), a.PublicKey(), tx, network, s.assets.ForNetwork(network))
	if err != nil {
		log.Error("transaction preview failed", "network", network, "function", tx.Payload.Function, "error", err)
		writeFail(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", WalletPreviewFailedText, err))
		return
	}
	writeOK(w, p)
}

func (s *Server) previewTarget(req previewRequest) (protocol.SignAndSubmitTransaction, error) {
	if req.RequestID == "" {
		if req.Transaction == nil {
			return protocol.SignAndSubmitTransaction{}, fmt.Errorf("requestId or transaction is required")
		}
		return *req.Transaction, nil
	}

	p, ok := s.broker.GetPending(req.RequestID)
	if !ok {
		return protocol.SignAndSubmitTransaction{}, fmt.Errorf("request %s not found", req.RequestID)
	}
	if p.Type != protocol.MsgWalletSignAndSubmitTransaction {
		return protocol.SignAndSubmitTransaction{}, fmt.Errorf("request %s is a %s, not a transaction", req.RequestID, p.Type)
	}
	var tx protocol.SignAndSubmitTransaction
	if err := json.Unmarshal(p.Data, &tx); err != nil {
		return protocol.SignAndSubmitTransaction{}, fmt.Errorf("decode parked transaction: %w", err)
	}
	return tx, nil
}

// POST /approval/fee  { kind, toAddress, amount?, coinId?, nftAddress? }
//
// Fee previews never fail: any estimation error degrades to the fallback fee
// for the kind.
func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	a, ok := requireUnlocked(w, s)
	if !ok {
		return
	}
	var req feeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	network := req.Network
	if network == "" {
		network = s.broker.ActiveNetwork().Name
	}
	ctx := r.Context()

	var fee string
	switch req.Kind {
	case FeeKindNative:
		fee = s.estimator.EstimateSendGasFee(ctx, a.Address(), a.PublicKey(), req.ToAddress, req.Amount, network)
	case FeeKindCoin:
		fee = s.estimator.EstimateSendCoinGasFee(ctx, a.Address(), a.PublicKey(), req.CoinID, req.ToAddress, req.Amount, network)
	case FeeKindNft:
		fee = s.estimator.EstimateSendNftGasFee(ctx, a.Address(), a.PublicKey(), req.NftAddress, req.ToAddress, network)
	default:
		writeFail(w, http.StatusBadRequest, WalletUnknownFeeKindText)
		return
	}
	writeOK(w, feeResponse{Kind: req.Kind, Fee: fee})
}
