package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// uiCommands are the broker commands the approval UI may send through
// /approval/command. Page-facing commands never come from here.
var uiCommands = map[protocol.MessageType]struct{}{
	protocol.MsgInternalSignMessage:     {},
	protocol.MsgInternalSignTransaction: {},
	protocol.MsgInternalSendEDS:         {},
	protocol.MsgInternalSendCoin:        {},
	protocol.MsgSendNftTransaction:      {},
	protocol.MsgCheckUnlockStatus:       {},
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{JSONKeyStatus: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		JSONKeyOK:       true,
		JSONKeyUnlocked: s.broker.Account() != nil,
		JSONKeyNetwork:  s.broker.ActiveNetwork(),
		JSONKeyPending:  len(s.broker.PendingApprovals()),
	})
}

// GET /approval/pending[?requestId=...]
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("requestId"))
	if id == "" {
		writeOK(w, s.broker.PendingApprovals())
		return
	}
	s.forward(w, r, protocol.MsgGetPendingSignRequestByID, protocol.PendingLookup{RequestID: id})
}

// POST /approval/notify  { requestId, resp?, error? }
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req protocol.NotifyResult
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		http.Error(w, WalletMissingRequestIDText, http.StatusBadRequest)
		return
	}
	s.forward(w, r, protocol.MsgNotifyConfirmOrSignResult, req)
}

// POST /approval/command  { type, data }
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if _, ok := uiCommands[req.Type]; !ok {
		writeFail(w, http.StatusForbidden, WalletCommandNotAllowedText)
		return
	}
	s.forward(w, r, req.Type, req.Data)
}

// forward sends one command over the runtime transport and writes the
// broker response as is.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, typ protocol.MessageType, data any) {
	breq := protocol.BrokerRequest{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			http.Error(w, HTTPErrorBadRequestText, http.StatusBadRequest)
			return
		}
		breq.Data = raw
	}

	resp, err := s.backend.SendMessage(r.Context(), breq)
	if err != nil {
		log.Error("approval command transport failed", "type", typ, "error", err)
		writeJSON(w, http.StatusBadGateway, protocol.BrokerFail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{
		JSONKeyNetwork:  s.broker.ActiveNetwork(),
		JSONKeyNetworks: s.broker.Networks(),
	})
}

// POST /wallet/network  { network: "testnet" }
func (s *Server) handleSetNetwork(w http.ResponseWriter, r *http.Request) {
	var req setNetworkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Network) == "" {
		http.Error(w, WalletMissingNetworkText, http.StatusBadRequest)
		return
	}
	n, err := s.broker.SetNetwork(req.Network)
	if err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Info("active network switched", "network", n.Name, "chainId", n.ChainID)
	writeOK(w, n)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	for _, origin := range s.perms.Origins() {
		if c, ok := s.perms.Lookup(origin); ok {
			out[origin] = c
		}
	}
	writeOK(w, out)
}

// POST /wallet/permissions/revoke  { origin }
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req originRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if normalizeOrigin(req.Origin) == "" {
		http.Error(w, WalletMissingOriginText, http.StatusBadRequest)
		return
	}
	if err := s.perms.Disconnect(req.Origin); err != nil {
		log.Error("revoke origin", "origin", req.Origin, "error", err)
		writeFail(w, http.StatusInternalServerError, WalletPermissionsFailedText)
		return
	}
	writeOK(w, nil)
}

// GET /wallet/assets[?network=...]
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = s.broker.ActiveNetwork().Name
	}
	writeOK(w, s.assets.ListAssets(network))
}

// POST /wallet/assets/remove  { network, coinId }
func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	var req removeAssetRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Network == "" {
		req.Network = s.broker.ActiveNetwork().Name
	}
	if err := s.assets.RemoveAsset(r.Context(), req.Network, req.CoinID); err != nil {
		log.Error("remove asset", "network", req.Network, "coinId", req.CoinID, "error", err)
		writeFail(w, http.StatusInternalServerError, WalletAssetsFailedText)
		return
	}
	writeOK(w, nil)
}
