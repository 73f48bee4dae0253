package http

import (
	"net/http"
	"strconv"

	"github.com/eternalab/hop-wallet/internal/balance"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	defaultHistoryLimit = 25
	maxHistoryLimit     = 100
	defaultPageSize     = 20
)

// indexerFor picks the indexer of ?network= or of the active network.
func (s *Server) indexerFor(w http.ResponseWriter, r *http.Request) (ledger.Indexer, string, bool) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = s.broker.ActiveNetwork().Name
	}
	idx, ok := s.indexers[networkKey(network)]
	if !ok {
		writeFail(w, http.StatusNotFound, "no indexer for network "+network)
		return nil, "", false
	}
	return idx, network, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// GET /wallet/coins[?network=&page=&pageSize=]
func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	a, ok := requireUnlocked(w, s)
	if !ok {
		return
	}
	idx, network, ok := s.indexerFor(w, r)
	if !ok {
		return
	}
	addr := a.Address()
	page, err := idx.AccountCoins(r.Context(), addr, queryInt(r, "page", 0), queryInt(r, "pageSize", defaultPageSize))
	if err != nil {
		log.Error("fetch account coins", "network", network, "address", addr, "error", err)
		writeFail(w, http.StatusBadGateway, err.Error())
		return
	}
	writeOK(w, page)
}

// GET /wallet/history[?network=&limit=]
//
// Rows that cannot be summarized are skipped.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := requireUnlocked(w, s)
	if !ok {
		return
	}
	idx, network, ok := s.indexerFor(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	addr := a.Address()
	txs, err := idx.AccountTransactions(r.Context(), addr, limit)
	if err != nil {
		log.Error("fetch account transactions", "network", network, "address", addr, "error", err)
		writeFail(w, http.StatusBadGateway, err.Error())
		return
	}

	rows := make([]balance.Summary, 0, len(txs))
	for _, tx := range txs {
		row, err := balance.Summarize(tx, addr)
		if err != nil {
			log.Warn("skipping unreadable transaction", "hash", tx.Hash, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	writeOK(w, rows)
}

// GET /wallet/collections[?network=&pageSize=]
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	a, ok := requireUnlocked(w, s)
	if !ok {
		return
	}
	idx, network, ok := s.indexerFor(w, r)
	if !ok {
		return
	}
	addr := a.Address()
	page, err := idx.AccountCollections(r.Context(), addr, queryInt(r, "pageSize", defaultPageSize))
	if err != nil {
		log.Error("fetch account collections", "network", network, "address", addr, "error", err)
		writeFail(w, http.StatusBadGateway, err.Error())
		return
	}
	writeOK(w, page)
}
