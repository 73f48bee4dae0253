package setup

import (
	"net/http"
	"time"

	"github.com/eternalab/hop-wallet/cmd/hop-wallet-host/config"
	"github.com/eternalab/hop-wallet/internal/approval"
	"github.com/eternalab/hop-wallet/internal/assets"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

// chainBackends is everything built per configured network.
type chainBackends struct {
	networks map[string]approval.Network
	clients  map[string]ledger.Client
	sources  map[string]assets.Source
	indexers map[string]ledger.Indexer
}

func backendsFromConfig(cfg *config.Config) chainBackends {
	out := chainBackends{
		networks: make(map[string]approval.Network, len(cfg.Networks)),
		clients:  make(map[string]ledger.Client, len(cfg.Networks)),
		sources:  make(map[string]assets.Source, len(cfg.Networks)),
		indexers: make(map[string]ledger.Indexer, len(cfg.Networks)),
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Wallet.RequestTimeoutSeconds) * time.Second}

	for name, n := range cfg.Networks {
		rest := ledger.NewRESTClient(n.RPCURL, n.IndexerURL, ledger.WithHTTPClient(httpClient))

		out.networks[name] = approval.Network{
			Info:   protocol.NetworkInfo{Name: n.Name, ChainID: n.ChainID, URL: n.RPCURL},
			Ledger: rest,
		}
		out.clients[name] = rest
		out.sources[name] = rest
		if n.IndexerURL != "" {
			out.indexers[name] = rest
		}
	}
	return out
}
