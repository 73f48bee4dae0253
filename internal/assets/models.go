package assets

import (
	"context"

	"github.com/eternalab/hop-wallet/internal/ledger"
)

type Store struct {
	// network -> coin id -> metadata
	Networks map[string]map[string]ledger.CoinMetadata `json:"networks"`
	Schema   int                                       `json:"schema"`
}

// Source fetches coin metadata for one network.
type Source interface {
	CoinData(ctx context.Context, coinID string) (ledger.CoinMetadata, error)
}
