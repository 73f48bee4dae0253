package assets

import (
	"context"
	"fmt"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/ledger"
)

func (m *Manager) fetchCoin(ctx context.Context, network, coinID string) (ledger.CoinMetadata, error) {
	if coinID == constants.NativeCoinID {
		return ledger.NativeCoin(), nil
	}

	src := m.sources[network]
	if src == nil {
		return ledger.CoinMetadata{}, fmt.Errorf("assets: no source for network %q", network)
	}

	md, err := src.CoinData(ctx, coinID)
	if err != nil {
		return ledger.CoinMetadata{}, fmt.Errorf("assets: coin %s: %w", coinID, err)
	}
	if md.Symbol == "" {
		return ledger.CoinMetadata{}, fmt.Errorf("assets: coin %s has no symbol", coinID)
	}
	if md.Decimals < 0 || md.Decimals > 255 {
		return ledger.CoinMetadata{}, fmt.Errorf("assets: coin %s decimals out of range: %d", coinID, md.Decimals)
	}
	md.ID = coinID
	return md, nil
}
