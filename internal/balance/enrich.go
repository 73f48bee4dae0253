package balance

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Resolver looks up coin metadata.
type Resolver interface {
	Resolve(ctx context.Context, coinID string) (ledger.CoinMetadata, error)
}

type ResolverFunc func(ctx context.Context, coinID string) (ledger.CoinMetadata, error)

func (f ResolverFunc) Resolve(ctx context.Context, coinID string) (ledger.CoinMetadata, error) {
	return f(ctx, coinID)
}

// AssetDelta is one coin's change with its metadata. Amount is Delta scaled
// by the coin's decimals.
type AssetDelta struct {
	Metadata ledger.CoinMetadata `json:"metadata"`
	Delta    decimal.Decimal     `json:"delta"`
	Amount   string              `json:"amount"`
}

const maxConcurrentLookups = 8

// Enrich attaches metadata to every change. Coins whose metadata cannot be
// resolved are dropped. Each owner's list is sorted by symbol.
func Enrich(ctx context.Context, resolver Resolver, deltas ChangeMap) map[string][]AssetDelta {
	ids := map[string]struct{}{}
	for _, byCoin := range deltas {
		for coin := range byCoin {
			ids[coin] = struct{}{}
		}
	}

	var (
		mu       sync.Mutex
		metadata = make(map[string]ledger.CoinMetadata, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for id := range ids {
		g.Go(func() error {
			md, err := lookup(gctx, resolver, id)
			if err != nil {
				log.Warn("dropping balance change, coin metadata unavailable", "coin", id, "error", err)
				return nil
			}
			mu.Lock()
			metadata[id] = md
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]AssetDelta, len(deltas))
	for owner, byCoin := range deltas {
		list := make([]AssetDelta, 0, len(byCoin))
		for coin, delta := range byCoin {
			md, ok := metadata[coin]
			if !ok {
				continue
			}
			list = append(list, AssetDelta{
				Metadata: md,
				Delta:    delta,
				Amount:   ledger.ScaleAmount(delta, md.Decimals),
			})
		}
		sort.Slice(list, func(i, j int) bool {
			si, sj := strings.ToLower(list[i].Metadata.Symbol), strings.ToLower(list[j].Metadata.Symbol)
			if si != sj {
				return si < sj
			}
			return list[i].Metadata.ID < list[j].Metadata.ID
		})
		out[owner] = list
	}
	return out
}

func lookup(ctx context.Context, resolver Resolver, coinID string) (ledger.CoinMetadata, error) {
	if coinID == constants.NativeCoinID {
		return ledger.NativeCoin(), nil
	}
	return resolver.Resolve(ctx, coinID)
}
