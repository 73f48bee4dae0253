package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Manager struct {
	mu      sync.RWMutex
	path    string
	sources map[string]Source
	store   Store
}

// NewManager keeps its cache at path. sources is keyed by network name.
func NewManager(path string, sources map[string]Source) *Manager {
	norm := make(map[string]Source, len(sources))
	for k, s := range sources {
		norm[normalizeNetworkKey(k)] = s
	}
	return &Manager{
		path:    path,
		sources: norm,
		store:   emptyStore(),
	}
}

func (m *Manager) Path() string { return m.path }

// Load reads assets.json if it exists. A missing file leaves the cache empty.
func (m *Manager) Load(ctx context.Context) error {
	_ = ctx

	if !securefile.Exists(m.path) {
		return nil
	}

	var s Store
	if err := securefile.ReadJSON(m.path, &s); err != nil {
		return fmt.Errorf("assets: %w", err)
	}

	normalized := emptyStore()
	if s.Schema != 0 {
		normalized.Schema = s.Schema
	}
	for netKey, byID := range s.Networks {
		nk := normalizeNetworkKey(netKey)
		if nk == "" {
			continue
		}
		if normalized.Networks[nk] == nil {
			normalized.Networks[nk] = map[string]ledger.CoinMetadata{}
		}
		for id, md := range byID {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			md.ID = id
			normalized.Networks[nk][id] = md
		}
	}

	m.mu.Lock()
	m.store = normalized
	m.mu.Unlock()
	return nil
}

// Resolve returns the metadata of coinID, fetching and caching it on a miss.
func (m *Manager) Resolve(ctx context.Context, network, coinID string) (ledger.CoinMetadata, error) {
	nk := normalizeNetworkKey(network)

	m.mu.RLock()
	md, ok := m.store.Networks[nk][coinID]
	m.mu.RUnlock()
	if ok {
		return md, nil
	}

	md, err := m.fetchCoin(ctx, nk, coinID)
	if err != nil {
		return ledger.CoinMetadata{}, err
	}
	if coinID == constants.NativeCoinID {
		return md, nil
	}

	m.mu.Lock()
	if m.store.Networks[nk] == nil {
		m.store.Networks[nk] = map[string]ledger.CoinMetadata{}
	}
	m.store.Networks[nk][coinID] = md
	err = m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		log.Warn("persist coin metadata failed", "path", m.path, "error", err)
	}
	return md, nil
}

// ForNetwork binds the manager to one network.
func (m *Manager) ForNetwork(network string) *NetworkResolver {
	return &NetworkResolver{m: m, network: network}
}

func (m *Manager) ListAssets(network string) []ledger.CoinMetadata {
	nk := normalizeNetworkKey(network)

	m.mu.RLock()
	out := make([]ledger.CoinMetadata, 0, len(m.store.Networks[nk]))
	for _, a := range m.store.Networks[nk] {
		out = append(out, a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Symbol) < strings.ToLower(out[j].Symbol)
	})
	return out
}

func (m *Manager) RemoveAsset(ctx context.Context, network, coinID string) error {
	_ = ctx
	nk := normalizeNetworkKey(network)

	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.store.Networks[nk]
	if byID == nil {
		return nil
	}
	delete(byID, coinID)
	if len(byID) == 0 {
		delete(m.store.Networks, nk)
	}
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	if m.path == "" {
		return nil
	}
	return securefile.WriteJSON(m.path, m.store)
}

// NetworkResolver resolves coin metadata on a fixed network.
type NetworkResolver struct {
	m       *Manager
	network string
}

func (r *NetworkResolver) Resolve(ctx context.Context, coinID string) (ledger.CoinMetadata, error) {
	return r.m.Resolve(ctx, r.network, coinID)
}

func emptyStore() Store {
	return Store{Schema: constants.SchemaV1, Networks: map[string]map[string]ledger.CoinMetadata{}}
}

func normalizeNetworkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
