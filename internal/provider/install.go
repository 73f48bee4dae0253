package provider

import (
	"sync"

	"github.com/eternalab/hop-wallet/internal/pagebus"
)

var (
	installMu sync.Mutex
	installed = map[*pagebus.Window]*Provider{}
)

// Install exposes a provider on win. Only the first call per window creates
// one; later calls return the existing provider and false, ignoring opts.
func Install(win *pagebus.Window, opts ...Option) (*Provider, bool) {
	installMu.Lock()
	defer installMu.Unlock()

	if p, ok := installed[win]; ok {
		return p, false
	}
	p := newProvider(win, opts...)
	installed[win] = p
	return p, true
}

// Lookup returns the provider installed on win, if any.
func Lookup(win *pagebus.Window) (*Provider, bool) {
	installMu.Lock()
	defer installMu.Unlock()
	p, ok := installed[win]
	return p, ok
}

func forget(p *Provider) {
	installMu.Lock()
	defer installMu.Unlock()
	if installed[p.win] == p {
		delete(installed, p.win)
	}
}
