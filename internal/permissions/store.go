package permissions

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eternalab/hop-wallet/internal/securefile"
)

// Connection records which account an origin was connected to.
type Connection struct {
	Address     string    `json:"address"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// On-disk representation
type permissionFile struct {
	Allowed map[string]Connection `json:"allowed"`
	Updated string                `json:"updated,omitempty"`
}

// Store is the authoritative allowlist. An empty path keeps it in memory.
type Store struct {
	mu      sync.RWMutex
	path    string
	allowed map[string]Connection
	now     func() time.Time
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		allowed: make(map[string]Connection),
		now:     time.Now,
	}
}

// Load reads the allowlist from disk. A missing file is an empty allowlist.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	var pf permissionFile
	if err := securefile.ReadJSON(s.path, &pf); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load permissions: %w", err)
	}

	allowed := make(map[string]Connection, len(pf.Allowed))
	for origin, c := range pf.Allowed {
		if o := NormalizeOrigin(origin); o != "" {
			allowed[o] = c
		}
	}

	s.mu.Lock()
	s.allowed = allowed
	s.mu.Unlock()
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	pf := permissionFile{
		Allowed: s.allowed,
		Updated: s.now().UTC().Format(time.RFC3339),
	}
	if err := securefile.WriteJSON(s.path, pf); err != nil {
		return fmt.Errorf("save permissions: %w", err)
	}
	return nil
}

// Connect allows origin for address and persists the change.
func (s *Store) Connect(origin, address string) error {
	o := NormalizeOrigin(origin)
	if o == "" {
		return fmt.Errorf("invalid origin %q", origin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[o] = Connection{Address: address, ConnectedAt: s.now().UTC()}
	return s.saveLocked()
}

// Disconnect removes origin. Removing an unknown origin is not an error.
func (s *Store) Disconnect(origin string) error {
	o := NormalizeOrigin(origin)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allowed[o]; !ok {
		return nil
	}
	delete(s.allowed, o)
	return s.saveLocked()
}

// IsConnected reports whether origin is connected, and when address is
// given, connected to that account.
func (s *Store) IsConnected(origin, address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.allowed[NormalizeOrigin(origin)]
	if !ok {
		return false
	}
	return address == "" || c.Address == address
}

func (s *Store) Lookup(origin string) (Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.allowed[NormalizeOrigin(origin)]
	return c, ok
}

// Origins returns the connected origins, sorted.
func (s *Store) Origins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.allowed))
	for o := range s.allowed {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// NormalizeOrigin reduces a URL to scheme://host, lower-cased. It returns ""
// for anything that is not an absolute URL.
func NormalizeOrigin(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
