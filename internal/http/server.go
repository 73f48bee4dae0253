// Package http is the loopback API the approval UI talks to. It lists and
// settles parked requests, previews transactions and forwards the UI's
// privileged commands to the broker over the runtime transport.
package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eternalab/hop-wallet/internal/approval"
	"github.com/eternalab/hop-wallet/internal/assets"
	"github.com/eternalab/hop-wallet/internal/estimator"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/permissions"
	"github.com/eternalab/hop-wallet/internal/runtime"
	"github.com/eternalab/hop-wallet/internal/signing"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Options struct {
	Broker      *approval.Broker
	Backend     runtime.Port
	Estimator   *estimator.Estimator
	Assets      *assets.Manager
	Permissions *permissions.Store
	// Indexers back the account views, keyed by network name.
	Indexers map[string]ledger.Indexer
	// Unlock opens the keystore. Without it /wallet/unlock is not served.
	Unlock func(password []byte) (*signing.Account, error)

	UIAllowedOrigins []string
	// SessionToken is generated when empty.
	SessionToken string
}

type Server struct {
	mux *http.ServeMux

	broker    *approval.Broker
	backend   runtime.Port
	estimator *estimator.Estimator
	assets    *assets.Manager
	perms     *permissions.Store
	indexers  map[string]ledger.Indexer
	unlock    func(password []byte) (*signing.Account, error)

	sessionToken     string
	uiAllowedOrigins map[string]struct{}
}

func NewServer(opts Options) (*Server, error) {
	if opts.Broker == nil || opts.Backend == nil {
		return nil, errors.New("http: broker and backend are required")
	}
	if opts.Estimator == nil || opts.Assets == nil || opts.Permissions == nil {
		return nil, errors.New("http: estimator, assets and permissions are required")
	}

	s := &Server{
		mux:              http.NewServeMux(),
		broker:           opts.Broker,
		backend:          opts.Backend,
		estimator:        opts.Estimator,
		assets:           opts.Assets,
		perms:            opts.Permissions,
		indexers:         make(map[string]ledger.Indexer, len(opts.Indexers)),
		unlock:           opts.Unlock,
		sessionToken:     opts.SessionToken,
		uiAllowedOrigins: uniqueOrigins(opts.UIAllowedOrigins),
	}
	for k, idx := range opts.Indexers {
		s.indexers[networkKey(k)] = idx
	}
	if s.sessionToken == "" {
		token, err := newSessionToken()
		if err != nil {
			return nil, err
		}
		s.sessionToken = token
	}

	healthCors := corsPolicy{
		allowedOrigins: s.uiAllowedOrigins,
		allowMethods:   "GET,OPTIONS",
		allowHeaders:   "", // echo requested
		maxAge:         corsMaxAgeSeconds,
	}
	s.mux.HandleFunc("/healthz", s.withCORS(healthCors, s.withLoopbackOnly(requireMethod(http.MethodGet, s.handleHealth))))

	s.mux.HandleFunc("/status", s.withUIGuards(requireMethod(http.MethodGet, s.handleStatus)))

	// parked requests
	s.mux.HandleFunc("/approval/pending", s.withUIGuards(requireMethod(http.MethodGet, s.handlePending)))
	s.mux.HandleFunc("/approval/notify", s.withUIGuards(requireMethod(http.MethodPost, s.handleNotify)))
	s.mux.HandleFunc("/approval/command", s.withUIGuards(requireMethod(http.MethodPost, s.handleCommand)))

	// previews
	s.mux.HandleFunc("/approval/preview", s.withUIGuards(requireMethod(http.MethodPost, s.handlePreview)))
	s.mux.HandleFunc("/approval/fee", s.withUIGuards(requireMethod(http.MethodPost, s.handleFee)))

	// wallet management
	s.mux.HandleFunc("/wallet/networks", s.withUIGuards(requireMethod(http.MethodGet, s.handleNetworks)))
	s.mux.HandleFunc("/wallet/network", s.withUIGuards(requireMethod(http.MethodPost, s.handleSetNetwork)))
	s.mux.HandleFunc("/wallet/permissions", s.withUIGuards(requireMethod(http.MethodGet, s.handlePermissions)))
	s.mux.HandleFunc("/wallet/permissions/revoke", s.withUIGuards(requireMethod(http.MethodPost, s.handleRevoke)))
	s.mux.HandleFunc("/wallet/assets", s.withUIGuards(requireMethod(http.MethodGet, s.handleAssets)))
	s.mux.HandleFunc("/wallet/assets/remove", s.withUIGuards(requireMethod(http.MethodPost, s.handleRemoveAsset)))

	s.mux.HandleFunc("/wallet/lock", s.withUIGuards(requireMethod(http.MethodPost, s.handleLock)))
	if s.unlock != nil {
		s.mux.HandleFunc("/wallet/unlock", s.withUIGuards(requireMethod(http.MethodPost, s.handleUnlock)))
	}

	// account views
	s.mux.HandleFunc("/wallet/coins", s.withUIGuards(requireMethod(http.MethodGet, s.handleCoins)))
	s.mux.HandleFunc("/wallet/history", s.withUIGuards(requireMethod(http.MethodGet, s.handleHistory)))
	s.mux.HandleFunc("/wallet/collections", s.withUIGuards(requireMethod(http.MethodGet, s.handleCollections)))

	log.Info("approval api ready", "uiOrigins", len(s.uiAllowedOrigins))
	return s, nil
}

// SessionToken is the value the approval UI must send in UISessionHeader.
func (s *Server) SessionToken() string { return s.sessionToken }

func networkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
