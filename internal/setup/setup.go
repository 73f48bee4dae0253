// Package setup wires the host process: config, ledger clients, the approval
// broker, the approval UI API and the native messaging port.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	hostconfig "github.com/eternalab/hop-wallet/cmd/hop-wallet-host/config"
	"github.com/eternalab/hop-wallet/internal/approval"
	"github.com/eternalab/hop-wallet/internal/assets"
	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/estimator"
	hophttp "github.com/eternalab/hop-wallet/internal/http"
	"github.com/eternalab/hop-wallet/internal/permissions"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/eternalab/hop-wallet/internal/runtime"
	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/eternalab/hop-wallet/internal/signing"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

func loadConfig() (*hostconfig.Config, error) {
	cfg, err := hostconfig.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyNetworkFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.NormalizeDefaultAssets(); err != nil {
		log.Error("normalize default assets", "error", err)
		return nil, err
	}
	return cfg, nil
}

// Run serves the wallet until ctx is done or the browser closes the native
// messaging stream on stdin.
func Run(ctx context.Context, build BuildInfo) error {
	// stdout carries native messaging frames only
	native := os.Stdout
	os.Stdout = os.Stderr

	log.Info("hop-wallet-host",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backends := backendsFromConfig(cfg)

	// ---- Local state
	permsPath, err := securefile.ResolvePath(cfg.Wallet.StateDir, constants.PermissionsFile)
	if err != nil {
		return err
	}
	perms := permissions.NewStore(permsPath)
	if err := perms.Load(); err != nil {
		return err
	}

	assetsPath, err := securefile.ResolvePath(cfg.Wallet.StateDir, constants.AssetsFile)
	if err != nil {
		return err
	}
	assetsManager := assets.NewManager(assetsPath, backends.sources)
	if err := assetsManager.Load(ctx); err != nil {
		return err
	}
	for network, ids := range cfg.DefaultAssets.Network {
		for _, id := range ids {
			if _, err := assetsManager.Resolve(ctx, network, id); err != nil {
				log.Warn("default asset not resolved", "network", network, "coinId", id, "error", err)
			}
		}
	}

	keystorePath, err := securefile.ResolvePath(cfg.Wallet.StateDir, constants.KeystoreFile)
	if err != nil {
		return err
	}

	// ---- Account
	account, err := unlockAtStartup(keystorePath)
	if err != nil {
		return err
	}
	if account == nil {
		log.Warn("wallet starts locked", "keystore", keystorePath)
	} else {
		log.Info("wallet unlocked", "address", account.Address())
	}

	// ---- Broker
	hub := runtime.NewHub(nil)
	broker, err := approval.New(approval.Options{
		Account:     account,
		Permissions: perms,
		Networks:    backends.networks,
		Active:      cfg.Wallet.ActiveNetwork,
		Events:      hub,
		OnPending: func(p protocol.PendingApproval) {
			log.Info("approval needed", "requestId", p.RequestID, "type", p.Type, "origin", p.Origin)
		},
	})
	if err != nil {
		return err
	}
	hub.SetHandler(broker)

	// ---- HTTP server
	srv, err := hophttp.NewServer(hophttp.Options{
		Broker:           broker,
		Backend:          hub,
		Estimator:        estimator.New(backends.clients),
		Assets:           assetsManager,
		Permissions:      perms,
		Indexers:         backends.indexers,
		UIAllowedOrigins: cfg.UI.AllowedOrigins,
		Unlock: func(password []byte) (*signing.Account, error) {
			return signing.LoadKeystore(keystorePath, password)
		},
	})
	if err != nil {
		return err
	}
	// the UI is launched with this token
	_, _ = fmt.Fprintf(os.Stderr, "%s=%s\n", hophttp.UISessionHeader, srv.SessionToken())

	listenAddr := net.JoinHostPort(cfg.UI.LocalHost, cfg.UI.Port)
	server := &http.Server{Addr: listenAddr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("approval api listening", "addr", listenAddr)
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", serr)
			cancel()
		}
	}()

	// ---- Native messaging
	go func() {
		defer cancel()
		if nerr := runtime.ServeNative(ctx, os.Stdin, native, hub); nerr != nil {
			log.Info("native messaging stream closed", "error", nerr)
		}
	}()

	// ---- graceful shutdown
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("HTTP server shutdown failed", "error", serr)
	} else {
		log.Info("HTTP server gracefully stopped")
	}
	return nil
}

// unlockAtStartup tries HOP_PRIVATE_KEY, then the keystore with a password
// from HOP_KEYSTORE_PASSWORD or the terminal. A nil account means locked.
func unlockAtStartup(keystorePath string) (*signing.Account, error) {
	if raw := os.Getenv(constants.PrivateKeyEnvVar); raw != "" {
		_ = os.Unsetenv(constants.PrivateKeyEnvVar)
		a, err := signing.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", constants.PrivateKeyEnvVar, err)
		}
		return a, nil
	}

	if !securefile.Exists(keystorePath) {
		log.Warn("no keystore found, run `hop-wallet-host init` first", "path", keystorePath)
		return nil, nil
	}

	pw := passwordFromEnv()
	if pw == nil {
		tty, err := openTTY()
		if err != nil {
			log.Info("keystore password not available", "reason", err)
			return nil, nil
		}
		defer func() { _ = tty.Close() }()

		pw, err = promptPassword(tty, "Keystore password: ")
		if err != nil {
			return nil, err
		}
	}
	defer zero(pw)

	a, err := signing.LoadKeystore(keystorePath, pw)
	if err != nil {
		if errors.Is(err, securefile.ErrWrongPassword) {
			log.Warn("keystore not unlocked", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
