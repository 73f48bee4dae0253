package securefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eternalab/hop-wallet/internal/constants"
)

// EnvFolder maps HOP_ENV to the state subfolder. Mainnet state lives at the
// top level.
func EnvFolder() (string, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(constants.EnvVar)))
	switch raw {
	case "", "main", "mainnet", "prod", "production":
		return "", nil
	case "test", "testnet":
		return "testnet", nil
	case "local", "dev", "develop":
		return "local", nil
	default:
		return "", fmt.Errorf("invalid %s %q (allowed: mainnet, testnet, local)", constants.EnvVar, raw)
	}
}

// PathCandidates lists where filename may live, most preferred first:
// $SNAP_REAL_HOME/.config/<app>, $HOME/.config/<app>, then
// os.UserConfigDir()/<app>, each with the HOP_ENV subfolder.
func PathCandidates(app, filename string) ([]string, error) {
	if app == "" || filename == "" {
		return nil, errors.New("app and filename must not be empty")
	}
	envFolder, err := EnvFolder()
	if err != nil {
		return nil, err
	}

	var paths []string
	seen := map[string]bool{}
	add := func(dir string) {
		if envFolder != "" {
			dir = filepath.Join(dir, envFolder)
		}
		p := filepath.Join(dir, filename)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(filepath.Join(realHome, ".config", app))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(filepath.Join(home, ".config", app))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, app))
	} else if len(paths) == 0 {
		return nil, fmt.Errorf("user config dir: %w", err)
	}
	return paths, nil
}

// ResolvePath returns the first existing candidate, else the first one.
// A non-empty stateDir overrides the search.
func ResolvePath(stateDir, filename string) (string, error) {
	if stateDir != "" {
		return filepath.Join(stateDir, filename), nil
	}
	cands, err := PathCandidates(constants.AppName, filename)
	if err != nil {
		return "", err
	}
	for _, p := range cands {
		if Exists(p) {
			return p, nil
		}
	}
	return cands[0], nil
}
