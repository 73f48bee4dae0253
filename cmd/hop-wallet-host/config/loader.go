package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/signing"
)

type WalletSettings struct {
	ActiveNetwork         string
	StateDir              string
	RequestTimeoutSeconds int
}

type UISettings struct {
	LocalHost      string
	Port           string
	AllowedOrigins []string
}

type Network struct {
	Name       string
	ChainID    int
	RPCURL     string `mapstructure:"RPCURL"`
	IndexerURL string `mapstructure:"IndexerURL"`
	Symbol     string
	Explorer   string
}

type DefaultAssetsConfig struct {
	Network map[string][]string `yaml:"Network" json:"network"`
}

type Config struct {
	Wallet        *WalletSettings
	UI            *UISettings
	Networks      map[string]Network  `mapstructure:"Networks"`
	DefaultAssets DefaultAssetsConfig `yaml:"DefaultAssets" json:"defaultAssets"`
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}

	return utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
}

// Normalize lower-cases network keys, fills network names from their keys
// and falls back to mainnet when no active network is set.
func (c *Config) Normalize() error {
	if c.Wallet == nil {
		c.Wallet = &WalletSettings{}
	}
	if c.UI == nil {
		c.UI = &UISettings{}
	}
	if len(c.Networks) == 0 {
		return errors.New("no networks configured")
	}

	out := make(map[string]Network, len(c.Networks))
	for key, n := range c.Networks {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			return errors.New("Networks has an empty key")
		}
		n.Name = strings.ToLower(strings.TrimSpace(n.Name))
		if n.Name == "" {
			n.Name = k
		}
		n.RPCURL = strings.TrimRight(strings.TrimSpace(n.RPCURL), "/")
		n.IndexerURL = strings.TrimRight(strings.TrimSpace(n.IndexerURL), "/")
		if n.RPCURL == "" {
			return fmt.Errorf("network %q has no RPCURL", k)
		}
		if n.ChainID <= 0 {
			return fmt.Errorf("network %q has invalid ChainID %d", k, n.ChainID)
		}
		out[k] = n
	}
	c.Networks = out

	c.Wallet.ActiveNetwork = strings.ToLower(strings.TrimSpace(c.Wallet.ActiveNetwork))
	if c.Wallet.ActiveNetwork == "" {
		c.Wallet.ActiveNetwork = "mainnet"
	}
	if _, ok := c.Networks[c.Wallet.ActiveNetwork]; !ok {
		return fmt.Errorf("active network %q not found in config", c.Wallet.ActiveNetwork)
	}
	if c.Wallet.RequestTimeoutSeconds <= 0 {
		c.Wallet.RequestTimeoutSeconds = 30
	}
	if c.UI.LocalHost == "" {
		c.UI.LocalHost = "127.0.0.1"
	}
	if c.UI.Port == "" {
		c.UI.Port = "6137"
	}
	return nil
}

// ApplyNetworkFromEnv lets HOP_ENV pick the active network.
func (c *Config) ApplyNetworkFromEnv() error {
	raw := strings.TrimSpace(os.Getenv(constants.EnvVar))

	switch strings.ToLower(raw) {
	case "":
		// keep configured network
	case "main", "mainnet", "prod", "production":
		c.Wallet.ActiveNetwork = "mainnet"
	case "test", "testnet":
		c.Wallet.ActiveNetwork = "testnet"
	case "local", "dev", "develop":
		c.Wallet.ActiveNetwork = "local"
	default:
		return fmt.Errorf("invalid %s %q (allowed: mainnet, testnet, local, empty)", constants.EnvVar, raw)
	}

	if _, ok := c.Networks[c.Wallet.ActiveNetwork]; !ok {
		return fmt.Errorf("%s selects network %q which is not configured", constants.EnvVar, c.Wallet.ActiveNetwork)
	}
	return nil
}

func (c *Config) NormalizeDefaultAssets() error {
	if c.DefaultAssets.Network == nil {
		c.DefaultAssets.Network = map[string][]string{}
		return nil
	}

	outByNet := make(map[string][]string, len(c.DefaultAssets.Network))

	for netKey, ids := range c.DefaultAssets.Network {
		nk := strings.ToLower(strings.TrimSpace(netKey))
		if nk == "" {
			return fmt.Errorf("DefaultAssets.Network has empty network key")
		}

		seen := map[string]struct{}{}
		out := make([]string, 0, len(ids))

		for _, raw := range ids {
			id := strings.TrimSpace(raw)
			if id == "" {
				return fmt.Errorf("DefaultAssets.Network[%q] contains empty coin id", netKey)
			}
			if err := signing.ValidateAddress(id); err != nil {
				return fmt.Errorf("DefaultAssets.Network[%q] invalid coin id: %w", netKey, err)
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}

		outByNet[nk] = out
	}

	c.DefaultAssets.Network = outByNet
	return nil
}

// NetworkNames returns the configured network keys in order.
func (c *Config) NetworkNames() []string {
	out := make([]string, 0, len(c.Networks))
	for k := range c.Networks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
