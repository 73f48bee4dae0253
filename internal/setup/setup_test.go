package setup

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hostconfig "github.com/eternalab/hop-wallet/cmd/hop-wallet-host/config"
	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/eternalab/hop-wallet/internal/signing"
)

var fastKDF = securefile.KDF{Time: 1, Memory: 1024, Threads: 1}

func TestBackendsFromConfig(t *testing.T) {
	cfg := &hostconfig.Config{
		Networks: map[string]hostconfig.Network{
			"mainnet": {ChainID: 220, RPCURL: "https://rpc.example/v1", IndexerURL: "https://idx.example/api/v1"},
			"testnet": {ChainID: 221, RPCURL: "https://rpc-test.example/v1"},
		},
	}
	require.NoError(t, cfg.Normalize())

	b := backendsFromConfig(cfg)
	require.Len(t, b.networks, 2)
	assert.Equal(t, 220, b.networks["mainnet"].Info.ChainID)
	assert.Equal(t, "testnet", b.networks["testnet"].Info.Name)
	assert.Equal(t, "https://rpc-test.example/v1", b.networks["testnet"].Info.URL)
	assert.Len(t, b.clients, 2)
	assert.Len(t, b.sources, 2)
	// testnet has no indexer
	assert.Len(t, b.indexers, 1)
	assert.Contains(t, b.indexers, "mainnet")
}

func TestUnlockFromPrivateKeyEnv(t *testing.T) {
	t.Setenv("HOP_PRIVATE_KEY", "0x07"+strings.Repeat("0", 62))

	a, err := unlockAtStartup(filepath.Join(t.TempDir(), "keystore.json"))
	require.NoError(t, err)
	require.NotNil(t, a)

	t.Setenv("HOP_PRIVATE_KEY", "nothex")
	_, err = unlockAtStartup("")
	assert.Error(t, err)
}

func TestUnlockFromKeystore(t *testing.T) {
	t.Setenv("HOP_PRIVATE_KEY", "")
	seed := make([]byte, 32)
	seed[5] = 1
	want, err := signing.NewAccount(seed)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, signing.SaveKeystore(path, want, []byte("hunter2hunter2"), fastKDF))

	t.Setenv("HOP_KEYSTORE_PASSWORD", "hunter2hunter2")
	got, err := unlockAtStartup(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Address(), got.Address())

	// a wrong password starts the wallet locked
	t.Setenv("HOP_KEYSTORE_PASSWORD", "nope")
	got, err = unlockAtStartup(path)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMissingKeystoreStartsLocked(t *testing.T) {
	t.Setenv("HOP_PRIVATE_KEY", "")
	a, err := unlockAtStartup(filepath.Join(t.TempDir(), "keystore.json"))
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestImportAccountZeroesInput(t *testing.T) {
	raw := []byte("  0x09" + strings.Repeat("0", 62) + "\n")
	a, err := importAccount(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, a.Address())
	for _, b := range raw {
		assert.Zero(t, b)
	}

	_, err = importAccount([]byte("0x01"))
	assert.Error(t, err)
}
