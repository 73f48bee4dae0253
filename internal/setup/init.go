package setup

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/eternalab/hop-wallet/internal/signing"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Init creates the keystore from an imported or freshly generated private
// key. It needs a terminal.
func Init(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := securefile.ResolvePath(cfg.Wallet.StateDir, constants.KeystoreFile)
	if err != nil {
		return err
	}

	tty, err := openTTY()
	if err != nil {
		return err
	}
	defer func() { _ = tty.Close() }()

	if securefile.Exists(path) {
		ok, err := promptYesNo(tty, tty, fmt.Sprintf("A keystore already exists at %s. Replace it? [y/N]: ", path))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("keeping existing keystore")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	account, err := chooseAccount(tty)
	if err != nil {
		return err
	}

	pw, err := promptNewPassword(tty)
	if err != nil {
		return err
	}
	defer zero(pw)

	if err := signing.SaveKeystore(path, account, pw, securefile.DefaultKDF); err != nil {
		return err
	}

	log.Info("saved keystore", "path", path, "address", account.Address())
	_, _ = fmt.Fprintf(tty, "Address: %s\n", account.Address())
	return nil
}

func chooseAccount(tty *os.File) (*signing.Account, error) {
	imp, err := promptYesNo(tty, tty, "Import an existing private key? [y/N]: ")
	if err != nil {
		return nil, err
	}
	if !imp {
		return generateAccount()
	}
	raw, err := promptPassword(tty, "Private key (hex): ")
	if err != nil {
		return nil, err
	}
	return importAccount(raw)
}

func generateAccount() (*signing.Account, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	defer zero(seed)
	return signing.NewAccount(seed)
}

func importAccount(raw []byte) (*signing.Account, error) {
	defer zero(raw)
	a, err := signing.ParsePrivateKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("import key: %w", err)
	}
	return a, nil
}
