package signing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/securefile"
)

type keystoreDoc struct {
	Address string `json:"address"`
	Seed    string `json:"seed"`
}

// SaveKeystore seals the account's private key under password.
func SaveKeystore(path string, a *Account, password []byte, kdf securefile.KDF) error {
	doc := keystoreDoc{Address: a.Address(), Seed: hexutil.Encode(a.Seed())}
	if err := securefile.WriteSealedJSON(path, doc, password, []byte(constants.KeystoreAAD), kdf); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	return nil
}

func LoadKeystore(path string, password []byte) (*Account, error) {
	doc, err := securefile.ReadSealedJSON[keystoreDoc](path, password, []byte(constants.KeystoreAAD))
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}
	a, err := ParsePrivateKey(doc.Seed)
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}
	if a.Address() != doc.Address {
		return nil, fmt.Errorf("load keystore: address mismatch, file says %s", doc.Address)
	}
	return a, nil
}
