// Package signing holds the unlocked ed25519 account of the wallet backend.
package signing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

// ed25519 single-signer authentication scheme byte.
const ed25519Scheme = 0x00

const privateKeyPrefix = "ed25519-priv-"

var ErrInvalidAddress = errors.New("invalid account address")

type Account struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	authKey [32]byte
}

func NewAccount(seed []byte) (*Account, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}
	return &Account{priv: priv, pub: pub, authKey: AuthKey(pub)}, nil
}

// ParsePrivateKey accepts a hex private key with or without 0x and the
// ed25519-priv- prefix.
func ParsePrivateKey(s string) (*Account, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), privateKeyPrefix)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	seed, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return NewAccount(seed)
}

// AuthKey is SHA3-256(public key || scheme).
func AuthKey(pub []byte) [32]byte {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Address is the base58 account address.
func (a *Account) Address() string { return base58.Encode(a.authKey[:]) }

func (a *Account) AuthKeyHex() string { return hexutil.Encode(a.authKey[:]) }

func (a *Account) PublicKey() []byte {
	out := make([]byte, len(a.pub))
	copy(out, a.pub)
	return out
}

func (a *Account) PublicKeyHex() string { return hexutil.Encode(a.pub) }

func (a *Account) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(a.priv, message), nil
}

func (a *Account) Seed() []byte { return a.priv.Seed() }

func (a *Account) Info() protocol.AccountInfo {
	addr := a.Address()
	return protocol.AccountInfo{Account: addr, Address: addr, AuthKey: a.AuthKeyHex()}
}

// SignMessage signs "Endless" + message and echoes the request back.
func (a *Account) SignMessage(in protocol.SignMessageInput, chainID int) protocol.SignMessageOutput {
	full := constants.SignMessagePrefix + in.Message
	sig := ed25519.Sign(a.priv, []byte(full))
	return protocol.SignMessageOutput{
		Address:     a.Address(),
		Application: in.Application,
		ChainID:     chainID,
		FullMessage: full,
		PublicKey:   a.PublicKeyHex(),
		Message:     in.Message,
		Nonce:       in.Nonce,
		Prefix:      constants.SignMessagePrefixTag,
		Signature:   hexutil.Encode(sig),
	}
}

// VerifyMessage checks an output produced by SignMessage.
func VerifyMessage(out protocol.SignMessageOutput) bool {
	pub, err := hexutil.Decode(out.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hexutil.Decode(out.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(out.FullMessage), sig)
}

// ValidateAddress reports whether s is a base58 encoded 32-byte address.
func ValidateAddress(s string) error {
	raw := base58.Decode(s)
	if len(raw) != 32 || base58.Encode(raw) != s {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return nil
}
