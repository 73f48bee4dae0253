// Package securefile writes local wallet state: password-sealed JSON
// documents (Argon2id + XChaCha20-Poly1305) and plain files, always through
// an atomic rename.
package securefile

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/eternalab/hop-wallet/internal/constants"
)

// ErrWrongPassword is returned when a sealed file cannot be opened. It does
// not distinguish a bad password from a damaged file.
var ErrWrongPassword = errors.New("wrong password or damaged file")

const sealVersion = 1

// Sealed is the on-disk form of a password-protected document.
type Sealed struct {
	Version int `json:"version"`

	Time    uint32 `json:"argon_time"`
	Memory  uint32 `json:"argon_memory_kib"`
	Threads uint8  `json:"argon_threads"`
	KeyLen  uint32 `json:"argon_key_len"`

	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KDF holds the Argon2id cost parameters used when sealing.
type KDF struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var DefaultKDF = KDF{Time: 2, Memory: 64 * 1024, Threads: 1}

// Seal encrypts plain under password. aad must be given again to Open.
func Seal(plain, password, aad []byte, kdf KDF) (Sealed, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return Sealed{}, fmt.Errorf("read salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("read nonce: %w", err)
	}

	key := argon2.IDKey(password, salt, kdf.Time, kdf.Memory, kdf.Threads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("init cipher: %w", err)
	}

	return Sealed{
		Version:    sealVersion,
		Time:       kdf.Time,
		Memory:     kdf.Memory,
		Threads:    kdf.Threads,
		KeyLen:     chacha20poly1305.KeySize,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, aad)),
	}, nil
}

// Open reverses Seal.
func Open(s Sealed, password, aad []byte) ([]byte, error) {
	if s.Version != sealVersion {
		return nil, fmt.Errorf("unsupported sealed version %d", s.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(s.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(s.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	key := argon2.IDKey(password, salt, s.Time, s.Memory, s.Threads, s.KeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}

// WriteSealedJSON marshals v, seals it and writes it to path.
func WriteSealedJSON[T any](path string, v T, password, aad []byte, kdf KDF) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	sealed, err := Seal(plain, password, aad, kdf)
	if err != nil {
		return err
	}
	return WriteJSON(path, sealed)
}

// ReadSealedJSON opens a file written by WriteSealedJSON.
func ReadSealedJSON[T any](path string, password, aad []byte) (T, error) {
	var zero T

	var sealed Sealed
	if err := ReadJSON(path, &sealed); err != nil {
		return zero, err
	}
	plain, err := Open(sealed, password, aad)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(plain, &out); err != nil {
		return zero, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}

// WriteJSON writes v as indented JSON, creating the parent directory.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return AtomicWriteFile(path, b, constants.FilePerm)
}

func ReadJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AtomicWriteFile writes data to a sibling temp file and renames it over
// path.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
