// Package cryptox implements the AEAD primitive and key-file discipline the
// credential vault builds on. It favors
// golang.org/x/crypto/chacha20poly1305 over stdlib AES-GCM: same 256-bit
// key / 96-bit random nonce shape as the AES-GCM vaults in the reference
// corpus, but without depending on AES-NI for constant-time behavior.
package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/agent-browser/daemon/internal/paths"
	"github.com/agent-browser/daemon/internal/wire"
)

// KeySize is the symmetric key length in bytes (256 bits).
const KeySize = chacha20poly1305.KeySize

// nonceSize is the random nonce length in bytes (96 bits), chosen by the
// AEAD construction itself.
const nonceSize = chacha20poly1305.NonceSize

// Payload is the at-rest encrypted envelope: nonce and ciphertext (which
// includes the appended authentication tag), both stored base64 by callers
// that marshal to JSON as part of a credential record.
type Payload struct {
	Nonce      []byte
	Ciphertext []byte
}

// Encrypt seals plaintext under key with a freshly generated random nonce.
// aad (additional authenticated data) may be nil.
func Encrypt(key, plaintext, aad []byte) (Payload, error) {
	if len(key) != KeySize {
		return Payload{}, fmt.Errorf("cryptox: key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Payload{}, fmt.Errorf("cryptox: construct aead: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Payload{}, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)
	return Payload{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt opens payload under key, returning wire.KindAuthError on any tag
// mismatch or malformed nonce so callers can map it straight onto the
// daemon's error taxonomy without re-classifying a generic error string.
func Decrypt(key []byte, payload Payload, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, wire.New(wire.KindAuthError, "cryptox: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(payload.Nonce) != nonceSize {
		return nil, wire.New(wire.KindAuthError, "cryptox: invalid nonce size %d", len(payload.Nonce))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: construct aead: %w", err)
	}
	plaintext, err := aead.Open(nil, payload.Nonce, payload.Ciphertext, aad)
	if err != nil {
		return nil, wire.Wrap(wire.KindAuthError, err, "cryptox: authentication failed")
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("cryptox: generate key: %w", err)
	}
	return key, nil
}

// AcquireKey looks for an existing key: first the AGENT_BROWSER_ENCRYPTION_KEY
// environment variable (64 hex chars), then the key file. It returns (nil,
// nil) — not an error — if neither is present, so EnsureKey can distinguish
// "generate one" from "something is wrong".
func AcquireKey() ([]byte, error) {
	if envVal := strings.TrimSpace(os.Getenv(paths.EncryptionKeyEnv)); envVal != "" {
		key, err := hex.DecodeString(envVal)
		if err != nil || len(key) != KeySize {
			return nil, wire.New(wire.KindKeyMissing, "%s must be %d hex chars", paths.EncryptionKeyEnv, KeySize*2)
		}
		return key, nil
	}

	keyFile, err := paths.EncryptionKeyFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cryptox: read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(key) != KeySize {
		return nil, wire.New(wire.KindKeyMissing, "key file %s does not hold a valid %d-byte hex key", keyFile, KeySize)
	}
	return key, nil
}

// EnsureKey returns the acquired key, generating and persisting one to the
// key file on first use if none exists. logOnce is invoked with the key file
// path exactly once, only on auto-generation, so the caller can log it
// through its structured logger.
func EnsureKey(logOnce func(path string)) ([]byte, error) {
	key, err := AcquireKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	key, err = GenerateKey()
	if err != nil {
		return nil, err
	}
	keyFile, err := paths.EncryptionKeyFile()
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(keyFile, key); err != nil {
		return nil, err
	}
	if logOnce != nil {
		logOnce(keyFile)
	}
	return key, nil
}

func writeKeyFile(path string, key []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	encoded := hex.EncodeToString(key) + "\n"
	tmp, err := os.CreateTemp(dir, ".encryption-key-*")
	if err != nil {
		return fmt.Errorf("cryptox: create temp key file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: write temp key file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: chmod temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: close temp key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: replace key file: %w", err)
	}
	return nil
}

// EnsureDir creates dir mode 0700 on POSIX. Chmod failure on Windows (where
// the ACL model differs) is swallowed: best-effort, non-fatal and silent.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cryptox: create directory %s: %w", dir, err)
	}
	_ = os.Chmod(dir, 0o700)
	return nil
}

// WriteFileAtomic writes data to path with mode 0600 via a write-temp,
// chmod, rename sequence, matching the vault-header persistence pattern this
// package and internal/vault both build on.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cryptox: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cryptox: replace file: %w", err)
	}
	return nil
}
