// Package vault implements the per-profile encrypted credential store (C2):
// validated names, CRUD over on-disk AEAD-encrypted JSON records, and
// last-login tracking. It is the only package with direct knowledge of the
// record layout; everything else consumes Meta only.
package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nbutton23/zxcvbn-go"

	"github.com/agent-browser/daemon/internal/cryptox"
	"github.com/agent-browser/daemon/internal/paths"
	"github.com/agent-browser/daemon/internal/wire"
)

// namePattern is the credential-name validity rule.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// recordVersion is the only at-rest envelope version this vault writes or
// reads.
const recordVersion = 1

// envelope is the on-disk JSON shape: {version, encrypted, iv, authTag, data}.
// iv and authTag are the AEAD nonce and the trailing tag bytes of data; Go's
// AEAD.Seal appends the tag to the ciphertext, so data and authTag are split
// here only to keep the wire shape spec-compatible — decrypt reassembles them.
type envelope struct {
	Version   int    `json:"version"`
	Encrypted bool   `json:"encrypted"`
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
	Data      string `json:"data"`
}

// tagSize is the chacha20poly1305 Poly1305 tag length in bytes.
const tagSize = 16

// Record is the full plaintext credential, including the password.
type Record struct {
	Name             string     `json:"name"`
	URL              string     `json:"url"`
	Username         string     `json:"username"`
	Password         string     `json:"password"`
	UsernameSelector string     `json:"usernameSelector,omitempty"`
	PasswordSelector string     `json:"passwordSelector,omitempty"`
	SubmitSelector   string     `json:"submitSelector,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
}

// Meta is a Record with the password omitted, the only shape consumers
// outside this package ever see.
type Meta struct {
	Name             string     `json:"name"`
	URL              string     `json:"url"`
	Username         string     `json:"username"`
	UsernameSelector string     `json:"usernameSelector,omitempty"`
	PasswordSelector string     `json:"passwordSelector,omitempty"`
	SubmitSelector   string     `json:"submitSelector,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	// Corrupt is set when list() could not decrypt this record; Name/URL/etc
	// are best-effort placeholders so the operator can still see it exists.
	Corrupt bool `json:"corrupt,omitempty"`
}

func metaOf(r Record) Meta {
	return Meta{
		Name:             r.Name,
		URL:              r.URL,
		Username:         r.Username,
		UsernameSelector: r.UsernameSelector,
		PasswordSelector: r.PasswordSelector,
		SubmitSelector:   r.SubmitSelector,
		CreatedAt:        r.CreatedAt,
		LastLoginAt:      r.LastLoginAt,
	}
}

// StrengthWarner receives an advisory password-strength message; it never
// blocks save and never receives the password itself.
type StrengthWarner func(name string, score int, feedback string)

// Vault is the credential store for one daemon instance. Key is loaded once
// at construction, via the same ensure-key-exists-or-generate semantics as
// cryptox.EnsureKey, and reused for every operation.
type Vault struct {
	key []byte
	// Warn is invoked with a zxcvbn strength advisory on save; nil disables
	// the check. Never logs the password itself.
	Warn StrengthWarner
}

// New constructs a Vault using key for AEAD operations. Pass the result of
// cryptox.EnsureKey.
func New(key []byte) *Vault {
	return &Vault{key: key}
}

// ValidateName reports whether name matches the vault's naming rule.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return wire.New(wire.KindInvalidName, "credential name %q must match ^[A-Za-z0-9_-]+$", name)
	}
	return nil
}

// SaveResult reports whether the save replaced an existing record.
type SaveResult struct {
	Updated bool
}

// Save validates name, preserves an existing record's CreatedAt, and writes
// the record atomically with mode 0600. selectors may be the zero value.
func (v *Vault) Save(name, url, username, password string, usernameSel, passwordSel, submitSel string) (SaveResult, error) {
	if err := ValidateName(name); err != nil {
		return SaveResult{}, err
	}

	existing, err := v.loadRecord(name)
	updated := false
	createdAt := time.Now().UTC()
	if err == nil {
		updated = true
		createdAt = existing.CreatedAt
	} else if wire.KindOf(err) != wire.KindNotFound {
		return SaveResult{}, err
	}

	record := Record{
		Name:             name,
		URL:              url,
		Username:         username,
		Password:         password,
		UsernameSelector: usernameSel,
		PasswordSelector: passwordSel,
		SubmitSelector:   submitSel,
		CreatedAt:        createdAt,
	}
	if updated && existing.LastLoginAt != nil {
		record.LastLoginAt = existing.LastLoginAt
	}

	if v.Warn != nil && password != "" {
		result := zxcvbn.PasswordStrength(password, []string{username, name, url})
		if result.Score < 3 {
			v.Warn(name, result.Score, "weak password: consider a longer, less guessable phrase")
		}
	}

	if err := v.writeRecord(record); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Updated: updated}, nil
}

// Get returns the full record, including password, or nil if it does not
// exist.
func (v *Vault) Get(name string) (*Record, error) {
	record, err := v.loadRecord(name)
	if err != nil {
		if wire.KindOf(err) == wire.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetMeta is Get with the password omitted.
func (v *Vault) GetMeta(name string) (*Meta, error) {
	record, err := v.Get(name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	meta := metaOf(*record)
	return &meta, nil
}

// List enumerates every *.json record in the auth directory. A record that
// fails to decrypt is surfaced with Corrupt=true and placeholder fields
// instead of being silently dropped, so the operator can see it exists.
func (v *Vault) List() ([]Meta, error) {
	dir, err := paths.AuthDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: list auth dir: %w", err)
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		record, err := v.loadRecord(name)
		if err != nil {
			metas = append(metas, Meta{Name: name, Corrupt: true})
			continue
		}
		metas = append(metas, metaOf(record))
	}
	return metas, nil
}

// Delete removes the named record, reporting whether it existed.
func (v *Vault) Delete(name string) (bool, error) {
	path, err := paths.AuthRecordPath(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("vault: delete record: %w", err)
	}
	return true, nil
}

// TouchLastLogin stamps lastLoginAt to now on the named record.
func (v *Vault) TouchLastLogin(name string) error {
	record, err := v.loadRecord(name)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	record.LastLoginAt = &now
	return v.writeRecord(record)
}

func (v *Vault) aad(name string) []byte {
	return []byte("agent-browser.credential." + name)
}

func (v *Vault) loadRecord(name string) (Record, error) {
	path, err := paths.AuthRecordPath(name)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, wire.New(wire.KindNotFound, "credential %q not found", name)
		}
		return Record{}, fmt.Errorf("vault: read record: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("vault: decode envelope: %w", err)
	}
	if env.Version != recordVersion || !env.Encrypted {
		return Record{}, fmt.Errorf("vault: unsupported record envelope")
	}
	if v.key == nil {
		return Record{}, wire.New(wire.KindKeyMissing, "encryption key not available")
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return Record{}, fmt.Errorf("vault: decode iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return Record{}, fmt.Errorf("vault: decode data: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return Record{}, fmt.Errorf("vault: decode auth tag: %w", err)
	}
	if len(tag) != tagSize {
		return Record{}, wire.New(wire.KindAuthError, "vault: malformed auth tag")
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)

	plaintext, err := cryptox.Decrypt(v.key, cryptox.Payload{Nonce: nonce, Ciphertext: sealed}, v.aad(name))
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return Record{}, fmt.Errorf("vault: decode record plaintext: %w", err)
	}
	return record, nil
}

func (v *Vault) writeRecord(record Record) error {
	if v.key == nil {
		return wire.New(wire.KindKeyMissing, "encryption key not available")
	}
	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("vault: encode record: %w", err)
	}
	payload, err := cryptox.Encrypt(v.key, plaintext, v.aad(record.Name))
	if err != nil {
		return err
	}
	ciphertext := payload.Ciphertext[:len(payload.Ciphertext)-tagSize]
	tag := payload.Ciphertext[len(payload.Ciphertext)-tagSize:]

	env := envelope{
		Version:   recordVersion,
		Encrypted: true,
		IV:        base64.StdEncoding.EncodeToString(payload.Nonce),
		AuthTag:   base64.StdEncoding.EncodeToString(tag),
		Data:      base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: encode envelope: %w", err)
	}

	path, err := paths.AuthRecordPath(record.Name)
	if err != nil {
		return err
	}
	if err := cryptox.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return cryptox.WriteFileAtomic(path, data)
}
