package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-spapi-push/core"
)

const (
	envelopePrefix    = "spapi.token.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type Option func(*TokenVault)

// TokenVault encrypts refresh tokens with AES-256-GCM before they hit the
// database. The ciphertext is wrapped in a prefixed JSON envelope so key
// rotations can be recognized without attempting a decrypt.
type TokenVault struct {
	key        []byte
	keyID      string
	version    int
	derivedKey bool
	logger     core.Logger
}

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func WithKeyID(id string) Option {
	return func(vault *TokenVault) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			vault.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(vault *TokenVault) {
		if version > 0 {
			vault.version = version
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(vault *TokenVault) {
		if logger != nil {
			vault.logger = logger
		}
	}
}

func NewTokenVault(keyMaterial []byte, opts ...Option) (*TokenVault, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	normalized, derived := normalizeKey(key)
	vault := &TokenVault{
		key:        normalized,
		keyID:      "token-key",
		version:    1,
		derivedKey: derived,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(vault)
	}
	if vault.derivedKey && vault.logger != nil {
		vault.logger.Warn(
			"token vault key is not a valid AES key length, deriving one with sha-256; configure a 32-byte key",
			"key_id", vault.keyID,
		)
	}
	return vault, nil
}

func NewTokenVaultFromString(key string, opts ...Option) (*TokenVault, error) {
	return NewTokenVault([]byte(key), opts...)
}

func (v *TokenVault) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("security: token vault is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	data, err := json.Marshal(envelope{
		KeyID:      v.keyID,
		Version:    v.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}

	return append([]byte(envelopePrefix), data...), nil
}

func (v *TokenVault) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("security: token vault is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}

	payload := string(ciphertext)
	if strings.HasPrefix(payload, envelopePrefix) {
		payload = strings.TrimPrefix(payload, envelopePrefix)
	}

	var parsed envelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("security: decode envelope: %w", err)
	}

	if parsed.KeyID != "" && parsed.KeyID != v.keyID {
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, v.keyID)
	}
	if parsed.Version > 0 && parsed.Version != v.version {
		return nil, fmt.Errorf("security: key version mismatch: got %d want %d", parsed.Version, v.version)
	}
	if algorithm := strings.ToLower(strings.TrimSpace(parsed.Algorithm)); algorithm != "" && algorithm != envelopeAlgorithm {
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", parsed.Algorithm)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	encryptedPayload, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	// gcm.Open panics on a wrong-length nonce; a corrupted stored row must
	// surface as an error instead.
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: nonce length %d does not match gcm nonce size %d", len(nonce), gcm.NonceSize())
	}
	if len(encryptedPayload) == 0 {
		return nil, fmt.Errorf("security: envelope ciphertext payload is empty")
	}

	plaintext, err := gcm.Open(nil, nonce, encryptedPayload, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (v *TokenVault) EncryptString(ctx context.Context, plaintext string) ([]byte, error) {
	return v.Encrypt(ctx, []byte(plaintext))
}

func (v *TokenVault) DecryptString(ctx context.Context, ciphertext []byte) (string, error) {
	plaintext, err := v.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (v *TokenVault) KeyID() string {
	if v == nil {
		return ""
	}
	return v.keyID
}

func (v *TokenVault) Version() int {
	if v == nil {
		return 0
	}
	return v.version
}

// normalizeKey accepts a ready AES key or derives one from arbitrary key
// material. Derivation keeps short operator-supplied secrets working but
// is reported so deployments can move to a real 32-byte key.
func normalizeKey(value []byte) ([]byte, bool) {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key, false
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key, true
}

var _ core.SecretProvider = (*TokenVault)(nil)
