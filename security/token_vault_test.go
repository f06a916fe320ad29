package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestTokenVaultRoundTrip(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := vault.EncryptString(context.Background(), "Atzr|refresh-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.HasPrefix(ciphertext, []byte("spapi.token.v1:")) {
		t.Fatalf("ciphertext is missing the envelope prefix: %s", ciphertext)
	}
	if bytes.Contains(ciphertext, []byte("Atzr|refresh-token")) {
		t.Fatal("plaintext leaked into the envelope")
	}

	plaintext, err := vault.DecryptString(context.Background(), ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "Atzr|refresh-token" {
		t.Fatalf("plaintext = %q", plaintext)
	}
}

func TestTokenVaultEncryptIsNonDeterministic(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	first, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("nonce reuse: two encryptions produced identical envelopes")
	}
}

func TestTokenVaultRejectsWrongKey(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	other, err := NewTokenVaultFromString("fedcba9876543210fedcba9876543210")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(context.Background(), ciphertext); err == nil {
		t.Fatal("expected decryption under a different key to fail")
	}
}

func TestTokenVaultRejectsTamperedCiphertext(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ciphertext, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := strings.Replace(string(ciphertext), `"ciphertext":"`, `"ciphertext":"A`, 1)
	if _, err := vault.Decrypt(context.Background(), []byte(tampered)); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}
}

func TestTokenVaultRejectsKeyMetadataMismatch(t *testing.T) {
	writer, err := NewTokenVaultFromString(testKey, WithKeyID("key-2024"), WithVersion(2))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	reader, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	ciphertext, err := writer.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := reader.Decrypt(context.Background(), ciphertext); err == nil {
		t.Fatal("expected key id mismatch to be rejected before decryption")
	}
}

func TestTokenVaultDerivesKeyFromShortSecret(t *testing.T) {
	vault, err := NewTokenVaultFromString("short-operator-secret")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if !vault.derivedKey {
		t.Fatal("expected a non-AES-length secret to be derived")
	}

	ciphertext, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := vault.DecryptString(context.Background(), ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "token" {
		t.Fatalf("plaintext = %q", plaintext)
	}
}

func TestTokenVaultRequiresKeyMaterial(t *testing.T) {
	if _, err := NewTokenVaultFromString("   "); err == nil {
		t.Fatal("expected empty key material to be rejected")
	}
}

func TestTokenVaultRejectsEmptyInputs(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if _, err := vault.Encrypt(context.Background(), nil); err == nil {
		t.Fatal("expected empty plaintext to be rejected")
	}
	if _, err := vault.Decrypt(context.Background(), nil); err == nil {
		t.Fatal("expected empty ciphertext to be rejected")
	}
}

func TestTokenVaultRejectsMalformedNonce(t *testing.T) {
	vault, err := NewTokenVaultFromString(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ciphertext, err := vault.EncryptString(context.Background(), "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	var parsed envelope
	payload := strings.TrimPrefix(string(ciphertext), envelopePrefix)
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	// A truncated nonce on a stored row must error, never panic.
	parsed.Nonce = base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	mangled, err := json.Marshal(parsed)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if _, err := vault.Decrypt(context.Background(), append([]byte(envelopePrefix), mangled...)); err == nil {
		t.Fatal("expected a wrong-length nonce to be rejected")
	}

	parsed.Nonce = ""
	parsed.Ciphertext = ""
	mangled, err = json.Marshal(parsed)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if _, err := vault.Decrypt(context.Background(), append([]byte(envelopePrefix), mangled...)); err == nil {
		t.Fatal("expected an empty envelope payload to be rejected")
	}
}
