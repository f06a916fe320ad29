package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// StateCodec builds and verifies the stateless OAuth state token:
// base64url(JSON payload) + "." + base64url(HMAC-SHA256 signature).
// Nothing is persisted server side; the signature makes the token
// self-verifying and the embedded expiry bounds its lifetime.
type StateCodec struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewStateCodec(secret string, ttl time.Duration) (StateCodec, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return StateCodec{}, NewConfigurationError("core: oauth state secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return StateCodec{Secret: []byte(trimmed), TTL: ttl}, nil
}

func (c StateCodec) BuildState(payload SignedStatePayload) (string, error) {
	if len(c.Secret) == 0 {
		return "", NewConfigurationError("core: oauth state secret is required")
	}
	if strings.TrimSpace(payload.UserID) == "" {
		return "", NewBadInputError("core: oauth state user id is required")
	}

	now := c.now()
	if payload.IssuedAt == 0 {
		payload.IssuedAt = now.Unix()
	}
	if payload.ExpiresAt == 0 {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = DefaultStateTTL
		}
		payload.ExpiresAt = now.Add(ttl).Unix()
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", NewAuthError("core: encode oauth state payload: " + err.Error())
	}
	body := base64.RawURLEncoding.EncodeToString(encoded)
	signature := base64.RawURLEncoding.EncodeToString(c.sign(body))
	return body + "." + signature, nil
}

// VerifyState recomputes the HMAC, compares it in constant time, and
// checks the embedded expiry. Any malformed input fails closed.
func (c StateCodec) VerifyState(state string) (SignedStatePayload, error) {
	if len(c.Secret) == 0 {
		return SignedStatePayload{}, NewConfigurationError("core: oauth state secret is required")
	}
	body, signature, found := strings.Cut(strings.TrimSpace(state), ".")
	if !found || body == "" || signature == "" {
		return SignedStatePayload{}, NewAuthError("core: malformed oauth state")
	}

	claimed, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return SignedStatePayload{}, NewAuthError("core: malformed oauth state signature")
	}
	if !hmac.Equal(claimed, c.sign(body)) {
		return SignedStatePayload{}, NewAuthError("core: oauth state signature mismatch")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return SignedStatePayload{}, NewAuthError("core: malformed oauth state payload")
	}
	payload := SignedStatePayload{}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return SignedStatePayload{}, NewAuthError("core: decode oauth state payload: " + err.Error())
	}
	if strings.TrimSpace(payload.UserID) == "" {
		return SignedStatePayload{}, NewAuthError("core: oauth state payload is missing the user id")
	}
	if payload.ExpiresAt > 0 && payload.ExpiresAt < c.now().Unix() {
		return SignedStatePayload{}, NewAuthError("core: oauth state expired")
	}
	return payload, nil
}

func (c StateCodec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.Secret)
	_, _ = mac.Write([]byte(body))
	return mac.Sum(nil)
}

func (c StateCodec) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}
