package core

import (
	"strings"
	"testing"
	"time"
)

func TestStateCodecRoundTrip(t *testing.T) {
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	state, err := codec.BuildState(SignedStatePayload{
		UserID:        "user-1",
		MarketplaceID: "ATVPDKIKX0DER",
		ReturnTo:      "/listings",
	})
	if err != nil {
		t.Fatalf("build state: %v", err)
	}
	if !strings.Contains(state, ".") {
		t.Fatalf("state %q has no signature separator", state)
	}

	payload, err := codec.VerifyState(state)
	if err != nil {
		t.Fatalf("verify state: %v", err)
	}
	if payload.UserID != "user-1" {
		t.Fatalf("user id = %q", payload.UserID)
	}
	if payload.MarketplaceID != "ATVPDKIKX0DER" {
		t.Fatalf("marketplace id = %q", payload.MarketplaceID)
	}
	if payload.ReturnTo != "/listings" {
		t.Fatalf("return to = %q", payload.ReturnTo)
	}
	if payload.IssuedAt == 0 || payload.ExpiresAt == 0 {
		t.Fatalf("timestamps were not filled: %+v", payload)
	}
}

func TestStateCodecRejectsTamperedBody(t *testing.T) {
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	state, err := codec.BuildState(SignedStatePayload{UserID: "user-1"})
	if err != nil {
		t.Fatalf("build state: %v", err)
	}

	body, signature, _ := strings.Cut(state, ".")
	flipped := flipFirstRune(body) + "." + signature
	if _, err := codec.VerifyState(flipped); err == nil {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestStateCodecRejectsTamperedSignature(t *testing.T) {
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	state, err := codec.BuildState(SignedStatePayload{UserID: "user-1"})
	if err != nil {
		t.Fatalf("build state: %v", err)
	}

	body, signature, _ := strings.Cut(state, ".")
	tampered := body + "." + flipFirstRune(signature)
	if _, err := codec.VerifyState(tampered); err == nil {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestStateCodecRejectsWrongSecret(t *testing.T) {
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	state, err := codec.BuildState(SignedStatePayload{UserID: "user-1"})
	if err != nil {
		t.Fatalf("build state: %v", err)
	}

	other, err := NewStateCodec("other-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if _, err := other.VerifyState(state); err == nil {
		t.Fatal("expected verification under a different secret to fail")
	}
}

func TestStateCodecRejectsExpiredState(t *testing.T) {
	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	codec.Now = func() time.Time { return issued }

	state, err := codec.BuildState(SignedStatePayload{UserID: "user-1"})
	if err != nil {
		t.Fatalf("build state: %v", err)
	}

	codec.Now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = codec.VerifyState(state)
	if err == nil {
		t.Fatal("expected expired state to fail verification")
	}
	if !HasTextCode(err, PushErrorAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestStateCodecRejectsMalformedInput(t *testing.T) {
	codec, err := NewStateCodec("state-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	for _, state := range []string{"", "no-separator", ".", "body.", ".sig", "body.!!!"} {
		if _, err := codec.VerifyState(state); err == nil {
			t.Fatalf("expected malformed state %q to fail", state)
		}
	}
}

func flipFirstRune(value string) string {
	if value == "" {
		return value
	}
	replacement := "A"
	if strings.HasPrefix(value, "A") {
		replacement = "B"
	}
	return replacement + value[1:]
}
