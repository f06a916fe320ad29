package core

import (
	"context"
	stderrors "errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestPushErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := pushErrorMapper(stderrors.New("core: user usr_1 is not connected to a seller account"))
	if mapped.TextCode != PushErrorNotConnected {
		t.Fatalf("expected not-connected text code, got %q", mapped.TextCode)
	}
	if mapped.Code == 0 {
		t.Fatalf("expected http status code on mapped error")
	}

	mapped = pushErrorMapper(stderrors.New("core: verify oauth state signature failed"))
	if mapped.TextCode != PushErrorAuth {
		t.Fatalf("expected auth code, got %q", mapped.TextCode)
	}
	if mapped.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %q", mapped.Category)
	}

	mapped = pushErrorMapper(stderrors.New("core: sku is required"))
	if mapped.TextCode != PushErrorBadInput {
		t.Fatalf("expected bad input code, got %q", mapped.TextCode)
	}
}

func TestPushErrorMapper_PreservesRichErrors(t *testing.T) {
	original := NewProviderError(400, `{"errors":[{"code":"INVALID_ATTRIBUTE"}]}`)
	mapped := pushErrorMapper(original)
	if mapped.TextCode != PushErrorProvider {
		t.Fatalf("expected provider code preserved, got %q", mapped.TextCode)
	}
	if mapped != original {
		t.Fatalf("expected rich error to pass through unchanged")
	}
}

func TestEnsurePushErrorEnvelope_FillsDefaults(t *testing.T) {
	bare := goerrors.New("something broke", goerrors.CategoryNotFound)
	enveloped := ensurePushErrorEnvelope(bare)
	if enveloped.TextCode != PushErrorNotFound {
		t.Fatalf("expected default not-found text code, got %q", enveloped.TextCode)
	}
	if enveloped.Code != 404 {
		t.Fatalf("expected 404, got %d", enveloped.Code)
	}
}

func TestHasTextCode(t *testing.T) {
	err := NewNotConnectedError("usr_1")
	if !HasTextCode(err, PushErrorNotConnected) {
		t.Fatalf("expected match for the carried text code")
	}
	if !HasTextCode(err, "push_not_connected") {
		t.Fatalf("expected case-insensitive match")
	}
	if HasTextCode(err, PushErrorProvider) {
		t.Fatalf("expected mismatch for a different code")
	}
	if HasTextCode(nil, PushErrorProvider) {
		t.Fatalf("expected nil error to never match")
	}
	if HasTextCode(stderrors.New("plain"), PushErrorProvider) {
		t.Fatalf("expected plain errors to never match")
	}
}

func TestServiceMethods_MapErrorsToStablePushCodes(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, testPushConfig())

	_, err := service.GetPushJob(ctx, "missing-job")
	if err == nil {
		t.Fatalf("expected missing job error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != PushErrorNotFound {
		t.Fatalf("expected not-found text code, got %q", richErr.TextCode)
	}

	_, err = service.CreatePushJob(ctx, CreatePushJobRequest{UserID: "user-1"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != PushErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", richErr.TextCode)
	}
}
