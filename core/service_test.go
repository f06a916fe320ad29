package core

import (
	"context"
	"net/url"
	"testing"
	"time"
)

func TestBeginAuthBuildsConsentURL(t *testing.T) {
	service, _ := newTestService(t, testPushConfig())

	response, err := service.BeginAuth(context.Background(), BeginAuthRequest{
		UserID:        "user-1",
		MarketplaceID: "ATVPDKIKX0DER",
		ReturnTo:      "/listings",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}

	consent, err := url.Parse(response.URL)
	if err != nil {
		t.Fatalf("parse consent url: %v", err)
	}
	query := consent.Query()
	if got := query.Get("application_id"); got != "amzn1.sp.solution.test" {
		t.Fatalf("application_id = %q", got)
	}
	if got := query.Get("redirect_uri"); got != "https://app.example.com/oauth/callback" {
		t.Fatalf("redirect_uri = %q", got)
	}
	if query.Get("state") != response.State {
		t.Fatalf("state in url %q does not match response state %q", query.Get("state"), response.State)
	}
	if response.ExpiresInSeconds != int(DefaultStateTTL.Seconds()) {
		t.Fatalf("expires in = %d", response.ExpiresInSeconds)
	}
}

func TestBeginAuthRequiresAppConfig(t *testing.T) {
	cfg := testPushConfig()
	cfg.LWA.AppID = ""
	service, _ := newTestService(t, cfg)

	_, err := service.BeginAuth(context.Background(), BeginAuthRequest{UserID: "user-1"})
	if err == nil {
		t.Fatal("expected begin auth without an app id to fail")
	}
	if !HasTextCode(err, PushErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBeginAuthRequiresUserID(t *testing.T) {
	service, _ := newTestService(t, testPushConfig())
	if _, err := service.BeginAuth(context.Background(), BeginAuthRequest{}); err == nil {
		t.Fatal("expected begin auth without a user id to fail")
	}
}

func TestCompleteCallbackStoresEncryptedConnection(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())

	begin, err := service.BeginAuth(context.Background(), BeginAuthRequest{
		UserID:   "user-1",
		ReturnTo: "/listings",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}

	response, err := service.CompleteCallback(context.Background(), CallbackRequest{
		State:            begin.State,
		SPAPIOAuthCode:   "auth-code",
		SellingPartnerID: "SELLER123",
	})
	if err != nil {
		t.Fatalf("complete callback: %v", err)
	}
	if response.UserID != "user-1" {
		t.Fatalf("user id = %q", response.UserID)
	}
	if response.SellerID != "SELLER123" {
		t.Fatalf("seller id = %q", response.SellerID)
	}
	if response.ReturnTo != "/listings" {
		t.Fatalf("return to = %q", response.ReturnTo)
	}

	connection, err := deps.connections.GetByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if connection.Mode != ConnectionModeOAuth {
		t.Fatalf("mode = %q", connection.Mode)
	}
	if string(connection.RefreshTokenEncrypted) != "enc:refresh-token" {
		t.Fatalf("refresh token was stored as %q, want it encrypted", connection.RefreshTokenEncrypted)
	}
	if connection.MarketplaceID != "ATVPDKIKX0DER" {
		t.Fatalf("marketplace = %q, want the configured default", connection.MarketplaceID)
	}
}

func TestCompleteCallbackRejectsForgedState(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())

	_, err := service.CompleteCallback(context.Background(), CallbackRequest{
		State:            "forged.state",
		SPAPIOAuthCode:   "auth-code",
		SellingPartnerID: "SELLER123",
	})
	if err == nil {
		t.Fatal("expected a forged state to be rejected")
	}
	if len(deps.connections.connections) != 0 {
		t.Fatal("a connection was stored for a forged state")
	}
}

func TestCompleteCallbackRequiresRefreshToken(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())
	deps.exchanger.grant = TokenGrant{AccessToken: "access-token", ExpiresIn: 3600}

	begin, err := service.BeginAuth(context.Background(), BeginAuthRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}
	_, err = service.CompleteCallback(context.Background(), CallbackRequest{
		State:            begin.State,
		SPAPIOAuthCode:   "auth-code",
		SellingPartnerID: "SELLER123",
	})
	if err == nil {
		t.Fatal("expected a grant without a refresh token to be rejected")
	}
	if !HasTextCode(err, PushErrorTokenExchange) {
		t.Fatalf("expected token exchange error, got %v", err)
	}
}

func TestGetConnectionStatus(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())

	status, err := service.GetConnectionStatus(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("status for a disconnected user: %v", err)
	}
	if status.Connected {
		t.Fatal("expected disconnected status")
	}

	connectUser(t, service, deps, "user-1")
	status, err = service.GetConnectionStatus(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("status for a connected user: %v", err)
	}
	if !status.Connected {
		t.Fatal("expected connected status")
	}
	if status.SellerID != "SELLER123" {
		t.Fatalf("seller id = %q", status.SellerID)
	}
	if status.Mode != ConnectionModeOAuth {
		t.Fatalf("mode = %q", status.Mode)
	}
	if status.ConnectedAt.IsZero() {
		t.Fatal("connected at was not set")
	}
}

func TestDisconnectRemovesConnection(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())
	connectUser(t, service, deps, "user-1")

	if err := service.Disconnect(context.Background(), "user-1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	status, err := service.GetConnectionStatus(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("status after disconnect: %v", err)
	}
	if status.Connected {
		t.Fatal("connection survived disconnect")
	}
}

func TestSearchListingsRequiresConnection(t *testing.T) {
	service, _ := newTestService(t, testPushConfig())

	_, err := service.SearchListings(context.Background(), SearchListingsRequest{
		UserID: "user-1",
		Query:  "mug",
	})
	if err == nil {
		t.Fatal("expected search for a disconnected user to fail")
	}
	if !HasTextCode(err, PushErrorNotConnected) {
		t.Fatalf("expected not-connected error, got %v", err)
	}
}

func TestSearchListingsReturnsProviderResult(t *testing.T) {
	service, deps := newTestService(t, testPushConfig())
	connectUser(t, service, deps, "user-1")
	deps.publisher.searchResult = SearchListingSkusResult{
		Listings: []ListingSummary{
			{SKU: "SKU-1", Title: "Ceramic Mug", ASIN: "B000TEST01"},
		},
		NextToken: "next-1",
	}

	result, err := service.SearchListings(context.Background(), SearchListingsRequest{
		UserID:   "user-1",
		Query:    "mug",
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("search listings: %v", err)
	}
	if len(result.Listings) != 1 || result.Listings[0].SKU != "SKU-1" {
		t.Fatalf("listings = %+v", result.Listings)
	}
	if result.NextToken != "next-1" {
		t.Fatalf("next token = %q", result.NextToken)
	}
}

func TestServiceClockDrivesStateCodec(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	service, err := NewService(testPushConfig(), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	begin, err := service.BeginAuth(context.Background(), BeginAuthRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}
	payload, err := service.stateCodec.VerifyState(begin.State)
	if err != nil {
		t.Fatalf("verify state: %v", err)
	}
	if payload.IssuedAt != fixed.Unix() {
		t.Fatalf("issued at = %d, want %d", payload.IssuedAt, fixed.Unix())
	}
}
