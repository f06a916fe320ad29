package amazon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-spapi-push/core"
)

const (
	lwaRequestTimeout  = 30 * time.Second
	maxLWAResponseBody = 1 << 20 // 1 MiB
)

// LWAClient talks to the Login with Amazon token endpoint. Both grant
// types go through the same form-encoded POST; only the grant fields
// differ.
type LWAClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   core.HTTPDoer
}

type lwaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func NewLWAClient(cfg core.Config, httpClient core.HTTPDoer) (*LWAClient, error) {
	clientID := strings.TrimSpace(cfg.LWA.ClientID)
	clientSecret := strings.TrimSpace(cfg.LWA.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, core.NewConfigurationError("amazon: lwa client_id and client_secret are required")
	}
	tokenURL := strings.TrimSpace(cfg.LWA.TokenURL)
	if tokenURL == "" {
		tokenURL = core.DefaultLWATokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: lwaRequestTimeout}
	}
	return &LWAClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
	}, nil
}

// ExchangeCode swaps the Seller Central authorization code for a grant.
// The refresh token is the long-lived credential; a response without one
// is useless and treated as a failed exchange.
func (c *LWAClient) ExchangeCode(ctx context.Context, code string) (core.TokenGrant, error) {
	if strings.TrimSpace(code) == "" {
		return core.TokenGrant{}, core.NewBadInputError("amazon: authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))

	parsed, err := c.postTokenForm(ctx, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	if strings.TrimSpace(parsed.RefreshToken) == "" {
		return core.TokenGrant{}, core.NewTokenExchangeError("amazon: token exchange response is missing the refresh token")
	}
	return core.TokenGrant{
		RefreshToken: parsed.RefreshToken,
		AccessToken:  parsed.AccessToken,
		ExpiresIn:    parsed.ExpiresIn,
	}, nil
}

// RefreshAccessToken mints a short-lived access token from the stored
// refresh token.
func (c *LWAClient) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", core.NewBadInputError("amazon: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))

	parsed, err := c.postTokenForm(ctx, form)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", core.NewTokenExchangeError("amazon: token refresh response is missing the access token")
	}
	return parsed.AccessToken, nil
}

func (c *LWAClient) postTokenForm(ctx context.Context, form url.Values) (lwaTokenResponse, error) {
	if c == nil || c.httpClient == nil {
		return lwaTokenResponse{}, core.NewConfigurationError("amazon: lwa client is not configured")
	}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return lwaTokenResponse{}, core.NewTokenExchangeError("amazon: build token request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return lwaTokenResponse{}, core.NewTokenExchangeError("amazon: token endpoint request failed: " + err.Error())
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxLWAResponseBody))
	if err != nil {
		return lwaTokenResponse{}, core.NewTokenExchangeError("amazon: read token response: " + err.Error())
	}
	if res.StatusCode >= http.StatusBadRequest {
		return lwaTokenResponse{}, core.NewTokenExchangeError(
			"amazon: token endpoint returned " + res.Status + ": " + truncateBody(body),
		)
	}

	parsed := lwaTokenResponse{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return lwaTokenResponse{}, core.NewTokenExchangeError("amazon: decode token response: " + err.Error())
	}
	return parsed, nil
}

func truncateBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 512 {
		trimmed = trimmed[:512]
	}
	if trimmed == "" {
		return "empty response body"
	}
	return trimmed
}

var _ core.TokenExchanger = (*LWAClient)(nil)
