package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLWAAuthURL  = "https://sellercentral.amazon.com/apps/authorize/consent"
	DefaultLWATokenURL = "https://api.amazon.com/auth/o2/token"

	DefaultSPAPIEndpoint = "https://sellingpartnerapi-na.amazon.com"
	DefaultSPAPIRegion   = "us-east-1"
	DefaultSPAPIService  = "execute-api"

	DefaultStateTTL = 600 * time.Second
)

type LWAConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	AppID        string `koanf:"app_id" mapstructure:"app_id"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	AuthURL      string `koanf:"auth_url" mapstructure:"auth_url"`
	TokenURL     string `koanf:"token_url" mapstructure:"token_url"`
	AuthVersion  string `koanf:"auth_version" mapstructure:"auth_version"`
	// StateSecret keys the signed OAuth state. Falls back to ClientSecret
	// when unset.
	StateSecret     string `koanf:"state_secret" mapstructure:"state_secret"`
	StateTTLSeconds int    `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
}

type AWSConfig struct {
	AccessKeyID     string `koanf:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `koanf:"session_token" mapstructure:"session_token"`
}

type SPAPIConfig struct {
	Endpoint             string `koanf:"endpoint" mapstructure:"endpoint"`
	Region               string `koanf:"region" mapstructure:"region"`
	Service              string `koanf:"service" mapstructure:"service"`
	DefaultMarketplaceID string `koanf:"default_marketplace_id" mapstructure:"default_marketplace_id"`
}

type EncryptionConfig struct {
	// Key is the token-encryption key. When empty the vault derives one
	// from LWA.ClientSecret and logs a warning.
	Key string `koanf:"key" mapstructure:"key"`
}

type ImagesConfig struct {
	// PublicBaseURL converts internal storage paths into publicly
	// fetchable HTTPS URLs. SP-API fetches images over the public internet.
	PublicBaseURL string `koanf:"public_base_url" mapstructure:"public_base_url"`
}

// EnvConnectionConfig is the operator-configured connection override. When
// both the refresh token and seller id are present it takes precedence
// over any stored per-user connection.
type EnvConnectionConfig struct {
	RefreshToken  string `koanf:"refresh_token" mapstructure:"refresh_token"`
	SellerID      string `koanf:"seller_id" mapstructure:"seller_id"`
	MarketplaceID string `koanf:"marketplace_id" mapstructure:"marketplace_id"`
}

type Config struct {
	ServiceName   string              `koanf:"service_name" mapstructure:"service_name"`
	LWA           LWAConfig           `koanf:"lwa" mapstructure:"lwa"`
	AWS           AWSConfig           `koanf:"aws" mapstructure:"aws"`
	SPAPI         SPAPIConfig         `koanf:"spapi" mapstructure:"spapi"`
	Encryption    EncryptionConfig    `koanf:"encryption" mapstructure:"encryption"`
	Images        ImagesConfig        `koanf:"images" mapstructure:"images"`
	EnvConnection EnvConnectionConfig `koanf:"env_connection" mapstructure:"env_connection"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "spapi-push",
		LWA: LWAConfig{
			AuthURL:         DefaultLWAAuthURL,
			TokenURL:        DefaultLWATokenURL,
			StateTTLSeconds: int(DefaultStateTTL.Seconds()),
		},
		SPAPI: SPAPIConfig{
			Endpoint: DefaultSPAPIEndpoint,
			Region:   DefaultSPAPIRegion,
			Service:  DefaultSPAPIService,
		},
	}
}

// Validate checks structural invariants only. Settings required by a
// specific operation (LWA app id, AWS keys, public base URL) are checked at
// the call site so unrelated flows keep working without them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.LWA.StateTTLSeconds < 0 {
		return fmt.Errorf("core: lwa.state_ttl_seconds must not be negative")
	}
	return nil
}

func (c Config) stateTTL() time.Duration {
	if c.LWA.StateTTLSeconds <= 0 {
		return DefaultStateTTL
	}
	return time.Duration(c.LWA.StateTTLSeconds) * time.Second
}

func (c Config) stateSecret() string {
	if secret := strings.TrimSpace(c.LWA.StateSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(c.LWA.ClientSecret)
}

func (c Config) envConnectionConfigured() bool {
	return strings.TrimSpace(c.EnvConnection.RefreshToken) != "" &&
		strings.TrimSpace(c.EnvConnection.SellerID) != ""
}
