package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	secretProvider   SecretProvider
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	connectionStore  ConnectionStore
	pushJobStore     PushJobStore
	imageStore       ListingImageStore
	tokenExchanger   TokenExchanger
	listingPublisher ListingPublisher
	signer           RequestSigner
	httpClient       HTTPDoer
	clock            func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithConnectionStore(store ConnectionStore) Option {
	return func(b *serviceBuilder) {
		b.connectionStore = store
	}
}

func WithPushJobStore(store PushJobStore) Option {
	return func(b *serviceBuilder) {
		b.pushJobStore = store
	}
}

func WithListingImageStore(store ListingImageStore) Option {
	return func(b *serviceBuilder) {
		b.imageStore = store
	}
}

func WithTokenExchanger(exchanger TokenExchanger) Option {
	return func(b *serviceBuilder) {
		b.tokenExchanger = exchanger
	}
}

func WithListingPublisher(publisher ListingPublisher) Option {
	return func(b *serviceBuilder) {
		b.listingPublisher = publisher
	}
}

func WithRequestSigner(signer RequestSigner) Option {
	return func(b *serviceBuilder) {
		b.signer = signer
	}
}

func WithHTTPClient(client HTTPDoer) Option {
	return func(b *serviceBuilder) {
		b.httpClient = client
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("spapi-push", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return pushErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap emits one nested map per populated config section so the
// stack merges section by section instead of field by field.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.LWA != (LWAConfig{}) {
		layer["lwa"] = map[string]any{
			"client_id":         cfg.LWA.ClientID,
			"client_secret":     cfg.LWA.ClientSecret,
			"app_id":            cfg.LWA.AppID,
			"redirect_uri":      cfg.LWA.RedirectURI,
			"auth_url":          cfg.LWA.AuthURL,
			"token_url":         cfg.LWA.TokenURL,
			"auth_version":      cfg.LWA.AuthVersion,
			"state_secret":      cfg.LWA.StateSecret,
			"state_ttl_seconds": cfg.LWA.StateTTLSeconds,
		}
	}
	if includeZero || cfg.AWS != (AWSConfig{}) {
		layer["aws"] = map[string]any{
			"access_key_id":     cfg.AWS.AccessKeyID,
			"secret_access_key": cfg.AWS.SecretAccessKey,
			"session_token":     cfg.AWS.SessionToken,
		}
	}
	if includeZero || cfg.SPAPI != (SPAPIConfig{}) {
		layer["spapi"] = map[string]any{
			"endpoint":               cfg.SPAPI.Endpoint,
			"region":                 cfg.SPAPI.Region,
			"service":                cfg.SPAPI.Service,
			"default_marketplace_id": cfg.SPAPI.DefaultMarketplaceID,
		}
	}
	if includeZero || cfg.Encryption != (EncryptionConfig{}) {
		layer["encryption"] = map[string]any{
			"key": cfg.Encryption.Key,
		}
	}
	if includeZero || cfg.Images != (ImagesConfig{}) {
		layer["images"] = map[string]any{
			"public_base_url": cfg.Images.PublicBaseURL,
		}
	}
	if includeZero || cfg.EnvConnection != (EnvConnectionConfig{}) {
		layer["env_connection"] = map[string]any{
			"refresh_token":  cfg.EnvConnection.RefreshToken,
			"seller_id":      cfg.EnvConnection.SellerID,
			"marketplace_id": cfg.EnvConnection.MarketplaceID,
		}
	}
	return layer
}
