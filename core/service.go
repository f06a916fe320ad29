package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config           Config
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
	stateCodec       StateCodec
	clock            func() time.Time
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	SecretProvider   SecretProvider
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	ConnectionStore  ConnectionStore
	PushJobStore     PushJobStore
	ImageStore       ListingImageStore
	TokenExchanger   TokenExchanger
	ListingPublisher ListingPublisher
	Signer           RequestSigner
	HTTPClient       HTTPDoer
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("spapi-push", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("spapi-push"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	service := &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		secretProvider:   builder.secretProvider,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		connectionStore:  builder.connectionStore,
		pushJobStore:     builder.pushJobStore,
		imageStore:       builder.imageStore,
		tokenExchanger:   builder.tokenExchanger,
		listingPublisher: builder.listingPublisher,
		signer:           builder.signer,
		httpClient:       builder.httpClient,
		clock:            builder.clock,
	}

	if secret := finalConfig.stateSecret(); secret != "" {
		codec, codecErr := NewStateCodec(secret, finalConfig.stateTTL())
		if codecErr != nil {
			return nil, mapBuildError(builder.errorMapper, codecErr)
		}
		codec.Now = service.clock
		service.stateCodec = codec
	}

	return service, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		SecretProvider:   s.secretProvider,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		ConnectionStore:  s.connectionStore,
		PushJobStore:     s.pushJobStore,
		ImageStore:       s.imageStore,
		TokenExchanger:   s.tokenExchanger,
		ListingPublisher: s.listingPublisher,
		Signer:           s.signer,
		HTTPClient:       s.httpClient,
	}
}

type BeginAuthRequest struct {
	UserID        string
	MarketplaceID string
	ReturnTo      string
}

type BeginAuthResponse struct {
	URL              string
	State            string
	ExpiresInSeconds int
}

// BeginAuth builds the Seller Central consent URL with a signed state
// token. Nothing is persisted; the callback verifies the state instead.
func (s *Service) BeginAuth(ctx context.Context, req BeginAuthRequest) (response BeginAuthResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":        req.UserID,
		"marketplace_id": req.MarketplaceID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_auth", err, fields)
	}()

	if strings.TrimSpace(req.UserID) == "" {
		err = s.mapError(NewBadInputError("core: user id is required"))
		return BeginAuthResponse{}, err
	}
	appID := strings.TrimSpace(s.config.LWA.AppID)
	redirectURI := strings.TrimSpace(s.config.LWA.RedirectURI)
	if appID == "" || redirectURI == "" {
		err = s.mapError(NewConfigurationError("core: lwa app_id and redirect_uri are required to begin auth"))
		return BeginAuthResponse{}, err
	}
	if len(s.stateCodec.Secret) == 0 {
		err = s.mapError(NewConfigurationError("core: lwa state secret or client secret is required to begin auth"))
		return BeginAuthResponse{}, err
	}

	state, err := s.stateCodec.BuildState(SignedStatePayload{
		UserID:        strings.TrimSpace(req.UserID),
		MarketplaceID: strings.TrimSpace(req.MarketplaceID),
		ReturnTo:      strings.TrimSpace(req.ReturnTo),
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	authURL := strings.TrimSpace(s.config.LWA.AuthURL)
	if authURL == "" {
		authURL = DefaultLWAAuthURL
	}
	consent, parseErr := url.Parse(authURL)
	if parseErr != nil {
		err = s.mapError(NewConfigurationError("core: invalid lwa auth url: " + parseErr.Error()))
		return BeginAuthResponse{}, err
	}
	query := consent.Query()
	query.Set("application_id", appID)
	query.Set("state", state)
	query.Set("redirect_uri", redirectURI)
	if version := strings.TrimSpace(s.config.LWA.AuthVersion); version != "" {
		query.Set("version", version)
	}
	consent.RawQuery = query.Encode()

	return BeginAuthResponse{
		URL:              consent.String(),
		State:            state,
		ExpiresInSeconds: int(s.config.stateTTL().Seconds()),
	}, nil
}

type CallbackRequest struct {
	State            string
	SPAPIOAuthCode   string
	SellingPartnerID string
}

type CallbackResponse struct {
	UserID   string
	SellerID string
	ReturnTo string
}

// CompleteCallback verifies the signed state, exchanges the authorization
// code for a refresh token, and stores the connection with the refresh
// token encrypted at rest.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (response CallbackResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"seller_id": req.SellingPartnerID,
	}
	defer func() {
		if response.UserID != "" {
			fields["user_id"] = response.UserID
		}
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if s.connectionStore == nil {
		err = s.mapError(NewConfigurationError("core: connection store is required to complete auth"))
		return CallbackResponse{}, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(NewConfigurationError("core: token exchanger is required to complete auth"))
		return CallbackResponse{}, err
	}
	if s.secretProvider == nil {
		err = s.mapError(NewConfigurationError("core: secret provider is required to complete auth"))
		return CallbackResponse{}, err
	}
	if strings.TrimSpace(req.SPAPIOAuthCode) == "" {
		err = s.mapError(NewBadInputError("core: spapi oauth code is required"))
		return CallbackResponse{}, err
	}
	sellerID := strings.TrimSpace(req.SellingPartnerID)
	if sellerID == "" {
		err = s.mapError(NewBadInputError("core: selling partner id is required"))
		return CallbackResponse{}, err
	}

	payload, err := s.stateCodec.VerifyState(req.State)
	if err != nil {
		err = s.mapError(err)
		return CallbackResponse{}, err
	}

	grant, err := s.tokenExchanger.ExchangeCode(ctx, strings.TrimSpace(req.SPAPIOAuthCode))
	if err != nil {
		err = s.mapError(err)
		return CallbackResponse{}, err
	}
	if strings.TrimSpace(grant.RefreshToken) == "" {
		err = s.mapError(NewTokenExchangeError("core: token exchange response is missing the refresh token"))
		return CallbackResponse{}, err
	}

	encrypted, err := s.secretProvider.Encrypt(ctx, []byte(grant.RefreshToken))
	if err != nil {
		err = s.mapError(err)
		return CallbackResponse{}, err
	}

	marketplaceID := payload.MarketplaceID
	if marketplaceID == "" {
		marketplaceID = strings.TrimSpace(s.config.SPAPI.DefaultMarketplaceID)
	}
	now := s.now()
	connection := Connection{
		UserID:                payload.UserID,
		SellerID:              sellerID,
		MarketplaceID:         marketplaceID,
		Mode:                  ConnectionModeOAuth,
		RefreshTokenEncrypted: encrypted,
		ConnectedAt:           now,
		UpdatedAt:             now,
	}
	if err = connection.Validate(); err != nil {
		err = s.mapError(err)
		return CallbackResponse{}, err
	}
	if _, err = s.connectionStore.Upsert(ctx, connection); err != nil {
		err = s.mapError(err)
		return CallbackResponse{}, err
	}

	return CallbackResponse{
		UserID:   payload.UserID,
		SellerID: sellerID,
		ReturnTo: payload.ReturnTo,
	}, nil
}

type ConnectionStatus struct {
	Connected     bool
	Mode          ConnectionMode
	SellerID      string
	MarketplaceID string
	ConnectedAt   time.Time
}

// GetConnectionStatus reports the connection the push flow would use for
// the user, env override included. Token material is never exposed.
func (s *Service) GetConnectionStatus(ctx context.Context, userID string) (ConnectionStatus, error) {
	connection, err := s.resolveConnection(ctx, userID)
	if err != nil {
		if HasTextCode(err, PushErrorNotConnected) {
			return ConnectionStatus{}, nil
		}
		return ConnectionStatus{}, s.mapError(err)
	}
	return ConnectionStatus{
		Connected:     true,
		Mode:          connection.Mode,
		SellerID:      connection.SellerID,
		MarketplaceID: connection.MarketplaceID,
		ConnectedAt:   connection.ConnectedAt,
	}, nil
}

// Disconnect removes the stored connection and its encrypted refresh
// token. In-flight jobs fail on their next advance when they try to
// resolve the connection.
func (s *Service) Disconnect(ctx context.Context, userID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if s.connectionStore == nil {
		err = s.mapError(NewConfigurationError("core: connection store is required to disconnect"))
		return err
	}
	if strings.TrimSpace(userID) == "" {
		err = s.mapError(NewBadInputError("core: user id is required"))
		return err
	}
	if err = s.connectionStore.Delete(ctx, strings.TrimSpace(userID)); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

type SearchListingsRequest struct {
	UserID    string
	Query     string
	PageSize  int
	PageToken string
}

// SearchListings looks up the user's catalog SKUs through SP-API so a
// push target can be chosen without typing SKUs by hand.
func (s *Service) SearchListings(ctx context.Context, req SearchListingsRequest) (result SearchListingSkusResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id": req.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "search_listings", err, fields)
	}()

	if s.listingPublisher == nil {
		err = s.mapError(NewConfigurationError("core: listing publisher is required to search listings"))
		return SearchListingSkusResult{}, err
	}

	connection, err := s.resolveConnection(ctx, req.UserID)
	if err != nil {
		err = s.mapError(err)
		return SearchListingSkusResult{}, err
	}
	accessToken, err := s.mintAccessToken(ctx, connection)
	if err != nil {
		err = s.mapError(err)
		return SearchListingSkusResult{}, err
	}

	result, err = s.listingPublisher.SearchListingSkus(ctx, SearchListingSkusInput{
		AccessToken:   accessToken,
		SellerID:      connection.SellerID,
		MarketplaceID: connection.MarketplaceID,
		Query:         strings.TrimSpace(req.Query),
		PageSize:      req.PageSize,
		PageToken:     strings.TrimSpace(req.PageToken),
	})
	if err != nil {
		err = s.mapError(err)
		return SearchListingSkusResult{}, err
	}
	return result, nil
}

// resolveConnection prefers the operator-configured env connection over
// anything stored per user. Returns a not-connected error when neither
// source yields a usable seller id.
func (s *Service) resolveConnection(ctx context.Context, userID string) (Connection, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Connection{}, NewBadInputError("core: user id is required")
	}

	if s.config.envConnectionConfigured() {
		marketplaceID := strings.TrimSpace(s.config.EnvConnection.MarketplaceID)
		if marketplaceID == "" {
			marketplaceID = strings.TrimSpace(s.config.SPAPI.DefaultMarketplaceID)
		}
		return Connection{
			UserID:        userID,
			SellerID:      strings.TrimSpace(s.config.EnvConnection.SellerID),
			MarketplaceID: marketplaceID,
			Mode:          ConnectionModeEnv,
		}, nil
	}

	if s.connectionStore == nil {
		return Connection{}, NewConfigurationError("core: connection store is required to resolve connections")
	}
	connection, err := s.connectionStore.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrConnectionNotFound) || HasTextCode(err, PushErrorNotFound) {
			return Connection{}, NewNotConnectedError(userID)
		}
		return Connection{}, err
	}
	if strings.TrimSpace(connection.SellerID) == "" {
		return Connection{}, NewNotConnectedError(userID)
	}
	return connection, nil
}

// mintAccessToken turns the connection's refresh token into a short-lived
// LWA access token. Access tokens are never stored.
func (s *Service) mintAccessToken(ctx context.Context, connection Connection) (string, error) {
	if s.tokenExchanger == nil {
		return "", NewConfigurationError("core: token exchanger is required to mint access tokens")
	}
	refreshToken, err := s.resolveRefreshToken(ctx, connection)
	if err != nil {
		return "", err
	}
	accessToken, err := s.tokenExchanger.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(accessToken) == "" {
		return "", NewTokenExchangeError("core: token refresh response is missing the access token")
	}
	return accessToken, nil
}

func (s *Service) resolveRefreshToken(ctx context.Context, connection Connection) (string, error) {
	if connection.Mode == ConnectionModeEnv {
		token := strings.TrimSpace(s.config.EnvConnection.RefreshToken)
		if token == "" {
			return "", NewConfigurationError("core: env connection refresh token is not configured")
		}
		return token, nil
	}
	if len(connection.RefreshTokenEncrypted) == 0 {
		return "", NewNotConnectedError(connection.UserID)
	}
	if s.secretProvider == nil {
		return "", NewConfigurationError("core: secret provider is required to decrypt refresh tokens")
	}
	plaintext, err := s.secretProvider.Decrypt(ctx, connection.RefreshTokenEncrypted)
	if err != nil {
		return "", NewAuthError("core: decrypt stored refresh token: " + err.Error())
	}
	return string(plaintext), nil
}

func (s *Service) now() time.Time {
	if s != nil && s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
