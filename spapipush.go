package spapipush

import "github.com/goliatone/go-spapi-push/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Connection = core.Connection
type PushJob = core.PushJob
type PushJobStatus = core.PushJobStatus
type ConnectionStore = core.ConnectionStore
type PushJobStore = core.PushJobStore
type ListingImageStore = core.ListingImageStore
type TokenExchanger = core.TokenExchanger
type ListingPublisher = core.ListingPublisher
type RequestSigner = core.RequestSigner
type SecretProvider = core.SecretProvider

type BeginAuthRequest = core.BeginAuthRequest
type BeginAuthResponse = core.BeginAuthResponse

type CallbackRequest = core.CallbackRequest
type CallbackResponse = core.CallbackResponse

type CreatePushJobRequest = core.CreatePushJobRequest

type SearchListingsRequest = core.SearchListingsRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithConnectionStore   = core.WithConnectionStore
	WithPushJobStore      = core.WithPushJobStore
	WithListingImageStore = core.WithListingImageStore
	WithTokenExchanger    = core.WithTokenExchanger
	WithListingPublisher  = core.WithListingPublisher
	WithRequestSigner     = core.WithRequestSigner
	WithHTTPClient        = core.WithHTTPClient
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
