package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SecretProvider encrypts and decrypts stored refresh tokens. Decrypt must
// fail on integrity errors, never return garbage.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// RequestSigner produces the header set an SP-API endpoint accepts for the
// given request. The access token is the LWA token carried alongside the
// AWS SigV4 signature.
type RequestSigner interface {
	Sign(ctx context.Context, req *http.Request, accessToken string) error
}

type MetricsRecorder interface {
	RecordCounter(ctx context.Context, name string, value float64, tags map[string]string)
	RecordHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) RecordCounter(context.Context, string, float64, map[string]string)   {}
func (NopMetricsRecorder) RecordHistogram(context.Context, string, float64, map[string]string) {}

type ConnectionStore interface {
	// Upsert stores the connection for its user, replacing any previous row.
	Upsert(ctx context.Context, connection Connection) (Connection, error)
	// GetByUser returns ErrConnectionNotFound when the user has no connection.
	GetByUser(ctx context.Context, userID string) (Connection, error)
	// Delete hard-clears the user's connection. Deleting a missing row is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

type PushJobStore interface {
	Create(ctx context.Context, job PushJob) (PushJob, error)
	Get(ctx context.Context, id string) (PushJob, error)
	// Update rejects writes against terminal rows with ErrPushJobTerminal.
	Update(ctx context.Context, job PushJob) (PushJob, error)
	// DeleteOlderThan removes terminal jobs updated before the cutoff. The
	// core never calls it; retention is an operator decision.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ListingImageStore is the consumption contract against the image
// generation pipeline, which owns the records.
type ListingImageStore interface {
	// LatestCompletedBySession returns, for each requested image type, the
	// most recently completed record in the session, newest first per type,
	// preserving the order of imageTypes. Types with no completed record are
	// simply absent.
	LatestCompletedBySession(ctx context.Context, sessionID string, imageTypes []string) ([]ListingImage, error)
}

type TokenGrant struct {
	RefreshToken string
	AccessToken  string
	ExpiresIn    int64
}

// TokenExchanger is the LWA token endpoint client.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code string) (TokenGrant, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

type PatchListingImagesInput struct {
	AccessToken   string
	SellerID      string
	SKU           string
	MarketplaceID string
	ImageURLs     []string
}

type PatchListingImagesResult struct {
	StatusCode   int
	SubmissionID string
	Response     map[string]any
}

type SearchListingSkusInput struct {
	AccessToken   string
	SellerID      string
	MarketplaceID string
	Query         string
	PageSize      int
	PageToken     string
}

type SearchListingSkusResult struct {
	Listings  []ListingSummary
	NextToken string
}

// ListingPublisher is the SP-API Listings Items client surface consumed by
// the push coordinator.
type ListingPublisher interface {
	PatchListingImages(ctx context.Context, in PatchListingImagesInput) (PatchListingImagesResult, error)
	SearchListingSkus(ctx context.Context, in SearchListingSkusInput) (SearchListingSkusResult, error)
}

// Job queue contracts, satisfied by the go-job adapters. They keep the core
// free of a hard dependency on any one queue implementation.

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
