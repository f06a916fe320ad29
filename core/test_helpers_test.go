package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type memoryConnectionStore struct {
	mu          sync.Mutex
	connections map[string]Connection
	getCalls    int
}

func newMemoryConnectionStore() *memoryConnectionStore {
	return &memoryConnectionStore{connections: map[string]Connection{}}
}

func (s *memoryConnectionStore) Upsert(_ context.Context, connection Connection) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connection.ID == "" {
		connection.ID = fmt.Sprintf("conn-%d", len(s.connections)+1)
	}
	s.connections[connection.UserID] = connection
	return connection, nil
}

func (s *memoryConnectionStore) GetByUser(_ context.Context, userID string) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	connection, ok := s.connections[userID]
	if !ok {
		return Connection{}, ErrConnectionNotFound
	}
	return connection, nil
}

func (s *memoryConnectionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, userID)
	return nil
}

type memoryPushJobStore struct {
	mu   sync.Mutex
	jobs map[string]PushJob
}

func newMemoryPushJobStore() *memoryPushJobStore {
	return &memoryPushJobStore{jobs: map[string]PushJob{}}
}

func (s *memoryPushJobStore) Create(_ context.Context, job PushJob) (PushJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *memoryPushJobStore) Get(_ context.Context, id string) (PushJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return PushJob{}, ErrPushJobNotFound
	}
	return job, nil
}

func (s *memoryPushJobStore) Update(_ context.Context, job PushJob) (PushJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return PushJob{}, ErrPushJobNotFound
	}
	if current.Status.Terminal() {
		return current, ErrPushJobTerminal
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *memoryPushJobStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func timeRef(value time.Time) *time.Time {
	return &value
}

type memoryListingImageStore struct {
	images []ListingImage
	err    error
}

func (s *memoryListingImageStore) LatestCompletedBySession(_ context.Context, sessionID string, imageTypes []string) ([]ListingImage, error) {
	if s.err != nil {
		return nil, s.err
	}
	newest := map[string]ListingImage{}
	for _, image := range s.images {
		if image.SessionID != sessionID || image.Status != ListingImageStatusCompleted || image.StoragePath == "" {
			continue
		}
		if image.CompletedAt == nil {
			continue
		}
		existing, seen := newest[image.ImageType]
		if !seen || image.CompletedAt.After(*existing.CompletedAt) {
			newest[image.ImageType] = image
		}
	}
	out := make([]ListingImage, 0, len(imageTypes))
	for _, imageType := range imageTypes {
		if image, ok := newest[imageType]; ok {
			out = append(out, image)
		}
	}
	return out, nil
}

type fakeTokenExchanger struct {
	grant         TokenGrant
	exchangeErr   error
	accessToken   string
	refreshErr    error
	refreshInputs []string
}

func (f *fakeTokenExchanger) ExchangeCode(context.Context, string) (TokenGrant, error) {
	if f.exchangeErr != nil {
		return TokenGrant{}, f.exchangeErr
	}
	return f.grant, nil
}

func (f *fakeTokenExchanger) RefreshAccessToken(_ context.Context, refreshToken string) (string, error) {
	f.refreshInputs = append(f.refreshInputs, refreshToken)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	if f.accessToken == "" {
		return "fake-access-token", nil
	}
	return f.accessToken, nil
}

type fakeListingPublisher struct {
	patchInputs  []PatchListingImagesInput
	patchResult  PatchListingImagesResult
	patchErr     error
	searchResult SearchListingSkusResult
	searchErr    error
}

func (f *fakeListingPublisher) PatchListingImages(_ context.Context, in PatchListingImagesInput) (PatchListingImagesResult, error) {
	f.patchInputs = append(f.patchInputs, in)
	if f.patchErr != nil {
		return PatchListingImagesResult{}, f.patchErr
	}
	if f.patchResult.SubmissionID == "" {
		return PatchListingImagesResult{StatusCode: 200, SubmissionID: "sub-1"}, nil
	}
	return f.patchResult, nil
}

func (f *fakeListingPublisher) SearchListingSkus(context.Context, SearchListingSkusInput) (SearchListingSkusResult, error) {
	if f.searchErr != nil {
		return SearchListingSkusResult{}, f.searchErr
	}
	return f.searchResult, nil
}

type passthroughSecretProvider struct{}

func (passthroughSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte("enc:"), plaintext...), nil
}

func (passthroughSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 4 || string(ciphertext[:4]) != "enc:" {
		return nil, fmt.Errorf("test: unexpected ciphertext")
	}
	return ciphertext[4:], nil
}

type testServiceDeps struct {
	connections *memoryConnectionStore
	jobs        *memoryPushJobStore
	images      *memoryListingImageStore
	exchanger   *fakeTokenExchanger
	publisher   *fakeListingPublisher
}

func newTestService(t *testing.T, cfg Config) (*Service, *testServiceDeps) {
	t.Helper()
	deps := &testServiceDeps{
		connections: newMemoryConnectionStore(),
		jobs:        newMemoryPushJobStore(),
		images:      &memoryListingImageStore{},
		exchanger:   &fakeTokenExchanger{grant: TokenGrant{RefreshToken: "refresh-token", AccessToken: "access-token", ExpiresIn: 3600}},
		publisher:   &fakeListingPublisher{},
	}
	service, err := NewService(cfg,
		WithConnectionStore(deps.connections),
		WithPushJobStore(deps.jobs),
		WithListingImageStore(deps.images),
		WithTokenExchanger(deps.exchanger),
		WithListingPublisher(deps.publisher),
		WithSecretProvider(passthroughSecretProvider{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, deps
}

func testPushConfig() Config {
	cfg := DefaultConfig()
	cfg.LWA.ClientID = "client-id"
	cfg.LWA.ClientSecret = "client-secret"
	cfg.LWA.AppID = "amzn1.sp.solution.test"
	cfg.LWA.RedirectURI = "https://app.example.com/oauth/callback"
	cfg.Images.PublicBaseURL = "https://cdn.example.com"
	cfg.SPAPI.DefaultMarketplaceID = "ATVPDKIKX0DER"
	return cfg
}

func connectUser(t *testing.T, service *Service, deps *testServiceDeps, userID string) {
	t.Helper()
	encrypted, err := passthroughSecretProvider{}.Encrypt(context.Background(), []byte("refresh-token"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	_, err = deps.connections.Upsert(context.Background(), Connection{
		UserID:                userID,
		SellerID:              "SELLER123",
		MarketplaceID:         "ATVPDKIKX0DER",
		Mode:                  ConnectionModeOAuth,
		RefreshTokenEncrypted: encrypted,
		ConnectedAt:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	_ = service
}
