package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CreatePushJobRequest struct {
	UserID        string
	SessionID     string
	SKU           string
	ASIN          string
	MarketplaceID string
	// ImagePaths, when set, bypasses image resolution and submits these
	// paths directly. Anything beyond the slot limit is dropped.
	ImagePaths []string
}

// CreatePushJob validates the request, checks the user has a usable
// connection, and persists a queued job. Nothing touches SP-API until the
// job is advanced.
func (s *Service) CreatePushJob(ctx context.Context, req CreatePushJobRequest) (job PushJob, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id": req.UserID,
		"sku":     req.SKU,
	}
	defer func() {
		if job.ID != "" {
			fields["job_id"] = job.ID
		}
		s.observeOperation(ctx, startedAt, "create_push_job", err, fields)
	}()

	if s.pushJobStore == nil {
		err = s.mapError(NewConfigurationError("core: push job store is required to create push jobs"))
		return PushJob{}, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		err = s.mapError(NewBadInputError("core: user id is required"))
		return PushJob{}, err
	}
	if strings.TrimSpace(req.SKU) == "" {
		err = s.mapError(NewBadInputError("core: sku is required"))
		return PushJob{}, err
	}
	if strings.TrimSpace(req.SessionID) == "" && len(req.ImagePaths) == 0 {
		err = s.mapError(NewBadInputError("core: a session id or explicit image paths are required"))
		return PushJob{}, err
	}

	// Fail fast before queueing: a job for a disconnected user would only
	// fail on its first advance anyway.
	connection, err := s.resolveConnection(ctx, req.UserID)
	if err != nil {
		err = s.mapError(err)
		return PushJob{}, err
	}

	marketplaceID := strings.TrimSpace(req.MarketplaceID)
	if marketplaceID == "" {
		marketplaceID = connection.MarketplaceID
	}
	if marketplaceID == "" {
		marketplaceID = strings.TrimSpace(s.config.SPAPI.DefaultMarketplaceID)
	}

	now := s.now()
	job = PushJob{
		ID:                  uuid.NewString(),
		UserID:              strings.TrimSpace(req.UserID),
		Kind:                PushJobKindListingImages,
		Status:              PushJobStatusQueued,
		Progress:            0,
		Step:                PushJobStepQueued,
		SessionID:           strings.TrimSpace(req.SessionID),
		ASIN:                strings.TrimSpace(req.ASIN),
		SKU:                 strings.TrimSpace(req.SKU),
		MarketplaceID:       marketplaceID,
		RequestedImagePaths: cloneStrings(req.ImagePaths),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	job, err = s.pushJobStore.Create(ctx, job)
	if err != nil {
		err = s.mapError(err)
		return PushJob{}, err
	}
	return job, nil
}

func (s *Service) GetPushJob(ctx context.Context, jobID string) (PushJob, error) {
	if s == nil || s.pushJobStore == nil {
		return PushJob{}, s.mapError(NewConfigurationError("core: push job store is required"))
	}
	if strings.TrimSpace(jobID) == "" {
		return PushJob{}, s.mapError(NewBadInputError("core: job id is required"))
	}
	job, err := s.pushJobStore.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return PushJob{}, s.mapError(err)
	}
	return job, nil
}

// PrunePushJobs deletes terminal jobs last touched before the cutoff and
// reports how many rows went away. Scheduling is the host application's
// concern.
func (s *Service) PrunePushJobs(ctx context.Context, cutoff time.Time) (deleted int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"cutoff": cutoff,
	}
	defer func() {
		fields["deleted"] = deleted
		s.observeOperation(ctx, startedAt, "prune_push_jobs", err, fields)
	}()

	if s.pushJobStore == nil {
		err = s.mapError(NewConfigurationError("core: push job store is required to prune push jobs"))
		return 0, err
	}
	if cutoff.IsZero() {
		err = s.mapError(NewBadInputError("core: a prune cutoff is required"))
		return 0, err
	}
	deleted, err = s.pushJobStore.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return deleted, nil
}

// AdvancePushJob runs the job through its checkpoints: resolve the seller
// connection, resolve the image set, submit the patch, finish. A step
// failure lands on the job row as a terminal failed state; the returned
// error covers infrastructure problems only, so queue workers can tell
// "job failed" from "could not run the job".
func (s *Service) AdvancePushJob(ctx context.Context, jobID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"job_id": jobID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "advance_push_job", err, fields)
	}()

	if s.pushJobStore == nil {
		return NewConfigurationError("core: push job store is required to advance push jobs")
	}
	job, err := s.pushJobStore.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	fields["user_id"] = job.UserID
	fields["sku"] = job.SKU

	job, connection, stepErr := s.checkpointResolveConnection(ctx, job)
	if stepErr == nil {
		job, stepErr = s.checkpointResolveImages(ctx, job)
	}
	var images []string
	if stepErr == nil {
		images = job.RequestedImagePaths
		job, stepErr = s.checkpointSubmit(ctx, job, connection, images)
	}
	if stepErr != nil {
		var infraErr error
		if job, infraErr = s.markPushJobFailed(ctx, job, stepErr); infraErr != nil {
			return infraErr
		}
		fields["job_error"] = job.ErrorMessage
		return nil
	}
	return nil
}

// checkpointResolveConnection moves the job into preparing and verifies
// the seller connection still exists. The connection is read once here
// and carried through the rest of the advance.
func (s *Service) checkpointResolveConnection(ctx context.Context, job PushJob) (PushJob, Connection, error) {
	now := s.now()
	if err := job.TransitionTo(PushJobStatusPreparing, now); err != nil {
		return job, Connection{}, err
	}
	job.Progress = 10
	job.Step = PushJobStepResolveSeller
	job, err := s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, Connection{}, err
	}

	connection, err := s.resolveConnection(ctx, job.UserID)
	if err != nil {
		return job, Connection{}, err
	}
	if job.MarketplaceID == "" {
		job.MarketplaceID = connection.MarketplaceID
	}
	return job, connection, nil
}

// checkpointResolveImages fills RequestedImagePaths with public URLs,
// either from the caller-supplied paths or from the newest completed
// image per type in the session.
func (s *Service) checkpointResolveImages(ctx context.Context, job PushJob) (PushJob, error) {
	job.Progress = 25
	job.Step = PushJobStepResolveImages
	job, err := s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, err
	}

	paths := cloneStrings(job.RequestedImagePaths)
	if len(paths) == 0 {
		if s.imageStore == nil {
			return job, NewConfigurationError("core: listing image store is required to resolve session images")
		}
		records, listErr := s.imageStore.LatestCompletedBySession(ctx, job.SessionID, CanonicalListingImageTypes())
		if listErr != nil {
			return job, listErr
		}
		for _, record := range records {
			if strings.TrimSpace(record.StoragePath) != "" {
				paths = append(paths, record.StoragePath)
			}
		}
	}
	if len(paths) > MaxListingImageSlots {
		paths = paths[:MaxListingImageSlots]
	}
	if len(paths) == 0 {
		return job, NewBadInputError("core: no completed listing images are available for this session")
	}

	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		publicURL, urlErr := s.publicImageURL(path)
		if urlErr != nil {
			return job, urlErr
		}
		urls = append(urls, publicURL)
	}
	job.RequestedImagePaths = urls
	job, err = s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, err
	}
	return job, nil
}

// checkpointSubmit mints an access token from the connection resolved at
// the first checkpoint, submits the image patch, and completes the job
// with the provider's submission id.
func (s *Service) checkpointSubmit(ctx context.Context, job PushJob, connection Connection, imageURLs []string) (PushJob, error) {
	if s.listingPublisher == nil {
		return job, NewConfigurationError("core: listing publisher is required to submit push jobs")
	}

	now := s.now()
	if err := job.TransitionTo(PushJobStatusSubmitting, now); err != nil {
		return job, err
	}
	job.Progress = 55
	job.Step = PushJobStepSubmitListing
	job, err := s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, err
	}

	accessToken, err := s.mintAccessToken(ctx, connection)
	if err != nil {
		return job, err
	}

	result, err := s.listingPublisher.PatchListingImages(ctx, PatchListingImagesInput{
		AccessToken:   accessToken,
		SellerID:      connection.SellerID,
		SKU:           job.SKU,
		MarketplaceID: job.MarketplaceID,
		ImageURLs:     cloneStrings(imageURLs),
	})
	if err != nil {
		return job, err
	}

	completedAt := s.now()
	if transitionErr := job.TransitionTo(PushJobStatusCompleted, completedAt); transitionErr != nil {
		return job, transitionErr
	}
	job.Progress = 100
	job.Step = PushJobStepDone
	job.SubmissionID = result.SubmissionID
	job.ProviderResponse = copyAnyMap(result.Response)
	job.CompletedAt = &completedAt
	job, err = s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, err
	}
	return job, nil
}

// markPushJobFailed lands the step error on the job row. The job keeps the
// step it failed on so the row tells where it died.
func (s *Service) markPushJobFailed(ctx context.Context, job PushJob, cause error) (PushJob, error) {
	if job.Status.Terminal() {
		return job, nil
	}
	failedAt := s.now()
	if err := job.TransitionTo(PushJobStatusFailed, failedAt); err != nil {
		// Force the terminal state even when the transition table objects;
		// a stuck non-terminal row is worse than a recorded failure.
		job.Status = PushJobStatusFailed
		job.UpdatedAt = failedAt
	}
	job.Progress = 100
	if cause != nil {
		job.ErrorMessage = cause.Error()
	}
	job.CompletedAt = &failedAt

	updated, err := s.pushJobStore.Update(ctx, job)
	if err != nil {
		return job, err
	}
	s.logWarn(ctx, "push job failed", map[string]any{
		"job_id":  updated.ID,
		"user_id": updated.UserID,
		"sku":     updated.SKU,
		"step":    updated.Step,
		"error":   updated.ErrorMessage,
	})
	return updated, nil
}

func (s *Service) publicImageURL(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", NewBadInputError("core: image path is empty")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	base := strings.TrimSpace(s.config.Images.PublicBaseURL)
	if base == "" {
		return "", NewConfigurationError("core: images.public_base_url is required to publish storage paths")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(trimmed, "/"), nil
}
