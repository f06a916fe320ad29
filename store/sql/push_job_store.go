package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spapi-push/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PushJobStore struct {
	db   *bun.DB
	repo repository.Repository[*pushJobRecord]
}

func (s *PushJobStore) Create(ctx context.Context, job core.PushJob) (core.PushJob, error) {
	if s == nil || s.repo == nil {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job store is not configured")
	}
	if strings.TrimSpace(job.UserID) == "" {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job user id is required")
	}
	if strings.TrimSpace(job.SKU) == "" {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job sku is required")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	if strings.TrimSpace(string(job.Status)) == "" {
		job.Status = core.PushJobStatusQueued
	}
	if strings.TrimSpace(job.Step) == "" {
		job.Step = core.PushJobStepQueued
	}

	created, err := s.repo.Create(ctx, pushJobRecordFromDomain(job))
	if err != nil {
		return core.PushJob{}, err
	}
	return created.toDomain(), nil
}

func (s *PushJobStore) Get(ctx context.Context, id string) (core.PushJob, error) {
	if s == nil || s.repo == nil {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		return core.PushJob{}, core.ErrPushJobNotFound
	}
	return record.toDomain(), nil
}

// Update refuses to overwrite terminal rows so a completed or failed job
// can never be revived by a late worker.
func (s *PushJobStore) Update(ctx context.Context, job core.PushJob) (core.PushJob, error) {
	if s == nil || s.repo == nil {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job store is not configured")
	}
	trimmedID := strings.TrimSpace(job.ID)
	if trimmedID == "" {
		return core.PushJob{}, fmt.Errorf("sqlstore: push job id is required")
	}

	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return core.PushJob{}, core.ErrPushJobNotFound
	}
	if core.PushJobStatus(current.Status).Terminal() {
		return current.toDomain(), core.ErrPushJobTerminal
	}

	job.UpdatedAt = time.Now().UTC()
	updated, err := s.repo.Update(ctx, pushJobRecordFromDomain(job), repository.UpdateByID(trimmedID))
	if err != nil {
		return core.PushJob{}, err
	}
	return updated.toDomain(), nil
}

// DeleteOlderThan prunes terminal jobs last touched before the cutoff.
func (s *PushJobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: push job store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*pushJobRecord)(nil)).
		Where("status IN (?, ?)", string(core.PushJobStatusCompleted), string(core.PushJobStatusFailed)).
		Where("updated_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: push job prune rows affected: %w", err)
	}
	return int(affected), nil
}

var _ core.PushJobStore = (*PushJobStore)(nil)
