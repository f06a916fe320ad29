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

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

// Upsert keeps the one-connection-per-user invariant: an existing row for
// the user is overwritten in place, otherwise a new row is created.
func (s *ConnectionStore) Upsert(ctx context.Context, connection core.Connection) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := connection.Validate(); err != nil {
		return core.Connection{}, err
	}

	now := time.Now().UTC()
	existing, err := s.findByUser(ctx, connection.UserID)
	if err == nil && existing != nil {
		existing.SellerID = strings.TrimSpace(connection.SellerID)
		existing.MarketplaceID = strings.TrimSpace(connection.MarketplaceID)
		existing.Mode = string(connection.Mode)
		existing.RefreshTokenEncrypted = append([]byte(nil), connection.RefreshTokenEncrypted...)
		if !connection.ConnectedAt.IsZero() {
			existing.ConnectedAt = connection.ConnectedAt.UTC()
		}
		existing.UpdatedAt = now

		updated, updateErr := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID))
		if updateErr != nil {
			return core.Connection{}, updateErr
		}
		return updated.toDomain(), nil
	}
	if err != nil && err != core.ErrConnectionNotFound {
		return core.Connection{}, err
	}

	record := &connectionRecord{
		ID:                    newConnectionID(connection.ID),
		UserID:                strings.TrimSpace(connection.UserID),
		SellerID:              strings.TrimSpace(connection.SellerID),
		MarketplaceID:         strings.TrimSpace(connection.MarketplaceID),
		Mode:                  string(connection.Mode),
		RefreshTokenEncrypted: append([]byte(nil), connection.RefreshTokenEncrypted...),
		ConnectedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if !connection.ConnectedAt.IsZero() {
		record.ConnectedAt = connection.ConnectedAt.UTC()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) GetByUser(ctx context.Context, userID string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.findByUser(ctx, userID)
	if err != nil {
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) Delete(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	_, err := s.db.NewDelete().
		Model((*connectionRecord)(nil)).
		Where("user_id = ?", trimmed).
		Exec(ctx)
	return err
}

func (s *ConnectionStore) findByUser(ctx context.Context, userID string) (*connectionRecord, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmed),
		repository.OrderBy("updated_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrConnectionNotFound
	}
	return records[0], nil
}

func newConnectionID(candidate string) string {
	if trimmed := strings.TrimSpace(candidate); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}

var _ core.ConnectionStore = (*ConnectionStore)(nil)
