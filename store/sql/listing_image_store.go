package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spapi-push/core"
	"github.com/uptrace/bun"
)

// ListingImageStore reads the image pipeline's output table. Push jobs
// consume completed images; nothing here writes.
type ListingImageStore struct {
	db   *bun.DB
	repo repository.Repository[*listingImageRecord]
}

// LatestCompletedBySession returns the most recently completed record
// per requested image type, in the order the types were asked for.
// Types without a completed record are left out.
func (s *ListingImageStore) LatestCompletedBySession(ctx context.Context, sessionID string, imageTypes []string) ([]core.ListingImage, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: listing image store is not configured")
	}
	trimmedSession := strings.TrimSpace(sessionID)
	if trimmedSession == "" {
		return nil, fmt.Errorf("sqlstore: session id is required")
	}
	if len(imageTypes) == 0 {
		return []core.ListingImage{}, nil
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("session_id", "=", trimmedSession),
		repository.SelectBy("status", "=", core.ListingImageStatusCompleted),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.storage_path IS NOT NULL AND ?TableAlias.storage_path <> ''").
				Where("?TableAlias.completed_at IS NOT NULL")
		}),
		repository.OrderBy("completed_at DESC"),
		repository.OrderBy("created_at DESC"),
	)
	if err != nil {
		return nil, err
	}

	newestPerType := map[string]*listingImageRecord{}
	for _, record := range records {
		imageType := strings.TrimSpace(record.ImageType)
		if _, seen := newestPerType[imageType]; !seen {
			newestPerType[imageType] = record
		}
	}

	out := make([]core.ListingImage, 0, len(imageTypes))
	for _, imageType := range imageTypes {
		record, ok := newestPerType[strings.TrimSpace(imageType)]
		if !ok {
			continue
		}
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.ListingImageStore = (*ListingImageStore)(nil)
