package sqlstore

import (
	"time"

	"github.com/goliatone/go-spapi-push/core"
	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:listing_connections,alias:lc"`

	ID                    string    `bun:"id,pk"`
	UserID                string    `bun:"user_id,notnull"`
	SellerID              string    `bun:"seller_id,notnull"`
	MarketplaceID         string    `bun:"marketplace_id"`
	Mode                  string    `bun:"mode,notnull"`
	RefreshTokenEncrypted []byte    `bun:"refresh_token_encrypted"`
	ConnectedAt           time.Time `bun:"connected_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:                    r.ID,
		UserID:                r.UserID,
		SellerID:              r.SellerID,
		MarketplaceID:         r.MarketplaceID,
		Mode:                  core.ConnectionMode(r.Mode),
		RefreshTokenEncrypted: append([]byte(nil), r.RefreshTokenEncrypted...),
		ConnectedAt:           r.ConnectedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

type pushJobRecord struct {
	bun.BaseModel `bun:"table:listing_push_jobs,alias:lpj"`

	ID                  string         `bun:"id,pk"`
	UserID              string         `bun:"user_id,notnull"`
	Kind                string         `bun:"kind,notnull"`
	Status              string         `bun:"status,notnull"`
	Progress            int            `bun:"progress,notnull"`
	Step                string         `bun:"step,notnull"`
	SessionID           string         `bun:"session_id"`
	ASIN                string         `bun:"asin"`
	SKU                 string         `bun:"sku,notnull"`
	MarketplaceID       string         `bun:"marketplace_id"`
	RequestedImagePaths []string       `bun:"requested_image_paths,type:jsonb"`
	SubmissionID        string         `bun:"submission_id"`
	ProviderResponse    map[string]any `bun:"provider_response,type:jsonb"`
	ErrorMessage        string         `bun:"error_message"`
	CreatedAt           time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt         *time.Time     `bun:"completed_at,nullzero"`
}

func (r *pushJobRecord) toDomain() core.PushJob {
	if r == nil {
		return core.PushJob{}
	}
	job := core.PushJob{
		ID:                  r.ID,
		UserID:              r.UserID,
		Kind:                r.Kind,
		Status:              core.PushJobStatus(r.Status),
		Progress:            r.Progress,
		Step:                r.Step,
		SessionID:           r.SessionID,
		ASIN:                r.ASIN,
		SKU:                 r.SKU,
		MarketplaceID:       r.MarketplaceID,
		RequestedImagePaths: append([]string(nil), r.RequestedImagePaths...),
		SubmissionID:        r.SubmissionID,
		ErrorMessage:        r.ErrorMessage,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if len(r.ProviderResponse) > 0 {
		job.ProviderResponse = make(map[string]any, len(r.ProviderResponse))
		for key, value := range r.ProviderResponse {
			job.ProviderResponse[key] = value
		}
	}
	if r.CompletedAt != nil {
		completedAt := r.CompletedAt.UTC()
		job.CompletedAt = &completedAt
	}
	return job
}

func pushJobRecordFromDomain(job core.PushJob) *pushJobRecord {
	record := &pushJobRecord{
		ID:                  job.ID,
		UserID:              job.UserID,
		Kind:                job.Kind,
		Status:              string(job.Status),
		Progress:            job.Progress,
		Step:                job.Step,
		SessionID:           job.SessionID,
		ASIN:                job.ASIN,
		SKU:                 job.SKU,
		MarketplaceID:       job.MarketplaceID,
		RequestedImagePaths: append([]string(nil), job.RequestedImagePaths...),
		SubmissionID:        job.SubmissionID,
		ErrorMessage:        job.ErrorMessage,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
	if len(job.ProviderResponse) > 0 {
		record.ProviderResponse = make(map[string]any, len(job.ProviderResponse))
		for key, value := range job.ProviderResponse {
			record.ProviderResponse[key] = value
		}
	}
	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.UTC()
		record.CompletedAt = &completedAt
	}
	return record
}

// listingImageRecord maps the image pipeline's table. This store only
// reads it; the pipeline owns the writes.
type listingImageRecord struct {
	bun.BaseModel `bun:"table:listing_images,alias:li"`

	ID          string     `bun:"id,pk"`
	SessionID   string     `bun:"session_id,notnull"`
	ImageType   string     `bun:"image_type,notnull"`
	StoragePath string     `bun:"storage_path"`
	Status      string     `bun:"status,notnull"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *listingImageRecord) toDomain() core.ListingImage {
	if r == nil {
		return core.ListingImage{}
	}
	image := core.ListingImage{
		ID:          r.ID,
		SessionID:   r.SessionID,
		ImageType:   r.ImageType,
		StoragePath: r.StoragePath,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
	if r.CompletedAt != nil {
		completedAt := r.CompletedAt.UTC()
		image.CompletedAt = &completedAt
	}
	return image
}
