package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConnectionNotFound             = errors.New("core: connection not found")
	ErrPushJobNotFound                = errors.New("core: push job not found")
	ErrPushJobTerminal                = errors.New("core: push job is terminal")
	ErrInvalidPushJobStatusTransition = errors.New("core: invalid push job status transition")
)

type ConnectionMode string

const (
	ConnectionModeEnv    ConnectionMode = "env"
	ConnectionModeOAuth  ConnectionMode = "oauth"
	ConnectionModeManual ConnectionMode = "manual"
)

// Connection links one user to one Selling Partner account. Only the
// encrypted refresh token is stored; access tokens are minted per push
// attempt and discarded.
type Connection struct {
	ID                    string
	UserID                string
	SellerID              string
	MarketplaceID         string
	Mode                  ConnectionMode
	RefreshTokenEncrypted []byte
	ConnectedAt           time.Time
	UpdatedAt             time.Time
}

func (c Connection) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("core: connection user id is required")
	}
	if strings.TrimSpace(c.SellerID) == "" {
		return fmt.Errorf("core: connection seller id is required")
	}
	switch c.Mode {
	case ConnectionModeEnv, ConnectionModeOAuth, ConnectionModeManual:
	default:
		return fmt.Errorf("core: invalid connection mode %q", c.Mode)
	}
	return nil
}

type PushJobStatus string

const (
	PushJobStatusQueued     PushJobStatus = "queued"
	PushJobStatusPreparing  PushJobStatus = "preparing"
	PushJobStatusSubmitting PushJobStatus = "submitting"
	PushJobStatusProcessing PushJobStatus = "processing"
	PushJobStatusCompleted  PushJobStatus = "completed"
	PushJobStatusFailed     PushJobStatus = "failed"
)

func (s PushJobStatus) Terminal() bool {
	return s == PushJobStatusCompleted || s == PushJobStatusFailed
}

const (
	PushJobStepQueued        = "queued"
	PushJobStepResolveSeller = "resolve_seller_connection"
	PushJobStepResolveImages = "resolve_listing_images"
	PushJobStepSubmitListing = "submit_listing_images"
	PushJobStepAwaitProvider = "await_provider_processing"
	PushJobStepDone          = "done"
)

const PushJobKindListingImages = "listing_images"

// MaxListingImageSlots is Amazon's listing image slot limit: one main
// image plus other_product_image_locator_1..6.
const MaxListingImageSlots = 7

type PushJob struct {
	ID                  string
	UserID              string
	Kind                string
	Status              PushJobStatus
	Progress            int
	Step                string
	SessionID           string
	ASIN                string
	SKU                 string
	MarketplaceID       string
	RequestedImagePaths []string
	SubmissionID        string
	ProviderResponse    map[string]any
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

func (j *PushJob) TransitionTo(status PushJobStatus, now time.Time) error {
	if j == nil {
		return nil
	}
	if j.Status == status {
		j.UpdatedAt = now
		return nil
	}
	if !pushJobTransitionAllowed(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPushJobStatusTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = now
	return nil
}

// processing is wired as a legal pre-terminal state for multi-step
// submissions even though the current single-pass flow goes straight
// from submitting to a terminal state.
func pushJobTransitionAllowed(current, next PushJobStatus) bool {
	allowed := map[PushJobStatus]map[PushJobStatus]struct{}{
		PushJobStatusQueued: {
			PushJobStatusPreparing: {},
			PushJobStatusFailed:    {},
		},
		PushJobStatusPreparing: {
			PushJobStatusSubmitting: {},
			PushJobStatusFailed:     {},
		},
		PushJobStatusSubmitting: {
			PushJobStatusProcessing: {},
			PushJobStatusCompleted:  {},
			PushJobStatusFailed:     {},
		},
		PushJobStatusProcessing: {
			PushJobStatusCompleted: {},
			PushJobStatusFailed:    {},
		},
		PushJobStatusCompleted: {},
		PushJobStatusFailed:    {},
	}
	_, ok := allowed[current][next]
	return ok
}

// ListingImage is the shape of a generated-image record consumed from the
// image pipeline. Only completed records with a storage path are usable
// for a push.
type ListingImage struct {
	ID          string
	SessionID   string
	ImageType   string
	StoragePath string
	Status      string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

const ListingImageStatusCompleted = "completed"

// CanonicalListingImageTypes orders the listing image slots the way they
// are submitted: the first type fills the main image slot, the rest fill
// the numbered other-image slots.
func CanonicalListingImageTypes() []string {
	return []string{
		"main",
		"front",
		"back",
		"detail",
		"lifestyle",
		"packaging",
		"size_chart",
	}
}

// ListingSummary is the normalized row shape returned by SKU search.
type ListingSummary struct {
	SKU    string
	ASIN   string
	Title  string
	Status string
}

// SignedStatePayload is the stateless OAuth state token body. It is never
// persisted server side; the HMAC signature makes it self-verifying.
type SignedStatePayload struct {
	UserID        string `json:"uid"`
	MarketplaceID string `json:"mp,omitempty"`
	ReturnTo      string `json:"rt,omitempty"`
	IssuedAt      int64  `json:"iat"`
	ExpiresAt     int64  `json:"exp"`
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return append([]string(nil), in...)
}
