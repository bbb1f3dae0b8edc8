package domain

import (
	"context"
	"time"
)

// IdentityService creates login accounts. CreateAccount fails with errors
// wrapping ErrDuplicateEmail, ErrWeakPassword or ErrInvalidEmail.
type IdentityService interface {
	CreateAccount(ctx context.Context, email, password, idempotencyKey string) (string, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// BlobStore keeps uploaded artifacts and returns a retrievable URI.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
}

// Entity types an enrichment request or result can refer to.
const (
	EntityTypeApplication = "application"
	EntityTypeCandidate   = "candidate"
)

// EnrichmentRequest is handed to the external resume analysis service.
type EnrichmentRequest struct {
	EntityID    string    `json:"entityId"`
	EntityType  string    `json:"entityType"`
	ArtifactURI string    `json:"artifactUri"`
	MimeType    string    `json:"mimeType"`
	JobID       string    `json:"jobId,omitempty"`
	ResumeText  string    `json:"resumeText,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// EnrichmentTrigger dispatches an enrichment request without waiting for the result.
type EnrichmentTrigger interface {
	Trigger(ctx context.Context, req EnrichmentRequest) error
}

// TextExtractor pulls plain text out of an uploaded resume.
type TextExtractor interface {
	Extract(mimeType string, data []byte) (string, error)
}

// EmailMessage is a rendered notification.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// Notifier delivers transactional email.
type Notifier interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Lifecycle event types.
const (
	EventApplicationSubmitted     = "application.submitted"
	EventApplicationStatusChanged = "application.status_changed"
	EventApplicationStageChanged  = "application.stage_changed"
	EventApplicationEnriched      = "application.enriched"
	EventAccountCreated           = "account.created"
)

// Event is a fact published for downstream consumers.
type Event struct {
	Type       string                 `json:"type"`
	EntityID   string                 `json:"entityId"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// EventPublisher fans lifecycle events out. Implementations must not block callers for long.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
