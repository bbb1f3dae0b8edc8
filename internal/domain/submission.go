package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SubmissionErrorKind is the error taxonomy surfaced by the orchestrator.
type SubmissionErrorKind string

const (
	ErrKindDuplicateEmail        SubmissionErrorKind = "DuplicateEmail"
	ErrKindWeakPassword          SubmissionErrorKind = "WeakPassword"
	ErrKindInvalidEmail          SubmissionErrorKind = "InvalidEmail"
	ErrKindUploadFailed          SubmissionErrorKind = "UploadFailed"
	ErrKindRecordWriteFailed     SubmissionErrorKind = "RecordWriteFailed"
	ErrKindUnknown               SubmissionErrorKind = "Unknown"
	ErrKindEnrichmentUnavailable SubmissionErrorKind = "EnrichmentUnavailable"
	ErrKindConcurrencyConflict   SubmissionErrorKind = "ConcurrencyConflict"
	ErrKindValidation            SubmissionErrorKind = "ValidationError"
)

// IsIdentityError reports whether the kind comes from the identity service.
func (k SubmissionErrorKind) IsIdentityError() bool {
	return k == ErrKindDuplicateEmail || k == ErrKindWeakPassword || k == ErrKindInvalidEmail
}

// Identity service failures. Adapters wrap these so the orchestrator can classify them.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrWeakPassword   = errors.New("password rejected as weak")
	ErrInvalidEmail   = errors.New("email rejected as invalid")
)

// Saga step names, used in logs, metrics, spans and error details.
const (
	StepIdentity   = "identity"
	StepArtifact   = "artifact"
	StepPrimary    = "primary_record"
	StepSecondary  = "secondary_records"
	StepEnrichment = "enrichment"
)

// SubmissionError is returned by the orchestrator when a step fails.
type SubmissionError struct {
	Kind SubmissionErrorKind
	Step string
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Step)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// SubmissionRequest is built from a completed wizard session.
type SubmissionRequest struct {
	Kind           WizardKind
	Payload        map[string]interface{}
	Artifact       *ArtifactMeta
	IdempotencyKey string
	SubmittedAt    time.Time
	Meta           SubmissionMeta
}

// SubmissionMeta carries request-scoped facts that are not form fields.
type SubmissionMeta struct {
	ClientIP string
}

// Email returns the normalised submitter email from the payload.
func (r *SubmissionRequest) Email() string {
	if v, ok := r.Payload[FieldEmail].(string); ok {
		return v
	}
	return ""
}

// JobID returns the target job for job applications.
func (r *SubmissionRequest) JobID() string {
	if v, ok := r.Payload[FieldJobID].(string); ok {
		return v
	}
	return ""
}

// EnrichmentStatus describes what happened to the fire-and-forget enrichment trigger.
type EnrichmentStatus string

const (
	EnrichmentNotRequested EnrichmentStatus = "not_requested"
	EnrichmentQueued       EnrichmentStatus = "queued"
	EnrichmentPending      EnrichmentStatus = "pending"
	EnrichmentUnavailable  EnrichmentStatus = "unavailable"
)

// Notices shown next to a successful submission.
const (
	NoticeEnrichmentFailed  = "Resume parsing failed, but your account was created successfully."
	NoticeEnrichmentPending = "Your resume is being analyzed."
)

// SubmissionResult is what a successful orchestration returns. CancelToken is
// set while enrichment is pending and authorises CancelEnrichment.
type SubmissionResult struct {
	Kind             WizardKind       `json:"kind"`
	EntityID         string           `json:"entityId"`
	AccountID        string           `json:"accountId"`
	ArtifactURI      string           `json:"artifactUri,omitempty"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus"`
	Notice           string           `json:"notice,omitempty"`
	CancelToken      string           `json:"cancelToken,omitempty"`
	Replayed         bool             `json:"replayed"`
	CompletedAt      time.Time        `json:"completedAt"`
}

// UndoKind tags a compensating action.
type UndoKind string

const (
	UndoDeleteIdentity   UndoKind = "DeleteIdentity"
	UndoDeleteBlob       UndoKind = "DeleteBlob"
	UndoDeleteDocument   UndoKind = "DeleteDocument"
	UndoDecrementCounter UndoKind = "DecrementCounter"
)

// UndoAction records how to revert one completed saga step.
type UndoAction struct {
	Kind       UndoKind
	AccountID  string
	URI        string
	Collection string
	DocumentID string
	Field      string
}

// IdempotencyState is the lifecycle of a claimed key.
type IdempotencyState string

const (
	IdempotencyInFlight  IdempotencyState = "in_flight"
	IdempotencyCompleted IdempotencyState = "completed"
)

// IdempotencyRecord is what the store holds for a key.
type IdempotencyRecord struct {
	State  IdempotencyState  `json:"state"`
	Result *SubmissionResult `json:"result,omitempty"`
}

// IdempotencyStore claims submission keys so retries replay instead of re-executing.
type IdempotencyStore interface {
	// Claim returns (nil, true) when the caller now owns the key, or the existing record.
	Claim(ctx context.Context, key string, ttl time.Duration) (*IdempotencyRecord, bool, error)
	Complete(ctx context.Context, key string, result *SubmissionResult, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// SubmissionLimiter throttles submissions per client.
type SubmissionLimiter interface {
	Allow(ctx context.Context, ip, email string) (bool, int, error)
}

// SubmissionUsecase executes the saga for a validated wizard session.
type SubmissionUsecase interface {
	BuildRequest(session *WizardSession, meta SubmissionMeta) (*SubmissionRequest, error)
	Submit(ctx context.Context, req *SubmissionRequest) (*SubmissionResult, error)
	CancelEnrichment(entityID, cancelToken string) bool
}
