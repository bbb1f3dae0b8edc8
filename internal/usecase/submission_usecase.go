package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/email"
	"recruiting-pipeline/pkg/imaging"
	"recruiting-pipeline/pkg/metrics"
	"recruiting-pipeline/pkg/security/antivirus"
	"recruiting-pipeline/pkg/validation"
)

// User-facing copy for submission failures. Only identity errors get specific text.
const (
	MsgDuplicateEmail       = "An account with this email already exists"
	MsgWeakPassword         = "Password is too weak, please choose a stronger one"
	MsgSubmissionFailed     = "Something went wrong while submitting. Please try again."
	MsgSubmissionInProgress = "This submission is already being processed"
	MsgArtifactRejected     = "The uploaded file was rejected by our security scan"
	MsgReattachArtifact     = "Please attach your file again before submitting"
	MsgTooManySubmissions   = "Too many submissions. Please try again later."
	MsgJobClosed            = "This job is no longer accepting applications"
)

// SubmissionConfig holds the orchestrator's tunables.
type SubmissionConfig struct {
	StepTimeout       time.Duration
	IdempotencyBucket time.Duration
	IdempotencyTTL    time.Duration
	// InFlightTTL bounds how long a crashed attempt blocks retries.
	InFlightTTL       time.Duration
	LogoMaxDimension  int
}

// SubmissionDeps are the collaborators the orchestrator writes to.
type SubmissionDeps struct {
	Identity     domain.IdentityService
	Blobs        domain.BlobStore
	Store        domain.DocumentStore
	Users        domain.UserRepository
	Companies    domain.CompanyRepository
	Applications domain.ApplicationRepository
	Jobs         domain.JobRepository
	Idempotency  domain.IdempotencyStore
	Limiter      domain.SubmissionLimiter
	Scanner      antivirus.Scanner
	Dispatcher   *EnrichmentDispatcher
	Notifier     domain.Notifier
	Events       domain.EventPublisher
	Background   *Background
	Tracer       trace.Tracer
	Log          *zap.Logger
}

type submissionUsecase struct {
	SubmissionDeps
	cfg SubmissionConfig
	now func() time.Time
}

// NewSubmissionUsecase creates the orchestrator that turns a completed wizard into records.
func NewSubmissionUsecase(deps SubmissionDeps, cfg SubmissionConfig) domain.SubmissionUsecase {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.IdempotencyBucket <= 0 {
		cfg.IdempotencyBucket = 10 * time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = 5 * cfg.StepTimeout
	}
	if cfg.LogoMaxDimension <= 0 {
		cfg.LogoMaxDimension = imaging.DefaultLogoMaxDimension
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("recruiting-pipeline/submission")
	}
	if deps.Scanner == nil {
		deps.Scanner = antivirus.NewNoOpScanner()
	}
	return &submissionUsecase{SubmissionDeps: deps, cfg: cfg, now: time.Now}
}

// IdempotencyKey derives the submission key from kind, normalised email, job and time bucket.
func IdempotencyKey(kind domain.WizardKind, email, jobID string, at time.Time, bucket time.Duration) string {
	slot := at.UTC().UnixNano() / int64(bucket)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", kind, validation.NormalizeEmail(email), jobID, slot)))
	return hex.EncodeToString(sum[:])
}

// artifactField names the upload slot each wizard submits.
func artifactField(kind domain.WizardKind) (string, validation.ArtifactRule) {
	if kind == domain.WizardCompanySignup {
		return domain.FieldLogo, validation.LogoRule
	}
	return domain.FieldResume, validation.ResumeRule
}

// BuildRequest turns a validated session into a submission request.
func (uc *submissionUsecase) BuildRequest(session *domain.WizardSession, meta domain.SubmissionMeta) (*domain.SubmissionRequest, error) {
	// 1. Normalise the payload
	payload := make(map[string]interface{}, len(session.Fields))
	for k, v := range session.Fields {
		switch k {
		case domain.FieldConfirmPassword:
			continue
		case domain.FieldPassword:
			payload[k] = v
		case domain.FieldEmail:
			s, _ := v.(string)
			payload[k] = validation.NormalizeEmail(s)
		default:
			if s, ok := v.(string); ok {
				payload[k] = validation.NormalizeText(s)
			} else {
				payload[k] = v
			}
		}
	}

	// 2. Check the uploaded bytes really are what the metadata claims
	field, rule := artifactField(session.Kind)
	var artifact *domain.ArtifactMeta
	if attached := session.Artifact(field); attached != nil {
		if len(attached.Data) == 0 {
			return nil, apperror.BadRequest(MsgReattachArtifact)
		}
		mime, msg := validation.InspectContent(attached.Filename, attached.Data, rule)
		if msg != "" {
			return nil, apperror.Unprocessable(msg)
		}
		artifact = &domain.ArtifactMeta{
			Filename:  attached.Filename,
			MimeType:  mime,
			SizeBytes: int64(len(attached.Data)),
			Data:      attached.Data,
		}
	} else if rule.Required {
		return nil, apperror.Unprocessable(rule.MissingMsg)
	}

	// 3. Derive the idempotency key
	now := uc.now()
	req := &domain.SubmissionRequest{
		Kind:        session.Kind,
		Payload:     payload,
		Artifact:    artifact,
		SubmittedAt: now,
		Meta:        meta,
	}
	req.IdempotencyKey = IdempotencyKey(req.Kind, req.Email(), req.JobID(), now, uc.cfg.IdempotencyBucket)
	return req, nil
}

// Submit runs the saga for req. Retries with the same key replay the stored result.
func (uc *submissionUsecase) Submit(ctx context.Context, req *domain.SubmissionRequest) (*domain.SubmissionResult, error) {
	ctx, span := uc.Tracer.Start(ctx, "submission.submit",
		trace.WithAttributes(attribute.String("submission.kind", string(req.Kind))))
	defer span.End()

	// 1. Claim the idempotency key; completed retries replay without counting
	record, claimed, err := uc.Idempotency.Claim(ctx, req.IdempotencyKey, uc.cfg.InFlightTTL)
	if err != nil {
		uc.Log.Error("idempotency claim failed", zap.Error(err))
		return nil, submissionAppError(&domain.SubmissionError{Kind: domain.ErrKindUnknown, Step: "idempotency", Err: err})
	}
	if !claimed {
		if record != nil && record.State == domain.IdempotencyCompleted && record.Result != nil {
			replay := *record.Result
			replay.Replayed = true
			metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), "replayed").Inc()
			span.SetAttributes(attribute.Bool("submission.replayed", true))
			return &replay, nil
		}
		metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), string(domain.ErrKindConcurrencyConflict)).Inc()
		return nil, submissionAppError(&domain.SubmissionError{Kind: domain.ErrKindConcurrencyConflict, Step: "idempotency"})
	}
	release := func() {
		if relErr := uc.Idempotency.Release(context.WithoutCancel(ctx), req.IdempotencyKey); relErr != nil {
			uc.Log.Warn("failed to release idempotency key", zap.Error(relErr))
		}
	}

	// 2. Throttle per client and per email
	if uc.Limiter != nil {
		allowed, retryAfter, err := uc.Limiter.Allow(ctx, req.Meta.ClientIP, req.Email())
		if err != nil {
			release()
			uc.Log.Error("submission limiter unavailable", zap.Error(err))
			return nil, apperror.New(http.StatusServiceUnavailable, MsgSubmissionFailed, err)
		}
		if !allowed {
			release()
			metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), "rate_limited").Inc()
			return nil, apperror.TooManyRequests(MsgTooManySubmissions).
				WithDetails(map[string]interface{}{"retryAfter": retryAfter})
		}
	}

	// 3. Pre-flight checks that need no side effects
	var job *domain.Job
	if req.Kind == domain.WizardJobApplication {
		job, err = uc.Jobs.GetByID(ctx, req.JobID())
		if err != nil || job.Status != domain.JobStatusOpen {
			release()
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("Job not found")
		}
		if err != nil {
			return nil, apperror.Internal(err)
		}
		if job.Status != domain.JobStatusOpen {
			return nil, apperror.BadRequest(MsgJobClosed)
		}
	}

	// 4. Run steps 1-4; unwind on failure
	s := newSaga(req.Kind, uc.cfg.StepTimeout, uc.Tracer, uc.Log, uc.compensate)
	var result *domain.SubmissionResult
	switch req.Kind {
	case domain.WizardCandidateSignup:
		result, err = uc.candidateSignup(ctx, s, req)
	case domain.WizardCompanySignup:
		result, err = uc.companySignup(ctx, s, req)
	case domain.WizardJobApplication:
		result, err = uc.jobApplication(ctx, s, req, job)
	default:
		err = &domain.SubmissionError{Kind: domain.ErrKindUnknown, Step: domain.StepIdentity, Err: fmt.Errorf("unsupported kind %q", req.Kind)}
	}
	if err != nil {
		s.unwind(ctx)
		release()
		subErr := classifyStepError("", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(subErr.Kind))
		metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), string(subErr.Kind)).Inc()
		return nil, submissionAppError(subErr)
	}

	// 5. Fire-and-forget enrichment
	result.EnrichmentStatus = domain.EnrichmentNotRequested
	if req.Kind != domain.WizardCompanySignup && uc.Dispatcher != nil && result.ArtifactURI != "" {
		entityType := domain.EntityTypeCandidate
		if req.Kind == domain.WizardJobApplication {
			entityType = domain.EntityTypeApplication
		}
		cancelToken := uuid.NewString()
		result.EnrichmentStatus, result.Notice = uc.Dispatcher.Dispatch(ctx, domain.EnrichmentRequest{
			EntityID:    result.EntityID,
			EntityType:  entityType,
			ArtifactURI: result.ArtifactURI,
			MimeType:    req.Artifact.MimeType,
			JobID:       req.JobID(),
			RequestedAt: uc.now().UTC(),
		}, req.Artifact, cancelToken)
		if result.EnrichmentStatus == domain.EnrichmentPending {
			result.CancelToken = cancelToken
		}
	}

	// 6. Remember the outcome so retries replay it
	result.CompletedAt = uc.now().UTC()
	if err := uc.Idempotency.Complete(context.WithoutCancel(ctx), req.IdempotencyKey, result, uc.cfg.IdempotencyTTL); err != nil {
		uc.Log.Warn("failed to store submission result", zap.Error(err))
	}

	metrics.SubmissionsTotal.WithLabelValues(string(req.Kind), "success").Inc()
	span.SetAttributes(attribute.String("submission.entity_id", result.EntityID))
	uc.Log.Info("submission completed",
		zap.String("kind", string(req.Kind)),
		zap.String("entity_id", result.EntityID),
		zap.String("enrichment", string(result.EnrichmentStatus)))

	uc.announce(ctx, req, result)
	return result, nil
}

// CancelEnrichment stops a pending enrichment dispatch for entityID when
// cancelToken matches the one returned by the submission.
func (uc *submissionUsecase) CancelEnrichment(entityID, cancelToken string) bool {
	if uc.Dispatcher == nil {
		return false
	}
	return uc.Dispatcher.Cancel(entityID, cancelToken)
}

func (uc *submissionUsecase) createIdentity(ctx context.Context, s *saga, req *domain.SubmissionRequest) (string, error) {
	var accountID string
	err := s.run(ctx, domain.StepIdentity, func(ctx context.Context) error {
		password, _ := req.Payload[domain.FieldPassword].(string)
		id, err := uc.Identity.CreateAccount(ctx, req.Email(), password, req.IdempotencyKey)
		if err != nil {
			return err
		}
		accountID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteIdentity, AccountID: accountID})
	return accountID, nil
}

func (uc *submissionUsecase) uploadArtifact(ctx context.Context, s *saga, req *domain.SubmissionRequest, path string) (string, error) {
	if req.Artifact == nil {
		return "", nil
	}
	var uri string
	err := s.run(ctx, domain.StepArtifact, func(ctx context.Context) error {
		data := req.Artifact.Data
		if req.Kind == domain.WizardCompanySignup {
			resized, changed, err := imaging.FitLogo(data, req.Artifact.MimeType, uc.cfg.LogoMaxDimension)
			if err != nil {
				return err
			}
			if changed {
				data = resized
			}
		}
		if err := antivirus.Check(ctx, uc.Scanner, req.Artifact.Filename, data); err != nil {
			return err
		}
		u, err := uc.Blobs.Upload(ctx, path, data, req.Artifact.MimeType)
		if err != nil {
			return err
		}
		uri = u
		return nil
	})
	if err != nil {
		return "", err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteBlob, URI: uri})
	return uri, nil
}

func (uc *submissionUsecase) candidateSignup(ctx context.Context, s *saga, req *domain.SubmissionRequest) (*domain.SubmissionResult, error) {
	// 1. Identity
	accountID, err := uc.createIdentity(ctx, s, req)
	if err != nil {
		return nil, err
	}

	// 2. Resume
	uri, err := uc.uploadArtifact(ctx, s, req, fmt.Sprintf("resumes/%s/%s", accountID, safeFilename(req.Artifact)))
	if err != nil {
		return nil, err
	}

	// 3. Profile document
	user := uc.userFromPayload(req, accountID, domain.RoleCandidate)
	user.ResumeRef = uri
	if err := s.run(ctx, domain.StepPrimary, func(ctx context.Context) error {
		return uc.Users.Create(ctx, user)
	}); err != nil {
		return nil, err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteDocument, Collection: domain.CollectionUsers, DocumentID: accountID})

	return &domain.SubmissionResult{Kind: req.Kind, EntityID: accountID, AccountID: accountID, ArtifactURI: uri}, nil
}

func (uc *submissionUsecase) companySignup(ctx context.Context, s *saga, req *domain.SubmissionRequest) (*domain.SubmissionResult, error) {
	// 1. Admin identity
	accountID, err := uc.createIdentity(ctx, s, req)
	if err != nil {
		return nil, err
	}

	// 2. Optional logo
	uri, err := uc.uploadArtifact(ctx, s, req, fmt.Sprintf("logos/%s/%s", accountID, safeFilename(req.Artifact)))
	if err != nil {
		return nil, err
	}

	// 3. Company document
	company := &domain.CompanyAccount{
		ID:          uuid.NewString(),
		Name:        stringField(req.Payload, domain.FieldCompanyName),
		Industry:    stringField(req.Payload, domain.FieldIndustry),
		Size:        stringField(req.Payload, domain.FieldCompanySize),
		Website:     stringField(req.Payload, domain.FieldWebsite),
		LogoRef:     uri,
		AdminUserID: accountID,
		CreatedAt:   req.SubmittedAt.UTC(),
	}
	if err := s.run(ctx, domain.StepPrimary, func(ctx context.Context) error {
		return uc.Companies.Create(ctx, company)
	}); err != nil {
		return nil, err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteDocument, Collection: domain.CollectionCompanies, DocumentID: company.ID})

	// 4. Admin profile linked to the company
	admin := uc.userFromPayload(req, accountID, domain.RoleCompanyAdmin)
	admin.CompanyID = company.ID
	if err := s.run(ctx, domain.StepSecondary, func(ctx context.Context) error {
		return uc.Users.Create(ctx, admin)
	}); err != nil {
		return nil, err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteDocument, Collection: domain.CollectionUsers, DocumentID: accountID})

	return &domain.SubmissionResult{Kind: req.Kind, EntityID: company.ID, AccountID: accountID, ArtifactURI: uri}, nil
}

func (uc *submissionUsecase) jobApplication(ctx context.Context, s *saga, req *domain.SubmissionRequest, job *domain.Job) (*domain.SubmissionResult, error) {
	// 1. Candidate identity
	accountID, err := uc.createIdentity(ctx, s, req)
	if err != nil {
		return nil, err
	}

	// 2. Resume under the application path
	uri, err := uc.uploadArtifact(ctx, s, req, fmt.Sprintf("applications/%s/%s/%s", accountID, job.ID, safeFilename(req.Artifact)))
	if err != nil {
		return nil, err
	}

	// 3. Application document
	now := req.SubmittedAt.UTC()
	app := &domain.Application{
		ID:             uuid.NewString(),
		CandidateID:    accountID,
		JobID:          job.ID,
		CompanyID:      job.CompanyID,
		CandidateName:  stringField(req.Payload, domain.FieldFullName),
		CandidateEmail: req.Email(),
		Status:         domain.StatusApplied,
		Stage:          domain.StageApplicationReview,
		ResumeRef:      uri,
		CoverLetter:    stringField(req.Payload, domain.FieldCoverLetter),
		AppliedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.run(ctx, domain.StepPrimary, func(ctx context.Context) error {
		return uc.Applications.Create(ctx, app)
	}); err != nil {
		return nil, err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDeleteDocument, Collection: domain.CollectionApplications, DocumentID: app.ID})

	// 4. Applicant counter, incremented at the store
	if err := s.run(ctx, domain.StepSecondary, func(ctx context.Context) error {
		_, err := uc.Jobs.IncrementApplicants(ctx, job.ID, 1)
		return err
	}); err != nil {
		return nil, err
	}
	s.push(domain.UndoAction{Kind: domain.UndoDecrementCounter, Collection: domain.CollectionJobs, DocumentID: job.ID, Field: "applicants"})

	return &domain.SubmissionResult{Kind: req.Kind, EntityID: app.ID, AccountID: accountID, ArtifactURI: uri}, nil
}

// compensate executes one undo action.
func (uc *submissionUsecase) compensate(ctx context.Context, action domain.UndoAction) error {
	switch action.Kind {
	case domain.UndoDeleteIdentity:
		return uc.Identity.DeleteAccount(ctx, action.AccountID)
	case domain.UndoDeleteBlob:
		return uc.Blobs.Delete(ctx, action.URI)
	case domain.UndoDeleteDocument:
		return uc.Store.DeleteDocument(ctx, action.Collection, action.DocumentID)
	case domain.UndoDecrementCounter:
		_, err := uc.Store.IncrementField(ctx, action.Collection, action.DocumentID, action.Field, -1)
		return err
	default:
		return fmt.Errorf("unknown undo action %q", action.Kind)
	}
}

// announce sends the welcome email and the creation event after the response is decided.
func (uc *submissionUsecase) announce(ctx context.Context, req *domain.SubmissionRequest, result *domain.SubmissionResult) {
	if uc.Background == nil {
		return
	}
	eventType := domain.EventAccountCreated
	if req.Kind == domain.WizardJobApplication {
		eventType = domain.EventApplicationSubmitted
	}
	event := domain.Event{
		Type:       eventType,
		EntityID:   result.EntityID,
		OccurredAt: result.CompletedAt,
		Data: map[string]interface{}{
			"kind":      string(req.Kind),
			"accountId": result.AccountID,
			"jobId":     req.JobID(),
		},
	}
	to := req.Email()
	welcome := email.WelcomeData{
		Name:        stringField(req.Payload, domain.FieldFullName),
		Kind:        req.Kind,
		CompanyName: stringField(req.Payload, domain.FieldCompanyName),
	}

	uc.Background.Go(ctx, "announce:"+result.EntityID, func(ctx context.Context) {
		if uc.Events != nil {
			if err := uc.Events.Publish(ctx, event); err != nil {
				uc.Log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
			}
		}
		if uc.Notifier == nil {
			return
		}
		msg, err := email.WelcomeMessage(to, welcome)
		if err == nil {
			err = uc.Notifier.Send(ctx, msg)
		}
		if err != nil {
			uc.Log.Warn("failed to send welcome email", zap.String("entity_id", event.EntityID), zap.Error(err))
		}
	})
}

func (uc *submissionUsecase) userFromPayload(req *domain.SubmissionRequest, accountID, role string) *domain.UserAccount {
	return &domain.UserAccount{
		ID:                        accountID,
		Email:                     req.Email(),
		FullName:                  stringField(req.Payload, domain.FieldFullName),
		Role:                      role,
		Phone:                     stringField(req.Payload, domain.FieldPhone),
		Location:                  stringField(req.Payload, domain.FieldLocation),
		Headline:                  stringField(req.Payload, domain.FieldHeadline),
		AIProcessingConsent:       boolField(req.Payload, domain.FieldAIProcessingConsent),
		InterviewRecordingConsent: boolField(req.Payload, domain.FieldInterviewRecordingConsent),
		CreatedAt:                 req.SubmittedAt.UTC(),
	}
}

// submissionAppError renders a saga failure for the API. details always names the step.
func submissionAppError(err *domain.SubmissionError) *apperror.AppError {
	details := map[string]interface{}{"kind": err.Kind, "step": err.Step}
	var appErr *apperror.AppError
	switch err.Kind {
	case domain.ErrKindDuplicateEmail:
		appErr = apperror.Conflict(MsgDuplicateEmail)
	case domain.ErrKindWeakPassword:
		appErr = apperror.Unprocessable(MsgWeakPassword)
	case domain.ErrKindInvalidEmail:
		appErr = apperror.Unprocessable(MsgInvalidEmail)
	case domain.ErrKindValidation:
		appErr = apperror.Unprocessable(MsgArtifactRejected)
	case domain.ErrKindConcurrencyConflict:
		appErr = apperror.Conflict(MsgSubmissionInProgress)
	case domain.ErrKindUploadFailed:
		appErr = apperror.BadGateway(MsgSubmissionFailed, nil)
	default:
		appErr = apperror.New(http.StatusInternalServerError, MsgSubmissionFailed, nil)
	}
	appErr.Err = err
	return appErr.WithDetails(details)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFilename keeps object keys predictable regardless of what the browser sent.
func safeFilename(artifact *domain.ArtifactMeta) string {
	if artifact == nil {
		return ""
	}
	name := filepath.Base(strings.ReplaceAll(artifact.Filename, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func boolField(payload map[string]interface{}, key string) bool {
	switch v := payload[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
