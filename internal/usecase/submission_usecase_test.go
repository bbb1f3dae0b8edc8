package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"recruiting-pipeline/internal/domain"
	redisrepo "recruiting-pipeline/internal/repository/redis"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/security/antivirus"
)

func submit(t *testing.T, uc domain.SubmissionUsecase, session *domain.WizardSession) (*domain.SubmissionResult, error) {
	t.Helper()
	req, err := uc.BuildRequest(session, domain.SubmissionMeta{ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	return uc.Submit(context.Background(), req)
}

func requireSubmissionError(t *testing.T, err error, kind domain.SubmissionErrorKind, step string) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	var subErr *domain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, kind, subErr.Kind)
	assert.Equal(t, step, subErr.Step)
	return appErr
}

type infectedScanner struct{ *antivirus.NoOpScanner }

func (infectedScanner) Scan(ctx context.Context, filename string, data []byte) antivirus.ScanResult {
	return antivirus.ScanResult{Infected: true, ThreatName: "Eicar-Test-Signature", ScannerName: "test"}
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, ip, email string) (bool, int, error) {
	return false, 60, nil
}

func TestBuildRequest(t *testing.T) {
	_, uc := newHarness(t)

	t.Run("normalises payload", func(t *testing.T) {
		s := candidateSession("  Jane.Doe@Example.COM ")
		s.Fields[domain.FieldFullName] = "  Jane Doe  "
		req, err := uc.BuildRequest(s, domain.SubmissionMeta{})
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@example.com", req.Email())
		assert.Equal(t, "Jane Doe", req.Payload[domain.FieldFullName])
		assert.NotContains(t, req.Payload, domain.FieldConfirmPassword)
		assert.Equal(t, "correct-horse", req.Payload[domain.FieldPassword])
		require.NotNil(t, req.Artifact)
		assert.Equal(t, "application/pdf", req.Artifact.MimeType)
		assert.Len(t, req.IdempotencyKey, 64)
	})

	t.Run("metadata without bytes", func(t *testing.T) {
		s := candidateSession("jane@example.com")
		s.Artifact(domain.FieldResume).Data = nil
		_, err := uc.BuildRequest(s, domain.SubmissionMeta{})
		assert.EqualError(t, err, usecase.MsgReattachArtifact)
	})

	t.Run("spoofed pdf", func(t *testing.T) {
		s := candidateSession("jane@example.com")
		s.Artifact(domain.FieldResume).Data = []byte("MZ\x90\x00 not a pdf")
		_, err := uc.BuildRequest(s, domain.SubmissionMeta{})
		assert.Error(t, err)
	})

	t.Run("company logo optional", func(t *testing.T) {
		req, err := uc.BuildRequest(companySession("admin@acme.example.com"), domain.SubmissionMeta{})
		require.NoError(t, err)
		assert.Nil(t, req.Artifact)
	})
}

func TestIdempotencyKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	bucket := 10 * time.Minute

	base := usecase.IdempotencyKey(domain.WizardJobApplication, "Jane@Example.com", "j1", at, bucket)
	assert.Equal(t, base, usecase.IdempotencyKey(domain.WizardJobApplication, "jane@example.com ", "j1", at.Add(5*time.Minute), bucket))
	assert.NotEqual(t, base, usecase.IdempotencyKey(domain.WizardJobApplication, "jane@example.com", "j1", at.Add(9*time.Minute), bucket))
	assert.NotEqual(t, base, usecase.IdempotencyKey(domain.WizardJobApplication, "jane@example.com", "j2", at, bucket))
	assert.NotEqual(t, base, usecase.IdempotencyKey(domain.WizardCandidateSignup, "jane@example.com", "j1", at, bucket))
}

func TestCandidateSignup(t *testing.T) {
	h, uc := newHarness(t)

	result, err := submit(t, uc, candidateSession("jane@example.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.WizardCandidateSignup, result.Kind)
	assert.Equal(t, result.AccountID, result.EntityID)
	assert.Equal(t, fmt.Sprintf("s3://uploads/resumes/%s/resume.pdf", result.AccountID), result.ArtifactURI)
	assert.Equal(t, domain.EnrichmentQueued, result.EnrichmentStatus)
	assert.Empty(t, result.Notice)
	assert.False(t, result.Replayed)

	user, err := h.users.GetByID(context.Background(), result.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCandidate, user.Role)
	assert.Equal(t, result.ArtifactURI, user.ResumeRef)
	assert.True(t, user.AIProcessingConsent)

	reqs := h.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.EntityTypeCandidate, reqs[0].EntityType)
	assert.Equal(t, result.ArtifactURI, reqs[0].ArtifactURI)
}

func TestCompanySignupDownscalesLogo(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(_ *harness, _ *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig) {
		cfg.LogoMaxDimension = 8
	}))

	s := companySession("admin@acme.example.com")
	s.AttachArtifact(domain.FieldLogo, pngArtifact(t, 32))
	result, err := submit(t, uc, s)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentNotRequested, result.EnrichmentStatus)
	assert.NotEqual(t, result.AccountID, result.EntityID)

	company, err := h.companies.GetByID(context.Background(), result.EntityID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", company.Name)
	assert.Equal(t, result.AccountID, company.AdminUserID)

	admin, err := h.users.GetByID(context.Background(), result.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCompanyAdmin, admin.Role)
	assert.Equal(t, company.ID, admin.CompanyID)

	stored, err := h.blobs.Download(context.Background(), company.LogoRef)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Empty(t, h.requests())
}

func TestCompanySignupDuplicateEmailWritesNoCompany(t *testing.T) {
	h, uc := newHarness(t)
	_, err := h.identity.CreateAccount(context.Background(), "admin@acme.example.com", "existing-pass", "")
	require.NoError(t, err)

	_, err = submit(t, uc, companySession("admin@acme.example.com"))
	appErr := requireSubmissionError(t, err, domain.ErrKindDuplicateEmail, domain.StepIdentity)
	assert.Equal(t, http.StatusConflict, appErr.Code)
	assert.Equal(t, usecase.MsgDuplicateEmail, appErr.Message)
	assert.Zero(t, h.store.Count(domain.CollectionCompanies))
	assert.Zero(t, h.store.Count(domain.CollectionUsers))
	assert.Equal(t, 1, h.identity.Count())
}

func TestJobApplicationSurvivesEnrichmentTimeout(t *testing.T) {
	stuck := triggerFunc(func(ctx context.Context, req domain.EnrichmentRequest) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h, uc := newHarness(t, withTrigger(stuck, time.Second, 50*time.Millisecond))
	h.openJob(t, "J1")

	result, err := submit(t, uc, jobApplicationSession("jane@example.com", "J1"))
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentUnavailable, result.EnrichmentStatus)
	assert.Equal(t, domain.NoticeEnrichmentFailed, result.Notice)

	app, err := h.apps.GetByID(context.Background(), result.EntityID)
	require.NoError(t, err)
	assert.Nil(t, app.Enrichment)
	assert.Equal(t, domain.StatusApplied, app.Status)
	assert.Equal(t, domain.StageApplicationReview, app.Stage)
	assert.Equal(t, "J1", app.JobID)
	assert.Equal(t, "co-1", app.CompanyID)
	assert.Equal(t, fmt.Sprintf("s3://uploads/applications/%s/J1/resume.pdf", result.AccountID), app.ResumeRef)
}

func TestSlowEnrichmentIsPendingAndCancellable(t *testing.T) {
	cancelled := make(chan error, 1)
	slow := triggerFunc(func(ctx context.Context, req domain.EnrichmentRequest) error {
		<-ctx.Done()
		cancelled <- ctx.Err()
		return ctx.Err()
	})
	h, uc := newHarness(t, withTrigger(slow, 20*time.Millisecond, 5*time.Second))
	h.openJob(t, "J1")

	result, err := submit(t, uc, jobApplicationSession("jane@example.com", "J1"))
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentPending, result.EnrichmentStatus)
	assert.Equal(t, domain.NoticeEnrichmentPending, result.Notice)

	require.NotEmpty(t, result.CancelToken)
	assert.False(t, uc.CancelEnrichment(result.EntityID, ""))
	assert.False(t, uc.CancelEnrichment(result.EntityID, "not-the-token"))
	assert.True(t, uc.CancelEnrichment(result.EntityID, result.CancelToken))
	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was not cancelled")
	}
	assert.False(t, uc.CancelEnrichment(result.EntityID, result.CancelToken))
}

func TestConcurrentApplicationsCountExactly(t *testing.T) {
	h, uc := newHarness(t)
	h.openJob(t, "J1")

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := uc.BuildRequest(jobApplicationSession(fmt.Sprintf("cand%d@example.com", i), "J1"), domain.SubmissionMeta{})
			if err != nil {
				errs <- err
				return
			}
			_, err = uc.Submit(context.Background(), req)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	job, err := h.jobs.GetByID(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), job.Applicants)
	assert.Equal(t, n, h.store.Count(domain.CollectionApplications))
}

func TestRetryReplaysInsteadOfReexecuting(t *testing.T) {
	h, uc := newHarness(t)
	h.openJob(t, "J1")

	req, err := uc.BuildRequest(jobApplicationSession("jane@example.com", "J1"), domain.SubmissionMeta{})
	require.NoError(t, err)

	first, err := uc.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := uc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.Equal(t, 1, h.identity.Count())

	job, err := h.jobs.GetByID(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.Applicants)
	assert.Len(t, h.requests(), 1)
}

func TestInFlightKeyConflicts(t *testing.T) {
	h, uc := newHarness(t)

	req, err := uc.BuildRequest(candidateSession("jane@example.com"), domain.SubmissionMeta{})
	require.NoError(t, err)
	_, claimed, err := h.idem.Claim(context.Background(), req.IdempotencyKey, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = uc.Submit(context.Background(), req)
	appErr := requireSubmissionError(t, err, domain.ErrKindConcurrencyConflict, "idempotency")
	assert.Equal(t, http.StatusConflict, appErr.Code)
	assert.Zero(t, h.identity.Count())
}

func TestRecordWriteFailureUnwindsEarlierSteps(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(h *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Applications = &failingApplications{ApplicationRepository: h.apps, err: errors.New("connection reset")}
	}))
	h.openJob(t, "J1")

	req, err := uc.BuildRequest(jobApplicationSession("jane@example.com", "J1"), domain.SubmissionMeta{})
	require.NoError(t, err)
	_, err = uc.Submit(context.Background(), req)

	appErr := requireSubmissionError(t, err, domain.ErrKindRecordWriteFailed, domain.StepPrimary)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, usecase.MsgSubmissionFailed, appErr.Message)
	assert.Zero(t, h.identity.Count(), "identity deleted")
	assert.Zero(t, h.blobs.Len(), "resume deleted")

	_, claimed, err := h.idem.Claim(context.Background(), req.IdempotencyKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "failed attempt releases its key")
}

func TestCounterFailureDeletesApplication(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(h *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Jobs = &failingCounter{JobRepository: h.jobs, err: errors.New("statement timeout")}
	}))
	h.openJob(t, "J1")

	_, err := submit(t, uc, jobApplicationSession("jane@example.com", "J1"))
	requireSubmissionError(t, err, domain.ErrKindRecordWriteFailed, domain.StepSecondary)
	assert.Zero(t, h.store.Count(domain.CollectionApplications))
	assert.Zero(t, h.identity.Count())
	assert.Zero(t, h.blobs.Len())

	job, err := h.jobs.GetByID(context.Background(), "J1")
	require.NoError(t, err)
	assert.Zero(t, job.Applicants)
}

func TestCompensationFailureDoesNotMaskOriginalError(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(h *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Identity = &undeletableIdentity{MemoryService: h.identity}
		deps.Users = &failingUsers{UserRepository: h.users}
	}))

	_, err := submit(t, uc, candidateSession("jane@example.com"))
	requireSubmissionError(t, err, domain.ErrKindRecordWriteFailed, domain.StepPrimary)
	assert.Equal(t, 1, h.identity.Count(), "orphan left for manual cleanup")
	assert.Zero(t, h.blobs.Len(), "later undo actions still ran")
}

type failingUsers struct {
	domain.UserRepository
}

func (f *failingUsers) Create(ctx context.Context, user *domain.UserAccount) error {
	return errors.New("disk full")
}

func TestStepTimeoutMapsToUnknown(t *testing.T) {
	_, uc := newHarness(t, withDeps(func(h *harness, deps *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig) {
		deps.Identity = &stuckIdentity{MemoryService: h.identity}
		cfg.StepTimeout = 30 * time.Millisecond
	}))

	_, err := submit(t, uc, candidateSession("jane@example.com"))
	appErr := requireSubmissionError(t, err, domain.ErrKindUnknown, domain.StepIdentity)
	assert.Equal(t, usecase.MsgSubmissionFailed, appErr.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInfectedArtifactRejected(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(_ *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Scanner = infectedScanner{antivirus.NewNoOpScanner()}
	}))

	_, err := submit(t, uc, candidateSession("jane@example.com"))
	appErr := requireSubmissionError(t, err, domain.ErrKindValidation, domain.StepArtifact)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
	assert.ErrorIs(t, err, antivirus.ErrInfected)
	assert.Zero(t, h.identity.Count())
	assert.Zero(t, h.blobs.Len())
}

func TestRateLimitedSubmission(t *testing.T) {
	h, uc := newHarness(t, withDeps(func(_ *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Limiter = denyLimiter{}
	}))

	_, err := submit(t, uc, candidateSession("jane@example.com"))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.Equal(t, map[string]interface{}{"retryAfter": 60}, appErr.Details)
	assert.Zero(t, h.identity.Count())
}

func TestRetryReplaysEvenWhenRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h, uc := newHarness(t, withDeps(func(_ *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Limiter = redisrepo.NewSubmissionLimiter(client, 1, 20)
		deps.Idempotency = redisrepo.NewIdempotencyStore(client)
	}))
	h.openJob(t, "J1")

	req, err := uc.BuildRequest(jobApplicationSession("jane@example.com", "J1"), domain.SubmissionMeta{ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	first, err := uc.Submit(context.Background(), req)
	require.NoError(t, err)

	// the per-minute budget for this IP is spent, the completed key still answers
	again, err := uc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.EntityID, again.EntityID)

	other, err := uc.BuildRequest(jobApplicationSession("bob@example.com", "J1"), domain.SubmissionMeta{ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	_, err = uc.Submit(context.Background(), other)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.False(t, mr.Exists("idempotency:submission:"+other.IdempotencyKey), "denied attempts release their key")

	job, err := h.jobs.GetByID(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.Applicants)
	assert.Equal(t, 1, h.identity.Count())
}

func TestInFlightClaimExpiresBeforeResult(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var key string
	var inFlightTTL time.Duration
	h, uc := newHarness(t, withDeps(func(h *harness, deps *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig) {
		deps.Idempotency = redisrepo.NewIdempotencyStore(client)
		deps.Identity = &observedIdentity{MemoryService: h.identity, onCreate: func() {
			inFlightTTL = mr.TTL("idempotency:submission:" + key)
		}}
		cfg.StepTimeout = 2 * time.Second
		cfg.IdempotencyTTL = 24 * time.Hour
	}))

	req, err := uc.BuildRequest(candidateSession("jane@example.com"), domain.SubmissionMeta{})
	require.NoError(t, err)
	key = req.IdempotencyKey
	_, err = uc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Positive(t, inFlightTTL)
	assert.LessOrEqual(t, inFlightTTL, 10*time.Second)
	assert.Equal(t, 24*time.Hour, mr.TTL("idempotency:submission:"+key))
	assert.Equal(t, 1, h.identity.Count())
}

func TestClosedJobRejectedBeforeAnyWrite(t *testing.T) {
	h, uc := newHarness(t)
	require.NoError(t, h.jobs.Create(context.Background(), &domain.Job{ID: "J2", Title: "Closed", Status: domain.JobStatusClosed}))

	_, err := submit(t, uc, jobApplicationSession("jane@example.com", "J2"))
	assert.EqualError(t, err, usecase.MsgJobClosed)

	_, err = submit(t, uc, jobApplicationSession("jane@example.com", "missing"))
	assert.EqualError(t, err, "Job not found")
	assert.Zero(t, h.identity.Count())
}

func TestSubmissionSpans(t *testing.T) {
	h, uc := newHarness(t)
	h.openJob(t, "J1")

	_, err := submit(t, uc, jobApplicationSession("jane@example.com", "J1"))
	require.NoError(t, err)

	var names []string
	for _, span := range h.spans.Ended() {
		names = append(names, span.Name())
	}
	assert.Subset(t, names, []string{
		"submission.submit",
		"submission.identity",
		"submission.artifact",
		"submission.primary_record",
		"submission.secondary_records",
	})
}

func TestWelcomeEmailAndEvent(t *testing.T) {
	notifier := new(MockNotifier)
	events := new(MockEvents)
	h, uc := newHarness(t, withDeps(func(_ *harness, deps *usecase.SubmissionDeps, _ *usecase.SubmissionConfig) {
		deps.Notifier = notifier
		deps.Events = events
	}))
	h.openJob(t, "J1")

	notifier.On("Send", mock.Anything, mock.MatchedBy(func(msg domain.EmailMessage) bool {
		return msg.To == "jane@example.com" && msg.Subject == "We received your application"
	})).Return(nil).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.EventApplicationSubmitted && e.Data["jobId"] == "J1"
	})).Return(nil).Once()

	_, err := submit(t, uc, jobApplicationSession("jane@example.com", "J1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.bg.Wait(ctx))
	notifier.AssertExpectations(t)
	events.AssertExpectations(t)
}
