package usecase_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/internal/repository/document"
	"recruiting-pipeline/internal/repository/memory"
	redisrepo "recruiting-pipeline/internal/repository/redis"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/identity"
	"recruiting-pipeline/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

func pdfArtifact() *domain.ArtifactMeta {
	return &domain.ArtifactMeta{
		Filename:  "resume.pdf",
		MimeType:  "application/pdf",
		SizeBytes: int64(len(pdfBytes)),
		Data:      pdfBytes,
	}
}

func pngArtifact(t *testing.T, size int) *domain.ArtifactMeta {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &domain.ArtifactMeta{
		Filename:  "logo.png",
		MimeType:  "image/png",
		SizeBytes: int64(buf.Len()),
		Data:      buf.Bytes(),
	}
}

func accountFields(email string) map[string]interface{} {
	return map[string]interface{}{
		domain.FieldFullName:        "Jane Doe",
		domain.FieldEmail:           email,
		domain.FieldPassword:        "correct-horse",
		domain.FieldConfirmPassword: "correct-horse",
	}
}

func consentFields(fields map[string]interface{}) map[string]interface{} {
	fields[domain.FieldAIProcessingConsent] = true
	fields[domain.FieldInterviewRecordingConsent] = true
	fields[domain.FieldTermsAccepted] = true
	return fields
}

func lastStepSession(kind domain.WizardKind, fields map[string]interface{}) *domain.WizardSession {
	steps := usecase.WizardSteps(kind)
	return &domain.WizardSession{
		Kind:             kind,
		Steps:            steps,
		CurrentStepIndex: len(steps),
		Fields:           fields,
	}
}

func candidateSession(email string) *domain.WizardSession {
	fields := consentFields(accountFields(email))
	fields[domain.FieldPhone] = "+1 555 010 0200"
	fields[domain.FieldLocation] = "Berlin"
	fields[domain.FieldHeadline] = "Backend engineer"
	s := lastStepSession(domain.WizardCandidateSignup, fields)
	s.AttachArtifact(domain.FieldResume, pdfArtifact())
	return s
}

func companySession(email string) *domain.WizardSession {
	fields := accountFields(email)
	fields[domain.FieldCompanyName] = "Acme Robotics"
	fields[domain.FieldIndustry] = "Manufacturing"
	fields[domain.FieldCompanySize] = "51-200"
	fields[domain.FieldWebsite] = "https://acme.example.com"
	fields[domain.FieldTermsAccepted] = true
	return lastStepSession(domain.WizardCompanySignup, fields)
}

func jobApplicationSession(email, jobID string) *domain.WizardSession {
	fields := consentFields(accountFields(email))
	fields[domain.FieldJobID] = jobID
	fields[domain.FieldYearsOfExperience] = float64(6)
	fields[domain.FieldCoverLetter] = "I build pipelines."
	s := lastStepSession(domain.WizardJobApplication, fields)
	s.AttachArtifact(domain.FieldResume, pdfArtifact())
	return s
}

// triggerFunc adapts a function to domain.EnrichmentTrigger.
type triggerFunc func(ctx context.Context, req domain.EnrichmentRequest) error

func (f triggerFunc) Trigger(ctx context.Context, req domain.EnrichmentRequest) error {
	return f(ctx, req)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg domain.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) Publish(ctx context.Context, event domain.Event) error {
	return m.Called(ctx, event).Error(0)
}

type MockSubmissions struct {
	mock.Mock
}

func (m *MockSubmissions) BuildRequest(session *domain.WizardSession, meta domain.SubmissionMeta) (*domain.SubmissionRequest, error) {
	args := m.Called(session, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmissionRequest), args.Error(1)
}

func (m *MockSubmissions) Submit(ctx context.Context, req *domain.SubmissionRequest) (*domain.SubmissionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmissionResult), args.Error(1)
}

func (m *MockSubmissions) CancelEnrichment(entityID, cancelToken string) bool {
	return m.Called(entityID, cancelToken).Bool(0)
}

// failingApplications fails Create and delegates everything else.
type failingApplications struct {
	domain.ApplicationRepository
	err error
}

func (f *failingApplications) Create(ctx context.Context, app *domain.Application) error {
	return f.err
}

// failingCounter fails the applicant increment.
type failingCounter struct {
	domain.JobRepository
	err error
}

func (f *failingCounter) IncrementApplicants(ctx context.Context, id string, delta int64) (int64, error) {
	return 0, f.err
}

// stuckIdentity blocks account creation until the step deadline.
type stuckIdentity struct {
	*identity.MemoryService
}

func (s *stuckIdentity) CreateAccount(ctx context.Context, email, password, key string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// observedIdentity runs onCreate before delegating, while the saga is in flight.
type observedIdentity struct {
	*identity.MemoryService
	onCreate func()
}

func (o *observedIdentity) CreateAccount(ctx context.Context, email, password, key string) (string, error) {
	o.onCreate()
	return o.MemoryService.CreateAccount(ctx, email, password, key)
}

// undeletableIdentity creates accounts but cannot remove them.
type undeletableIdentity struct {
	*identity.MemoryService
}

func (u *undeletableIdentity) DeleteAccount(ctx context.Context, accountID string) error {
	return fmt.Errorf("identity provider unavailable")
}

type harness struct {
	store     *memory.DocumentStore
	identity  *identity.MemoryService
	blobs     *storage.MemoryStore
	idem      *redisrepo.MemoryIdempotencyStore
	jobs      domain.JobRepository
	apps      domain.ApplicationRepository
	users     domain.UserRepository
	companies domain.CompanyRepository
	bg        *usecase.Background
	spans     *tracetest.SpanRecorder

	mu        sync.Mutex
	triggered []domain.EnrichmentRequest
}

func (h *harness) requests() []domain.EnrichmentRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.EnrichmentRequest(nil), h.triggered...)
}

func (h *harness) openJob(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, h.jobs.Create(context.Background(), &domain.Job{
		ID:        id,
		CompanyID: "co-1",
		Title:     "Go Engineer",
		Status:    domain.JobStatusOpen,
	}))
}

type dispatchSettings struct {
	trigger   domain.EnrichmentTrigger
	ackWindow time.Duration
	timeout   time.Duration
}

type harnessOption func(h *harness, deps *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig, d *dispatchSettings)

func withTrigger(trigger domain.EnrichmentTrigger, ackWindow, timeout time.Duration) harnessOption {
	return func(_ *harness, _ *usecase.SubmissionDeps, _ *usecase.SubmissionConfig, d *dispatchSettings) {
		d.trigger = trigger
		d.ackWindow = ackWindow
		d.timeout = timeout
	}
}

func withDeps(fn func(h *harness, deps *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig)) harnessOption {
	return func(h *harness, deps *usecase.SubmissionDeps, cfg *usecase.SubmissionConfig, _ *dispatchSettings) {
		fn(h, deps, cfg)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) (*harness, domain.SubmissionUsecase) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.NewDocumentStore()
	h := &harness{
		store:     store,
		identity:  identity.NewMemoryService(),
		blobs:     storage.NewMemoryStore("uploads"),
		idem:      redisrepo.NewMemoryIdempotencyStore(),
		jobs:      document.NewJobRepository(store),
		apps:      document.NewApplicationRepository(store),
		users:     document.NewUserRepository(store),
		companies: document.NewCompanyRepository(store),
		bg:        usecase.NewBackground(5*time.Second, log),
		spans:     tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.bg.Wait(ctx)
		_ = tp.Shutdown(ctx)
	})

	dispatch := dispatchSettings{
		trigger: triggerFunc(func(ctx context.Context, req domain.EnrichmentRequest) error {
			h.mu.Lock()
			h.triggered = append(h.triggered, req)
			h.mu.Unlock()
			return nil
		}),
		ackWindow: time.Second,
		timeout:   2 * time.Second,
	}

	deps := usecase.SubmissionDeps{
		Identity:     h.identity,
		Blobs:        h.blobs,
		Store:        store,
		Users:        h.users,
		Companies:    h.companies,
		Applications: h.apps,
		Jobs:         h.jobs,
		Idempotency:  h.idem,
		Background:   h.bg,
		Tracer:       tp.Tracer("submission-test"),
		Log:          log,
	}
	cfg := usecase.SubmissionConfig{StepTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(h, &deps, &cfg, &dispatch)
	}
	deps.Dispatcher = usecase.NewEnrichmentDispatcher(dispatch.trigger, nil, h.bg, dispatch.ackWindow, dispatch.timeout, log)
	return h, usecase.NewSubmissionUsecase(deps, cfg)
}
