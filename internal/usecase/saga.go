package usecase

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/metrics"
	"recruiting-pipeline/pkg/security/antivirus"
)

// compensationTimeout bounds each undo action. Undo runs detached from the
// request, so it needs its own deadline.
const compensationTimeout = 15 * time.Second

type compensator func(ctx context.Context, action domain.UndoAction) error

// saga executes submission steps in order and records how to revert each one.
type saga struct {
	kind       domain.WizardKind
	timeout    time.Duration
	tracer     trace.Tracer
	log        *zap.Logger
	compensate compensator
	undo       []domain.UndoAction
}

func newSaga(kind domain.WizardKind, timeout time.Duration, tracer trace.Tracer, log *zap.Logger, compensate compensator) *saga {
	return &saga{
		kind:       kind,
		timeout:    timeout,
		tracer:     tracer,
		log:        log,
		compensate: compensate,
	}
}

// run executes one step under the per-step timeout and classifies its failure.
func (s *saga) run(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "submission."+step,
		trace.WithAttributes(
			attribute.String("submission.kind", string(s.kind)),
			attribute.String("submission.step", step),
		))
	defer span.End()

	stepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(stepCtx)
	metrics.SubmissionStepDuration.WithLabelValues(string(s.kind), step).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = errors.Join(err, context.DeadlineExceeded)
	}
	subErr := classifyStepError(step, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(subErr.Kind))
	s.log.Warn("submission step failed",
		zap.String("kind", string(s.kind)),
		zap.String("step", step),
		zap.String("error_kind", string(subErr.Kind)),
		zap.Error(err))
	return subErr
}

// push records the undo action of a step that completed.
func (s *saga) push(action domain.UndoAction) {
	s.undo = append(s.undo, action)
}

// unwind reverts completed steps in reverse order. It ignores cancellation of
// ctx so an abandoned request still cleans up. Failures are logged and counted,
// never returned.
func (s *saga) unwind(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(detached, "submission.compensate",
		trace.WithAttributes(
			attribute.String("submission.kind", string(s.kind)),
			attribute.Int("submission.undo_actions", len(s.undo)),
		))
	defer span.End()

	for i := len(s.undo) - 1; i >= 0; i-- {
		action := s.undo[i]
		actionCtx, cancel := context.WithTimeout(ctx, compensationTimeout)
		err := s.compensate(actionCtx, action)
		cancel()

		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			metrics.CompensationsTotal.WithLabelValues(string(action.Kind), "failed").Inc()
			span.RecordError(err)
			s.log.Error("compensation failed, manual cleanup required",
				zap.String("kind", string(s.kind)),
				zap.String("action", string(action.Kind)),
				zap.String("account_id", action.AccountID),
				zap.String("uri", action.URI),
				zap.String("collection", action.Collection),
				zap.String("document_id", action.DocumentID),
				zap.Error(err))
			continue
		}
		metrics.CompensationsTotal.WithLabelValues(string(action.Kind), "ok").Inc()
	}
	s.undo = nil
}

// classifyStepError maps a step failure onto the submission error taxonomy.
func classifyStepError(step string, err error) *domain.SubmissionError {
	var existing *domain.SubmissionError
	if errors.As(err, &existing) {
		return existing
	}

	kind := domain.ErrKindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = domain.ErrKindUnknown
	case step == domain.StepIdentity:
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			kind = domain.ErrKindDuplicateEmail
		case errors.Is(err, domain.ErrWeakPassword):
			kind = domain.ErrKindWeakPassword
		case errors.Is(err, domain.ErrInvalidEmail):
			kind = domain.ErrKindInvalidEmail
		}
	case step == domain.StepArtifact:
		kind = domain.ErrKindUploadFailed
		if errors.Is(err, antivirus.ErrInfected) {
			kind = domain.ErrKindValidation
		}
	case step == domain.StepPrimary, step == domain.StepSecondary:
		kind = domain.ErrKindRecordWriteFailed
	}
	return &domain.SubmissionError{Kind: kind, Step: step, Err: err}
}
