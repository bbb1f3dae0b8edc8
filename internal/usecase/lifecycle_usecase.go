package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/email"
	"recruiting-pipeline/pkg/metrics"
	"recruiting-pipeline/pkg/validation"
)

// MsgStaleApplication is returned when a write lost an optimistic concurrency race.
const MsgStaleApplication = "This application was updated by someone else; reload"

// maxTransitionAttempts bounds re-reads when the caller sent no version.
const maxTransitionAttempts = 3

type noteInput struct {
	Content string `validate:"not_blank,max=5000"`
}

type lifecycleUsecase struct {
	applications domain.ApplicationRepository
	notes        domain.NoteRepository
	jobs         domain.JobRepository
	notifier     domain.Notifier
	events       domain.EventPublisher
	bg           *Background
	validate     *validator.Validate
	log          *zap.Logger
	now          func() time.Time
}

// NewLifecycleUsecase creates the recruiter-facing application state machine.
func NewLifecycleUsecase(
	applications domain.ApplicationRepository,
	notes domain.NoteRepository,
	jobs domain.JobRepository,
	notifier domain.Notifier,
	events domain.EventPublisher,
	bg *Background,
	validate *validator.Validate,
	log *zap.Logger,
) domain.LifecycleUsecase {
	return &lifecycleUsecase{
		applications: applications,
		notes:        notes,
		jobs:         jobs,
		notifier:     notifier,
		events:       events,
		bg:           bg,
		validate:     validate,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetApplication returns the application; enrichment may be absent.
func (uc *lifecycleUsecase) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	app, err := uc.applications.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "Application not found")
	}
	return app, nil
}

// ListByJob returns a job's applications, newest first.
func (uc *lifecycleUsecase) ListByJob(ctx context.Context, jobID string) ([]domain.Application, error) {
	apps, err := uc.applications.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return apps, nil
}

// ChangeStatus moves the application to status. The stage is left as it is.
func (uc *lifecycleUsecase) ChangeStatus(ctx context.Context, id string, status domain.ApplicationStatus, expectedVersion int64) (*domain.Application, error) {
	// 1. Validate the target
	if !status.IsValid() {
		return nil, apperror.BadRequest("Invalid status").WithDetails(domain.ValidStatuses())
	}

	// 2. Check the table and write under the version
	var previous domain.ApplicationStatus
	app, err := uc.transition(ctx, id, expectedVersion,
		func(current *domain.Application) error {
			previous = current.Status
			if !domain.CanTransitionStatus(current.Status, status) {
				return apperror.Unprocessable(fmt.Sprintf("Cannot change status from %s to %s", current.Status, status)).
					WithDetails(map[string]interface{}{"kind": domain.ErrKindValidation})
			}
			return nil
		},
		func(version int64) (*domain.Application, error) {
			return uc.applications.UpdateStatus(ctx, id, status, version)
		})
	if err != nil {
		return nil, err
	}

	// 3. Tell everyone else
	metrics.LifecycleTransitionsTotal.WithLabelValues("status", string(status)).Inc()
	uc.log.Info("application status changed",
		zap.String("application_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Int64("version", app.Version))
	uc.publish(ctx, domain.EventApplicationStatusChanged, app, map[string]interface{}{
		"from": previous,
		"to":   status,
	})
	if previous != status {
		uc.notifyStatus(ctx, app)
	}
	return app, nil
}

// ChangeStage moves the application forward in the hiring process.
func (uc *lifecycleUsecase) ChangeStage(ctx context.Context, id string, stage domain.ApplicationStage, expectedVersion int64) (*domain.Application, error) {
	// 1. Validate the target
	if !stage.IsValid() {
		return nil, apperror.BadRequest("Invalid stage").WithDetails(domain.ValidStages())
	}

	// 2. Check the forward-only table and write under the version
	var previous domain.ApplicationStage
	app, err := uc.transition(ctx, id, expectedVersion,
		func(current *domain.Application) error {
			previous = current.Stage
			if !domain.CanTransitionStage(current.Stage, stage) {
				return apperror.Unprocessable(fmt.Sprintf("Cannot move stage back from %s to %s", current.Stage, stage)).
					WithDetails(map[string]interface{}{"kind": domain.ErrKindValidation})
			}
			return nil
		},
		func(version int64) (*domain.Application, error) {
			return uc.applications.UpdateStage(ctx, id, stage, version)
		})
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues("stage", string(stage)).Inc()
	uc.log.Info("application stage changed",
		zap.String("application_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(stage)),
		zap.Int64("version", app.Version))
	uc.publish(ctx, domain.EventApplicationStageChanged, app, map[string]interface{}{
		"from": previous,
		"to":   stage,
	})
	return app, nil
}

// transition loads the application, runs check against it and writes with a
// version guard. A caller-supplied version is final; without one the loaded
// version is used and a lost race re-reads and re-checks.
func (uc *lifecycleUsecase) transition(
	ctx context.Context,
	id string,
	expectedVersion int64,
	check func(current *domain.Application) error,
	write func(version int64) (*domain.Application, error),
) (*domain.Application, error) {
	for attempt := 1; ; attempt++ {
		current, err := uc.applications.GetByID(ctx, id)
		if err != nil {
			return nil, mapStoreError(err, "Application not found")
		}
		if expectedVersion > 0 && current.Version != expectedVersion {
			return nil, conflictError()
		}
		if err := check(current); err != nil {
			return nil, err
		}

		app, err := write(current.Version)
		if err == nil {
			return app, nil
		}
		if !errors.Is(err, domain.ErrConflict) || expectedVersion > 0 || attempt >= maxTransitionAttempts {
			return nil, mapStoreError(err, "Application not found")
		}
	}
}

// ApplyEnrichment merges an analysis result into the enrichment field only.
func (uc *lifecycleUsecase) ApplyEnrichment(ctx context.Context, id string, result *domain.Enrichment) (*domain.Application, error) {
	// 1. Validate the result
	if err := validateEnrichment(result); err != nil {
		return nil, err
	}
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = uc.now()
	}

	// 2. Targeted merge, no version check
	app, err := uc.applications.MergeEnrichment(ctx, id, result)
	if err != nil {
		return nil, mapStoreError(err, "Application not found")
	}

	uc.log.Info("application enriched",
		zap.String("application_id", id),
		zap.Int("match_score", result.MatchScore),
		zap.String("recommendation", string(result.Recommendation)))
	uc.publish(ctx, domain.EventApplicationEnriched, app, map[string]interface{}{
		"matchScore":     result.MatchScore,
		"recommendation": result.Recommendation,
	})
	return app, nil
}

// AddNote appends a recruiter note. Notes are never edited.
func (uc *lifecycleUsecase) AddNote(ctx context.Context, id, content, authorID, authorName string) (*domain.Note, error) {
	// 1. Validate input
	input := noteInput{Content: validation.NormalizeText(content)}
	if err := uc.validate.Struct(input); err != nil {
		return nil, apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}
	if authorID == "" {
		return nil, apperror.Unauthorized("User not authenticated")
	}

	// 2. The application must exist
	if _, err := uc.applications.GetByID(ctx, id); err != nil {
		return nil, mapStoreError(err, "Application not found")
	}

	// 3. Append
	note := &domain.Note{
		ID:            uuid.NewString(),
		ApplicationID: id,
		Content:       input.Content,
		AuthorID:      authorID,
		AuthorName:    authorName,
		CreatedAt:     uc.now(),
	}
	if err := uc.notes.Append(ctx, note); err != nil {
		return nil, apperror.Internal(err)
	}
	return note, nil
}

// ListNotes returns the application's notes oldest first.
func (uc *lifecycleUsecase) ListNotes(ctx context.Context, id string) ([]domain.Note, error) {
	if _, err := uc.applications.GetByID(ctx, id); err != nil {
		return nil, mapStoreError(err, "Application not found")
	}
	notes, err := uc.notes.ListByApplicationID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return notes, nil
}

var exportColumns = []string{
	"CANDIDATE", "EMAIL", "STATUS", "STAGE", "MATCH SCORE", "RECOMMENDATION", "APPLIED AT", "UPDATED AT",
}

// ExportApplications renders a job's applications as an xlsx workbook.
func (uc *lifecycleUsecase) ExportApplications(ctx context.Context, jobID string) ([]byte, string, error) {
	apps, err := uc.applications.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, "", apperror.Internal(err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Applications"
	f.SetSheetName("Sheet1", sheetName)

	for i, header := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1E3A5F"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	f.SetCellStyle(sheetName, "A1", endCell, headerStyle)

	for rowIdx, app := range apps {
		var score interface{} = ""
		var recommendation string
		// enrichment is optional at any point in the lifecycle
		if app.Enrichment != nil {
			score = app.Enrichment.MatchScore
			recommendation = string(app.Enrichment.Recommendation)
		}
		row := []interface{}{
			app.CandidateName,
			app.CandidateEmail,
			string(app.Status),
			string(app.Stage),
			score,
			recommendation,
			app.AppliedAt.Format(time.RFC3339),
			app.UpdatedAt.Format(time.RFC3339),
		}
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range exportColumns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", apperror.Internal(fmt.Errorf("failed to write Excel file: %w", err))
	}
	filename := fmt.Sprintf("applications_%s_%s.xlsx", jobID, uc.now().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

func (uc *lifecycleUsecase) publish(ctx context.Context, eventType string, app *domain.Application, data map[string]interface{}) {
	if uc.events == nil || uc.bg == nil {
		return
	}
	data["jobId"] = app.JobID
	data["version"] = app.Version
	event := domain.Event{Type: eventType, EntityID: app.ID, OccurredAt: uc.now(), Data: data}
	uc.bg.Go(ctx, "event:"+eventType, func(ctx context.Context) {
		if err := uc.events.Publish(ctx, event); err != nil {
			uc.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

func (uc *lifecycleUsecase) notifyStatus(ctx context.Context, app *domain.Application) {
	if uc.notifier == nil || uc.bg == nil || app.CandidateEmail == "" {
		return
	}
	snapshot := *app
	uc.bg.Go(ctx, "status-email:"+app.ID, func(ctx context.Context) {
		var jobTitle string
		if job, err := uc.jobs.GetByID(ctx, snapshot.JobID); err == nil {
			jobTitle = job.Title
		}
		msg, err := email.StatusChangeMessage(snapshot.CandidateEmail, email.StatusChangeData{
			Name:     snapshot.CandidateName,
			JobTitle: jobTitle,
			Status:   snapshot.Status,
		})
		if err == nil {
			err = uc.notifier.Send(ctx, msg)
		}
		if err != nil {
			uc.log.Warn("failed to send status email", zap.String("application_id", snapshot.ID), zap.Error(err))
		}
	})
}

func validateEnrichment(result *domain.Enrichment) error {
	if result == nil {
		return apperror.BadRequest("Enrichment result is required")
	}
	if result.MatchScore < 0 || result.MatchScore > 100 {
		return apperror.BadRequest("matchScore must be between 0 and 100")
	}
	if !result.Recommendation.IsValid() {
		return apperror.BadRequest("Unknown recommendation").WithDetails(domain.ValidRecommendations())
	}
	return nil
}

func conflictError() *apperror.AppError {
	return apperror.Conflict(MsgStaleApplication).
		WithDetails(map[string]interface{}{"kind": domain.ErrKindConcurrencyConflict})
}

// mapStoreError translates repository sentinels into API errors.
func mapStoreError(err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperror.NotFound(notFound)
	case errors.Is(err, domain.ErrConflict):
		return conflictError()
	default:
		return apperror.Internal(err)
	}
}
