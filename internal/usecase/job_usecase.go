package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/validation"
)

type jobUsecase struct {
	jobRepo  domain.JobRepository
	userRepo domain.UserRepository
	validate *validator.Validate
}

func NewJobUsecase(jobRepo domain.JobRepository, userRepo domain.UserRepository, validate *validator.Validate) domain.JobUsecase {
	return &jobUsecase{
		jobRepo:  jobRepo,
		userRepo: userRepo,
		validate: validate,
	}
}

// CreateJob opens a posting for the recruiter's company with a zero applicant counter.
func (u *jobUsecase) CreateJob(ctx context.Context, userID string, job *domain.Job) (*domain.Job, error) {
	// 1. Resolve the recruiter's company
	companyID, err := u.companyOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. Business validation
	job.Title = validation.NormalizeText(job.Title)
	if err := u.validate.Struct(job); err != nil {
		return nil, apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; "))
	}

	// 3. Persist; counters are only ever changed at the store
	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.CompanyID = companyID
	job.Status = domain.JobStatusOpen
	job.Applicants = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := u.jobRepo.Create(ctx, job); err != nil {
		return nil, apperror.Internal(err)
	}
	return job, nil
}

func (u *jobUsecase) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := u.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "Job not found")
	}
	return job, nil
}

// CloseJob stops new applications. Existing applications are unaffected.
func (u *jobUsecase) CloseJob(ctx context.Context, userID, id string) (*domain.Job, error) {
	companyID, err := u.companyOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	job, err := u.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "Job not found")
	}
	if job.CompanyID != companyID {
		return nil, apperror.Forbidden("You can only manage your company's jobs")
	}
	if job.Status == domain.JobStatusClosed {
		return job, nil
	}
	closed, err := u.jobRepo.UpdateStatus(ctx, id, domain.JobStatusClosed)
	if err != nil {
		return nil, mapStoreError(err, "Job not found")
	}
	return closed, nil
}

func (u *jobUsecase) companyOf(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", apperror.Unauthorized("User not authenticated")
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", apperror.Forbidden("Complete your company signup before posting jobs")
	}
	if err != nil {
		return "", apperror.Internal(err)
	}
	if !domain.IsRecruiterRole(user.Role) || user.CompanyID == "" {
		return "", apperror.Forbidden("Only company recruiters can manage jobs")
	}
	return user.CompanyID, nil
}
