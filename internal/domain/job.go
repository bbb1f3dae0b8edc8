package domain

import (
	"context"
	"time"
)

const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// Job is a posting candidates apply to. Applicants is a server-side counter.
type Job struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=20000"`
	Location    string    `json:"location" validate:"max=200"`
	Status      string    `json:"status"`
	Applicants  int64     `json:"applicants"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	IncrementApplicants(ctx context.Context, id string, delta int64) (int64, error)
	UpdateStatus(ctx context.Context, id, status string) (*Job, error)
}

type JobUsecase interface {
	CreateJob(ctx context.Context, userID string, job *Job) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	CloseJob(ctx context.Context, userID, id string) (*Job, error)
}
