package document

import (
	"context"
	"time"

	"recruiting-pipeline/internal/domain"
)

type jobRepo struct {
	store domain.DocumentStore
}

func NewJobRepository(store domain.DocumentStore) domain.JobRepository {
	return &jobRepo{store: store}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	fields, err := toFields(job)
	if err != nil {
		return err
	}
	return r.store.CreateDocument(ctx, domain.CollectionJobs, job.ID, fields)
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	doc, err := r.store.GetDocument(ctx, domain.CollectionJobs, id)
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := decode(doc, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// IncrementApplicants adjusts the counter at the store, never read-modify-write here.
func (r *jobRepo) IncrementApplicants(ctx context.Context, id string, delta int64) (int64, error) {
	return r.store.IncrementField(ctx, domain.CollectionJobs, id, "applicants", delta)
}

// UpdateStatus opens or closes the posting. The applicant counter is not touched.
func (r *jobRepo) UpdateStatus(ctx context.Context, id, status string) (*domain.Job, error) {
	doc, err := r.store.UpdateDocument(ctx, domain.CollectionJobs, id, map[string]interface{}{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}, 0)
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := decode(doc, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
