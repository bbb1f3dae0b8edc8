package document

import (
	"context"
	"sort"
	"time"

	"recruiting-pipeline/internal/domain"
)

type applicationRepo struct {
	store domain.DocumentStore
	now   func() time.Time
}

func NewApplicationRepository(store domain.DocumentStore) domain.ApplicationRepository {
	return &applicationRepo{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *applicationRepo) Create(ctx context.Context, app *domain.Application) error {
	fields, err := toFields(app)
	if err != nil {
		return err
	}
	if err := r.store.CreateDocument(ctx, domain.CollectionApplications, app.ID, fields); err != nil {
		return err
	}
	app.Version = 1
	return nil
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	doc, err := r.store.GetDocument(ctx, domain.CollectionApplications, id)
	if err != nil {
		return nil, err
	}
	return toApplication(doc)
}

func (r *applicationRepo) ListByJobID(ctx context.Context, jobID string) ([]domain.Application, error) {
	docs, err := r.store.QueryByField(ctx, domain.CollectionApplications, "jobId", jobID)
	if err != nil {
		return nil, err
	}
	apps := make([]domain.Application, 0, len(docs))
	for i := range docs {
		app, err := toApplication(&docs[i])
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].AppliedAt.After(apps[j].AppliedAt) })
	return apps, nil
}

// UpdateStatus writes only status and updatedAt, leaving stage and enrichment untouched.
func (r *applicationRepo) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, expectedVersion int64) (*domain.Application, error) {
	return r.update(ctx, id, map[string]interface{}{
		"status":    status,
		"updatedAt": r.now(),
	}, expectedVersion)
}

func (r *applicationRepo) UpdateStage(ctx context.Context, id string, stage domain.ApplicationStage, expectedVersion int64) (*domain.Application, error) {
	return r.update(ctx, id, map[string]interface{}{
		"stage":     stage,
		"updatedAt": r.now(),
	}, expectedVersion)
}

// MergeEnrichment replaces the enrichment field only, without a version check.
func (r *applicationRepo) MergeEnrichment(ctx context.Context, id string, enrichment *domain.Enrichment) (*domain.Application, error) {
	return r.update(ctx, id, map[string]interface{}{"enrichment": enrichment}, 0)
}

func (r *applicationRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteDocument(ctx, domain.CollectionApplications, id)
}

func (r *applicationRepo) update(ctx context.Context, id string, partial map[string]interface{}, expectedVersion int64) (*domain.Application, error) {
	doc, err := r.store.UpdateDocument(ctx, domain.CollectionApplications, id, partial, expectedVersion)
	if err != nil {
		return nil, err
	}
	return toApplication(doc)
}

func toApplication(doc *domain.Document) (*domain.Application, error) {
	var app domain.Application
	if err := decode(doc, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
