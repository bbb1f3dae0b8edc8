package document

import (
	"context"
	"fmt"

	"recruiting-pipeline/internal/domain"
)

type userRepo struct {
	store domain.DocumentStore
}

func NewUserRepository(store domain.DocumentStore) domain.UserRepository {
	return &userRepo{store: store}
}

func (r *userRepo) Create(ctx context.Context, user *domain.UserAccount) error {
	fields, err := toFields(user)
	if err != nil {
		return err
	}
	return r.store.CreateDocument(ctx, domain.CollectionUsers, user.ID, fields)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	doc, err := r.store.GetDocument(ctx, domain.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	var user domain.UserAccount
	if err := decode(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	docs, err := r.store.QueryByField(ctx, domain.CollectionUsers, "email", email)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	var user domain.UserAccount
	if err := decode(&docs[0], &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MergeEnrichment sets the candidate's resume analysis without touching other fields.
func (r *userRepo) MergeEnrichment(ctx context.Context, id string, enrichment *domain.Enrichment) error {
	_, err := r.store.UpdateDocument(ctx, domain.CollectionUsers, id, map[string]interface{}{"enrichment": enrichment}, 0)
	return err
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteDocument(ctx, domain.CollectionUsers, id)
}

type companyRepo struct {
	store domain.DocumentStore
}

func NewCompanyRepository(store domain.DocumentStore) domain.CompanyRepository {
	return &companyRepo{store: store}
}

func (r *companyRepo) Create(ctx context.Context, company *domain.CompanyAccount) error {
	fields, err := toFields(company)
	if err != nil {
		return err
	}
	return r.store.CreateDocument(ctx, domain.CollectionCompanies, company.ID, fields)
}

func (r *companyRepo) GetByID(ctx context.Context, id string) (*domain.CompanyAccount, error) {
	doc, err := r.store.GetDocument(ctx, domain.CollectionCompanies, id)
	if err != nil {
		return nil, err
	}
	var company domain.CompanyAccount
	if err := decode(doc, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteDocument(ctx, domain.CollectionCompanies, id)
}
