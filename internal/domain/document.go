package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource was modified concurrently")
	ErrDocumentExists = errors.New("document already exists")
)

// Collections used by the repositories.
const (
	CollectionUsers        = "users"
	CollectionCompanies    = "companies"
	CollectionJobs         = "jobs"
	CollectionApplications = "applications"
	CollectionNotes        = "application_notes"
)

// Document is a schemaless record in a collection.
type Document struct {
	Collection string                 `json:"collection"`
	ID         string                 `json:"id"`
	Fields     map[string]interface{} `json:"fields"`
	Version    int64                  `json:"version"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// DocumentStore is the hosted document database contract.
//
// UpdateDocument merges partial into the stored fields key by key, so two
// writers touching different keys never lose each other's write.
// expectedVersion > 0 turns the update into a compare-and-set that fails
// with ErrConflict. IncrementField must be atomic at the store.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	UpdateDocument(ctx context.Context, collection, id string, partial map[string]interface{}, expectedVersion int64) (*Document, error)
	IncrementField(ctx context.Context, collection, id, field string, delta int64) (int64, error)
	QueryByField(ctx context.Context, collection, field string, value interface{}) ([]Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}
