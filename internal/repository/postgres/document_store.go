package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recruiting-pipeline/internal/domain"
)

type documentStore struct {
	db *sql.DB
}

// NewDocumentStore keeps every collection in one JSONB table. The db handle is
// expected to come from database.OpenSQL (pgx stdlib over the shared pool).
func NewDocumentStore(db *sql.DB) domain.DocumentStore {
	return &documentStore{db: db}
}

func (s *documentStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := `
		INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, now(), now())
		ON CONFLICT (collection, id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, collection, id, string(data))
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentExists)
	}
	return nil
}

func (s *documentStore) GetDocument(ctx context.Context, collection, id string) (*domain.Document, error) {
	query := `
		SELECT data::text, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	doc := &domain.Document{Collection: collection, ID: id}
	var raw string
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// UpdateDocument merges top-level keys with jsonb ||, so concurrent writers of
// different keys both survive. expectedVersion > 0 adds a compare-and-set.
func (s *documentStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]interface{}, expectedVersion int64) (*domain.Document, error) {
	data, err := json.Marshal(partial)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2 AND ($4::bigint = 0 OR version = $4::bigint)
		RETURNING data::text, version, created_at, updated_at
	`
	doc := &domain.Document{Collection: collection, ID: id}
	var raw string
	err = s.db.QueryRowContext(ctx, query, collection, id, string(data), expectedVersion).
		Scan(&raw, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missOrConflict(ctx, collection, id, expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// missOrConflict tells a missing row from a version mismatch after an update matched nothing.
func (s *documentStore) missOrConflict(ctx context.Context, collection, id string, expectedVersion int64) error {
	var current int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return fmt.Errorf("%s/%s expected version %d, found %d: %w", collection, id, expectedVersion, current, domain.ErrConflict)
}

// IncrementField adds delta in a single statement. Counters are commutative,
// so the document version is left alone.
func (s *documentStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	query := `
		UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3::text)::bigint, 0) + $4::bigint)),
		    updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING (data->>$3::text)::bigint
	`
	var value int64
	err := s.db.QueryRowContext(ctx, query, collection, id, field, delta).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	return value, nil
}

// QueryByField matches documents whose field equals value using jsonb containment.
func (s *documentStore) QueryByField(ctx context.Context, collection, field string, value interface{}) ([]domain.Document, error) {
	filter, err := json.Marshal(map[string]interface{}{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	query := `
		SELECT id, data::text, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, collection, string(filter))
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc := domain.Document{Collection: collection}
		var raw string
		var created, updated time.Time
		if err := rows.Scan(&doc.ID, &raw, &doc.Version, &created, &updated); err != nil {
			return nil, err
		}
		doc.CreatedAt, doc.UpdatedAt = created, updated
		if err := json.Unmarshal([]byte(raw), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *documentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}
