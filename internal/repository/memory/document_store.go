package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"recruiting-pipeline/internal/domain"
)

// DocumentStore is an in-process document store for local development and tests.
// Fields go through a JSON round trip so callers see the same value types as
// with the Postgres store.
type DocumentStore struct {
	mu   sync.Mutex
	data map[string]map[string]*domain.Document
	now  func() time.Time
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		data: make(map[string]map[string]*domain.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	if _, exists := coll[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentExists)
	}
	now := s.now()
	coll[id] = &domain.Document{
		Collection: collection,
		ID:         id,
		Fields:     normalized,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return clone(doc), nil
}

func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]interface{}, expectedVersion int64) (*domain.Document, error) {
	normalized, err := normalize(partial)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if expectedVersion > 0 && doc.Version != expectedVersion {
		return nil, fmt.Errorf("%s/%s expected version %d, found %d: %w", collection, id, expectedVersion, doc.Version, domain.ErrConflict)
	}
	for k, v := range normalized {
		doc.Fields[k] = v
	}
	doc.Version++
	doc.UpdatedAt = s.now()
	return clone(doc), nil
}

func (s *DocumentStore) IncrementField(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(collection)[id]
	if !ok {
		return 0, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	var current int64
	switch v := doc.Fields[field].(type) {
	case nil:
	case float64:
		current = int64(v)
	default:
		return 0, fmt.Errorf("%s/%s.%s is %T, not a number", collection, id, field, v)
	}
	current += delta
	doc.Fields[field] = float64(current)
	doc.UpdatedAt = s.now()
	return current, nil
}

func (s *DocumentStore) QueryByField(ctx context.Context, collection, field string, value interface{}) ([]domain.Document, error) {
	probe, err := normalize(map[string]interface{}{field: value})
	if err != nil {
		return nil, err
	}
	want := probe[field]

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]domain.Document, 0)
	for _, doc := range s.collection(collection) {
		if reflect.DeepEqual(doc.Fields[field], want) {
			docs = append(docs, *clone(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	if _, ok := coll[id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	delete(coll, id)
	return nil
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

func (s *DocumentStore) collection(name string) map[string]*domain.Document {
	coll, ok := s.data[name]
	if !ok {
		coll = make(map[string]*domain.Document)
		s.data[name] = coll
	}
	return coll
}

func normalize(fields map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}

func clone(doc *domain.Document) *domain.Document {
	cp := *doc
	fields, _ := normalize(doc.Fields)
	cp.Fields = fields
	return &cp
}
