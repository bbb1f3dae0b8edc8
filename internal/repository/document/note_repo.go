package document

import (
	"context"
	"sort"

	"recruiting-pipeline/internal/domain"
)

type noteRepo struct {
	store domain.DocumentStore
}

// NewNoteRepository stores notes as their own documents so appending never
// rewrites the application.
func NewNoteRepository(store domain.DocumentStore) domain.NoteRepository {
	return &noteRepo{store: store}
}

func (r *noteRepo) Append(ctx context.Context, note *domain.Note) error {
	fields, err := toFields(note)
	if err != nil {
		return err
	}
	return r.store.CreateDocument(ctx, domain.CollectionNotes, note.ID, fields)
}

func (r *noteRepo) ListByApplicationID(ctx context.Context, applicationID string) ([]domain.Note, error) {
	docs, err := r.store.QueryByField(ctx, domain.CollectionNotes, "applicationId", applicationID)
	if err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, len(docs))
	for i := range docs {
		var n domain.Note
		if err := decode(&docs[i], &n); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	return notes, nil
}
