package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruiting-pipeline/internal/domain"
)

func newMockStore(t *testing.T) (domain.DocumentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentStore(db), mock
}

func TestCreateDocument(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("jobs", "job-1", `{"applicants":0,"title":"Go Engineer"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.CreateDocument(ctx, "jobs", "job-1", map[string]interface{}{"title": "Go Engineer", "applicants": 0}))

	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.CreateDocument(ctx, "jobs", "job-1", map[string]interface{}{})
	assert.ErrorIs(t, err, domain.ErrDocumentExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocument(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT data::text, version, created_at, updated_at FROM documents").
		WithArgs("applications", "app-1").
		WillReturnRows(sqlmock.NewRows([]string{"data", "version", "created_at", "updated_at"}).
			AddRow(`{"status":"Applied"}`, int64(3), now, now))

	doc, err := store.GetDocument(context.Background(), "applications", "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.Version)
	assert.Equal(t, "Applied", doc.Fields["status"])

	mock.ExpectQuery("SELECT data::text").WillReturnError(sql.ErrNoRows)
	_, err = store.GetDocument(context.Background(), "applications", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocument(t *testing.T) {
	now := time.Now().UTC()

	t.Run("merges and returns new version", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`UPDATE documents SET data = data \|\| \$3::jsonb, version = version \+ 1`).
			WithArgs("applications", "app-1", `{"status":"Hired"}`, int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"data", "version", "created_at", "updated_at"}).
				AddRow(`{"status":"Hired","stage":"Offer"}`, int64(3), now, now))

		doc, err := store.UpdateDocument(context.Background(), "applications", "app-1", map[string]interface{}{"status": "Hired"}, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), doc.Version)
		assert.Equal(t, "Offer", doc.Fields["stage"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version mismatch is a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE documents").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT version FROM documents").
			WithArgs("applications", "app-1").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(5)))

		_, err := store.UpdateDocument(context.Background(), "applications", "app-1", map[string]interface{}{"status": "Hired"}, 2)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE documents").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT version FROM documents").WillReturnError(sql.ErrNoRows)

		_, err := store.UpdateDocument(context.Background(), "applications", "nope", map[string]interface{}{}, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIncrementField(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SET data = jsonb_set").
		WithArgs("jobs", "job-1", "applicants", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"applicants"}).AddRow(int64(8)))

	v, err := store.IncrementField(context.Background(), "jobs", "job-1", "applicants", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)

	mock.ExpectQuery("SET data = jsonb_set").WillReturnError(errors.New("connection reset"))
	_, err = store.IncrementField(context.Background(), "jobs", "job-1", "applicants", 1)
	assert.ErrorContains(t, err, "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryByField(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE collection = \$1 AND data @> \$2::jsonb`).
		WithArgs("applications", `{"jobId":"job-1"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version", "created_at", "updated_at"}).
			AddRow("a1", `{"jobId":"job-1"}`, int64(1), now, now).
			AddRow("a2", `{"jobId":"job-1"}`, int64(4), now, now))

	docs, err := store.QueryByField(context.Background(), "applications", "jobId", "job-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a2", docs[1].ID)
	assert.Equal(t, int64(4), docs[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocument(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM documents").WithArgs("users", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteDocument(context.Background(), "users", "u1"))

	mock.ExpectExec("DELETE FROM documents").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteDocument(context.Background(), "users", "u1"), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
