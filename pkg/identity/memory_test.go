package identity

import (
	"context"
	"testing"

	"recruiting-pipeline/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	id, err := svc.CreateAccount(ctx, "Jane@Example.com", "longenough", "")
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, "jane@example.com", "different1", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	_, err = svc.CreateAccount(ctx, "not-an-email", "longenough", "")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = svc.CreateAccount(ctx, "bob@example.com", "short", "")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	got, ok := svc.Authenticate("jane@example.com", "longenough")
	assert.True(t, ok)
	assert.Equal(t, id, got)
	_, ok = svc.Authenticate("jane@example.com", "wrong-password")
	assert.False(t, ok)

	require.NoError(t, svc.DeleteAccount(ctx, id))
	assert.Equal(t, 0, svc.Count())
	_, ok = svc.Authenticate("jane@example.com", "longenough")
	assert.False(t, ok)

	// the email is free again after compensation
	_, err = svc.CreateAccount(ctx, "jane@example.com", "longenough", "")
	assert.NoError(t, err)
}
