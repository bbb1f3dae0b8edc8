package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruiting-pipeline/internal/domain"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	rec, claimed, err := store.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, rec)
	assert.True(t, mr.Exists(idempotencyPrefix+"k1"))

	rec, claimed, err = store.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, domain.IdempotencyInFlight, rec.State)

	result := &domain.SubmissionResult{Kind: domain.WizardCandidateSignup, EntityID: "u1", AccountID: "u1"}
	require.NoError(t, store.Complete(ctx, "k1", result, time.Hour))

	rec, claimed, err = store.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, domain.IdempotencyCompleted, rec.State)
	assert.Equal(t, "u1", rec.Result.EntityID)

	require.NoError(t, store.Release(ctx, "k1"))
	_, claimed, err = store.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	mr.FastForward(2 * time.Hour)
	_, claimed, err = store.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "expired key can be claimed again")
}

func TestIdempotencyStoreSingleWinner(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewIdempotencyStore(client)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := store.Claim(context.Background(), "race", time.Minute)
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestIdempotencyStoreRedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db)
	ctx := context.Background()

	inFlight, _ := json.Marshal(domain.IdempotencyRecord{State: domain.IdempotencyInFlight})
	mock.ExpectSetNX(idempotencyPrefix+"k", string(inFlight), time.Minute).SetErr(errors.New("READONLY"))
	_, _, err := store.Claim(ctx, "k", time.Minute)
	assert.ErrorContains(t, err, "READONLY")

	mock.ExpectSetNX(idempotencyPrefix+"k", string(inFlight), time.Minute).SetVal(false)
	mock.ExpectGet(idempotencyPrefix + "k").SetVal("not json")
	_, _, err = store.Claim(ctx, "k", time.Minute)
	assert.ErrorContains(t, err, "decode")

	mock.ExpectDel(idempotencyPrefix + "k").SetErr(errors.New("timeout"))
	assert.Error(t, store.Release(ctx, "k"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, claimed, _ := store.Claim(ctx, "k", time.Minute)
	assert.True(t, claimed)
	rec, claimed, _ := store.Claim(ctx, "k", time.Minute)
	assert.False(t, claimed)
	assert.Equal(t, domain.IdempotencyInFlight, rec.State)

	require.NoError(t, store.Complete(ctx, "k", &domain.SubmissionResult{EntityID: "e"}, time.Minute))
	rec, _, _ = store.Claim(ctx, "k", time.Minute)
	assert.Equal(t, "e", rec.Result.EntityID)

	now = now.Add(2 * time.Minute)
	_, claimed, _ = store.Claim(ctx, "k", time.Minute)
	assert.True(t, claimed)
}

func TestSubmissionLimiter(t *testing.T) {
	_, client := newMiniredis(t)
	limiter := NewSubmissionLimiter(client, 2, 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, "10.0.0.1", "jane@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := limiter.Allow(ctx, "10.0.0.1", "jane@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 60, retry)

	// different IP, same email: third submission of the day still allowed, fourth is not
	ok, _, err = limiter.Allow(ctx, "10.0.0.2", "jane@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, retry, err = limiter.Allow(ctx, "10.0.0.3", "jane@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3600, retry)
}

func TestSubmissionLimiterWithoutRedis(t *testing.T) {
	ok, _, err := NewSubmissionLimiter(nil, 1, 1).Allow(context.Background(), "ip", "e")
	require.NoError(t, err)
	assert.True(t, ok)
}
