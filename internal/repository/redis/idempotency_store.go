package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"recruiting-pipeline/internal/domain"
)

const idempotencyPrefix = "idempotency:submission:"

type idempotencyStore struct {
	client goredis.Cmdable
}

// NewIdempotencyStore claims keys with SETNX so only one submission per key runs.
func NewIdempotencyStore(client goredis.Cmdable) domain.IdempotencyStore {
	return &idempotencyStore{client: client}
}

func (s *idempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (*domain.IdempotencyRecord, bool, error) {
	inFlight, err := json.Marshal(domain.IdempotencyRecord{State: domain.IdempotencyInFlight})
	if err != nil {
		return nil, false, err
	}

	// the existing key can expire between SETNX and GET, so try twice
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, string(inFlight), ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: claim: %w", err)
		}
		if ok {
			return nil, true, nil
		}

		raw, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: read: %w", err)
		}
		var record domain.IdempotencyRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, false, fmt.Errorf("idempotency: decode: %w", err)
		}
		return &record, false, nil
	}
	return nil, false, errors.New("idempotency: key kept changing while claiming")
}

func (s *idempotencyStore) Complete(ctx context.Context, key string, result *domain.SubmissionResult, ttl time.Duration) error {
	raw, err := json.Marshal(domain.IdempotencyRecord{State: domain.IdempotencyCompleted, Result: result})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, idempotencyPrefix+key, string(raw), ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

func (s *idempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// MemoryIdempotencyStore is the single-process fallback when Redis is not configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	record    domain.IdempotencyRecord
	expiresAt time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]memoryRecord), now: time.Now}
}

func (s *MemoryIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (*domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok && s.now().Before(existing.expiresAt) {
		rec := existing.record
		return &rec, false, nil
	}
	s.records[key] = memoryRecord{
		record:    domain.IdempotencyRecord{State: domain.IdempotencyInFlight},
		expiresAt: s.now().Add(ttl),
	}
	return nil, true, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key string, result *domain.SubmissionResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = memoryRecord{
		record:    domain.IdempotencyRecord{State: domain.IdempotencyCompleted, Result: result},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
