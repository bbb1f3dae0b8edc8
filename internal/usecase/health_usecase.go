package usecase

import (
	"context"
	"sort"
	"time"
)

type HealthUsecase interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type healthUsecase struct {
	checks map[string]HealthCheck
}

// NewHealthUsecase reports "ok" plus one entry per configured dependency.
func NewHealthUsecase(checks map[string]HealthCheck) HealthUsecase {
	return &healthUsecase{checks: checks}
}

func (u *healthUsecase) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(u.checks))
	for name := range u.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	result := map[string]string{"status": "ok"}
	healthy := true
	for _, name := range names {
		if err := u.checks[name](ctx); err != nil {
			result[name] = "unavailable"
			healthy = false
			continue
		}
		result[name] = "ok"
	}
	if !healthy {
		result["status"] = "degraded"
	}
	return result, healthy
}
