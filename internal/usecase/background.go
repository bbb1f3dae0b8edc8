package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Background runs fire-and-forget work (emails, events, enrichment dispatch)
// outside the request and lets shutdown wait for it.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

func NewBackground(timeout time.Duration, log *zap.Logger) *Background {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{timeout: timeout, log: log}
}

// Go runs fn on a context detached from parent with the background timeout.
func (b *Background) Go(parent context.Context, name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), b.timeout)
	b.run(name, cancel, func() { fn(ctx) })
}

func (b *Background) run(name string, cancel context.CancelFunc, fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		fn()
	}()
}

// Wait blocks until every task finished or ctx ends.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
