package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/metrics"
)

// EnrichmentDispatcher fires enrichment requests without blocking the
// submission longer than the acknowledgement window.
type EnrichmentDispatcher struct {
	trigger   domain.EnrichmentTrigger
	extractor domain.TextExtractor
	bg        *Background
	ackWindow time.Duration
	timeout   time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingDispatch
}

type pendingDispatch struct {
	cancel context.CancelFunc
	token  string
}

func NewEnrichmentDispatcher(
	trigger domain.EnrichmentTrigger,
	extractor domain.TextExtractor,
	bg *Background,
	ackWindow, timeout time.Duration,
	log *zap.Logger,
) *EnrichmentDispatcher {
	return &EnrichmentDispatcher{
		trigger:   trigger,
		extractor: extractor,
		bg:        bg,
		ackWindow: ackWindow,
		timeout:   timeout,
		log:       log,
		pending:   make(map[string]pendingDispatch),
	}
}

// Dispatch starts the trigger on a detached context and waits at most the ack
// window for it. It never fails the caller: the returned status and notice
// describe what the submitter should be told. Only a caller presenting
// cancelToken may cancel the dispatch while it is pending.
func (d *EnrichmentDispatcher) Dispatch(ctx context.Context, req domain.EnrichmentRequest, artifact *domain.ArtifactMeta, cancelToken string) (domain.EnrichmentStatus, string) {
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.register(req.EntityID, pendingDispatch{cancel: cancel, token: cancelToken})

	done := make(chan error, 1)
	d.bg.run("enrichment:"+req.EntityID, cancel, func() {
		defer d.forget(req.EntityID)
		if artifact != nil && d.extractor != nil && len(artifact.Data) > 0 {
			text, err := d.extractor.Extract(artifact.MimeType, artifact.Data)
			if err != nil {
				d.log.Debug("resume text extraction skipped", zap.String("entity_id", req.EntityID), zap.Error(err))
			}
			req.ResumeText = text
		}
		err := d.trigger.Trigger(dispatchCtx, req)
		if err != nil {
			d.log.Warn("enrichment dispatch failed",
				zap.String("entity_id", req.EntityID),
				zap.String("entity_type", req.EntityType),
				zap.Error(err))
		}
		done <- err
	})

	timer := time.NewTimer(d.ackWindow)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			status := domain.EnrichmentUnavailable
			if errors.Is(err, context.Canceled) {
				status = domain.EnrichmentNotRequested
			}
			metrics.EnrichmentDispatchTotal.WithLabelValues(string(status)).Inc()
			return status, domain.NoticeEnrichmentFailed
		}
		metrics.EnrichmentDispatchTotal.WithLabelValues(string(domain.EnrichmentQueued)).Inc()
		return domain.EnrichmentQueued, ""
	case <-timer.C:
	case <-ctx.Done():
	}
	metrics.EnrichmentDispatchTotal.WithLabelValues(string(domain.EnrichmentPending)).Inc()
	return domain.EnrichmentPending, domain.NoticeEnrichmentPending
}

// Cancel aborts a dispatch that has not completed yet. The token must match
// the one the dispatch was started with.
func (d *EnrichmentDispatcher) Cancel(entityID, token string) bool {
	d.mu.Lock()
	p, ok := d.pending[entityID]
	if ok && (token == "" || subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) != 1) {
		ok = false
	}
	if ok {
		delete(d.pending, entityID)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}
	p.cancel()
	d.log.Info("enrichment dispatch cancelled", zap.String("entity_id", entityID))
	return true
}

func (d *EnrichmentDispatcher) register(entityID string, p pendingDispatch) {
	d.mu.Lock()
	d.pending[entityID] = p
	d.mu.Unlock()
}

func (d *EnrichmentDispatcher) forget(entityID string) {
	d.mu.Lock()
	delete(d.pending, entityID)
	d.mu.Unlock()
}
