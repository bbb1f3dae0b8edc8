package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
)

type enrichmentUsecase struct {
	lifecycle domain.LifecycleUsecase
	users     domain.UserRepository
	log       *zap.Logger
}

// NewEnrichmentUsecase routes analysis results to applications or candidate profiles.
func NewEnrichmentUsecase(lifecycle domain.LifecycleUsecase, users domain.UserRepository, log *zap.Logger) domain.EnrichmentUsecase {
	return &enrichmentUsecase{lifecycle: lifecycle, users: users, log: log}
}

func (uc *enrichmentUsecase) Ingest(ctx context.Context, entityType, entityID string, enrichment *domain.Enrichment) error {
	switch entityType {
	case domain.EntityTypeApplication, "":
		_, err := uc.lifecycle.ApplyEnrichment(ctx, entityID, enrichment)
		return err
	case domain.EntityTypeCandidate:
		if err := validateEnrichment(enrichment); err != nil {
			return err
		}
		if enrichment.AnalyzedAt.IsZero() {
			enrichment.AnalyzedAt = time.Now().UTC()
		}
		if err := uc.users.MergeEnrichment(ctx, entityID, enrichment); err != nil {
			return mapStoreError(err, "Candidate not found")
		}
		uc.log.Info("candidate profile enriched",
			zap.String("user_id", entityID),
			zap.Int("match_score", enrichment.MatchScore))
		return nil
	default:
		return apperror.BadRequest("Unknown entity type: " + entityType)
	}
}
