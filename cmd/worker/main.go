package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"recruiting-pipeline/config"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/internal/repository/document"
	"recruiting-pipeline/internal/repository/postgres"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/database"
	"recruiting-pipeline/pkg/email"
	"recruiting-pipeline/pkg/enrichment"
	"recruiting-pipeline/pkg/events"
	"recruiting-pipeline/pkg/logger"
	"recruiting-pipeline/pkg/metrics"
	"recruiting-pipeline/pkg/validation"
)

// The worker applies enrichment results from the result queue. It shares the
// document store with the API, so it needs DATABASE_URL and AMQP_URL.
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	zlog := logger.Log.With(zap.String("component", "enrichment-worker"))

	if cfg.DBUrl == "" || cfg.AMQPURL == "" {
		zlog.Fatal("DATABASE_URL and AMQP_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	pool, err := database.NewPostgresConnection(ctx, cfg.DBUrl, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	store := postgres.NewDocumentStore(database.OpenSQL(pool))

	// 3. Setup UseCases
	notifier, err := email.NewNotifier(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to configure email", zap.Error(err))
	}
	publisher, err := events.NewPublisher(ctx, cfg.AWSRegion, cfg.SNSTopicARN, zlog)
	if err != nil {
		zlog.Fatal("Failed to configure event publisher", zap.Error(err))
	}
	bg := usecase.NewBackground(cfg.EnrichmentTimeout, zlog)
	users := document.NewUserRepository(store)
	lifecycleUC := usecase.NewLifecycleUsecase(
		document.NewApplicationRepository(store),
		document.NewNoteRepository(store),
		document.NewJobRepository(store),
		notifier, publisher, bg, validation.New(), zlog)
	enrichmentUC := usecase.NewEnrichmentUsecase(lifecycleUC, users, zlog)

	// 4. Metrics endpoint
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error("Metrics listener failed", zap.Error(err))
		}
	}()

	// 5. Consume
	conn, ch, err := enrichment.Dial(cfg.AMQPURL)
	if err != nil {
		zlog.Fatal("Failed to connect to enrichment queue", zap.Error(err))
	}
	defer conn.Close()

	consumer := enrichment.NewConsumer(ch, cfg.EnrichmentResultQueue, cfg.EnrichmentWorkers,
		ingestHandler(enrichmentUC), zlog)
	if err := consumer.Run(ctx); err != nil {
		zlog.Fatal("Consumer stopped", zap.Error(err))
	}

	// Graceful Shutdown
	zlog.Info("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := bg.Wait(shutdownCtx); err != nil {
		zlog.Warn("Background tasks still running at exit", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// ingestHandler applies a result and counts the outcome. Client errors (unknown
// entity, bad payload) are final, so they are marked invalid to stop requeues.
func ingestHandler(uc domain.EnrichmentUsecase) enrichment.Handler {
	return func(ctx context.Context, result *enrichment.Result) error {
		err := uc.Ingest(ctx, result.EntityType, result.EntityID, result.Enrichment())
		if err == nil {
			metrics.EnrichmentResultsTotal.WithLabelValues("queue", "applied").Inc()
			return nil
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
			metrics.EnrichmentResultsTotal.WithLabelValues("queue", "rejected").Inc()
			return errors.Join(enrichment.ErrInvalidResult, err)
		}
		metrics.EnrichmentResultsTotal.WithLabelValues("queue", "error").Inc()
		return err
	}
}
