package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"recruiting-pipeline/config"
	_ "recruiting-pipeline/docs" // Important for Swagger
	"recruiting-pipeline/internal/delivery/http/middleware"
	v1 "recruiting-pipeline/internal/delivery/http/v1"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/internal/repository/document"
	"recruiting-pipeline/internal/repository/memory"
	"recruiting-pipeline/internal/repository/postgres"
	redisrepo "recruiting-pipeline/internal/repository/redis"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/auth"
	"recruiting-pipeline/pkg/database"
	"recruiting-pipeline/pkg/email"
	"recruiting-pipeline/pkg/enrichment"
	"recruiting-pipeline/pkg/events"
	"recruiting-pipeline/pkg/identity"
	"recruiting-pipeline/pkg/logger"
	redisclient "recruiting-pipeline/pkg/redis"
	"recruiting-pipeline/pkg/resumetext"
	"recruiting-pipeline/pkg/security/antivirus"
	"recruiting-pipeline/pkg/storage"
	"recruiting-pipeline/pkg/tracing"
	"recruiting-pipeline/pkg/validation"
)

// @title           Recruiting Pipeline API
// @version         1.0
// @description     Wizard submissions and the recruiter application lifecycle.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger and tracing
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	zlog := logger.Log
	zlog.Info("Starting recruiting pipeline", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.TracingEnabled {
		shutdownTracing = tracing.Init(cfg.ServiceName, zlog)
	}

	checks := map[string]usecase.HealthCheck{}

	// 3. Setup document store
	var store domain.DocumentStore
	if cfg.DBUrl != "" {
		pool, err := database.NewPostgresConnection(ctx, cfg.DBUrl, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		db := database.OpenSQL(pool)
		if err := database.EnsureSchema(ctx, db); err != nil {
			zlog.Fatal("Failed to prepare schema", zap.Error(err))
		}
		store = postgres.NewDocumentStore(db)
		checks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	} else {
		store = memory.NewDocumentStore()
	}

	// 4. Setup Repositories
	userRepo := document.NewUserRepository(store)
	companyRepo := document.NewCompanyRepository(store)
	jobRepo := document.NewJobRepository(store)
	applicationRepo := document.NewApplicationRepository(store)
	noteRepo := document.NewNoteRepository(store)

	// 5. Redis: idempotency keys, submission limits, wizard rate limit
	var (
		idempotency domain.IdempotencyStore = redisrepo.NewMemoryIdempotencyStore()
		limiter     domain.SubmissionLimiter
		scripter    goredis.Scripter
	)
	if cfg.UpstashRedisURL != "" {
		if err := redisclient.Initialize(redisclient.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword}); err != nil {
			zlog.Warn("Redis unavailable, falling back to process memory", zap.Error(err))
		} else if client := redisclient.Client(); client != nil {
			defer redisclient.Close()
			idempotency = redisrepo.NewIdempotencyStore(client)
			limiter = redisrepo.NewSubmissionLimiter(client, cfg.SubmissionLimitPerMinute, cfg.SubmissionLimitPerDay)
			scripter = client
			checks["redis"] = redisclient.HealthCheck
		}
	}

	// 6. External services
	var identitySvc domain.IdentityService
	if cfg.SupabaseUrl != "" && cfg.SupabaseServiceKey != "" {
		identitySvc = identity.NewSupabaseClient(cfg.SupabaseUrl, cfg.SupabaseServiceKey)
	} else {
		zlog.Warn("Supabase not configured, accounts are kept in memory")
		identitySvc = identity.NewMemoryService()
	}

	var blobs domain.BlobStore
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewS3Client(ctx, storage.Config{
			Provider:        storage.Provider(cfg.S3Provider),
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			zlog.Fatal("Failed to create object storage client", zap.Error(err))
		}
		blobs = storage.NewS3Store(s3Client, cfg.S3Bucket)
	} else {
		zlog.Warn("S3_BUCKET not configured, uploads are kept in memory")
		blobs = storage.NewMemoryStore("uploads")
	}

	var scanner antivirus.Scanner = antivirus.NewNoOpScanner()
	if cfg.ClamAVAddress != "" {
		clam := antivirus.NewClamAVScanner(cfg.ClamAVAddress, 30*time.Second)
		scanner = clam
		checks["clamav"] = func(ctx context.Context) error {
			if !clam.Available(ctx) {
				return antivirus.ErrScannerUnavailable
			}
			return nil
		}
	}

	notifier, err := email.NewNotifier(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to configure email", zap.Error(err))
	}
	publisher, err := events.NewPublisher(ctx, cfg.AWSRegion, cfg.SNSTopicARN, zlog)
	if err != nil {
		zlog.Fatal("Failed to configure event publisher", zap.Error(err))
	}

	var trigger domain.EnrichmentTrigger = enrichment.NewLogTrigger(zlog)
	if cfg.AMQPURL != "" {
		conn, ch, err := enrichment.Dial(cfg.AMQPURL)
		if err != nil {
			zlog.Warn("Enrichment queue unavailable, requests will only be logged", zap.Error(err))
		} else {
			defer conn.Close()
			pub, err := enrichment.NewPublisher(ch, cfg.EnrichmentRequestQueue, zlog)
			if err != nil {
				zlog.Fatal("Failed to declare enrichment queue", zap.Error(err))
			}
			trigger = pub
			checks["amqp"] = amqpCheck(conn)
		}
	}

	// 7. Setup UseCases
	validate := validation.New()
	bg := usecase.NewBackground(cfg.EnrichmentTimeout, zlog)
	dispatcher := usecase.NewEnrichmentDispatcher(trigger, resumetext.NewExtractor(), bg,
		cfg.EnrichmentAckWindow, cfg.EnrichmentTimeout, zlog)

	submissionUC := usecase.NewSubmissionUsecase(usecase.SubmissionDeps{
		Identity:     identitySvc,
		Blobs:        blobs,
		Store:        store,
		Users:        userRepo,
		Companies:    companyRepo,
		Applications: applicationRepo,
		Jobs:         jobRepo,
		Idempotency:  idempotency,
		Limiter:      limiter,
		Scanner:      scanner,
		Dispatcher:   dispatcher,
		Notifier:     notifier,
		Events:       publisher,
		Background:   bg,
		Log:          zlog,
	}, usecase.SubmissionConfig{
		StepTimeout:       cfg.SubmissionStepTimeout,
		IdempotencyBucket: cfg.IdempotencyBucket,
		IdempotencyTTL:    cfg.IdempotencyTTL,
	})
	wizardUC := usecase.NewWizardUsecase(usecase.NewFieldValidator(validate), submissionUC, zlog)
	lifecycleUC := usecase.NewLifecycleUsecase(applicationRepo, noteRepo, jobRepo, notifier, publisher, bg, validate, zlog)

	// 8. Setup Auth Provider (JWKS)
	var keys middleware.KeyFunc
	if jwksURL := cfg.JWKSURL(); jwksURL != "" {
		keys = auth.NewProvider(jwksURL).KeyFunc
	}

	// 9. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		AuthUC:       usecase.NewAuthUsecase(userRepo),
		JobUC:        usecase.NewJobUsecase(jobRepo, userRepo, validate),
		WizardUC:     wizardUC,
		SubmissionUC: submissionUC,
		LifecycleUC:  lifecycleUC,
		EnrichmentUC: usecase.NewEnrichmentUsecase(lifecycleUC, userRepo, zlog),
		HealthUC:     usecase.NewHealthUsecase(checks),
		Keys:         keys,
		Redis:        scripter,
		Log:          zlog,
		Config:       cfg,
	})

	// 10. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Listen failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	// enrichment dispatches and notifications outlive their requests
	if err := bg.Wait(shutdownCtx); err != nil {
		zlog.Warn("Background tasks still running at exit", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zlog.Warn("Trace flush failed", zap.Error(err))
	}

	zlog.Info("Server exiting")
}

func amqpCheck(conn *amqp.Connection) usecase.HealthCheck {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	return func(ctx context.Context) error {
		select {
		case err := <-closed:
			if err == nil {
				return amqp.ErrClosed
			}
			return err
		default:
			return nil
		}
	}
}
