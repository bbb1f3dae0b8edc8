package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"recruiting-pipeline/config"
	"recruiting-pipeline/internal/delivery/http/middleware"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/internal/usecase"
	"recruiting-pipeline/pkg/metrics"
)

type RouterDeps struct {
	AuthUC       domain.AuthUsecase
	JobUC        domain.JobUsecase
	WizardUC     domain.WizardUsecase
	SubmissionUC domain.SubmissionUsecase
	LifecycleUC  domain.LifecycleUsecase
	EnrichmentUC domain.EnrichmentUsecase
	HealthUC     usecase.HealthUsecase
	// Keys verifies RS256 recruiter tokens; nil accepts HS256 only
	Keys middleware.KeyFunc
	// Redis backs the wizard rate limit; nil keeps counters in memory
	Redis  goredis.Scripter
	Log    *zap.Logger
	Config *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(deps.Config.CORSOrigins)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Log))
	r.Use(middleware.SecurityHeadersMiddleware(deps.Config.IsProduction()))
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.ErrorHandler(deps.Log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Health Check
	v1.GET("/health", Health(deps.HealthUC))

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public wizard routes
	wizardLimit := middleware.RateLimitMiddleware(middleware.WizardRateLimitConfig(deps.Redis, deps.Log))
	NewWizardHandler(v1, deps.WizardUC, deps.SubmissionUC, wizardLimit)

	// Analysis service callbacks
	NewEnrichmentHandler(v1, deps.EnrichmentUC,
		middleware.SharedSecret(middleware.EnrichmentSecretHeader, deps.Config.EnrichmentCallbackSecret))

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Config.SupabaseJWTSecret, deps.Keys, deps.AuthUC))
	NewAuthHandler(protected, deps.AuthUC)

	recruiter := protected.Group("")
	recruiter.Use(middleware.RequireRecruiter())
	{
		NewJobHandler(v1, recruiter, deps.JobUC)
		NewApplicationHandler(recruiter, deps.LifecycleUC, deps.JobUC)
	}

	return r
}
