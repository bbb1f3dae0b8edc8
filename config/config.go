package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	ServiceName string
	DBUrl       string
	FrontendURL string
	CORSOrigins []string
	// Supabase (identity service + recruiter JWTs)
	SupabaseUrl        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	// Email
	EmailProvider string // smtp | ses | none
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
	// AWS (SES, SNS)
	AWSRegion   string
	SNSTopicARN string
	// Redis/Upstash Configuration
	UpstashRedisURL      string
	UpstashRedisPassword string
	// Object storage
	S3Provider        string // aws | wasabi | r2
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string
	// Enrichment queue
	AMQPURL                  string
	EnrichmentRequestQueue   string
	EnrichmentResultQueue    string
	EnrichmentWorkers        int
	EnrichmentCallbackSecret string
	// Submission pipeline
	SubmissionStepTimeout    time.Duration
	EnrichmentAckWindow      time.Duration
	EnrichmentTimeout        time.Duration
	IdempotencyBucket        time.Duration
	IdempotencyTTL           time.Duration
	SubmissionLimitPerMinute int
	SubmissionLimitPerDay    int
	// Artifact scanning
	ClamAVAddress string
	// Tracing
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// .env is only present locally
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "recruiting-pipeline"),
		DBUrl:       getEnv("DATABASE_URL", ""),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		// Trailing slash would produce .co//auth paths
		SupabaseUrl:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		// Email
		EmailProvider: strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
		SMTPHost:      getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "noreply@example.com"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),
		// Redis/Upstash Configuration
		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),
		// Object storage
		S3Provider:        strings.ToLower(getEnv("S3_PROVIDER", "aws")),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		// Enrichment queue
		AMQPURL:                  getEnv("AMQP_URL", ""),
		EnrichmentRequestQueue:   getEnv("ENRICHMENT_REQUEST_QUEUE", "enrichment.requests"),
		EnrichmentResultQueue:    getEnv("ENRICHMENT_RESULT_QUEUE", "enrichment.results"),
		EnrichmentWorkers:        getEnvInt("ENRICHMENT_WORKERS", 4),
		EnrichmentCallbackSecret: getEnv("ENRICHMENT_CALLBACK_SECRET", ""),
		// Submission pipeline
		SubmissionStepTimeout:    getEnvDuration("SUBMISSION_STEP_TIMEOUT", 30*time.Second),
		EnrichmentAckWindow:      getEnvDuration("ENRICHMENT_ACK_WINDOW", 2*time.Second),
		EnrichmentTimeout:        getEnvDuration("ENRICHMENT_TIMEOUT", 30*time.Second),
		IdempotencyBucket:        getEnvDuration("SUBMISSION_IDEMPOTENCY_BUCKET", 10*time.Minute),
		IdempotencyTTL:           getEnvDuration("SUBMISSION_IDEMPOTENCY_TTL", 24*time.Hour),
		SubmissionLimitPerMinute: getEnvInt("SUBMISSION_LIMIT_PER_MINUTE", 10),
		SubmissionLimitPerDay:    getEnvInt("SUBMISSION_LIMIT_PER_DAY", 20),
		ClamAVAddress:            getEnv("CLAMAV_ADDRESS", ""),
		TracingEnabled:           getEnvBool("TRACING_ENABLED", true),
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", cfg.FrontendURL))

	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Falling back to the in-memory document store.")
	}
	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Idempotency keys will be kept in memory.")
	}
	if cfg.AMQPURL == "" {
		log.Println("WARNING: AMQP_URL not configured. Enrichment requests will be dropped.")
	}

	return cfg, nil
}

// JWKSURL is the Supabase signing key set for RS256/ES256 recruiter tokens.
func (c *Config) JWKSURL() string {
	if c.SupabaseUrl == "" {
		return ""
	}
	return c.SupabaseUrl + "/auth/v1/.well-known/jwks.json"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback if not set/invalid
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}
