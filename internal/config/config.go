package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Triage       TriageConfig
	Backend      BackendConfig
	Worker       WorkerConfig
	KB           KBConfig
	Tracing      TracingConfig
	RateLimit    RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	SeedOnStart           bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Encoding is "json" or "console".
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds the Discord escalation channel.
type NotificationConfig struct {
	DiscordBotToken  string
	DiscordChannelID string
}

// Enabled reports whether Discord delivery is configured.
func (n NotificationConfig) Enabled() bool {
	return n.DiscordBotToken != "" && n.DiscordChannelID != ""
}

// TriageConfig tunes the orchestrator and seeds the runtime config row.
type TriageConfig struct {
	Guard                 string
	GuardTTLSeconds       int
	RetrievalLimit        int
	AutoCloseEnabled      bool
	ConfidenceThreshold   float64
	SLAHours              int
	SLASweepSchedule      string
	ConfigCacheTTLSeconds int
}

// BackendConfig selects and configures the classification backend.
type BackendConfig struct {
	Kind            string
	TimeoutSeconds  int
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIURL       string
	MaxTokens       int
}

// WorkerConfig sizes the detached triage pool.
type WorkerConfig struct {
	Concurrency       int
	QueueSize         int
	RunTimeoutSeconds int
}

// KBConfig selects the article store.
type KBConfig struct {
	Store      string
	SQLitePath string
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// RateLimitConfig holds per-minute request caps.
type RateLimitConfig struct {
	AuthPerMinute     int
	MutationPerMinute int
}

// Supported selector values.
const (
	BackendStub      = "stub"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"

	GuardNone  = "none"
	GuardLocal = "local"
	GuardRedis = "redis"

	KBStorePostgres = "postgres"
	KBStoreSQLite   = "sqlite"
	KBStoreMemory   = "memory"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			SeedOnStart:           getEnvAsBool("APP_SEED_ON_START", false),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
			DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
		},
		Triage: TriageConfig{
			Guard:                 getEnv("TRIAGE_GUARD", GuardLocal),
			GuardTTLSeconds:       getEnvAsInt("TRIAGE_GUARD_TTL_SECONDS", 60),
			RetrievalLimit:        getEnvAsInt("TRIAGE_RETRIEVAL_LIMIT", 3),
			AutoCloseEnabled:      getEnvAsBool("AUTO_CLOSE_ENABLED", true),
			ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.78),
			SLAHours:              getEnvAsInt("SLA_HOURS", 24),
			SLASweepSchedule:      getEnv("TRIAGE_SLA_SWEEP_SCHEDULE", "0 */5 * * * *"),
			ConfigCacheTTLSeconds: getEnvAsInt("TRIAGE_CONFIG_CACHE_TTL_SECONDS", 30),
		},
		Backend: BackendConfig{
			Kind:            getEnv("TRIAGE_BACKEND", BackendStub),
			TimeoutSeconds:  getEnvAsInt("TRIAGE_BACKEND_TIMEOUT_SECONDS", 15),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			AnthropicURL:    os.Getenv("ANTHROPIC_BASE_URL"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIURL:       os.Getenv("OPENAI_BASE_URL"),
			MaxTokens:       getEnvAsInt("TRIAGE_BACKEND_MAX_TOKENS", 512),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvAsInt("WORKER_CONCURRENCY", 4),
			QueueSize:         getEnvAsInt("WORKER_QUEUE_SIZE", 100),
			RunTimeoutSeconds: getEnvAsInt("WORKER_RUN_TIMEOUT_SECONDS", 60),
		},
		KB: KBConfig{
			Store:      getEnv("KB_STORE", KBStorePostgres),
			SQLitePath: getEnv("KB_SQLITE_PATH", "data/kb.db"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute:     getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 20),
			MutationPerMinute: getEnvAsInt("RATE_LIMIT_MUTATION_PER_MINUTE", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects selector values and runtime defaults the service cannot run with.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendStub, BackendAnthropic, BackendOpenAI:
	default:
		return fmt.Errorf("invalid TRIAGE_BACKEND %q", c.Backend.Kind)
	}
	if c.Backend.Kind == BackendAnthropic && c.Backend.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic backend")
	}
	if c.Backend.Kind == BackendOpenAI && c.Backend.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
	}
	switch c.Triage.Guard {
	case GuardNone, GuardLocal, GuardRedis:
	default:
		return fmt.Errorf("invalid TRIAGE_GUARD %q", c.Triage.Guard)
	}
	if c.Triage.Guard == GuardRedis && c.Redis.Addr == "" {
		return fmt.Errorf("TRIAGE_GUARD=redis requires REDIS_ADDR")
	}
	switch c.KB.Store {
	case KBStorePostgres, KBStoreSQLite, KBStoreMemory:
	default:
		return fmt.Errorf("invalid KB_STORE %q", c.KB.Store)
	}
	t := c.Triage.ConfidenceThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", t)
	}
	if c.Triage.SLAHours <= 0 {
		return fmt.Errorf("SLA_HOURS must be positive, got %d", c.Triage.SLAHours)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call backend timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RunTimeout bounds one detached triage run.
func (w WorkerConfig) RunTimeout() time.Duration {
	return time.Duration(w.RunTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
