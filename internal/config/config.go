package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Prediction endpoint
	Profile            string
	ProfileFile        string
	PredictBaseURL     string
	PredictEndpoint    string
	MinLength          int
	PredictTimeout     time.Duration
	PredictConcurrency int

	// Redis (optional: cache, queue, pub/sub)
	RedisURL string
	CacheTTL time.Duration

	// Database (optional: check log)
	DatabaseURL   string
	MigrationsDir string

	// Sessions
	SessionSecret      string
	SessionTTL         time.Duration
	SessionIdleTimeout time.Duration

	// Workers
	WorkerCount int

	// HTTP
	FrontendURL     string
	RateLimitPerMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")

	secret := os.Getenv("SESSION_SECRET")
	if env == "production" {
		secret = mustGetEnv("SESSION_SECRET")
	} else if secret == "" {
		secret = "spamcheck-dev-secret"
	}

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                env,
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "text"),
		Profile:            getEnvOrDefault("FORM_PROFILE", ProfileRelative),
		ProfileFile:        getEnvOrDefault("FORM_PROFILE_FILE", ""),
		PredictBaseURL:     getEnvOrDefault("PREDICT_BASE_URL", "http://localhost:5000"),
		PredictTimeout:     getEnvAsDurationOrDefault("PREDICT_TIMEOUT", 15*time.Second),
		PredictConcurrency: getEnvAsIntOrDefault("PREDICT_CONCURRENCY", 8),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		CacheTTL:           getEnvAsDurationOrDefault("CACHE_TTL", 10*time.Minute),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:      getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		SessionSecret:      secret,
		SessionTTL:         getEnvAsDurationOrDefault("SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout: getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		WorkerCount:        getEnvAsIntOrDefault("WORKER_COUNT", 4),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "*"),
		RateLimitPerMin:    getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
	}

	profiles := BuiltinProfiles()
	if cfg.ProfileFile != "" {
		extra, err := LoadProfiles(cfg.ProfileFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load profile file %s: %v", cfg.ProfileFile, err))
		}
		for name, p := range extra {
			profiles[name] = p
		}
	}

	profile, ok := profiles[cfg.Profile]
	if !ok {
		panic(fmt.Sprintf("unknown form profile %q", cfg.Profile))
	}

	// Explicit settings win over the profile preset.
	endpoint := getEnvOrDefault("PREDICT_ENDPOINT", profile.Endpoint)
	resolved, err := ResolveEndpoint(cfg.PredictBaseURL, endpoint)
	if err != nil {
		panic(fmt.Sprintf("invalid prediction endpoint %q: %v", endpoint, err))
	}
	cfg.PredictEndpoint = resolved
	cfg.MinLength = getEnvAsIntOrDefault("MIN_LENGTH", profile.MinLength)

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
