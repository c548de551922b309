package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	// Grading backend client.
	BackendBaseURL        string
	BackendAPIToken       string
	BackendTimeout        time.Duration
	BackendStrictPayloads bool

	// Submission status polling.
	PollInterval    time.Duration
	PollMaxAttempts int
	PollConcurrency int

	// Upload batches.
	UploadMaxFileSizeMB int
	UploadConcurrency   int

	// Cache lifetimes.
	StatsCacheTTL time.Duration
	ItemsCacheTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeFlow API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.strict_payloads", false)
	v.SetDefault("poll.interval", "2s")
	v.SetDefault("poll.max_attempts", 60)
	v.SetDefault("poll.concurrency", 8)
	v.SetDefault("upload.max_file_size_mb", 20)
	v.SetDefault("upload.concurrency", 1)
	v.SetDefault("stats.cache_ttl", "2m")
	v.SetDefault("items.cache_ttl", "30s")

	backendTimeout, err := parseDuration(v, "backend.timeout", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDuration(v, "poll.interval", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	statsTTL, err := parseDuration(v, "stats.cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}
	itemsTTL, err := parseDuration(v, "items.cache_ttl", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		BackendBaseURL:        v.GetString("backend.base_url"),
		BackendAPIToken:       v.GetString("backend.api_token"),
		BackendTimeout:        backendTimeout,
		BackendStrictPayloads: v.GetBool("backend.strict_payloads"),
		PollInterval:          pollInterval,
		PollMaxAttempts:       v.GetInt("poll.max_attempts"),
		PollConcurrency:       v.GetInt("poll.concurrency"),
		UploadMaxFileSizeMB:   v.GetInt("upload.max_file_size_mb"),
		UploadConcurrency:     v.GetInt("upload.concurrency"),
		StatsCacheTTL:         statsTTL,
		ItemsCacheTTL:         itemsTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.BackendBaseURL == "" {
		return Config{}, fmt.Errorf("grading backend base url must be provided")
	}

	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}

	if cfg.PollConcurrency <= 0 {
		cfg.PollConcurrency = 8
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
