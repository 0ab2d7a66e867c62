package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Port          string
	DatabaseURL   string
	FieldSpecPath string
	ModelPath     string

	OpenAIKey   string
	OpenAIModel string

	CanonicalLang string
	Threshold     float64
	TopK          int

	SessionTimeout time.Duration
	LogLevel       string
}

// Load reads the configuration from environment variables. Only
// DATABASE_URL is required; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		Port:          getenv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		FieldSpecPath: getenv("FIELDSPEC_PATH", "fieldspec.yaml"),
		ModelPath:     os.Getenv("MODEL_ARTIFACT_PATH"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		CanonicalLang: getenv("CANONICAL_LANG", "en"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	threshold, err := getFloat("CONFIDENCE_THRESHOLD", 0.55)
	if err != nil {
		return Config{}, err
	}
	if threshold <= 0 || threshold > 1 {
		return Config{}, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0,1], got %v", threshold)
	}
	cfg.Threshold = threshold

	topK, err := getInt("CLASSIFY_TOP_K", 3)
	if err != nil {
		return Config{}, err
	}
	if topK < 1 {
		return Config{}, fmt.Errorf("CLASSIFY_TOP_K must be at least 1, got %d", topK)
	}
	cfg.TopK = topK

	timeout, err := getDuration("SESSION_TIMEOUT", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTimeout = timeout

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration like 30m: %w", key, err)
	}
	return d, nil
}
