package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL             string
	RedisHost               string
	RedisPort               string
	AWSRegion               string
	AssetsBucket            string
	SiteBaseURL             string
	AssetsBaseURL           string
	EventsQueueURL          string
	ProgressTable           string
	BatchSize               int
	FetchTimeoutSeconds     int
	FetchInsecureSkipVerify bool
	RunIntervalSeconds      int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisHost:               getEnv("REDIS_HOST", "localhost"),
		RedisPort:               getEnv("REDIS_PORT", "6379"),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AssetsBucket:            os.Getenv("ASSETS_BUCKET"),
		SiteBaseURL:             os.Getenv("SITE_BASE_URL"),
		AssetsBaseURL:           os.Getenv("ASSETS_BASE_URL"),
		EventsQueueURL:          os.Getenv("EVENTS_QUEUE_URL"),
		ProgressTable:           os.Getenv("PROGRESS_TABLE"),
		BatchSize:               getEnvInt("BATCH_SIZE", 5),
		FetchTimeoutSeconds:     getEnvInt("FETCH_TIMEOUT_SECONDS", 60),
		FetchInsecureSkipVerify: getEnvBool("FETCH_INSECURE_SKIP_VERIFY", false),
		RunIntervalSeconds:      getEnvInt("RUN_INTERVAL_SECONDS", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AssetsBucket == "" {
		return nil, fmt.Errorf("ASSETS_BUCKET is required")
	}
	if cfg.SiteBaseURL == "" {
		return nil, fmt.Errorf("SITE_BASE_URL is required")
	}
	if cfg.AssetsBaseURL == "" {
		return nil, fmt.Errorf("ASSETS_BASE_URL is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		cfg.FetchTimeoutSeconds = 60
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
