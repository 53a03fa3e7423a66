// Package config reads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Directory modes
const (
	DirectoryOpen  = "open"
	DirectoryStore = "store"
)

type Config struct {
	Port             int
	AWSRegion        string
	StoreBackend     string
	DatabaseURL      string
	TablePrefix      string
	DynamoEndpoint   string
	EnableStreams    bool
	MeetingBaseURL   string
	S3Bucket         string
	DeadlineInterval time.Duration
	ClaimTimeout     time.Duration
	MinPaymentAmount float64
	DirectoryMode    string
	AllowedOrigins   []string
}

// Load reads .env when present, then the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ Could not read .env: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from getenv, applying defaults and validating values
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		AWSRegion:      get("AWS_REGION", "us-east-1"),
		StoreBackend:   strings.ToLower(get("STORE_BACKEND", BackendDynamo)),
		DatabaseURL:    get("DATABASE_URL", ""),
		TablePrefix:    get("TABLE_PREFIX", ""),
		DynamoEndpoint: get("DYNAMODB_ENDPOINT", ""),
		MeetingBaseURL: get("MEETING_BASE_URL", "https://meet.skillnet.app"),
		S3Bucket:       get("S3_BUCKET_NAME", ""),
		DirectoryMode:  strings.ToLower(get("DIRECTORY_MODE", DirectoryOpen)),
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port < 1 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", getenv("PORT"))
	}
	cfg.Port = port

	if cfg.EnableStreams, err = strconv.ParseBool(get("ENABLE_STREAMS", "false")); err != nil {
		return Config{}, fmt.Errorf("invalid ENABLE_STREAMS: %w", err)
	}
	if cfg.DeadlineInterval, err = positiveDuration(get("DEADLINE_SCAN_INTERVAL", "2s")); err != nil {
		return Config{}, fmt.Errorf("invalid DEADLINE_SCAN_INTERVAL: %w", err)
	}
	if cfg.ClaimTimeout, err = positiveDuration(get("CLAIM_TIMEOUT", "2m")); err != nil {
		return Config{}, fmt.Errorf("invalid CLAIM_TIMEOUT: %w", err)
	}
	if cfg.MinPaymentAmount, err = strconv.ParseFloat(get("MIN_PAYMENT_AMOUNT", "0"), 64); err != nil || cfg.MinPaymentAmount < 0 {
		return Config{}, fmt.Errorf("invalid MIN_PAYMENT_AMOUNT %q", getenv("MIN_PAYMENT_AMOUNT"))
	}

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	switch cfg.StoreBackend {
	case BackendDynamo, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL required for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.DirectoryMode != DirectoryOpen && cfg.DirectoryMode != DirectoryStore {
		return Config{}, fmt.Errorf("unknown DIRECTORY_MODE %q", cfg.DirectoryMode)
	}
	return cfg, nil
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s is not positive", s)
	}
	return d, nil
}
