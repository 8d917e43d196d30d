package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"splunk-extractor/internal/aggregate"
	"splunk-extractor/internal/extract"
	"splunk-extractor/internal/splunk"
	"splunk-extractor/internal/tenants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Splunk       splunk.Config
	DataPath     string
	LogDir       string
	MappingPath  string
	SnapshotPath string
	Days         int
	Index        string
	Sourcetype   string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return FromEnv(exeDir), nil
}

// FromEnv builds the configuration from the process environment only.
// Relative data paths resolve against baseDir, or "." when it is empty.
func FromEnv(baseDir string) *AppConfig {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if baseDir != "" {
			dataPath = baseDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Warn().Err(err).Str("path", dataPath).Msg("Failed to create data directory")
	}

	return &AppConfig{
		Splunk: splunk.Config{
			BaseURL:            getEnv("SPLUNK_URL", ""),
			WebURL:             getEnv("SPLUNK_WEB_URL", ""),
			Username:           getEnv("SPLUNK_USERNAME", ""),
			Password:           getEnv("SPLUNK_PASSWORD", ""),
			InsecureSkipVerify: getEnvBool("SPLUNK_INSECURE_SKIP_VERIFY", false),
			AuthTimeout:        time.Duration(getEnvInt("SPLUNK_AUTH_TIMEOUT_SECONDS", 30)) * time.Second,
			RequestTimeout:     time.Duration(getEnvInt("SPLUNK_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
			PollInterval:       time.Duration(getEnvInt("SPLUNK_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
			MaxPolls:           getEnvInt("SPLUNK_MAX_POLLS", splunk.DefaultMaxPolls),
		},
		DataPath:     dataPath,
		LogDir:       logDir,
		MappingPath:  getEnv("MAPPING_FILE", filepath.Join(dataPath, tenants.DefaultFileName)),
		SnapshotPath: getEnv("SNAPSHOT_FILE", filepath.Join(dataPath, aggregate.DefaultSnapshotName)),
		Days:         getEnvInt("EXTRACT_DAYS", 30),
		Index:        getEnv("SPLUNK_INDEX", extract.DefaultQueryOptions.Index),
		Sourcetype:   getEnv("SPLUNK_SOURCETYPE", extract.DefaultQueryOptions.Sourcetype),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", fallback).Msg("Ignoring invalid integer setting")
	}
	return fallback
}
