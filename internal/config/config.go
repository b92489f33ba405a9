// Package config contains everything related to configuration
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServiceKey     string
	APIBaseURL     string
	OutputDir      string
	DatabasePath   string
	LogLevel       string
	LogFile        string
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	DefaultWorkers int
	HistoryEnabled bool
}

// Default values
const (
	defaultAPIBaseURL     = "https://server.codeium.com"
	defaultOutputDir      = "output"
	defaultRequestTimeout = 10 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
	defaultWorkers        = 20
	appDirName            = "team-flex-credits"
)

// ErrMissingServiceKey is returned by Validate when SERVICE_KEY is not set.
var ErrMissingServiceKey = errors.New("SERVICE_KEY not found (set it in the environment or a .env file)")

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		ServiceKey:     getEnvString("SERVICE_KEY", ""),
		APIBaseURL:     strings.TrimRight(getEnvString("ANALYTICS_BASE_URL", defaultAPIBaseURL), "/"),
		OutputDir:      getEnvString("OUTPUT_DIR", defaultOutputDir),
		DatabasePath:   getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		LogLevel:       getEnvString("LOG_LEVEL", "info"),
		LogFile:        getEnvString("LOG_FILE", ""),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		RetryBackoff:   getEnvDuration("RETRY_BACKOFF", defaultRetryBackoff),
		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		DefaultWorkers: getEnvInt("DEFAULT_WORKERS", defaultWorkers),
		HistoryEnabled: getEnvBool("HISTORY_ENABLED", true),
	}

	if cfg.DefaultWorkers < 1 {
		cfg.DefaultWorkers = defaultWorkers
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	// Ensure output directory exists
	if err := ensureDir(cfg.OutputDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings needed to call the analytics API.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceKey) == "" {
		return ErrMissingServiceKey
	}
	return nil
}

// MappingSearchDirs returns the directories searched for mapping files, in
// priority order: the output directory, then the output directory one level up.
func (c *Config) MappingSearchDirs() []string {
	dirs := []string{c.OutputDir}
	abs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return dirs
	}
	parent := filepath.Join(filepath.Dir(filepath.Dir(abs)), "output")
	if parent != abs {
		dirs = append(dirs, parent)
	}
	return dirs
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appDirName, ".env"),
			filepath.Join(home, "."+appDirName, ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the run history database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".config", appDirName, "history.db")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
