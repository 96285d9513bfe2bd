package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	OCR       OCRConfig
	Translate TranslateConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// WorkerConfig holds job-orchestrator configuration
type WorkerConfig struct {
	MaxConcurrentJobs int
	PollInterval      time.Duration
	JobTimeout        time.Duration
	NotifyChannel     string
	StaleAfter        time.Duration
	StaleSweepCron    string
}

// StorageConfig holds blob-storage configuration
type StorageConfig struct {
	BasePath string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine    string // "mock" | "tesseract"
	Tesseract string
	Pdftoppm  string
	Language  string
	DPI       int
	CacheDir  string
}

// TranslateConfig holds translation-provider configuration
type TranslateConfig struct {
	Provider    string // "openai" | "noop"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 3),
			PollInterval:      getEnvAsDuration("JOB_POLL_INTERVAL", 5*time.Second),
			JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 3*time.Minute),
			NotifyChannel:     getEnv("JOB_NOTIFY_CHANNEL", "jobs_pending"),
			StaleAfter:        getEnvAsDuration("JOB_STALE_AFTER", 30*time.Minute),
			StaleSweepCron:    getEnv("JOB_STALE_SWEEP_CRON", "@every 10m"),
		},
		Storage: StorageConfig{
			BasePath: getEnv("STORAGE_PATH", "./storage"),
		},
		OCR: OCRConfig{
			Engine:    getEnv("OCR_ENGINE", "mock"),
			Tesseract: getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:  getEnv("TESSERACT_LANG", "eng"),
			DPI:       getEnvAsInt("OCR_DPI", 300),
			CacheDir:  getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		Translate: TranslateConfig{
			Provider:    getEnv("TRANSLATE_PROVIDER", "openai"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
	}
}

// Validate validates the loaded configuration. A failure here is fatal at
// startup: the worker must refuse to run rather than run half-configured.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrConfiguration)
	}
	if c.Worker.MaxConcurrentJobs <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_CONCURRENT_JOBS must be positive", ErrConfiguration)
	}
	if c.Worker.PollInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "JOB_POLL_INTERVAL must be positive", ErrConfiguration)
	}
	switch c.OCR.Engine {
	case "mock", "tesseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be mock or tesseract", ErrConfiguration)
	}
	switch c.Translate.Provider {
	case "noop":
	case "openai":
		if c.Translate.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai provider", ErrConfiguration)
		}
	default:
		return NewAppError("CONFIG_ERROR", "TRANSLATE_PROVIDER must be openai or noop", ErrConfiguration)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
