package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// HTTPConfig controls the local listener.
type HTTPConfig struct {
	Addr            string
	MaxUploadMB     int
	ShutdownTimeout time.Duration
}

// PreviewConfig bounds thumbnail rendering.
type PreviewConfig struct {
	Scale           float64
	Quality         int
	MaxPages        int
	ViewerMaxPages  int // 0 renders every page
	MaxWidthDesktop int
	MaxWidthMobile  int
	Mobile          bool
}

// MaxWidth returns the pixel ceiling for the configured device class.
func (p PreviewConfig) MaxWidth() int {
	if p.Mobile {
		return p.MaxWidthMobile
	}
	return p.MaxWidthDesktop
}

// CompressConfig holds compression UX settings.
type CompressConfig struct {
	ProgressDelay time.Duration
}

// PrefsConfig locates the theme preference store.
type PrefsConfig struct {
	RedisURL string // empty keeps preferences in memory
	Key      string
	Default  string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	HTTP     HTTPConfig
	Preview  PreviewConfig
	Compress CompressConfig
	Prefs    PrefsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfstudio.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfstudio",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.HTTP = HTTPConfig{
		Addr:            getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 100
	}

	// Preview defaults
	cfg.Preview = PreviewConfig{
		Scale:           parseFloat(getEnv("PREVIEW_SCALE", "0.3"), 0.3),
		Quality:         parseInt(getEnv("PREVIEW_QUALITY", "60"), 60),
		MaxPages:        parseInt(getEnv("PREVIEW_MAX_PAGES", "50"), 50),
		ViewerMaxPages:  parseInt(getEnv("VIEWER_MAX_PAGES", "0"), 0),
		MaxWidthDesktop: parseInt(getEnv("PREVIEW_MAX_WIDTH", "1400"), 1400),
		MaxWidthMobile:  parseInt(getEnv("PREVIEW_MAX_WIDTH_MOBILE", "1100"), 1100),
		Mobile:          parseBool(getEnv("PREVIEW_MOBILE", "0")),
	}
	if cfg.Preview.Scale <= 0 { cfg.Preview.Scale = 0.3 }
	if cfg.Preview.Quality < 1 || cfg.Preview.Quality > 100 { cfg.Preview.Quality = 60 }
	if cfg.Preview.MaxPages <= 0 { cfg.Preview.MaxPages = 50 }
	if cfg.Preview.ViewerMaxPages < 0 { cfg.Preview.ViewerMaxPages = 0 }
	if cfg.Preview.MaxWidthDesktop <= 0 { cfg.Preview.MaxWidthDesktop = 1400 }
	if cfg.Preview.MaxWidthMobile <= 0 { cfg.Preview.MaxWidthMobile = 1100 }

	cfg.Compress = CompressConfig{
		ProgressDelay: parseDuration(getEnv("COMPRESS_PROGRESS_DELAY", "1500ms"), 1500*time.Millisecond),
	}
	if cfg.Compress.ProgressDelay < 0 { cfg.Compress.ProgressDelay = 0 }

	cfg.Prefs = PrefsConfig{
		RedisURL: getEnv("PREFS_REDIS_URL", ""),
		Key:      getEnv("PREFS_KEY", "pdf-studio-theme"),
		Default:  getEnv("THEME_DEFAULT", "dark"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" { return def }
	if n, err := strconv.Atoi(s); err == nil { return n }
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" { return def }
	if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" { return def }
	if d, err := time.ParseDuration(s); err == nil { return d }
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" { return "true" }
	return "false"
}
