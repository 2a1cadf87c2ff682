package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth for the JSON API. Empty disables the check.
	APIKey string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentExtract int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Extraction
	ImageEngine        string
	RenderDPI          float64
	TableMinRows       int
	TableMinCols       int
	TableMinConfidence float64

	// PDF
	PDFFallbackPdftoppm bool

	// Rate limiting
	RateLimitEvery time.Duration
	RateLimitBurst int

	// Stats
	StatsWindow time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8501"),

		APIKey: os.Getenv("API_KEY"),

		WorkerCount:          envInt("WORKER_COUNT", 2),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 209715200), // 200MB

		JobTTL: envDuration("JOB_TTL", 30*time.Minute),

		ImageEngine:        envOr("IMAGE_ENGINE", "render"),
		RenderDPI:          envFloat("RENDER_DPI", 150),
		TableMinRows:       envInt("TABLE_MIN_ROWS", 2),
		TableMinCols:       envInt("TABLE_MIN_COLS", 2),
		TableMinConfidence: envFloat("TABLE_MIN_CONFIDENCE", 0.4),

		PDFFallbackPdftoppm: envBool("PDF_FALLBACK_PDFTOPPM", true),

		RateLimitEvery: envDuration("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		StatsWindow: envDuration("STATS_WINDOW", time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 209715200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 30 * time.Minute
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	if cfg.TableMinRows <= 0 {
		cfg.TableMinRows = 2
	}
	if cfg.TableMinCols <= 0 {
		cfg.TableMinCols = 2
	}
	if cfg.RateLimitEvery <= 0 {
		cfg.RateLimitEvery = 600 * time.Millisecond
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.ImageEngine != "render" && c.ImageEngine != "native" {
		return fmt.Errorf("IMAGE_ENGINE must be \"render\" or \"native\", got %q", c.ImageEngine)
	}
	if c.TableMinConfidence < 0 || c.TableMinConfidence > 1 {
		return fmt.Errorf("TABLE_MIN_CONFIDENCE must be within [0, 1]")
	}
	if c.RenderDPI > 600 {
		return fmt.Errorf("RENDER_DPI must not exceed 600")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
