// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot source kinds.
const (
	SourceFile     = "file"
	SourceGCS      = "gcs"
	SourceBigQuery = "bigquery"
)

// LLM providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config holds application configuration.
type Config struct {
	Port     string
	LogLevel string

	LLMProvider     string
	GeminiModel     string
	AnthropicModel  string
	AnthropicAPIKey string
	LLMTimeout      time.Duration
	LLMMaxRetries   int

	SnapshotSource   string
	DataDir          string
	GCSBucket        string
	GCSPrefix        string
	BQProject        string
	BQDataset        string
	UserID           string
	SnapshotCacheTTL time.Duration

	NotionToken   string
	NotionGoalsDB string
	NotionDryRun  bool

	HistoryDriver    string
	HistoryDSN       string
	HistoryRetention time.Duration

	JWTSecret  string
	RoutesFile string
	MarketSeed int64

	JobWorkers    int
	JobBuffer     int
	InsightsCron  string
	InsightsUsers []string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		SnapshotSource: strings.ToLower(getEnv("SNAPSHOT_SOURCE", SourceFile)),
		DataDir:        getEnv("DATA_DIR", "data"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		GCSPrefix:      getEnv("GCS_PREFIX", ""),
		BQProject:      getEnv("BQ_PROJECT", ""),
		BQDataset:      getEnv("BQ_DATASET", "finance"),
		UserID:         getEnv("USER_ID", "default"),

		NotionToken:   getEnv("NOTION_TOKEN", ""),
		NotionGoalsDB: getEnv("NOTION_GOALS_DB", ""),

		HistoryDriver: getEnv("HISTORY_DRIVER", "sqlite3"),
		HistoryDSN:    getEnv("HISTORY_DSN", "finance_agent.db"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		RoutesFile:    getEnv("ROUTES_FILE", ""),
		InsightsCron:  getEnv("INSIGHTS_CRON", ""),
		InsightsUsers: splitList(getEnv("INSIGHTS_USERS", "")),
	}

	var err error
	cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.LLMMaxRetries, err = getEnvInt("LLM_MAX_RETRIES", 1)
	collect(err)
	cfg.SnapshotCacheTTL, err = getEnvDuration("SNAPSHOT_CACHE_TTL", 5*time.Minute)
	collect(err)
	cfg.HistoryRetention, err = getEnvDuration("HISTORY_RETENTION", 720*time.Hour)
	collect(err)
	seed, err := getEnvInt("MARKET_SEED", 0)
	collect(err)
	cfg.MarketSeed = int64(seed)
	cfg.JobWorkers, err = getEnvInt("JOB_WORKERS", 5)
	collect(err)
	cfg.JobBuffer, err = getEnvInt("JOB_BUFFER", 100)
	collect(err)
	cfg.NotionDryRun, err = getEnvBool("NOTION_DRY_RUN", false)
	collect(err)

	collect(cfg.validate())
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderNone:
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for LLM_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.SnapshotSource {
	case SourceFile:
	case SourceGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for SNAPSHOT_SOURCE=gcs")
		}
	case SourceBigQuery:
		if c.BQProject == "" {
			return fmt.Errorf("BQ_PROJECT is required for SNAPSHOT_SOURCE=bigquery")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_SOURCE %q", c.SnapshotSource)
	}
	return nil
}

// AuthEnabled reports whether bearer tokens are checked.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// NotionEnabled reports whether goals are read from Notion.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionGoalsDB != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
