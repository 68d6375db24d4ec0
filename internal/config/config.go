package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	ChromePath      string        `mapstructure:"CHROME_PATH"`
	Headless        bool          `mapstructure:"HEADLESS"`
	PageLoadTimeout time.Duration `mapstructure:"PAGE_LOAD_TIMEOUT"`
	RetryBackoff    time.Duration `mapstructure:"RETRY_BACKOFF"`
	SettleMin       time.Duration `mapstructure:"SETTLE_MIN"`
	SettleMax       time.Duration `mapstructure:"SETTLE_MAX"`
	Proxies         []string      `mapstructure:"PROXIES"`
	UserAgents      []string      `mapstructure:"USER_AGENTS"`

	JobTitles         []string `mapstructure:"JOB_TITLES"`
	Keywords          []string `mapstructure:"KEYWORDS"`
	SourcesFile       string   `mapstructure:"SOURCES_FILE"`
	MaxCandidates     int      `mapstructure:"MAX_CANDIDATES"`
	SourceConcurrency int      `mapstructure:"SOURCE_CONCURRENCY"`

	Embedder          string        `mapstructure:"EMBEDDER"`
	EmbeddingURL      string        `mapstructure:"EMBEDDING_URL"`
	EmbeddingModel    string        `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingAPIKey   string        `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingDim      int           `mapstructure:"EMBEDDING_DIM"`
	EmbeddingCacheTTL time.Duration `mapstructure:"EMBEDDING_CACHE_TTL"`

	ScrapeSchedule string `mapstructure:"SCRAPE_SCHEDULE"`
	ScrapeTimezone string `mapstructure:"SCRAPE_TIMEZONE"`
}

var defaults = map[string]any{
	"SERVER_PORT":         "8000",
	"LOG_LEVEL":           "info",
	"POSTGRES_URL":        "",
	"REDIS_ADDR":          "localhost:6379",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"CHROME_PATH":         "",
	"HEADLESS":            true,
	"PAGE_LOAD_TIMEOUT":   60 * time.Second,
	"RETRY_BACKOFF":       10 * time.Second,
	"SETTLE_MIN":          3 * time.Second,
	"SETTLE_MAX":          8 * time.Second,
	"PROXIES":             "",
	"USER_AGENTS":         "",
	"JOB_TITLES":          "",
	"KEYWORDS":            "",
	"SOURCES_FILE":        "",
	"MAX_CANDIDATES":      15,
	"SOURCE_CONCURRENCY":  1,
	"EMBEDDER":            "hashing",
	"EMBEDDING_URL":       "http://localhost:11434/v1/embeddings",
	"EMBEDDING_MODEL":     "all-minilm",
	"EMBEDDING_API_KEY":   "",
	"EMBEDDING_DIM":       384,
	"EMBEDDING_CACHE_TTL": 7 * 24 * time.Hour,
	"SCRAPE_SCHEDULE":     "0 10,16,22 * * *",
	"SCRAPE_TIMEZONE":     "Asia/Kolkata",
}

// Load reads configuration from file or environment variables.
// path may be empty, in which case an optional .env in the working
// directory is read.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	// Attempt to read the config file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	if err := v.ReadInConfig(); err != nil && path != "" {
		return nil, err
	}

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.JobTitles = splitList(cfg.JobTitles)
	cfg.Keywords = splitList(cfg.Keywords)
	cfg.Proxies = splitList(cfg.Proxies)
	cfg.UserAgents = splitList(cfg.UserAgents)
	return &cfg, nil
}

// ValidatePipeline checks the settings a scraping run cannot do without.
func (c *Config) ValidatePipeline() error {
	var errs []error
	if c.PostgresURL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required"))
	}
	if len(c.JobTitles) == 0 {
		errs = append(errs, errors.New("JOB_TITLES must list at least one title"))
	}
	if c.MaxCandidates < 1 {
		errs = append(errs, errors.New("MAX_CANDIDATES must be positive"))
	}
	if c.SourceConcurrency < 1 {
		errs = append(errs, errors.New("SOURCE_CONCURRENCY must be positive"))
	}
	if c.SettleMax < c.SettleMin {
		errs = append(errs, errors.New("SETTLE_MAX must not be below SETTLE_MIN"))
	}
	switch c.Embedder {
	case "hashing", "http":
	default:
		errs = append(errs, errors.New(`EMBEDDER must be "hashing" or "http"`))
	}
	return errors.Join(errs...)
}

// splitList flattens comma separated entries, so both JOB_TITLES="a,b" from
// the environment and a YAML list in a config file end up the same.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
