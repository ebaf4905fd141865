// Package config loads service settings from an optional YAML file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSetting     = errors.New("required setting is missing")
	ErrInvalidPort        = errors.New("PORT must be a number between 1 and 65535")
	ErrInvalidSiteURL     = errors.New("SITE_URL must be an absolute http(s) URL")
	ErrInvalidWordPress   = errors.New("WORDPRESS_API_URL must be an absolute http(s) URL")
	ErrInvalidNewsSource  = errors.New("NEWS_SOURCE must be 'newsapi' or 'rss'")
	ErrInvalidLLM         = errors.New("LLM_PROVIDER must be 'openai', 'gemini' or 'google'")
	ErrInvalidBatchSize   = errors.New("PROCESS_BATCH_SIZE must be between 1 and 5")
	ErrInvalidRetry       = errors.New("RETRY_ATTEMPTS must be at least 1")
	ErrInvalidTimeout     = errors.New("REQUEST_TIMEOUT must be positive")
	ErrInvalidPostStatus  = errors.New("WORDPRESS_POST_STATUS must be 'draft', 'pending' or 'publish'")
	ErrInvalidAIRateLimit = errors.New("AI_REQUESTS_PER_MINUTE must be non-negative")
	ErrInvalidStatePath   = errors.New("SAVED_ARTICLES_PATH and PUBLISHED_LOG_PATH must be set")
)

// MaxBatchSize bounds how many articles one processing run enriches.
const MaxBatchSize = 5

type Config struct {
	Port     int    `yaml:"port"`
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
	LogLevel string `yaml:"log_level"`

	// WordPress (read + write-back)
	WordPressURL        string `yaml:"wordpress_api_url"`
	WordPressUsername   string `yaml:"wordpress_username"`
	WordPressPassword   string `yaml:"wordpress_app_password"`
	WordPressPostStatus string `yaml:"wordpress_post_status"`

	// External news source
	NewsSource      string `yaml:"news_source"` // newsapi | rss
	NewsAPIKey      string `yaml:"news_api_key"`
	NewsAPIURL      string `yaml:"news_api_url"`
	NewsQuery       string `yaml:"news_query"`
	FeedsConfigPath string `yaml:"feeds_config_path"`

	// Translation / summarization
	LLMProvider         string `yaml:"llm_provider"` // openai | gemini | google
	OpenAIAPIKey        string `yaml:"openai_api_key"`
	OpenAIModel         string `yaml:"openai_model"`
	GeminiAPIKey        string `yaml:"gemini_api_key"`
	GeminiModel         string `yaml:"gemini_model"`
	MaxAIRequests       int    `yaml:"max_ai_requests"` // per day, 0 = unlimited
	AIRequestsPerMinute int    `yaml:"ai_requests_per_minute"`
	ProcessBatchSize    int    `yaml:"process_batch_size"`
	ScrapeFullText      bool   `yaml:"scrape_full_text"`

	// Local state
	SavedPath        string        `yaml:"saved_articles_path"`
	PublishedLogPath string        `yaml:"published_log_path"`
	PublishedTTL     time.Duration `yaml:"published_ttl"`
	DatabaseURL      string        `yaml:"database_url"` // postgres:// or sqlite://; replaces the published log file

	// Editor notifications; optional
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`

	// URL scanning; optional, simulated results without it
	VirusTotalAPIKey string `yaml:"virustotal_api_key"`
	VirusTotalURL    string `yaml:"virustotal_url"`
	RDAPURL          string `yaml:"rdap_url"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

func Default() *Config {
	return &Config{
		Port:                8080,
		SiteURL:             "https://techbg.news",
		SiteName:            "TechBG Новини",
		LogLevel:            "info",
		WordPressURL:        "https://cms.techbg.news/wp-json/wp/v2",
		WordPressPostStatus: "draft",
		NewsSource:          "newsapi",
		NewsAPIURL:          "https://newsapi.org/v2",
		NewsQuery:           "cybersecurity OR SEO OR \"artificial intelligence\"",
		FeedsConfigPath:     "configs/feeds.yaml",
		LLMProvider:         "openai",
		OpenAIModel:         "gpt-4o-mini",
		GeminiModel:         "gemini-1.5-flash",
		MaxAIRequests:       50,
		AIRequestsPerMinute: 20,
		ProcessBatchSize:    MaxBatchSize,
		ScrapeFullText:      true,
		SavedPath:           "data/saved.json",
		PublishedLogPath:    "data/published.json",
		PublishedTTL:        7 * 24 * time.Hour,
		VirusTotalURL:       "https://www.virustotal.com/api/v3",
		RDAPURL:             "https://rdap.org",
		RequestTimeout:      15 * time.Second,
		RetryAttempts:       2,
		RetryDelay:          time.Second,
	}
}

// Load reads defaults, then CONFIG_FILE (if set), then the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvIntOrDefault("PORT", c.Port)
	c.SiteURL = strings.TrimRight(getEnvOrDefault("SITE_URL", c.SiteURL), "/")
	c.SiteName = getEnvOrDefault("SITE_NAME", c.SiteName)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	if os.Getenv("DEBUG") == "true" {
		c.LogLevel = "debug"
	}

	c.WordPressURL = strings.TrimRight(getEnvOrDefault("WORDPRESS_API_URL", c.WordPressURL), "/")
	c.WordPressUsername = getEnvOrDefault("WORDPRESS_USERNAME", c.WordPressUsername)
	c.WordPressPassword = getEnvOrDefault("WORDPRESS_APP_PASSWORD", c.WordPressPassword)
	c.WordPressPostStatus = getEnvOrDefault("WORDPRESS_POST_STATUS", c.WordPressPostStatus)

	c.NewsSource = strings.ToLower(getEnvOrDefault("NEWS_SOURCE", c.NewsSource))
	c.NewsAPIKey = getEnvOrDefault("NEWS_API_KEY", c.NewsAPIKey)
	c.NewsAPIURL = strings.TrimRight(getEnvOrDefault("NEWS_API_URL", c.NewsAPIURL), "/")
	c.NewsQuery = getEnvOrDefault("NEWS_QUERY", c.NewsQuery)
	c.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", c.FeedsConfigPath)

	c.LLMProvider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", c.LLMProvider))
	c.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", c.OpenAIModel)
	c.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnvOrDefault("GEMINI_MODEL", c.GeminiModel)
	c.MaxAIRequests = getEnvIntOrDefault("MAX_AI_REQUESTS", c.MaxAIRequests)
	c.AIRequestsPerMinute = getEnvIntOrDefault("AI_REQUESTS_PER_MINUTE", c.AIRequestsPerMinute)
	c.ProcessBatchSize = getEnvIntOrDefault("PROCESS_BATCH_SIZE", c.ProcessBatchSize)
	c.ScrapeFullText = getEnvBoolOrDefault("SCRAPE_FULL_TEXT", c.ScrapeFullText)

	c.SavedPath = getEnvOrDefault("SAVED_ARTICLES_PATH", c.SavedPath)
	c.PublishedLogPath = getEnvOrDefault("PUBLISHED_LOG_PATH", c.PublishedLogPath)
	c.PublishedTTL = getEnvDurationOrDefault("PUBLISHED_TTL", c.PublishedTTL)
	c.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.DatabaseURL)

	c.TelegramToken = getEnvOrDefault("TELEGRAM_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", c.TelegramChatID)

	c.VirusTotalAPIKey = getEnvOrDefault("VIRUSTOTAL_API_KEY", c.VirusTotalAPIKey)
	c.VirusTotalURL = strings.TrimRight(getEnvOrDefault("VIRUSTOTAL_URL", c.VirusTotalURL), "/")
	c.RDAPURL = strings.TrimRight(getEnvOrDefault("RDAP_URL", c.RDAPURL), "/")

	c.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", c.RetryAttempts)
	c.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", c.RetryDelay)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks values that must hold for the service to start. Keys that
// only some endpoints need are checked by the Require* methods instead.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if !isHTTPURL(c.SiteURL) {
		return ErrInvalidSiteURL
	}
	if !isHTTPURL(c.WordPressURL) {
		return ErrInvalidWordPress
	}
	if c.NewsSource != "newsapi" && c.NewsSource != "rss" {
		return ErrInvalidNewsSource
	}
	switch c.LLMProvider {
	case "openai", "gemini", "google":
	default:
		return ErrInvalidLLM
	}
	switch c.WordPressPostStatus {
	case "draft", "pending", "publish":
	default:
		return ErrInvalidPostStatus
	}
	if c.ProcessBatchSize < 1 || c.ProcessBatchSize > MaxBatchSize {
		return ErrInvalidBatchSize
	}
	if c.RetryAttempts < 1 {
		return ErrInvalidRetry
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.AIRequestsPerMinute < 0 {
		return ErrInvalidAIRateLimit
	}
	if c.SavedPath == "" || c.PublishedLogPath == "" {
		return ErrInvalidStatePath
	}
	return nil
}

// RequireWriteBack reports whether WordPress credentials for creating posts
// are present.
func (c *Config) RequireWriteBack() error {
	if c.WordPressUsername == "" {
		return fmt.Errorf("%w: WORDPRESS_USERNAME", ErrMissingSetting)
	}
	if c.WordPressPassword == "" {
		return fmt.Errorf("%w: WORDPRESS_APP_PASSWORD", ErrMissingSetting)
	}
	return nil
}

func (c *Config) RequireNewsSource() error {
	switch c.NewsSource {
	case "newsapi":
		if c.NewsAPIKey == "" {
			return fmt.Errorf("%w: NEWS_API_KEY", ErrMissingSetting)
		}
	case "rss":
		if c.FeedsConfigPath == "" {
			return fmt.Errorf("%w: FEEDS_CONFIG_PATH", ErrMissingSetting)
		}
	}
	return nil
}

func (c *Config) RequireLLM() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingSetting)
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingSetting)
		}
	}
	return nil
}

// NotifyEnabled reports whether both Telegram settings are present.
func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Site: %s, WordPress: %s, NewsSource: %s, LLM: %s, Batch: %d}",
		c.SiteURL, c.WordPressURL, c.NewsSource, c.LLMProvider, c.ProcessBatchSize,
	)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
