package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by Validate when a required secret is not set.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the ALS RAG pipeline.
type Config struct {
	Crawl     CrawlConfig     `yaml:"crawl"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Cache     CacheConfig     `yaml:"cache"`
	Agent     AgentConfig     `yaml:"agent"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CrawlConfig holds URL discovery and fetching configuration.
type CrawlConfig struct {
	Seed            string        `yaml:"seed"`
	SitemapPaths    []string      `yaml:"sitemap_paths"`
	MaxDepth        int           `yaml:"max_depth"`
	SkipGlobs       []string      `yaml:"skip_globs"` // doublestar patterns, matched against the lower-cased path without its leading slash
	StaticURLs      []string      `yaml:"static_urls"`
	PriorityKeys    []string      `yaml:"priority_keywords"`
	ExcludePatterns []string      `yaml:"exclude_patterns"`
	MainPages       []string      `yaml:"main_pages"` // relative to Seed
	MinKept         int           `yaml:"min_kept"`
	MaxURLs         int           `yaml:"max_urls"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	UserAgent       string        `yaml:"user_agent"`
}

// IndexConfig holds chunking configuration.
type IndexConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	Concurrency      int  `yaml:"concurrency"`       // documents in flight
	ChunkConcurrency int  `yaml:"chunk_concurrency"` // enrichments in flight per document
	ReplaceExisting  bool `yaml:"replace_existing"`
}

// EnrichConfig holds title/summary/embedding derivation configuration.
type EnrichConfig struct {
	TitlePrefixChars int           `yaml:"title_prefix_chars"`
	EmbedPrefixChars int           `yaml:"embed_prefix_chars"`
	MaxTokens        int           `yaml:"max_tokens"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	RateLimit        float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	BreakerFailures  uint32        `yaml:"breaker_failures"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "openai", "mock"
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LLMConfig holds chat completion configuration.
type LLMConfig struct {
	Provider  string        `yaml:"provider"` // "openai", "mock"
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "postgres", "memory"
	Path    string `yaml:"path"`    // bolt file, empty = <dir>/.alsrag/store.db
	DSNEnv  string `yaml:"dsn_env"`
	Table   string `yaml:"table"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK   int    `yaml:"top_k"`
	Source string `yaml:"source"`
}

// CacheConfig holds embedding cache configuration.
type CacheConfig struct {
	Backend   string        `yaml:"backend"` // "memory", "redis", "none"
	MaxSize   int           `yaml:"max_size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// AgentConfig holds the poll loop and responder configuration.
type AgentConfig struct {
	Source       string        `yaml:"source"` // "file", "tweet"
	InputPath    string        `yaml:"input_path"`
	OutputPath   string        `yaml:"output_path"`
	TweetURL     string        `yaml:"tweet_url"`
	ReplyURL     string        `yaml:"reply_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxChars     int           `yaml:"max_chars"`
	HistoryLimit int           `yaml:"history_limit"`
}

// ServerConfig holds HTTP surface configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Seed:         "https://alsworldwide.org/",
			SitemapPaths: []string{"sitemap.xml", "sitemap_index.xml", "sitemap-index.xml", "wp-sitemap.xml", "wp-sitemap-posts-post-1.xml"},
			MaxDepth:     2,
			SkipGlobs: []string{
				"**/*.{jpg,jpeg,png,gif,pdf,mp3,mp4,css,js}",
				"**/wp-json/**", "**/wp-admin/**", "**/wp-content/**", "**/tag/**", "**/category/**", "**/author/**",
			},
			StaticURLs: []string{"", "about", "patients-families", "our-work", "news", "contact"},
			PriorityKeys: []string{
				"/what-is-als/", "/about/", "/events/", "/news/", "/treatment/", "/care/", "/support/",
				"/research/", "/team/", "/staff/", "/board/", "/contact/", "/resources/", "/community/",
				"/programs/", "/advocacy/", "/faq/", "/donate/", "/volunteer/", "/mission/", "/vision/",
				"/achievements/", "/impact/", "/story/", "/clinics/", "/centers/", "/doctors/",
				"/specialists/", "/therapy/", "/medication/", "/clinic-directory/", "/support-groups/",
				"/fund/", "/in/", "/blog/", "/counseling/", "/treatment-options/", "/symptoms/",
				"/diagnosis/", "/contact-us/", "/get-involved/",
			},
			ExcludePatterns: []string{
				"/attachment", "/author/", "/comment-page-", "/feed/", "/trackback/", "/wp-json/",
				"/wp-content/", "/page/", "/tag/", "/category/", "/2019/", "/2020/", "/2021/", "/2022/",
				"/2023/", ".jpg", ".jpeg", ".png", ".pdf", ".mp3", ".mp4", ".css", ".js",
			},
			MainPages: []string{
				"", "about/", "what-is-als/", "resources/", "community/", "research/", "events/",
				"news/", "treatment/", "care/", "support/", "advocacy/", "faq/", "volunteer/",
				"contact-us/", "contact/", "donate/", "staff/", "board/",
			},
			MinKept:      10,
			MaxURLs:      50,
			FetchTimeout: 30 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		Index: IndexConfig{
			ChunkSize: 4000,
		},
		Ingest: IngestConfig{
			Concurrency:      3,
			ChunkConcurrency: 8,
			ReplaceExisting:  false,
		},
		Enrich: EnrichConfig{
			TitlePrefixChars: 500,
			EmbedPrefixChars: 8000,
			MaxTokens:        150,
			MaxRetries:       2,
			RetryBackoff:     500 * time.Millisecond,
			RateLimit:        0,
			BreakerFailures:  5,
			BreakerTimeout:   30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
		},
		Store: StoreConfig{
			Backend: "bolt",
			DSNEnv:  "ALSRAG_POSTGRES_DSN",
			Table:   "site_pages",
		},
		Retrieve: RetrieveConfig{
			TopK:   5,
			Source: "als_info",
		},
		Cache: CacheConfig{
			Backend:   "memory",
			MaxSize:   1000,
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
			KeyPrefix: "alsrag:emb:",
		},
		Agent: AgentConfig{
			Source:       "file",
			InputPath:    "input.json",
			OutputPath:   "output.json",
			PollInterval: time.Second,
			MaxChars:     230,
			HistoryLimit: 10,
		},
		Server: ServerConfig{
			Addr: ":10000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for alsrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "alsrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".alsrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// APIKey resolves the embedding API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// LLMAPIKey resolves the chat API key from the environment.
func (c *Config) LLMAPIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// PostgresDSN resolves the Postgres connection string from the environment.
func (c *Config) PostgresDSN() string {
	return os.Getenv(c.Store.DSNEnv)
}

// Validate reports configuration that would make the pipeline unusable.
// Missing secrets wrap ErrMissingCredential.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Ingest.Concurrency <= 0 || c.Ingest.ChunkConcurrency <= 0 {
		return fmt.Errorf("ingest concurrency limits must be positive")
	}
	if c.Enrich.MaxRetries < 0 {
		return fmt.Errorf("enrich.max_retries must not be negative")
	}

	if c.Embedding.Provider == "openai" && c.APIKey() == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, c.Embedding.APIKeyEnv)
	}
	if c.LLM.Provider == "openai" && c.LLMAPIKey() == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, c.LLM.APIKeyEnv)
	}

	switch c.Store.Backend {
	case "bolt", "memory":
	case "postgres":
		if c.PostgresDSN() == "" {
			return fmt.Errorf("%w: %s is not set", ErrMissingCredential, c.Store.DSNEnv)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none", "":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	return nil
}

// StoreDBPath returns the path to the bolt store database.
func StoreDBPath(dir string) string {
	return filepath.Join(dir, ".alsrag", "store.db")
}

// EnsureDataDir ensures the .alsrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".alsrag"), 0755)
}
