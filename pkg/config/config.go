package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Database DatabaseConfig `yaml:"database" json:"database" jsonschema:"description=User store configuration"`
	Monitor  MonitorConfig  `yaml:"monitor" json:"monitor" jsonschema:"description=Announcement monitor configuration"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch" jsonschema:"description=Fetch strategies configuration"`
	DocAI    DocAIConfig    `yaml:"docai" json:"docai" jsonschema:"description=Document AI service configuration"`
}

// ServerConfig holds http server settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8888,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
}

// DatabaseConfig holds user store settings
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" json:"dsn" jsonschema:"required,description=Database connection string"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
}

// MonitorConfig holds announcement polling settings
type MonitorConfig struct {
	FeedURL        string        `yaml:"feed_url" json:"feed_url" jsonschema:"description=Announcements RSS feed URL"`
	Interval       time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=Poll interval"`
	Lookback       time.Duration `yaml:"lookback" json:"lookback" jsonschema:"default=24h,description=Only items published within this window are considered"`
	MaxItems       int           `yaml:"max_items" json:"max_items" jsonschema:"default=20,minimum=1,description=Maximum number of newest items processed per cycle"`
	CacheFile      string        `yaml:"cache_file" json:"cache_file" jsonschema:"default=nse_cache.json,description=Seen items cache file"`
	DownloadDir    string        `yaml:"download_dir" json:"download_dir" jsonschema:"default=nse_downloads,description=Directory for downloaded attachments"`
	Extensions     []string      `yaml:"extensions" json:"extensions" jsonschema:"description=Attachment extensions to download (default .pdf and .xml)"`
	DownloadRate   time.Duration `yaml:"download_rate" json:"download_rate" jsonschema:"default=1s,description=Minimal delay between attachment downloads"`
	FeedStrategies []string      `yaml:"feed_strategies" json:"feed_strategies" jsonschema:"description=Ordered strategies for fetching the feed (http, curl, wget, browser)"`
	FileStrategies []string      `yaml:"file_strategies" json:"file_strategies" jsonschema:"description=Ordered strategies for downloading attachments (http, curl, wget, browser)"`
	DownloadLog    string        `yaml:"download_log" json:"download_log" jsonschema:"description=Log file for successful downloads, empty to disable"`
	FailedLog      string        `yaml:"failed_log" json:"failed_log" jsonschema:"description=Log file for failed downloads, empty to disable"`
}

// FetchConfig holds settings shared by fetch strategies
type FetchConfig struct {
	UserAgent      string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for all strategies"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" jsonschema:"default=30s,description=Connection timeout"`
	FeedTimeout    time.Duration `yaml:"feed_timeout" json:"feed_timeout" jsonschema:"default=2m,description=Total timeout for a feed fetch"`
	FileTimeout    time.Duration `yaml:"file_timeout" json:"file_timeout" jsonschema:"default=5m,description=Total timeout for an attachment download"`
	Retries        int           `yaml:"retries" json:"retries" jsonschema:"default=3,minimum=1,description=Attempts within a single strategy"`
	WarmupURL      string        `yaml:"warmup_url" json:"warmup_url" jsonschema:"description=Page visited once to collect cookies before direct requests"`
	CurlPath       string        `yaml:"curl_path" json:"curl_path" jsonschema:"default=curl,description=Path to curl binary"`
	WgetPath       string        `yaml:"wget_path" json:"wget_path" jsonschema:"default=wget,description=Path to wget binary"`
	BrowserPath    string        `yaml:"browser_path" json:"browser_path" jsonschema:"description=Path to chrome binary, empty for auto-detect"`
}

// DocAIConfig holds document AI service settings
type DocAIConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url" jsonschema:"description=Document AI service base URL"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=Bearer token for the document AI service, optional"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=5s,description=Delay between status checks"`
	MaxPolls     int           `yaml:"max_polls" json:"max_polls" jsonschema:"default=12,minimum=1,description=Maximum number of status checks"`
	Query        string        `yaml:"query" json:"query" jsonschema:"default=Summarize this document,description=Default query text"`
	UploadLog    string        `yaml:"upload_log" json:"upload_log" jsonschema:"default=uploaded_files.csv,description=Ledger of uploaded files"`
}

// ConfigurationError is a fatal startup problem with the configuration
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

// DefaultFeedURL is the exchange online announcements feed
const DefaultFeedURL = "https://nsearchives.nseindia.com/content/RSS/Online_announcements.xml"

// DefaultUserAgent is a desktop browser user agent, the exchange rejects non-browser clients
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// KnownStrategies lists strategy names accepted in feed_strategies and file_strategies
var KnownStrategies = []string{"http", "curl", "wget", "browser"}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.SetDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// SetDefaults fills zero values with defaults
func (c *Config) SetDefaults() {
	// set defaults for server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8888"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// set defaults for database, dsn has no default
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// set defaults for monitor
	m := &c.Monitor
	if m.FeedURL == "" {
		m.FeedURL = DefaultFeedURL
	}
	if m.Interval == 0 {
		m.Interval = 5 * time.Minute
	}
	if m.Lookback == 0 {
		m.Lookback = 24 * time.Hour
	}
	if m.MaxItems == 0 {
		m.MaxItems = 20
	}
	if m.CacheFile == "" {
		m.CacheFile = "nse_cache.json"
	}
	if m.DownloadDir == "" {
		m.DownloadDir = "nse_downloads"
	}
	if len(m.Extensions) == 0 {
		m.Extensions = []string{".pdf", ".xml"}
	}
	if m.DownloadRate == 0 {
		m.DownloadRate = time.Second
	}
	if len(m.FeedStrategies) == 0 {
		m.FeedStrategies = []string{"curl", "http", "browser"}
	}
	if len(m.FileStrategies) == 0 {
		m.FileStrategies = []string{"http", "curl", "wget"}
	}

	// set defaults for fetch
	f := &c.Fetch
	if f.UserAgent == "" {
		f.UserAgent = DefaultUserAgent
	}
	if f.ConnectTimeout == 0 {
		f.ConnectTimeout = 30 * time.Second
	}
	if f.FeedTimeout == 0 {
		f.FeedTimeout = 2 * time.Minute
	}
	if f.FileTimeout == 0 {
		f.FileTimeout = 5 * time.Minute
	}
	if f.Retries == 0 {
		f.Retries = 3
	}
	if f.CurlPath == "" {
		f.CurlPath = "curl"
	}
	if f.WgetPath == "" {
		f.WgetPath = "wget"
	}

	// set defaults for document ai
	d := &c.DocAI
	if d.Timeout == 0 {
		d.Timeout = 60 * time.Second
	}
	if d.PollInterval == 0 {
		d.PollInterval = 5 * time.Second
	}
	if d.MaxPolls == 0 {
		d.MaxPolls = 12
	}
	if d.Query == "" {
		d.Query = "Summarize this document"
	}
	if d.UploadLog == "" {
		d.UploadLog = "uploaded_files.csv"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return &ConfigurationError{Field: "database.dsn", Msg: "is required"}
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return &ConfigurationError{Field: "server.timeout", Msg: "must be at least 1 second"}
	}

	// validate monitor config
	if !strings.HasPrefix(cfg.Monitor.FeedURL, "http://") && !strings.HasPrefix(cfg.Monitor.FeedURL, "https://") {
		return &ConfigurationError{Field: "monitor.feed_url", Msg: "must be an http(s) url"}
	}
	if cfg.Monitor.Interval < time.Second {
		return &ConfigurationError{Field: "monitor.interval", Msg: "must be at least 1 second"}
	}
	if cfg.Monitor.Lookback < 0 {
		return &ConfigurationError{Field: "monitor.lookback", Msg: "must be non-negative"}
	}
	if cfg.Monitor.MaxItems < 1 {
		return &ConfigurationError{Field: "monitor.max_items", Msg: "must be at least 1"}
	}
	if err := validateStrategies("monitor.feed_strategies", cfg.Monitor.FeedStrategies); err != nil {
		return err
	}
	if err := validateStrategies("monitor.file_strategies", cfg.Monitor.FileStrategies); err != nil {
		return err
	}
	for _, ext := range cfg.Monitor.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return &ConfigurationError{Field: "monitor.extensions", Msg: fmt.Sprintf("%q must start with a dot", ext)}
		}
	}

	// validate fetch config
	if cfg.Fetch.Retries < 1 {
		return &ConfigurationError{Field: "fetch.retries", Msg: "must be at least 1"}
	}

	// validate document ai config, base url is optional
	if cfg.DocAI.BaseURL != "" && !strings.HasPrefix(cfg.DocAI.BaseURL, "http") {
		return &ConfigurationError{Field: "docai.base_url", Msg: "must be an http(s) url"}
	}
	if cfg.DocAI.MaxPolls < 1 {
		return &ConfigurationError{Field: "docai.max_polls", Msg: "must be at least 1"}
	}

	return nil
}

func validateStrategies(field string, names []string) error {
	for _, name := range names {
		if !slices.Contains(KnownStrategies, name) {
			return &ConfigurationError{Field: field, Msg: fmt.Sprintf("unknown strategy %q", name)}
		}
	}
	return nil
}

// Secrets returns configured values which should be masked in logs
func (c *Config) Secrets() []string {
	var res []string
	if c.DocAI.APIKey != "" {
		res = append(res, c.DocAI.APIKey)
	}
	return res
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
