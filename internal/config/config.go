// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/product-scraper/internal/extract"
	"github.com/JakeFAU/product-scraper/internal/fetcher"
	"github.com/JakeFAU/product-scraper/internal/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. SCRAPER_FETCH_TIMEOUT.
const EnvPrefix = "SCRAPER"

// DefaultOutput is the output file used when none is configured.
const DefaultOutput = "Output_extracted_data.xlsx"

// Backoff strategies accepted by fetch.backoff.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	History    HistoryConfig    `mapstructure:"history"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ExtractionConfig describes what to search for and what to extract.
type ExtractionConfig struct {
	IdentifierColumn        string `mapstructure:"identifier_column"`
	SearchURLTemplate       string `mapstructure:"search_url_template"`
	ProductLinkSelector     string `mapstructure:"product_link_selector"`
	ProductLinkSelectorKind string `mapstructure:"product_link_selector_kind"`
	ProductLinkBaseURL      string `mapstructure:"product_link_base_url"`
	FamilySelector          string `mapstructure:"family_selector"`
	FamilySelectorKind      string `mapstructure:"family_selector_kind"`
	ImageSelector           string `mapstructure:"image_selector"`
	ImageSelectorKind       string `mapstructure:"image_selector_kind"`
	OutputPrefix            string `mapstructure:"output_prefix"`
	IncludeStatus           bool   `mapstructure:"include_status"`
}

// FetchConfig controls outbound requests and retries.
type FetchConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay      time.Duration `mapstructure:"max_retry_delay"`
	Backoff            string        `mapstructure:"backoff"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	HostRPS            float64       `mapstructure:"host_rps"` // 0 disables per-host limiting
	HostBurst          int           `mapstructure:"host_burst"`
}

// BatchConfig names the input and output tables and paces rows.
type BatchConfig struct {
	Input    string        `mapstructure:"input"`
	Output   string        `mapstructure:"output"`
	Sheet    string        `mapstructure:"sheet"`
	RowDelay time.Duration `mapstructure:"row_delay"`
}

// ServerConfig controls the serve command's HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // CORS origins; empty disables CORS
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// NotifyConfig enables the Pub/Sub run summary when both fields are set.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether a run summary should be published.
func (c NotifyConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// HistoryConfig enables Postgres result history when DSN is set.
type HistoryConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// ProjectID turns on export to Google Cloud Trace.
	ProjectID string `mapstructure:"project_id"`
}

// NewViper returns a Viper instance with defaults and environment overrides
// applied. Callers may bind flags to it before calling Read.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return Read(NewViper(), path)
}

// Read optionally merges the config file at path into v, then unmarshals and
// validates.
func Read(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("extraction.identifier_column", "MPN")
	v.SetDefault("extraction.product_link_selector_kind", string(extract.KindXPath))
	v.SetDefault("extraction.family_selector_kind", string(extract.KindXPath))
	v.SetDefault("extraction.image_selector_kind", string(extract.KindXPath))
	v.SetDefault("extraction.output_prefix", pipeline.DefaultOutputPrefix)
	v.SetDefault("extraction.include_status", false)
	v.SetDefault("fetch.user_agent", fetcher.DefaultUserAgent)
	v.SetDefault("fetch.timeout", fetcher.DefaultTimeout)
	v.SetDefault("fetch.max_attempts", fetcher.DefaultMaxAttempts)
	v.SetDefault("fetch.retry_delay", fetcher.DefaultRetryDelay)
	v.SetDefault("fetch.max_retry_delay", 30*time.Second)
	v.SetDefault("fetch.backoff", BackoffFixed)
	v.SetDefault("fetch.insecure_skip_verify", false)
	v.SetDefault("fetch.host_rps", 0)
	v.SetDefault("fetch.host_burst", 1)
	v.SetDefault("batch.output", DefaultOutput)
	v.SetDefault("batch.row_delay", pipeline.DefaultRowDelay)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("history.table", "scrape_results")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "product-scraper")
	v.SetDefault("telemetry.version", "dev")
}

// Validate enforces required values and reasonable limits. Extraction
// problems are reported as *pipeline.ConfigError values.
func (c Config) Validate() error {
	var errs []error
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be > 0"))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("fetch.max_attempts must be >= 1"))
	}
	if c.Fetch.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("fetch.retry_delay must be >= 0"))
	}
	switch strings.ToLower(c.Fetch.Backoff) {
	case BackoffFixed, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("fetch.backoff must be %q or %q", BackoffFixed, BackoffExponential))
	}
	if c.Fetch.HostRPS < 0 {
		errs = append(errs, fmt.Errorf("fetch.host_rps must be >= 0"))
	}
	if c.Fetch.HostBurst < 0 {
		errs = append(errs, fmt.Errorf("fetch.host_burst must be >= 0"))
	}
	if c.Batch.RowDelay < 0 {
		errs = append(errs, fmt.Errorf("batch.row_delay must be >= 0"))
	}
	if (c.Notify.ProjectID == "") != (c.Notify.Topic == "") {
		errs = append(errs, fmt.Errorf("notify.project_id and notify.topic must be set together"))
	}
	if c.History.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("history.max_conns must be >= 0"))
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		errs = append(errs, fmt.Errorf("telemetry.service_name is required when telemetry is enabled"))
	}
	if err := c.Pipeline().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pipeline converts the extraction section into the pipeline's config record.
func (c Config) Pipeline() pipeline.ExtractionConfig {
	e := c.Extraction
	return pipeline.ExtractionConfig{
		IdentifierColumn:   strings.TrimSpace(e.IdentifierColumn),
		SearchURLTemplate:  strings.TrimSpace(e.SearchURLTemplate),
		ProductLink:        selector(e.ProductLinkSelector, e.ProductLinkSelectorKind),
		ProductLinkBaseURL: strings.TrimSpace(e.ProductLinkBaseURL),
		Family:             selector(e.FamilySelector, e.FamilySelectorKind),
		Image:              selector(e.ImageSelector, e.ImageSelectorKind),
		OutputPrefix:       e.OutputPrefix,
		IncludeStatus:      e.IncludeStatus,
	}
}

func selector(expr, kind string) extract.Selector {
	return extract.Selector{Expr: strings.TrimSpace(expr), Kind: extract.ParseKind(kind)}
}

// FetcherConfig converts the fetch section for the HTTP fetcher.
func (c Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		UserAgent:          c.Fetch.UserAgent,
		Timeout:            c.Fetch.Timeout,
		InsecureSkipVerify: c.Fetch.InsecureSkipVerify,
	}
}

// RetryPolicy builds the configured retry policy.
func (c Config) RetryPolicy() fetcher.RetryPolicy {
	if strings.EqualFold(c.Fetch.Backoff, BackoffExponential) {
		return fetcher.ExponentialPolicy{
			Attempts:  c.Fetch.MaxAttempts,
			BaseDelay: c.Fetch.RetryDelay,
			MaxDelay:  c.Fetch.MaxRetryDelay,
		}
	}
	return fetcher.FixedPolicy{Attempts: c.Fetch.MaxAttempts, Delay: c.Fetch.RetryDelay}
}
