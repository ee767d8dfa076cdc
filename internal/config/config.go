// Package config loads and validates engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Engine  EngineConfig    `mapstructure:"engine"`
	Search  SearchConfig    `mapstructure:"search"`
	Fetch   FetchConfig     `mapstructure:"fetch"`
	Email   EmailConfig     `mapstructure:"email"`
	DB      DBConfig        `mapstructure:"db"`
	PubSub  PubSubConfig    `mapstructure:"pubsub"`
	Sectors SectorsConfig   `mapstructure:"sectors"`
	Logging LoggingConfig   `mapstructure:"logging"`
	Job     leads.JobConfig `mapstructure:"job"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// EngineConfig governs per-job defaults not supplied by the client.
type EngineConfig struct {
	MaxResultsPerQuery int `mapstructure:"max_results_per_query"`
}

// SearchConfig controls the search adapter.
type SearchConfig struct {
	MaxPages           int    `mapstructure:"max_pages"`
	UserAgent          string `mapstructure:"user_agent"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	SelectorTimeoutSec int    `mapstructure:"selector_timeout_seconds"`
	BaseDelayMs        int    `mapstructure:"base_delay_ms"`
	MaxDelaySec        int    `mapstructure:"max_delay_seconds"`
}

// FetchConfig controls the site fetcher.
type FetchConfig struct {
	UserAgent          string  `mapstructure:"user_agent"`
	HomepageTimeoutSec int     `mapstructure:"homepage_timeout_seconds"`
	ContactTimeoutSec  int     `mapstructure:"contact_timeout_seconds"`
	MaxRedirects       int     `mapstructure:"max_redirects"`
	ContactDelayMs     int     `mapstructure:"contact_delay_ms"`
	PerDomainRPS       float64 `mapstructure:"per_domain_rps"`
}

// EmailConfig controls the email validator.
type EmailConfig struct {
	DNSTimeoutSec  int    `mapstructure:"dns_timeout_seconds"`
	SMTPTimeoutSec int    `mapstructure:"smtp_timeout_seconds"`
	HelloDomain    string `mapstructure:"hello_domain"`
	ProbeSender    string `mapstructure:"probe_sender"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for the optional event publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SectorsConfig points at the hot-reloadable ERP taxonomy file.
type SectorsConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.max_results_per_query", 30)
	v.SetDefault("search.max_pages", 5)
	v.SetDefault("search.nav_timeout_seconds", 25)
	v.SetDefault("search.selector_timeout_seconds", 4)
	v.SetDefault("search.base_delay_ms", 1500)
	v.SetDefault("search.max_delay_seconds", 60)
	v.SetDefault("fetch.homepage_timeout_seconds", 12)
	v.SetDefault("fetch.contact_timeout_seconds", 8)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.contact_delay_ms", 500)
	v.SetDefault("fetch.per_domain_rps", 2.0)
	v.SetDefault("fetch.user_agent", "leadengine/1.0 (+https://github.com/xandervandijck/scraper-backend)")
	v.SetDefault("email.dns_timeout_seconds", 5)
	v.SetDefault("email.smtp_timeout_seconds", 5)
	v.SetDefault("email.hello_domain", "leadengine.local")
	v.SetDefault("email.probe_sender", "check@leadengine.local")
	v.SetDefault("logging.development", true)
	v.SetDefault("job.target_leads", leads.DefaultTargetLeads)
	v.SetDefault("job.min_score", leads.DefaultMinScore)
	v.SetDefault("job.concurrency", leads.DefaultConcurrency)
	v.SetDefault("job.use_case", leads.DefaultUseCase)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.MaxPages <= 0 {
		return fmt.Errorf("search.max_pages must be > 0")
	}
	if c.Fetch.HomepageTimeoutSec <= 0 {
		return fmt.Errorf("fetch.homepage_timeout_seconds must be > 0")
	}
	if c.Fetch.PerDomainRPS <= 0 {
		return fmt.Errorf("fetch.per_domain_rps must be > 0")
	}
	if c.Job.Concurrency < 0 {
		return fmt.Errorf("job.concurrency must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout.
func (c SearchConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// SelectorTimeout converts the configured selector timeout.
func (c SearchConfig) SelectorTimeout() time.Duration {
	return time.Duration(c.SelectorTimeoutSec) * time.Second
}

// BaseDelay converts the configured base pacing delay.
func (c SearchConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay converts the configured pacing cap.
func (c SearchConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySec) * time.Second
}

// HomepageTimeout converts the configured homepage timeout.
func (c FetchConfig) HomepageTimeout() time.Duration {
	return time.Duration(c.HomepageTimeoutSec) * time.Second
}

// ContactTimeout converts the configured contact-page timeout.
func (c FetchConfig) ContactTimeout() time.Duration {
	return time.Duration(c.ContactTimeoutSec) * time.Second
}

// ContactDelay converts the configured politeness delay.
func (c FetchConfig) ContactDelay() time.Duration {
	return time.Duration(c.ContactDelayMs) * time.Millisecond
}

// DNSTimeout converts the configured DNS timeout.
func (c EmailConfig) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutSec) * time.Second
}

// SMTPTimeout converts the configured SMTP probe timeout.
func (c EmailConfig) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSec) * time.Second
}
