package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/DorusKeijzer/Woonitor/internal/logger"
)

// Hostile-response policies. The crawler and scraper consult these when the
// source site answers with 403/429 or a verification page.
const (
	PolicyAbort   = "abort"
	PolicyBackoff = "backoff"
)

// Config is the full configuration tree for every Woonitor worker.
// Each subcommand reads only the sections it needs.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Log      logger.Config  `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Writer   WriterConfig   `yaml:"writer"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment" env:"APP_ENV"`
	Debug       bool   `yaml:"debug" env:"APP_DEBUG"`
}

// RedisConfig holds connection settings for the queue/dedup service.
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MetricsConfig holds Pushgateway settings. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	Job            string `yaml:"job"`
}

// CrawlerConfig configures the discovery stage.
type CrawlerConfig struct {
	Area string `yaml:"area" env:"CRAWLER_AREA"`
	// BaseURL is the search-results URL prefix; the page number is appended.
	BaseURL         string        `yaml:"base_url"`
	ThrottleMin     time.Duration `yaml:"throttle_min"`
	ThrottleMax     time.Duration `yaml:"throttle_max"`
	MaxPages        int           `yaml:"max_pages"`
	EmptyPageWindow int           `yaml:"empty_page_window"`
	HostilePolicy   string        `yaml:"hostile_policy" env:"CRAWLER_HOSTILE_POLICY"`
	PageTimeout     time.Duration `yaml:"page_timeout"`
}

// ScraperConfig configures the detail-extraction stage.
type ScraperConfig struct {
	Workers       int           `yaml:"workers" env:"SCRAPER_WORKERS"`
	ThrottleMin   time.Duration `yaml:"throttle_min"`
	ThrottleMax   time.Duration `yaml:"throttle_max"`
	PopTimeout    time.Duration `yaml:"pop_timeout"`
	HostilePolicy string        `yaml:"hostile_policy" env:"SCRAPER_HOSTILE_POLICY"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
	UserAgent     string        `yaml:"user_agent"`
}

// WriterConfig configures the transform/write stage.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size" env:"WRITER_BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"WRITER_FLUSH_INTERVAL"`
	PopTimeout    time.Duration `yaml:"pop_timeout"`
}

// Load reads the configuration at path, applies defaults and env overrides.
func Load(path string) (*Config, error) {
	cfg, err := load[Config](path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	// Env always wins, also over defaults.
	applyEnvOverrides(cfg)
	return cfg, nil
}

// SetDefaults fills in zero values across all sections.
func (c *Config) SetDefaults() {
	if c.App.Name == "" {
		c.App.Name = "woonitor"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = c.App.Name
	}

	if c.Crawler.BaseURL == "" {
		c.Crawler.BaseURL = "https://www.funda.nl/zoeken/koop/"
	}
	if c.Crawler.ThrottleMin == 0 {
		c.Crawler.ThrottleMin = 5 * time.Second
	}
	if c.Crawler.ThrottleMax == 0 {
		c.Crawler.ThrottleMax = 10 * time.Second
	}
	if c.Crawler.MaxPages == 0 {
		c.Crawler.MaxPages = 200
	}
	if c.Crawler.EmptyPageWindow == 0 {
		c.Crawler.EmptyPageWindow = 15
	}
	if c.Crawler.HostilePolicy == "" {
		c.Crawler.HostilePolicy = PolicyBackoff
	}
	if c.Crawler.PageTimeout == 0 {
		c.Crawler.PageTimeout = 60 * time.Second
	}

	if c.Scraper.Workers == 0 {
		c.Scraper.Workers = 1
	}
	if c.Scraper.ThrottleMin == 0 {
		c.Scraper.ThrottleMin = 5 * time.Second
	}
	if c.Scraper.ThrottleMax == 0 {
		c.Scraper.ThrottleMax = 10 * time.Second
	}
	if c.Scraper.PopTimeout == 0 {
		c.Scraper.PopTimeout = 5 * time.Second
	}
	if c.Scraper.HostilePolicy == "" {
		c.Scraper.HostilePolicy = PolicyBackoff
	}
	if c.Scraper.PageTimeout == 0 {
		c.Scraper.PageTimeout = 60 * time.Second
	}

	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = 10
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = 20 * time.Second
	}
	if c.Writer.PopTimeout == 0 {
		c.Writer.PopTimeout = 5 * time.Second
	}
}

// Validate checks cross-field constraints that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Crawler.ThrottleMin > c.Crawler.ThrottleMax {
		return errors.New("crawler: throttle_min must not exceed throttle_max")
	}
	if c.Scraper.ThrottleMin > c.Scraper.ThrottleMax {
		return errors.New("scraper: throttle_min must not exceed throttle_max")
	}
	if err := validPolicy(c.Crawler.HostilePolicy); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if err := validPolicy(c.Scraper.HostilePolicy); err != nil {
		return fmt.Errorf("scraper: %w", err)
	}
	if c.Writer.BatchSize < 1 {
		return errors.New("writer: batch_size must be at least 1")
	}
	return nil
}

func validPolicy(p string) error {
	switch p {
	case PolicyAbort, PolicyBackoff:
		return nil
	default:
		return fmt.Errorf("invalid hostile_policy: %s", p)
	}
}
