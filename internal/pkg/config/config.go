package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Query     QueryConfig     `mapstructure:"query"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type OverpassConfig struct {
	URL               string `mapstructure:"url"`
	TimeoutMS         int    `mapstructure:"timeout_ms"`
	ServerTimeoutS    int    `mapstructure:"server_timeout_s"`
	UserAgent         string `mapstructure:"user_agent"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// Timeout is the client-side deadline for one fetch.
func (o OverpassConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// ServerTimeout is the evaluation limit sent in the query itself.
func (o OverpassConfig) ServerTimeout() time.Duration {
	return time.Duration(o.ServerTimeoutS) * time.Second
}

// QueryConfig holds the limits the presentation layer clamps against.
type QueryConfig struct {
	DefaultRadius int    `mapstructure:"default_radius"`
	MinRadius     int    `mapstructure:"min_radius"`
	MaxRadius     int    `mapstructure:"max_radius"`
	RadiusStep    int    `mapstructure:"radius_step"`
	DefaultPlace  string `mapstructure:"default_place"`
}

// ClampRadius bounds r to [MinRadius, MaxRadius].
func (q QueryConfig) ClampRadius(r int) int {
	return max(q.MinRadius, min(r, q.MaxRadius))
}

// StepRadius moves r by steps increments of RadiusStep and clamps the result.
func (q QueryConfig) StepRadius(r, steps int) int {
	return q.ClampRadius(r + steps*q.RadiusStep)
}

type SchedulerConfig struct {
	InputDebounceMS    int `mapstructure:"input_debounce_ms"`
	CategoryDebounceMS int `mapstructure:"category_debounce_ms"`
}

func (s SchedulerConfig) InputDebounce() time.Duration {
	return time.Duration(s.InputDebounceMS) * time.Millisecond
}

func (s SchedulerConfig) CategoryDebounce() time.Duration {
	return time.Duration(s.CategoryDebounceMS) * time.Millisecond
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TaxonomyConfig overrides the built-in category taxonomy when Categories is
// non-empty.
type TaxonomyConfig struct {
	TagKey     string            `mapstructure:"tag_key"`
	Categories []domain.Category `mapstructure:"categories"`
}

// Build returns the configured taxonomy, or the built-in one.
func (t TaxonomyConfig) Build() (*domain.Taxonomy, error) {
	if len(t.Categories) == 0 {
		return domain.NewTaxonomy(t.TagKey, domain.DefaultCategories())
	}
	return domain.NewTaxonomy(t.TagKey, t.Categories)
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file: OSMDASH_CONFIG names one explicitly, otherwise config.yaml
	// is looked up and may be missing.
	if path := os.Getenv("OSMDASH_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	return decode(v)
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_ms", 15000)
	v.SetDefault("overpass.server_timeout_s", 25)
	v.SetDefault("overpass.user_agent", "osmdash/1.0")
	v.SetDefault("overpass.requests_per_minute", 30)
	v.SetDefault("query.default_radius", 500)
	v.SetDefault("query.min_radius", 50)
	v.SetDefault("query.max_radius", 1500)
	v.SetDefault("query.radius_step", 50)
	v.SetDefault("query.default_place", domain.DefaultPlaceName)
	v.SetDefault("scheduler.input_debounce_ms", 500)
	v.SetDefault("scheduler.category_debounce_ms", 1500)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("taxonomy.tag_key", domain.DefaultTagKey)
}

func decode(v *viper.Viper) (*Config, error) {
	// Environment variables: OSMDASH_OVERPASS_URL → overpass.url
	v.SetEnvPrefix("OSMDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Overpass.URL == "" {
		errs = append(errs, "overpass.url is required")
	}
	if c.Overpass.TimeoutMS <= 0 {
		errs = append(errs, "overpass.timeout_ms must be positive")
	}
	if c.Overpass.ServerTimeoutS <= 0 {
		errs = append(errs, "overpass.server_timeout_s must be positive")
	}
	if c.Overpass.RequestsPerMinute < 0 {
		errs = append(errs, "overpass.requests_per_minute must not be negative")
	}
	if c.Query.MinRadius <= 0 {
		errs = append(errs, fmt.Sprintf("query.min_radius must be positive, got %d", c.Query.MinRadius))
	}
	if c.Query.MaxRadius < c.Query.MinRadius {
		errs = append(errs, fmt.Sprintf("query.max_radius (%d) must be >= query.min_radius (%d)", c.Query.MaxRadius, c.Query.MinRadius))
	}
	if c.Query.DefaultRadius < c.Query.MinRadius || c.Query.DefaultRadius > c.Query.MaxRadius {
		errs = append(errs, fmt.Sprintf("query.default_radius must be within [%d, %d], got %d", c.Query.MinRadius, c.Query.MaxRadius, c.Query.DefaultRadius))
	}
	if c.Query.RadiusStep <= 0 {
		errs = append(errs, "query.radius_step must be positive")
	}
	if _, ok := domain.FindPlace(c.Query.DefaultPlace); !ok {
		errs = append(errs, fmt.Sprintf("query.default_place %q is not a saved place", c.Query.DefaultPlace))
	}
	if c.Scheduler.InputDebounceMS < 0 {
		errs = append(errs, "scheduler.input_debounce_ms must not be negative")
	}
	if c.Scheduler.CategoryDebounceMS < 0 {
		errs = append(errs, "scheduler.category_debounce_ms must not be negative")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled is set")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPAddr == "" {
		errs = append(errs, "telemetry.otlp_addr is required when telemetry.enabled is set")
	}
	if _, err := c.Taxonomy.Build(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
