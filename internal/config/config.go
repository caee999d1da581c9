// Package config loads service configuration from defaults, an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
	_ "time/tzdata" // embedded zone database

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/commutekit/commutekit/internal/analytics"
	"github.com/commutekit/commutekit/internal/database"
)

// Config holds the API server configuration.
type Config struct {
	Port string `mapstructure:"APP_PORT" validate:"required,numeric"`
	Env  string `mapstructure:"APP_ENV" validate:"required,oneof=development test staging production"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `mapstructure:"REQUIRE_TLS"`

	OTelEnabled  bool    `mapstructure:"OTEL_ENABLED"`
	OTLPEndpoint string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"required_if=OTelEnabled true"`
	SampleRatio  float64 `mapstructure:"OTEL_SAMPLE_RATIO" validate:"gte=0,lte=1"`

	OTPBaseURL string        `mapstructure:"OTP_BASE_URL" validate:"required,url"`
	OTPTimeout time.Duration `mapstructure:"OTP_TIMEOUT" validate:"gt=0"`

	// Timezone is the transit agency time zone used for departure windows.
	Timezone       string        `mapstructure:"PLAN_TIMEZONE" validate:"required"`
	MaxOptions     int           `mapstructure:"PLAN_MAX_OPTIONS" validate:"min=1,max=50"`
	MaxConcurrency int           `mapstructure:"PLAN_MAX_CONCURRENCY" validate:"min=0"`
	RateLimit      int           `mapstructure:"PLAN_RATE_LIMIT" validate:"min=1"`
	RoutesCacheTTL time.Duration `mapstructure:"ROUTES_CACHE_TTL" validate:"gt=0"`

	// RoutesRefreshInterval reloads the route table in the background. Zero disables it.
	RoutesRefreshInterval time.Duration `mapstructure:"ROUTES_REFRESH_INTERVAL" validate:"gte=0"`

	// AnalyticsSink is a comma separated list of log, pubsub and postgres.
	AnalyticsSink   string `mapstructure:"ANALYTICS_SINK"`
	PubSubProjectID string `mapstructure:"PUBSUB_PROJECT_ID"`
	PubSubTopic     string `mapstructure:"PUBSUB_TOPIC"`

	// WorkerSubscription is the subscription the event worker drains into PostgreSQL.
	WorkerSubscription string `mapstructure:"WORKER_SUBSCRIPTION"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT" validate:"min=1,max=65535"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS" validate:"min=1"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS" validate:"min=0,ltefield=DBMaxOpenConns"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

var defaults = map[string]any{
	"APP_PORT":                    "8080",
	"APP_ENV":                     "development",
	"REQUIRE_TLS":                 false,
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_SAMPLE_RATIO":           1.0,
	"OTP_BASE_URL":                "http://localhost:8080/otp/routers/default",
	"OTP_TIMEOUT":                 "30s",
	"PLAN_TIMEZONE":               "America/New_York",
	"PLAN_MAX_OPTIONS":            4,
	"PLAN_MAX_CONCURRENCY":        16,
	"PLAN_RATE_LIMIT":             60,
	"ROUTES_CACHE_TTL":            "1h",
	"ROUTES_REFRESH_INTERVAL":     "15m",
	"ANALYTICS_SINK":              "log",
	"PUBSUB_PROJECT_ID":           "",
	"PUBSUB_TOPIC":                "plan-events",
	"WORKER_SUBSCRIPTION":         "plan-events-store",
	"DB_HOST":                     "localhost",
	"DB_PORT":                     5432,
	"DB_USER":                     "commutekit",
	"DB_PASSWORD":                 "localdev",
	"DB_NAME":                     "commutekit",
	"DB_SSL_MODE":                 "disable",
	"DB_MAX_OPEN_CONNS":           10,
	"DB_MAX_IDLE_CONNS":           5,
	"DB_CONN_MAX_LIFETIME":        "5m",
}

// Load reads configuration. A .env file in path is optional; environment variables win over it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings each analytics sink needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: PLAN_TIMEZONE: %w", err)
	}

	sinks, err := c.Sinks()
	if err != nil {
		return fmt.Errorf("invalid config: ANALYTICS_SINK: %w", err)
	}
	if slices.Contains(sinks, analytics.SinkPubSub) && (c.PubSubProjectID == "" || c.PubSubTopic == "") {
		return errors.New("invalid config: pubsub sink requires PUBSUB_PROJECT_ID and PUBSUB_TOPIC")
	}
	if slices.Contains(sinks, analytics.SinkPostgres) && (c.DBHost == "" || c.DBName == "") {
		return errors.New("invalid config: postgres sink requires DB_HOST and DB_NAME")
	}
	return nil
}

// Sinks returns the configured analytics sinks.
func (c *Config) Sinks() ([]string, error) {
	return analytics.ParseSinks(c.AnalyticsSink)
}

// Location returns the agency time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Database returns the connection settings for the analytics database.
func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Database:        c.DBName,
		SSLMode:         c.DBSSLMode,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
}

// ValidateWorker checks the settings the event worker needs beyond Validate.
func (c *Config) ValidateWorker() error {
	if c.PubSubProjectID == "" || c.WorkerSubscription == "" {
		return errors.New("invalid config: worker requires PUBSUB_PROJECT_ID and WORKER_SUBSCRIPTION")
	}
	if c.DBHost == "" || c.DBName == "" {
		return errors.New("invalid config: worker requires DB_HOST and DB_NAME")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
