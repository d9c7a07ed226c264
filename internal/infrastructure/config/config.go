package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	Shop      ShopConfig
	Oblio     OblioConfig
	Sameday   SamedayConfig
	Anaf      AnafConfig
	Retry     RetryConfig
	Webhook   WebhookConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// RedisConfig holds Redis connection settings for webhook dedup
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// ShopConfig holds commerce platform Admin API settings
type ShopConfig struct {
	Domain         string
	AccessToken    string
	APIVersion     string
	WebhookSecret  string
	TimeoutSeconds int
}

// OblioConfig holds invoicing provider settings
type OblioConfig struct {
	Email           string
	APISecret       string
	CIF             string
	Series          string
	AlternateSeries string
	SendEmail       bool
	UseStock        bool
	TimeoutSeconds  int
}

// SamedayConfig holds courier provider settings
type SamedayConfig struct {
	Username       string
	Password       string
	PickupPointID  string
	ServiceID      string
	TimeoutSeconds int
}

// AnafConfig holds company-registry settings
type AnafConfig struct {
	RequestInterval time.Duration
	TimeoutSeconds  int
}

// RetryConfig bounds the per-delivery retry loop
type RetryConfig struct {
	MaxRetries       int
	BatchConcurrency int
}

// WebhookConfig holds webhook delivery deduplication settings
type WebhookConfig struct {
	DedupEnabled bool
	DedupTTL     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with ORDERBRIDGE_ prefix (e.g., ORDERBRIDGE_SHOP_ACCESS_TOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Shop: ShopConfig{
			Domain:         v.GetString("shop.domain"),
			AccessToken:    v.GetString("shop.access_token"),
			APIVersion:     v.GetString("shop.api_version"),
			WebhookSecret:  v.GetString("shop.webhook_secret"),
			TimeoutSeconds: v.GetInt("shop.timeout_seconds"),
		},
		Oblio: OblioConfig{
			Email:           v.GetString("oblio.email"),
			APISecret:       v.GetString("oblio.api_secret"),
			CIF:             v.GetString("oblio.cif"),
			Series:          v.GetString("oblio.series"),
			AlternateSeries: v.GetString("oblio.alternate_series"),
			SendEmail:       v.GetBool("oblio.send_email"),
			UseStock:        v.GetBool("oblio.use_stock"),
			TimeoutSeconds:  v.GetInt("oblio.timeout_seconds"),
		},
		Sameday: SamedayConfig{
			Username:       v.GetString("sameday.username"),
			Password:       v.GetString("sameday.password"),
			PickupPointID:  v.GetString("sameday.pickup_point_id"),
			ServiceID:      v.GetString("sameday.service_id"),
			TimeoutSeconds: v.GetInt("sameday.timeout_seconds"),
		},
		Anaf: AnafConfig{
			RequestInterval: v.GetDuration("anaf.request_interval"),
			TimeoutSeconds:  v.GetInt("anaf.timeout_seconds"),
		},
		Retry: RetryConfig{
			MaxRetries:       v.GetInt("retry.max_retries"),
			BatchConcurrency: v.GetInt("retry.batch_concurrency"),
		},
		Webhook: WebhookConfig{
			DedupEnabled: v.GetBool("webhook.dedup_enabled"),
			DedupTTL:     v.GetDuration("webhook.dedup_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "orderbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Shop.APIVersion == "" {
		cfg.Shop.APIVersion = "2026-01"
	}
	if cfg.Shop.TimeoutSeconds == 0 {
		cfg.Shop.TimeoutSeconds = 30
	}
	if cfg.Oblio.Series == "" {
		cfg.Oblio.Series = "FCT"
	}
	if cfg.Oblio.TimeoutSeconds == 0 {
		cfg.Oblio.TimeoutSeconds = 30
	}
	if cfg.Sameday.TimeoutSeconds == 0 {
		cfg.Sameday.TimeoutSeconds = 30
	}
	if cfg.Anaf.RequestInterval == 0 {
		cfg.Anaf.RequestInterval = time.Second
	}
	if cfg.Anaf.TimeoutSeconds == 0 {
		cfg.Anaf.TimeoutSeconds = 30
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BatchConcurrency == 0 {
		cfg.Retry.BatchConcurrency = 4
	}
	if cfg.Webhook.DedupTTL == 0 {
		cfg.Webhook.DedupTTL = 24 * time.Hour
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate checks required settings. Provider credentials are required in
// production but optional in development so local runs can start with fakes.
func (cfg *Config) validate() error {
	if cfg.Retry.MaxRetries < 1 {
		return errors.New("config: retry.max_retries must be at least 1")
	}
	if cfg.Retry.BatchConcurrency < 1 {
		return errors.New("config: retry.batch_concurrency must be at least 1")
	}
	if !cfg.IsProduction() {
		return nil
	}

	var missing []string
	if cfg.Shop.Domain == "" {
		missing = append(missing, "shop.domain")
	}
	if cfg.Shop.AccessToken == "" {
		missing = append(missing, "shop.access_token")
	}
	if cfg.Shop.WebhookSecret == "" {
		missing = append(missing, "shop.webhook_secret")
	}
	if cfg.Oblio.Email == "" {
		missing = append(missing, "oblio.email")
	}
	if cfg.Oblio.APISecret == "" {
		missing = append(missing, "oblio.api_secret")
	}
	if cfg.Oblio.CIF == "" {
		missing = append(missing, "oblio.cif")
	}
	if cfg.Sameday.Username == "" {
		missing = append(missing, "sameday.username")
	}
	if cfg.Sameday.Password == "" {
		missing = append(missing, "sameday.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required production settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (cfg *Config) IsProduction() bool {
	return cfg.App.Env == "production"
}

// IsDevelopment returns true when running in the development environment
func (cfg *Config) IsDevelopment() bool {
	return cfg.App.Env == "development"
}
