// Package config loads engine configuration from a YAML file with
// environment variable overrides. Secrets can live in a local .env during
// development and in real environment variables in deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Site      SiteConfig      `yaml:"site"`
	Store     StoreConfig     `yaml:"store"`
	Transport TransportConfig `yaml:"transport"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Compile   CompileConfig   `yaml:"compile"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// AuthConfig holds the shared secret that protects the trigger endpoints
// and the secret keying per-recipient link tokens.
type AuthConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
	// TokenSecret keys unsubscribe and preferences link tokens. Defaults
	// to WebhookSecret. Changing it invalidates links in already-sent mail.
	TokenSecret string `yaml:"token_secret"`
}

// SiteConfig holds the public site URLs used in rendered documents.
type SiteConfig struct {
	// BaseURL is the public site root; unsubscribe and preferences links
	// are built under it.
	BaseURL string `yaml:"base_url"`
	// AssetBaseURL serves static images referenced by compiled documents.
	// Defaults to BaseURL.
	AssetBaseURL string `yaml:"asset_base_url"`
}

// StoreConfig selects and configures the content store backend.
type StoreConfig struct {
	// Backend is "directus" or "postgres".
	Backend       string `yaml:"backend"`
	DirectusURL   string `yaml:"directus_url"`
	DirectusToken string `yaml:"directus_token"`
	DatabaseURL   string `yaml:"database_url"`
}

// TransportConfig selects and configures the delivery provider.
type TransportConfig struct {
	// Provider is "sendgrid" or "ses".
	Provider string         `yaml:"provider"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	SES      SESConfig      `yaml:"ses"`
}

// SendGridConfig holds SendGrid API settings.
type SendGridConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	TrackOpens  bool   `yaml:"track_opens"`
	TrackClicks bool   `yaml:"track_clicks"`
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// DispatchConfig holds batch pacing per priority class.
type DispatchConfig struct {
	NormalBatchSize    int `yaml:"normal_batch_size"`
	NormalBatchDelayMS int `yaml:"normal_batch_delay_ms"`
	UrgentBatchSize    int `yaml:"urgent_batch_size"`
	UrgentBatchDelayMS int `yaml:"urgent_batch_delay_ms"`
}

func (c DispatchConfig) NormalDelay() time.Duration {
	return time.Duration(c.NormalBatchDelayMS) * time.Millisecond
}

func (c DispatchConfig) UrgentDelay() time.Duration {
	return time.Duration(c.UrgentBatchDelayMS) * time.Millisecond
}

// CompileConfig holds compilation settings.
type CompileConfig struct {
	// LockTTLSeconds bounds how long a crashed compile can hold its lock.
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

func (c CompileConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RedisConfig holds the optional Redis connection used for cross-host
// compile locks. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file. An empty path yields a
// config with defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		// sends pace out over many batches; the response waits for them
		cfg.Server.WriteTimeoutSeconds = 600
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "directus"
	}
	if cfg.Transport.Provider == "" {
		cfg.Transport.Provider = "sendgrid"
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-east-1"
	}
	if cfg.Dispatch.NormalBatchSize == 0 {
		cfg.Dispatch.NormalBatchSize = 100
	}
	if cfg.Dispatch.NormalBatchDelayMS == 0 {
		cfg.Dispatch.NormalBatchDelayMS = 1000
	}
	if cfg.Dispatch.UrgentBatchSize == 0 {
		cfg.Dispatch.UrgentBatchSize = 50
	}
	if cfg.Dispatch.UrgentBatchDelayMS == 0 {
		cfg.Dispatch.UrgentBatchDelayMS = 500
	}
	if cfg.Compile.LockTTLSeconds == 0 {
		cfg.Compile.LockTTLSeconds = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. A
// .env file is read first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		cfg.Auth.WebhookSecret = secret
	}
	if secret := os.Getenv("TOKEN_SECRET"); secret != "" {
		cfg.Auth.TokenSecret = secret
	}
	if u := os.Getenv("SITE_BASE_URL"); u != "" {
		cfg.Site.BaseURL = u
	}
	if u := os.Getenv("ASSET_BASE_URL"); u != "" {
		cfg.Site.AssetBaseURL = u
	}
	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}
	if u := os.Getenv("DIRECTUS_URL"); u != "" {
		cfg.Store.DirectusURL = u
	}
	if tok := os.Getenv("DIRECTUS_TOKEN"); tok != "" {
		cfg.Store.DirectusToken = tok
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Store.DatabaseURL = dsn
	}
	if provider := os.Getenv("TRANSPORT_PROVIDER"); provider != "" {
		cfg.Transport.Provider = provider
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.Transport.SendGrid.APIKey = key
	}
	if key := os.Getenv("AWS_SES_ACCESS_KEY"); key != "" {
		cfg.Transport.SES.AccessKey = key
	}
	if key := os.Getenv("AWS_SES_SECRET_KEY"); key != "" {
		cfg.Transport.SES.SecretKey = key
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Transport.SES.Region = region
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if cfg.Site.AssetBaseURL == "" {
		cfg.Site.AssetBaseURL = cfg.Site.BaseURL
	}
	if cfg.Auth.TokenSecret == "" {
		cfg.Auth.TokenSecret = cfg.Auth.WebhookSecret
	}

	return cfg, nil
}

// Validate checks that the configuration can actually run the engine.
func (c *Config) Validate() error {
	if c.Auth.WebhookSecret == "" {
		return fmt.Errorf("auth.webhook_secret is required")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}

	switch c.Store.Backend {
	case "directus":
		if c.Store.DirectusURL == "" {
			return fmt.Errorf("store.directus_url is required for the directus backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be directus or postgres, got %q", c.Store.Backend)
	}

	switch c.Transport.Provider {
	case "sendgrid":
		if c.Transport.SendGrid.APIKey == "" {
			return fmt.Errorf("transport.sendgrid.api_key is required for the sendgrid provider")
		}
	case "ses":
		if c.Transport.SES.AccessKey == "" || c.Transport.SES.SecretKey == "" {
			return fmt.Errorf("transport.ses credentials are required for the ses provider")
		}
	default:
		return fmt.Errorf("transport.provider must be sendgrid or ses, got %q", c.Transport.Provider)
	}

	return nil
}
