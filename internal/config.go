package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// PaymentConfig carries the orchestration-level settings plus one explicit
// GatewayConfig per provider. Adapters receive their GatewayConfig at
// construction and never reach into process-wide state.
type PaymentConfig struct {
	DefaultGateway  string                   `mapstructure:"default_gateway"`
	Currency        string                   `mapstructure:"currency"`
	SuccessPath     string                   `mapstructure:"success_path"`
	FailedPath      string                   `mapstructure:"failed_path"`
	ProviderTimeout time.Duration            `mapstructure:"provider_timeout"`
	Gateways        map[string]GatewayConfig `mapstructure:"gateways"`
}

type GatewayConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Sandbox       bool   `mapstructure:"sandbox"`
	SecretKey     string `mapstructure:"secret_key"`
	CategoryCode  string `mapstructure:"category_code"`
	BrandID       string `mapstructure:"brand_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// Manual gateway only.
	UploadPath        string   `mapstructure:"upload_path"`
	MaxFileSizeKB     int64    `mapstructure:"max_file_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type AdminConfig struct {
	// Bcrypt hash of the admin API key presented at /admin/login.
	APIKeyHash    string        `mapstructure:"api_key_hash"`
	TokenSecret   string        `mapstructure:"token_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *PaymentConfig) Validate() error {
	if c.DefaultGateway == "" {
		return errors.New("default_gateway is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", c.Currency)
	}
	if _, ok := c.Gateways[c.DefaultGateway]; !ok {
		return fmt.Errorf("default_gateway %q has no gateway configuration", c.DefaultGateway)
	}
	return nil
}

// GatewayFor returns the configuration for a named gateway; missing entries
// come back as a zero config with Enabled=false.
func (c *PaymentConfig) GatewayFor(name string) GatewayConfig {
	return c.Gateways[name]
}
