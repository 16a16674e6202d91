// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Camunda       CamundaConfig       `mapstructure:"camunda"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Handoff       HandoffConfig       `mapstructure:"handoff"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	ReadTimeout    int      `mapstructure:"read_timeout"`    // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"`   // milliseconds
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	TaskType       string `mapstructure:"task_type"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Driver        string              `mapstructure:"driver"` // postgres | sqlite
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LedgerConfig controls the idempotency ledger.
type LedgerConfig struct {
	Backend       string `mapstructure:"backend"`         // sql | redis
	Retention     int    `mapstructure:"retention"`       // milliseconds
	InProgressTTL int    `mapstructure:"in_progress_ttl"` // milliseconds
	WaitTimeout   int    `mapstructure:"wait_timeout"`    // milliseconds
	PollInterval  int    `mapstructure:"poll_interval"`   // milliseconds
	KeyPrefix     string `mapstructure:"key_prefix"`
}

type AuditConfig struct {
	Backend       string `mapstructure:"backend"` // sql | elasticsearch
	Index         string `mapstructure:"index"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
	AlertTopicARN string `mapstructure:"alert_topic_arn"`
}

type GatewayConfig struct {
	CallTimeout int `mapstructure:"call_timeout"` // milliseconds
	MaxRetries  int `mapstructure:"max_retries"`
	BaseDelay   int `mapstructure:"base_delay"` // milliseconds
	MaxDelay    int `mapstructure:"max_delay"`  // milliseconds
}

// AuthConfig selects how inbound requests are authenticated.
type AuthConfig struct {
	Mode    string            `mapstructure:"mode"` // api_key | keycloak
	APIKeys map[string]string `mapstructure:"api_keys"`

	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for the ERP and notification services.
type IntegrationConfig struct {
	Zoho struct {
		BaseURL   string `mapstructure:"base_url"`
		APIKey    string `mapstructure:"api_key"`
		AuthToken string `mapstructure:"oauth_token"`
	} `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type PolicyConfig struct {
	Path string `mapstructure:"path"`
}

// HandoffConfig is the business-hours schedule used for human handoff.
type HandoffConfig struct {
	Timezone      string                `mapstructure:"timezone"`
	Hours         map[string]HoursRange `mapstructure:"hours"` // weekday name -> range
	Holidays      []string              `mapstructure:"holidays"`
	DefaultTarget string                `mapstructure:"default_target"`
	EmergencyLine string                `mapstructure:"emergency_line"`
	Targets       map[string]string     `mapstructure:"targets"` // brain -> target
}

type HoursRange struct {
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
