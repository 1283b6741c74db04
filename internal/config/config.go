package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultPrometheusURL   = "http://localhost:9090"
	DefaultCollectInterval = 30 * time.Second
	DefaultCertInterval    = 1 * time.Hour
	DefaultCertWarnDays    = 30
	DefaultTopologyRefresh = 30 * time.Second
)

// Config holds the configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket endpoint listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// PrometheusURL is the base URL of the Prometheus server the collector
	// and topology queries run against (default http://localhost:9090).
	PrometheusURL string `yaml:"prometheus_url"`

	// CollectInterval is how often the metrics collector polls (default 30s).
	CollectInterval time.Duration `yaml:"collect_interval"`

	// Auth configures API client authentication.
	Auth AuthConfig `yaml:"auth"`

	// Alerts holds threshold rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// Certs configures mTLS certificate monitoring.
	Certs CertsConfig `yaml:"certs"`

	// Topology configures the topology refresh loop.
	Topology TopologyConfig `yaml:"topology"`
}

// AuthConfig controls client authentication on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header the key is read from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression over overview snapshot fields:
	// "error_rate > 5", "p99_latency > 1000", "request_rate < 1".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | pagerduty | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// CertsConfig controls mTLS certificate monitoring.
type CertsConfig struct {
	// Endpoints are the https:// endpoints whose leaf certificates are
	// inspected. Non-https entries are skipped.
	Endpoints []string `yaml:"endpoints"`

	// CheckInterval is how often certificates are re-checked (default 1h).
	CheckInterval time.Duration `yaml:"check_interval"`

	// WarnDays is the days-until-expiry threshold below which a
	// cert_expiry_warning is broadcast (default 30).
	WarnDays int `yaml:"warn_days"`

	// InsecureSkipVerify disables chain verification when dialing. The leaf
	// certificate is still inspected.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// TopologyConfig controls the topology refresh loop.
type TopologyConfig struct {
	// RefreshInterval is how often the mesh graph is rebuilt (default 30s).
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			PrometheusURL:   DefaultPrometheusURL,
			CollectInterval: DefaultCollectInterval,
			Certs: CertsConfig{
				CheckInterval: DefaultCertInterval,
				WarnDays:      DefaultCertWarnDays,
			},
			Topology: TopologyConfig{
				RefreshInterval: DefaultTopologyRefresh,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.PrometheusURL == "" {
		return fmt.Errorf("server.prometheus_url must not be empty")
	}
	if s.CollectInterval < time.Second {
		return fmt.Errorf("server.collect_interval %v is below the 1s minimum", s.CollectInterval)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	for _, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules: rule without a name")
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%s].severity %q unknown: want critical|warning|info", r.Name, r.Severity)
		}
	}
	if s.Certs.WarnDays < 0 {
		return fmt.Errorf("server.certs.warn_days must not be negative")
	}
	if s.Certs.CheckInterval < time.Second {
		return fmt.Errorf("server.certs.check_interval %v is below the 1s minimum", s.Certs.CheckInterval)
	}
	if s.Topology.RefreshInterval < time.Second {
		return fmt.Errorf("server.topology.refresh_interval %v is below the 1s minimum", s.Topology.RefreshInterval)
	}
	return nil
}
