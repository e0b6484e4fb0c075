// Package config provides YAML-based configuration loading for Hideout.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Hideout configuration, loaded from hideout.yaml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Auth       AuthConfig       `yaml:"auth"`
	Notify     NotifyConfig     `yaml:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Seed       SeedConfig       `yaml:"seed"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	WSPath         string   `yaml:"ws_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the gorm dialect and its connection settings.
// Driver "sqlite" uses Path; driver "mysql" uses Host/Port/User/Name and
// reads the password from PasswordEnv.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	PasswordEnv string `yaml:"password_env"`
	Name        string `yaml:"name"`
}

// GenerationConfig configures the external code generation provider.
type GenerationConfig struct {
	Provider   string  `yaml:"provider"`
	Model      string  `yaml:"model"`
	BaseURL    string  `yaml:"base_url"`
	APIKeyEnv  string  `yaml:"api_key_env"`
	TimeoutSec int     `yaml:"timeout_sec"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

// BridgeConfig tunes the plugin WebSocket bridge.
type BridgeConfig struct {
	HeartbeatIntervalSec int   `yaml:"heartbeat_interval_sec"`
	CloseSuperseded      *bool `yaml:"close_superseded"`
	RejectEmptyPrompt    bool  `yaml:"reject_empty_prompt"`
	SendBuffer           int   `yaml:"send_buffer"`
	NotifyTimeoutSec     int   `yaml:"notify_timeout_sec"`
}

// AuthConfig controls how dashboard requests are attributed to a user.
// When JWTSecretEnv names a non-empty variable, bearer tokens are required;
// otherwise the UserHeader set by the fronting auth gateway is trusted.
type AuthConfig struct {
	UserHeader   string `yaml:"user_header"`
	JWTSecretEnv string `yaml:"jwt_secret_env"`
}

// NotifyConfig lists the optional dashboard notification sinks.
type NotifyConfig struct {
	// DashboardEvents serves GET /api/events. Defaults to true.
	DashboardEvents   *bool  `yaml:"dashboard_events"`
	SlackWebhookEnv   string `yaml:"slack_webhook_env"`
	DiscordWebhookEnv string `yaml:"discord_webhook_env"`
	NATSURL           string `yaml:"nats_url"`
	NATSSubject       string `yaml:"nats_subject"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SeedConfig holds fixture projects written by `hideout db init`.
type SeedConfig struct {
	Projects []ProjectSeed `yaml:"projects"`
}

// ProjectSeed describes one fixture project.
type ProjectSeed struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"user_id"`
	Name        string `yaml:"name"`
	ProjectType string `yaml:"project_type"`
	Description string `yaml:"description"`
}

var (
	validDrivers      = map[string]bool{"sqlite": true, "mysql": true}
	validProviders    = map[string]bool{"openai": true, "gemini": true, "demo": true}
	validProjectTypes = map[string]bool{"obby": true, "racing": true, "tycoon": true, "custom": true}
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = "/api/plugin/ws"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "hideout.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "hideout"
		}
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = "demo"
	}
	if c.Generation.TimeoutSec == 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Generation.RatePerSec == 0 {
		c.Generation.RatePerSec = 1
	}
	if c.Generation.Burst == 0 {
		c.Generation.Burst = 10
	}
	if c.Generation.APIKeyEnv == "" {
		switch c.Generation.Provider {
		case "openai":
			c.Generation.APIKeyEnv = "OPENAI_API_KEY"
		case "gemini":
			c.Generation.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	if c.Bridge.HeartbeatIntervalSec == 0 {
		c.Bridge.HeartbeatIntervalSec = 30
	}
	if c.Bridge.CloseSuperseded == nil {
		v := true
		c.Bridge.CloseSuperseded = &v
	}
	if c.Bridge.SendBuffer == 0 {
		c.Bridge.SendBuffer = 16
	}
	if c.Bridge.NotifyTimeoutSec == 0 {
		c.Bridge.NotifyTimeoutSec = 10
	}

	if c.Auth.UserHeader == "" {
		c.Auth.UserHeader = "X-User-ID"
	}
	if c.Notify.DashboardEvents == nil {
		v := true
		c.Notify.DashboardEvents = &v
	}
	if c.Notify.NATSSubject == "" {
		c.Notify.NATSSubject = "hideout.commands"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	for i := range c.Seed.Projects {
		if c.Seed.Projects[i].ProjectType == "" {
			c.Seed.Projects[i].ProjectType = "custom"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, "server.ws_path must start with /")
	}
	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if !validProviders[c.Generation.Provider] {
		errs = append(errs, fmt.Sprintf("generation.provider %q must be openai, gemini or demo", c.Generation.Provider))
	}
	if c.Generation.TimeoutSec < 0 {
		errs = append(errs, "generation.timeout_sec must not be negative")
	}
	if c.Generation.RatePerSec < 0 {
		errs = append(errs, "generation.rate_per_sec must not be negative")
	}
	if c.Bridge.HeartbeatIntervalSec < 1 {
		errs = append(errs, "bridge.heartbeat_interval_sec must be at least 1")
	}
	if c.Bridge.SendBuffer < 1 {
		errs = append(errs, "bridge.send_buffer must be at least 1")
	}
	for i, p := range c.Seed.Projects {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.projects[%d].id is required", i))
		}
		if p.UserID == "" {
			errs = append(errs, fmt.Sprintf("seed.projects[%d].user_id is required", i))
		}
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.projects[%d].name is required", i))
		}
		if !validProjectTypes[p.ProjectType] {
			errs = append(errs, fmt.Sprintf("seed.projects[%d].project_type %q is not one of obby, racing, tycoon, custom", i, p.ProjectType))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GenerationTimeout returns the upper bound on a single generation call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSec) * time.Second
}

// HeartbeatInterval returns the liveness sweep interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Bridge.HeartbeatIntervalSec) * time.Second
}

// NotifyTimeout returns the per-event budget for dashboard notifications.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Bridge.NotifyTimeoutSec) * time.Second
}

// Secret returns the value of the named environment variable, or "" when
// name is empty.
func Secret(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
