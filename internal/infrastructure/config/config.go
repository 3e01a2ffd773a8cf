package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for EV Market Web.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Backend   BackendConfig   `yaml:"backend"`
	Storage   StorageConfig   `yaml:"storage"`
	Web       WebConfig       `yaml:"web"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Roles     RolesConfig     `yaml:"roles"`
	Routes    RoutesConfig    `yaml:"routes"`
	Session   SessionConfig   `yaml:"session"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AppConfig contains installation-level settings.
type AppConfig struct {
	// DeviceID identifies this installation in diagnostic events.
	DeviceID string `yaml:"device_id"`

	// EnvFile is an optional dotenv file loaded before environment overrides.
	EnvFile string `yaml:"env_file"`
}

// BackendConfig contains the marketplace REST backend settings.
type BackendConfig struct {
	// BaseURL is the API root, e.g. "https://api.evmarket.example/api".
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// StorageConfig contains the persistent client storage settings.
type StorageConfig struct {
	// Driver selects the credential store backend: "sqlite" or "memory".
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// WebConfig contains the local HTTP server settings.
type WebConfig struct {
	Host           string               `yaml:"host"`
	Port           int                  `yaml:"port"`
	Timeouts       WebTimeoutConfig     `yaml:"timeouts"`
	LoginRateLimit LoginRateLimitConfig `yaml:"login_rate_limit"`
}

// WebTimeoutConfig contains HTTP timeout settings in seconds.
type WebTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoginRateLimitConfig limits login attempts per client IP.
type LoginRateLimitConfig struct {
	Enabled  bool `yaml:"enabled"`
	Requests int  `yaml:"requests"`
	// Window is the rate limit window in seconds.
	Window int `yaml:"window"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// RolesConfig contains the values the backend uses to signal roles.
type RolesConfig struct {
	AdminRoleID string   `yaml:"admin_role_id"`
	StaffRoleID string   `yaml:"staff_role_id"`
	AdminEmails []string `yaml:"admin_emails"`
}

// RoutesConfig is the route restriction table enforced by the access gate.
type RoutesConfig struct {
	Home                    string   `yaml:"home"`
	Login                   string   `yaml:"login"`
	Unauthorized            string   `yaml:"unauthorized"`
	AdminPrefix             string   `yaml:"admin_prefix"`
	AdminHome               string   `yaml:"admin_home"`
	StaffPrefix             string   `yaml:"staff_prefix"`
	UserOnly                []string `yaml:"user_only"`
	RequireLoginForUserOnly bool     `yaml:"require_login_for_user_only"`
}

// SessionConfig contains session lifecycle settings.
type SessionConfig struct {
	RefreshEnabled bool `yaml:"refresh_enabled"`
	// RefreshLeeway is how many seconds before expiry the access token is refreshed.
	RefreshLeeway int `yaml:"refresh_leeway"`
}

// MQTTConfig contains MQTT broker connection settings for diagnostic events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Dotenv file (app.env_file), never overriding variables already set
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: EVMARKET_SECTION_KEY
// For example: EVMARKET_API_BASE_URL, EVMARKET_STORAGE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(cfg.App.EnvFile); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads a dotenv file into the process environment.
// A missing file is not an error; a malformed one is.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			DeviceID: "evmarket-web",
			EnvFile:  ".env",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 15,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        "./data/evmarket.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 5173,
			Timeouts: WebTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			LoginRateLimit: LoginRateLimitConfig{
				Enabled:  true,
				Requests: 10,
				Window:   60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Roles: RolesConfig{
			AdminRoleID: "1",
			StaffRoleID: "2",
			AdminEmails: []string{"admin@evmarket.com"},
		},
		Routes: RoutesConfig{
			Home:         "/",
			Login:        "/login",
			Unauthorized: "/unauthorized",
			AdminPrefix:  "/admin",
			AdminHome:    "/admin",
			StaffPrefix:  "/staff",
			UserOnly: []string{
				"/profile",
				"/create-post",
				"/cart",
				"/vehicles",
				"/batteries",
				"/membership",
				"/favorites",
				"/history",
				"/waiting-approval",
				"/payment",
			},
			RequireLoginForUserOnly: true,
		},
		Session: SessionConfig{
			RefreshEnabled: true,
			RefreshLeeway:  60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "evmarket-web",
			},
			QoS:         1,
			TopicPrefix: "evmarket",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EVMARKET_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("EVMARKET_API_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}

	// Storage
	if v := os.Getenv("EVMARKET_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("EVMARKET_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	// Web
	if v := os.Getenv("EVMARKET_WEB_HOST"); v != "" {
		cfg.Web.Host = v
	}
	if v := os.Getenv("EVMARKET_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}

	// Roles
	if v := os.Getenv("EVMARKET_ADMIN_EMAILS"); v != "" {
		cfg.Roles.AdminEmails = splitList(v)
	}

	// MQTT
	if v := os.Getenv("EVMARKET_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EVMARKET_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EVMARKET_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("EVMARKET_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("EVMARKET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// splitList splits a comma-separated environment value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors.
// The route table's redirect consistency is checked separately by the gate package.
func (c *Config) Validate() error {
	var errs []string

	// Backend validation
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required (set EVMARKET_API_BASE_URL)")
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "backend.base_url must be an absolute URL")
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, "backend.timeout must not be negative")
	}

	// Storage validation
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite driver")
		}
	case "memory":
	default:
		errs = append(errs, "storage.driver must be \"sqlite\" or \"memory\"")
	}

	// Web validation
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, "web.port must be between 1 and 65535")
	}
	if c.Web.LoginRateLimit.Enabled && (c.Web.LoginRateLimit.Requests < 1 || c.Web.LoginRateLimit.Window < 1) {
		errs = append(errs, "web.login_rate_limit requests and window must be positive when enabled")
	}

	// Roles validation
	if c.Roles.AdminRoleID != "" && c.Roles.AdminRoleID == c.Roles.StaffRoleID {
		errs = append(errs, "roles.admin_role_id and roles.staff_role_id must differ")
	}

	// Routes validation (shape only)
	for name, p := range map[string]string{
		"routes.home":         c.Routes.Home,
		"routes.login":        c.Routes.Login,
		"routes.unauthorized": c.Routes.Unauthorized,
		"routes.admin_prefix": c.Routes.AdminPrefix,
		"routes.admin_home":   c.Routes.AdminHome,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, name+" must be an absolute path")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the web read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the web write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the web idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Idle) * time.Second
}

// GetBackendTimeout returns the backend request timeout as a Duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

// GetRefreshLeeway returns how long before expiry tokens are refreshed.
func (c *Config) GetRefreshLeeway() time.Duration {
	return time.Duration(c.Session.RefreshLeeway) * time.Second
}
