package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	// EnvConfigPath selects the config file.
	EnvConfigPath = "GRAYNODE_CONFIG"

	// DefaultPath is used when EnvConfigPath is unset.
	DefaultPath = "configs/config.yaml"

	envPrefix = "GRAYNODE_"
)

// minSecretLength matches auth.MinSecretLength.
const minSecretLength = 32

// maxControlPrefixLength leaves room for '/' and at least one byte of the
// device name inside a 31-byte dispatch key.
const maxControlPrefixLength = 29

// Config is the root node configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Topics      TopicsConfig      `yaml:"topics"`
	Session     SessionConfig     `yaml:"session"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	OTA         OTAConfig         `yaml:"ota"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig is the identity the node announces.
type DeviceConfig struct {
	Name       string `yaml:"name"`
	Model      string `yaml:"model"`
	SensorType string `yaml:"sensor_type"`

	// LastUpdated overrides the build date stamp.
	LastUpdated string `yaml:"last_updated"`
}

// DatabaseConfig is the SQLite journal used by the GPIO and OTA journals.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Buffer    MQTTBufferConfig    `yaml:"buffer"`
}

// MQTTBrokerConfig contains broker address details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect backoff bounds in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTBufferConfig contains payload buffer sizes in bytes. Values below the
// session minimums (1024 inbound, 512 outbound) are raised.
type MQTTBufferConfig struct {
	Inbound  int `yaml:"inbound"`
	Outbound int `yaml:"outbound"`
}

// TopicsConfig contains topic prefixes.
type TopicsConfig struct {
	// ControlPrefix is joined to the device name with '/'.
	ControlPrefix string `yaml:"control_prefix"`

	// StatusPrefix is concatenated with the device name.
	StatusPrefix string `yaml:"status_prefix"`
}

// SessionConfig contains dispatch engine sizing.
type SessionConfig struct {
	TableCapacity int `yaml:"table_capacity"`
	ArenaSize     int `yaml:"arena_size"`
	StopTimeout   int `yaml:"stop_timeout"`
}

// GPIOConfig selects the pin driver.
type GPIOConfig struct {
	// Journal records pin requests in the database instead of driving pins.
	Journal bool `yaml:"journal"`
}

// OTAConfig selects the update trigger.
type OTAConfig struct {
	// Journal records update requests in the database; otherwise they are
	// only logged.
	Journal bool `yaml:"journal"`
}

// InfluxDBConfig contains dispatch telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiagnosticsConfig contains the local HTTP diagnostics server settings.
type DiagnosticsConfig struct {
	Enabled  bool                `yaml:"enabled"`
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts DiagnosticsTimeouts `yaml:"timeouts"`
	Auth     DiagnosticsAuth     `yaml:"auth"`
}

// DiagnosticsAuth protects mutating diagnostics routes with bearer tokens.
// An empty secret leaves them open.
type DiagnosticsAuth struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// DiagnosticsTimeouts are HTTP server timeouts in seconds.
type DiagnosticsTimeouts struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PathFromEnv returns the config path from GRAYNODE_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads defaults, then the YAML file at path, then environment
// overrides, and validates the result. An empty path skips the file.
//
// Parameters:
//   - path: YAML file path, or "" for defaults and environment only
//
// Returns:
//   - *Config: Validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/graynode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graynode",
			},
			QoS:       1,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Buffer: MQTTBufferConfig{
				Inbound:  1024,
				Outbound: 512,
			},
		},
		Topics: TopicsConfig{
			ControlPrefix: "control",
			StatusPrefix:  "status/",
		},
		Session: SessionConfig{
			TableCapacity: 8,
			ArenaSize:     1024,
			StopTimeout:   5,
		},
		GPIO: GPIOConfig{Journal: true},
		OTA:  OTAConfig{Journal: true},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8081,
			Timeouts: DiagnosticsTimeouts{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			Auth: DiagnosticsAuth{TokenTTL: 15},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies GRAYNODE_* variables.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DEVICE_NAME":        &cfg.Device.Name,
		"DEVICE_MODEL":       &cfg.Device.Model,
		"DATABASE_PATH":      &cfg.Database.Path,
		"MQTT_HOST":          &cfg.MQTT.Broker.Host,
		"MQTT_CLIENT_ID":     &cfg.MQTT.Broker.ClientID,
		"MQTT_USERNAME":      &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":      &cfg.MQTT.Auth.Password,
		"INFLUXDB_URL":       &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN":     &cfg.InfluxDB.Token,
		"LOG_LEVEL":          &cfg.Logging.Level,
		"DIAGNOSTICS_HOST":   &cfg.Diagnostics.Host,
		"DIAGNOSTICS_SECRET": &cfg.Diagnostics.Auth.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MQTT_PORT":        &cfg.MQTT.Broker.Port,
		"DIAGNOSTICS_PORT": &cfg.Diagnostics.Port,
	}
	var errs []error
	for key, dst := range ints {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			continue
		}
		*dst = n
	}
	return errors.Join(errs...)
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if !validPort(c.MQTT.Broker.Port) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Buffer.Inbound < 0 || c.MQTT.Buffer.Outbound < 0 {
		errs = append(errs, "mqtt.buffer sizes must not be negative")
	}

	if c.Topics.ControlPrefix == "" {
		errs = append(errs, "topics.control_prefix is required")
	}
	if len(c.Topics.ControlPrefix) > maxControlPrefixLength {
		errs = append(errs, fmt.Sprintf("topics.control_prefix must be at most %d bytes", maxControlPrefixLength))
	}
	if strings.ContainsAny(c.Topics.ControlPrefix+c.Topics.StatusPrefix, "+#") {
		errs = append(errs, "topics prefixes must not contain wildcards")
	}

	if n := c.Session.TableCapacity; n <= 0 || n&(n-1) != 0 {
		errs = append(errs, "session.table_capacity must be a positive power of two")
	}
	if c.Session.StopTimeout <= 0 {
		errs = append(errs, "session.stop_timeout must be positive")
	}

	if (c.GPIO.Journal || c.OTA.Journal) && c.Database.Path == "" {
		errs = append(errs, "database.path is required when a journal is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when enabled")
		}
	}

	if c.Diagnostics.Enabled && !validPort(c.Diagnostics.Port) {
		errs = append(errs, "diagnostics.port must be between 1 and 65535")
	}
	if s := c.Diagnostics.Auth.Secret; s != "" && len(s) < minSecretLength {
		errs = append(errs, fmt.Sprintf("diagnostics.auth.secret must be at least %d characters", minSecretLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// BrokerURL returns the broker address in paho form, e.g. tcp://host:1883.
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Broker.Host, m.Broker.Port)
}

// StopTimeoutDuration returns the session stop timeout.
func (s SessionConfig) StopTimeoutDuration() time.Duration {
	return time.Duration(s.StopTimeout) * time.Second
}

// Addr returns the diagnostics listen address.
func (d DiagnosticsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}
