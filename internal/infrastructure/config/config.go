package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when neither --config nor
// CASTBRIDGE_CONFIG is set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for castbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Accessory AccessoryConfig `yaml:"accessory"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccessoryConfig describes the TV and receiver pair exposed as one accessory.
// Durations are in milliseconds.
type AccessoryConfig struct {
	Name       string           `yaml:"name"`
	Samsung    SamsungConfig    `yaml:"samsung"`
	Chromecast ChromecastConfig `yaml:"chromecast"`

	// SendDelay is the pause between keys of a sequence (ms).
	SendDelay int `yaml:"send_delay"`

	// PollInterval is the state poll period and per-poll deadline (ms).
	PollInterval int `yaml:"poll_interval"`
}

// SamsungConfig contains the remote-controlled TV's settings.
type SamsungConfig struct {
	IP      string `yaml:"ip"`
	Port    int    `yaml:"port"`
	Timeout int    `yaml:"timeout"` // ms
}

// ChromecastConfig contains the streaming receiver's settings.
// When IP is empty the receiver is discovered by Name over mDNS.
type ChromecastConfig struct {
	IP    string `yaml:"ip"`
	Port  int    `yaml:"port"`
	Name  string `yaml:"name"`
	AppID string `yaml:"app_id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
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

// DatabaseConfig contains the SQLite audit database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays prunes audit entries older than this many days.
	// 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// APIConfig contains the local HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows no cross-origin callers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains the state stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Path returns the configuration file to load: explicit if set, otherwise
// CASTBRIDGE_CONFIG, otherwise DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("CASTBRIDGE_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CASTBRIDGE_SECTION_KEY
// For example: CASTBRIDGE_SAMSUNG_IP, CASTBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no configuration file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Accessory: AccessoryConfig{
			Name: "TV",
			Samsung: SamsungConfig{
				Port:    55000,
				Timeout: 1000,
			},
			Chromecast: ChromecastConfig{
				Port:  8009,
				AppID: "CC1AD845",
			},
			SendDelay:    400,
			PollInterval: 2000,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "castbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:          "./data/castbridge.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read: 30,
				// Writes cover a full key sequence.
				Write: 60,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CASTBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Accessory
	if v := os.Getenv("CASTBRIDGE_NAME"); v != "" {
		cfg.Accessory.Name = v
	}
	if v := os.Getenv("CASTBRIDGE_SAMSUNG_IP"); v != "" {
		cfg.Accessory.Samsung.IP = v
	}
	if v := os.Getenv("CASTBRIDGE_CHROMECAST_IP"); v != "" {
		cfg.Accessory.Chromecast.IP = v
	}
	if v := os.Getenv("CASTBRIDGE_CHROMECAST_NAME"); v != "" {
		cfg.Accessory.Chromecast.Name = v
	}
	if v, ok := envInt("CASTBRIDGE_SEND_DELAY"); ok {
		cfg.Accessory.SendDelay = v
	}
	if v, ok := envInt("CASTBRIDGE_POLL_INTERVAL"); ok {
		cfg.Accessory.PollInterval = v
	}

	// MQTT
	if v := os.Getenv("CASTBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CASTBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CASTBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CASTBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("CASTBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v, ok := envInt("CASTBRIDGE_DATABASE_RETENTION_DAYS"); ok {
		cfg.Database.RetentionDays = v
	}

	// API
	if v, ok := envInt("CASTBRIDGE_API_PORT"); ok {
		cfg.API.Port = v
	}

	// Logging
	if v := os.Getenv("CASTBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Accessory validation
	if c.Accessory.Name == "" {
		errs = append(errs, "accessory.name is required")
	}
	if c.Accessory.Samsung.IP == "" {
		errs = append(errs, "accessory.samsung.ip is required (set CASTBRIDGE_SAMSUNG_IP)")
	}
	if !validPort(c.Accessory.Samsung.Port) {
		errs = append(errs, "accessory.samsung.port must be between 1 and 65535")
	}
	if c.Accessory.Samsung.Timeout <= 0 {
		errs = append(errs, "accessory.samsung.timeout must be positive")
	}
	if c.Accessory.Chromecast.IP == "" && c.Accessory.Chromecast.Name == "" {
		errs = append(errs, "accessory.chromecast.ip or accessory.chromecast.name is required")
	}
	if !validPort(c.Accessory.Chromecast.Port) {
		errs = append(errs, "accessory.chromecast.port must be between 1 and 65535")
	}
	if c.Accessory.SendDelay < 0 {
		errs = append(errs, "accessory.send_delay must not be negative")
	}
	if c.Accessory.PollInterval <= 0 {
		errs = append(errs, "accessory.poll_interval must be positive")
	}
	// A dial still running at the poll deadline is discarded, so a silent
	// TV would never be seen to turn off.
	if c.Accessory.Samsung.Timeout > 0 && c.Accessory.PollInterval > 0 &&
		c.Accessory.Samsung.Timeout >= c.Accessory.PollInterval {
		errs = append(errs, "accessory.samsung.timeout must be less than accessory.poll_interval")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled {
		if !validPort(c.API.Port) {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.WebSocket.PingInterval <= 0 || c.WebSocket.PongTimeout <= 0 {
			errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be positive")
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, "database.retention_days must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// SendDelayDuration returns accessory.send_delay as a Duration.
func (a AccessoryConfig) SendDelayDuration() time.Duration {
	return time.Duration(a.SendDelay) * time.Millisecond
}

// PollIntervalDuration returns accessory.poll_interval as a Duration.
func (a AccessoryConfig) PollIntervalDuration() time.Duration {
	return time.Duration(a.PollInterval) * time.Millisecond
}

// TimeoutDuration returns samsung.timeout as a Duration.
func (s SamsungConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}
