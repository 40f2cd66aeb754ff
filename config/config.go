package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`

	Role         string `yaml:"role"` // admin, customer or kitchen
	ClientID     string `yaml:"client_id"`
	UserID       string `yaml:"user_id"`
	DatabasePath string `yaml:"database_path"`

	Realtime      RealtimeConfig      `yaml:"realtime"`
	Orders        OrdersConfig        `yaml:"orders"`
	Offline       OfflineConfig       `yaml:"offline"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Web           WebConfig           `yaml:"web"`
}

// RealtimeConfig defines the realtime transport.
type RealtimeConfig struct {
	Backend string      `yaml:"backend"` // "websocket", "mqtt" or "kafka"
	URL     string      `yaml:"url"`     // websocket endpoint
	MQTT    MQTTConfig  `yaml:"mqtt"`
	Kafka   KafkaConfig `yaml:"kafka"`

	BaseDelay            time.Duration `yaml:"base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 = role default
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// OrdersConfig defines the order submission HTTP API.
type OrdersConfig struct {
	APIBaseURL string        `yaml:"api_base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// OfflineConfig defines the durable submission queue behavior.
type OfflineConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	ClaimTTL     time.Duration `yaml:"claim_ttl"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// NotificationsConfig defines notification bridge settings.
type NotificationsConfig struct {
	MaxRecords   int  `yaml:"max_records"`
	SoundEnabled bool `yaml:"sound_enabled"`
}

// WebConfig defines the local UI bridge server.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// Defaults returns a Config with sane defaults for local development.
func Defaults() *Config {
	return &Config{
		Role:         "customer",
		DatabasePath: "orderlink.db",
		Realtime: RealtimeConfig{
			Backend:           "websocket",
			URL:               "ws://localhost:9090/realtime",
			BaseDelay:         time.Second,
			HeartbeatInterval: 30 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
		Orders: OrdersConfig{
			APIBaseURL: "http://localhost:9090/api",
			Timeout:    10 * time.Second,
		},
		Offline: OfflineConfig{
			MaxRetries:   3,
			ClaimTTL:     time.Minute,
			SyncInterval: 15 * time.Second,
		},
		Notifications: NotificationsConfig{
			MaxRecords:   100,
			SoundEnabled: true,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8091,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are
// used. ORDERLINK_REALTIME_URL and ORDERLINK_API_URL override the endpoints
// regardless of the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("ORDERLINK_REALTIME_URL"); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv("ORDERLINK_API_URL"); v != "" {
		cfg.Orders.APIBaseURL = v
	}
	cfg.path = path
	return cfg, nil
}

// Path returns the file this config was loaded from, empty for a config
// built from Defaults.
func (c *Config) Path() string { return c.path }

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NodeID returns the configured client ID, or derives one from role and
// hostname so each device gets a stable identity.
func (c *Config) NodeID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "local"
	}
	return c.Role + "." + hostname
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
