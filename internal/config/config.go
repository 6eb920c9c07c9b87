package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	HomeKit         HomeKitConfig     `yaml:"homekit"`
	Link            LinkConfig        `yaml:"link"`
	Controller      ControllerConfig  `yaml:"controller"`
	Catalog         CatalogConfig     `yaml:"catalog"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
	WLEDs           []WLEDConfig      `yaml:"wleds"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"use_json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HomeKitConfig contains HomeKit bridge settings
type HomeKitConfig struct {
	Name         string `yaml:"name"`
	Pin          string `yaml:"pin"`
	Addr         string `yaml:"addr"`
	StoragePath  string `yaml:"storage_path"`
	Manufacturer string `yaml:"manufacturer"`
}

// LinkConfig contains device connection settings
type LinkConfig struct {
	ReconnectDelay   Duration `yaml:"reconnect_delay"`   // Fixed delay before reopening a closed connection (default: 300ms)
	HandshakeTimeout Duration `yaml:"handshake_timeout"` // Websocket handshake timeout (default: 5s)
	WriteTimeout     Duration `yaml:"write_timeout"`     // Per-command write deadline (default: 2s)
}

// ControllerConfig contains accessory controller settings
type ControllerConfig struct {
	HueDebounce  Duration `yaml:"hue_debounce"`  // Delay coalescing hue and saturation writes (default: 100ms)
	SegmentCount int      `yaml:"segment_count"` // Segments painted by a colour command (default: 10)
}

// CatalogConfig contains preset/effect catalog settings
type CatalogConfig struct {
	Timeout   Duration `yaml:"timeout"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	CacheSize int      `yaml:"cache_size"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 1)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address
func (c *HealthcheckConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains state mirror settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         byte   `yaml:"qos"`
	Retain      *bool  `yaml:"retain"` // default: true
}

// GetRetain returns the retain flag with default
func (c *MQTTConfig) GetRetain() bool {
	return c.Retain == nil || *c.Retain
}

// WLEDConfig describes one accessory and the device hosts behind it
type WLEDConfig struct {
	Name               string `yaml:"name"`
	Host               Hosts  `yaml:"host"`
	Presets            []int  `yaml:"presets"`
	InitialPreset      int    `yaml:"initial_preset"`
	DefaultEffectSpeed int    `yaml:"default_effect_speed"`
	ShowEffectControl  bool   `yaml:"show_effect_control"`
	Log                bool   `yaml:"log"` // Log commands at info level
}

// Hosts accepts either a single host or a list of hosts
type Hosts []string

// UnmarshalYAML implements yaml.Unmarshaler for Hosts
func (h *Hosts) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*h = nil
			return nil
		}
		*h = Hosts{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*h = Hosts(list)
		return nil
	default:
		return fmt.Errorf("line %d: host must be a string or a list of strings", value.Line)
	}
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ErrNoDevices is returned when the configuration lists no WLED devices.
var ErrNoDevices = errors.New("no wleds configured")

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses configuration data and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{
		Log: LogConfig{Colors: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if len(cfg.WLEDs) == 0 {
		return nil, ErrNoDevices
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./wledkit.sqlite"
	}

	// HomeKit defaults
	if cfg.HomeKit.Name == "" {
		cfg.HomeKit.Name = "WLED Bridge"
	}
	if cfg.HomeKit.Pin == "" {
		cfg.HomeKit.Pin = "00102003"
	}
	if cfg.HomeKit.StoragePath == "" {
		cfg.HomeKit.StoragePath = "./homekit"
	}
	if cfg.HomeKit.Manufacturer == "" {
		cfg.HomeKit.Manufacturer = "WLED"
	}

	// Link defaults
	if cfg.Link.ReconnectDelay == 0 {
		cfg.Link.ReconnectDelay = Duration(300 * time.Millisecond)
	}
	if cfg.Link.HandshakeTimeout == 0 {
		cfg.Link.HandshakeTimeout = Duration(5 * time.Second)
	}
	if cfg.Link.WriteTimeout == 0 {
		cfg.Link.WriteTimeout = Duration(2 * time.Second)
	}

	// Controller defaults
	if cfg.Controller.HueDebounce == 0 {
		cfg.Controller.HueDebounce = Duration(100 * time.Millisecond)
	}
	if cfg.Controller.SegmentCount <= 0 {
		cfg.Controller.SegmentCount = 10
	}

	// Catalog defaults
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = Duration(10 * time.Second)
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = Duration(10 * time.Minute)
	}
	if cfg.Catalog.CacheSize <= 0 {
		cfg.Catalog.CacheSize = 32
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// MQTT defaults
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "wledkit"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "wledkit"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	// Per-device defaults
	for i := range cfg.WLEDs {
		w := &cfg.WLEDs[i]
		if w.Name == "" {
			w.Name = "WLED"
		}
		if w.DefaultEffectSpeed <= 0 {
			w.DefaultEffectSpeed = 15
		}
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
