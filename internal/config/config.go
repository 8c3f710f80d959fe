package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override file values,
// e.g. MAGD_MAG_NAME.
const EnvPrefix = "MAGD"

// Config holds all application configuration values.
type Config struct {
	// Devices
	InputDir  string
	AccelName string
	MagName   string
	SinkName  string

	// Acquisition
	PollTimeoutMS    int // -1 waits forever
	OrientationScale int // angle units per degree in injected frames

	// Logging
	LogLevel string

	// MQTT (telemetry is disabled when MQTTBroker is empty)
	MQTTBroker          string
	MQTTClientIDDaemon  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicRaw   string
	TopicFrame string

	PublishEvery int // publish every Nth frame

	// Web Server
	WebServerPort int
}

// defaults for optional keys
var defaults = map[string]any{
	"INPUT_DIR":              "/dev/input",
	"SINK_NAME":              "eCompass",
	"POLL_TIMEOUT_MS":        1000,
	"ORIENTATION_SCALE":      16,
	"LOG_LEVEL":              "info",
	"MQTT_BROKER":            "",
	"MQTT_CLIENT_ID_DAEMON":  "magd-daemon",
	"MQTT_CLIENT_ID_CONSOLE": "magd-console",
	"MQTT_CLIENT_ID_WEB":     "magd-web",
	"TOPIC_RAW":              "magd/raw",
	"TOPIC_FRAME":            "magd/frame",
	"PUBLISH_EVERY":          10,
	"WEB_SERVER_PORT":        8080,
	"ACCEL_NAME":             "",
	"MAG_NAME":               "",
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: set once by InitGlobal, read through Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file and returns a Config struct.
// Blank lines and lines starting with # are ignored. MAGD_<KEY>
// environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// reject typos instead of silently falling back to defaults
	keys := v.AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	cfg := &Config{
		InputDir:            v.GetString("INPUT_DIR"),
		AccelName:           v.GetString("ACCEL_NAME"),
		MagName:             v.GetString("MAG_NAME"),
		SinkName:            v.GetString("SINK_NAME"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		MQTTBroker:          v.GetString("MQTT_BROKER"),
		MQTTClientIDDaemon:  v.GetString("MQTT_CLIENT_ID_DAEMON"),
		MQTTClientIDConsole: v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:     v.GetString("MQTT_CLIENT_ID_WEB"),
		TopicRaw:            v.GetString("TOPIC_RAW"),
		TopicFrame:          v.GetString("TOPIC_FRAME"),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"POLL_TIMEOUT_MS", &cfg.PollTimeoutMS},
		{"ORIENTATION_SCALE", &cfg.OrientationScale},
		{"PUBLISH_EVERY", &cfg.PublishEvery},
		{"WEB_SERVER_PORT", &cfg.WebServerPort},
	}
	for _, f := range ints {
		raw := v.Get(f.key)
		n, err := cast.ToIntE(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.key, fmt.Sprint(raw), err)
		}
		*f.dst = n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.AccelName == "" {
		return fmt.Errorf("ACCEL_NAME is required")
	}
	if c.MagName == "" {
		return fmt.Errorf("MAG_NAME is required")
	}
	if c.SinkName == "" {
		return fmt.Errorf("SINK_NAME must not be empty")
	}
	if c.PollTimeoutMS < -1 {
		return fmt.Errorf("POLL_TIMEOUT_MS must be -1 (wait forever) or >= 0, got %d", c.PollTimeoutMS)
	}
	if c.OrientationScale <= 0 {
		return fmt.Errorf("ORIENTATION_SCALE must be > 0, got %d", c.OrientationScale)
	}
	if c.PublishEvery <= 0 {
		return fmt.Errorf("PUBLISH_EVERY must be > 0, got %d", c.PublishEvery)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
