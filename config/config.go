// Package config loads and validates the nasmon configuration from a
// YAML file with environment overrides.
//
// Environment variables use the prefix "NASMON_" and map to keys by
// trimming the prefix, lowercasing, and replacing "__" with "."
// (double underscore denotes nesting). Example:
//
//	NASMON_MQTT__PORT=1884
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	kfn "github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/naspanel/nasmon/probe"
)

const envPrefix = "NASMON_"

// Config is the full nasmon configuration
type Config struct {
	Server           ServerConfig      `yaml:"server"`
	MQTT             MQTTConfig        `yaml:"mqtt"`
	Collection       CollectionConfig  `yaml:"collection"`
	Metrics          MetricsConfig     `yaml:"metrics"`
	CustomCollectors []CustomCollector `yaml:"custom_collectors" validate:"dive"`
}

// ServerConfig identifies the machine in the published payload
type ServerConfig struct {
	// Hostname is a literal name or "auto" for the OS hostname
	Hostname string `yaml:"hostname" validate:"required"`

	// IP is a literal address or "auto" for the first non-loopback IPv4
	IP string `yaml:"ip" validate:"required"`
}

// MQTTConfig selects and tunes the transport
type MQTTConfig struct {
	// Type is "builtin" to run the embedded broker or "external" to
	// publish to an existing one
	Type  string `yaml:"type" validate:"oneof=builtin external"`
	Host  string `yaml:"host" validate:"required"`
	Port  int    `yaml:"port" validate:"min=1,max=65535"`
	Topic string `yaml:"topic" validate:"required"`
	QoS   int    `yaml:"qos" validate:"min=0,max=1"`

	// Credentials. In builtin mode they protect the embedded broker; in
	// external mode they authenticate against the remote one.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// External mode only
	ClientID  string `yaml:"client_id"`
	KeepAlive int    `yaml:"keep_alive" validate:"min=0"`
}

// CollectionConfig tunes the sampling cadence
type CollectionConfig struct {
	// Interval between collection ticks, in seconds
	Interval int `yaml:"interval" validate:"min=1"`
}

// MetricsConfig exposes broker metrics when a listen address is set
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// CustomCollector declares one user-defined probe
type CustomCollector struct {
	Name      string `yaml:"name" validate:"required"`
	Type      string `yaml:"type" validate:"oneof=file command env"`
	Path      string `yaml:"path"`
	Command   string `yaml:"command"`
	Variable  string `yaml:"variable"`
	Transform string `yaml:"transform"`
	Unit      string `yaml:"unit"`
	Default   string `yaml:"default"`
}

// Spec converts the declaration for the probe layer
func (c CustomCollector) Spec() probe.Spec {
	return probe.Spec{
		Name:      c.Name,
		Type:      c.Type,
		Path:      c.Path,
		Command:   c.Command,
		Variable:  c.Variable,
		Default:   c.Default,
		Transform: c.Transform,
		Unit:      c.Unit,
	}
}

// Default returns the stock configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname: "auto",
			IP:       "auto",
		},
		MQTT: MQTTConfig{
			Type:      "builtin",
			Host:      "0.0.0.0",
			Port:      1883,
			Topic:     "nas/panel/data",
			QoS:       1,
			KeepAlive: 60,
		},
		Collection: CollectionConfig{
			Interval: 5,
		},
	}
}

// Load reads the configuration file, applies environment overrides and
// validates the result. With an empty path only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	k := kfn.New(".")

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := k.Load(kfile.Provider(absPath), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	loadEnv(k)

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, kfn.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and rejects custom collector
// declarations the probe layer cannot build
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Unknown kinds and transforms are rejected here, before any
	// sampling starts
	for _, cc := range c.CustomCollectors {
		if _, err := probe.NewCustom(cc.Spec()); err != nil {
			return fmt.Errorf("%w: custom collector: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Interval returns the collection cadence as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Collection.Interval) * time.Second
}

// KeepAliveDuration returns the external-client keep-alive as a duration
func (c *MQTTConfig) KeepAliveDuration() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// Addr returns the broker address as host:port
func (c *MQTTConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadEnv(k *kfn.Koanf) {
	// NASMON_MQTT__TOPIC=nas/panel/data -> mqtt.topic
	_ = k.Load(kenv.Provider(envPrefix, ".", func(s string) string {
		noPrefix := strings.TrimPrefix(s, envPrefix)
		noPrefix = strings.ToLower(noPrefix)
		noPrefix = strings.ReplaceAll(noPrefix, "__", ".")
		return noPrefix
	}), nil)
}

// WriteDefault writes the stock configuration as YAML
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}

	header := []byte("# nasmon configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
