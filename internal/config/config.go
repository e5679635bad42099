// Package config loads the service configuration.
//
// Configuration is read from a JSON or YAML file. Every field is optional:
// the Get* methods fall back to defaults for anything left unset, so partial
// configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tfcache/internal/ingress"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
)

// DefaultConfigPath is the example configuration shipped with the repository.
const DefaultConfigPath = "config/tfcache.example.yaml"

// Source kinds accepted by the "source" field.
const (
	SourceStdin  = ingress.KindStdin
	SourceSerial = ingress.KindSerial
	SourceUDP    = ingress.KindUDP
	SourcePCAP   = ingress.KindPCAP
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// FramePair names a parent -> child relation in the config file.
type FramePair struct {
	Parent string `json:"parent" yaml:"parent" validate:"required"`
	Child  string `json:"child" yaml:"child" validate:"required,nefield=Parent"`
}

// Config represents the root configuration of the transform cache service.
type Config struct {
	// Buffer params
	CacheDuration *string     `json:"cache_duration,omitempty" yaml:"cache_duration,omitempty"` // duration string like "10s"
	StaticPairs   []FramePair `json:"static_pairs,omitempty" yaml:"static_pairs,omitempty" validate:"dive"`

	// Service params
	Listen      *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	DBPath      *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Record      *bool   `json:"record,omitempty" yaml:"record,omitempty"`
	LogInterval *string `json:"log_interval,omitempty" yaml:"log_interval,omitempty"`
	Debug       *bool   `json:"debug,omitempty" yaml:"debug,omitempty"`

	// Ingress params
	Source     *string `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,oneof=stdin serial udp pcap"`
	SerialPort *string `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	SerialBaud *int    `json:"serial_baud,omitempty" yaml:"serial_baud,omitempty" validate:"omitempty,gt=0"`
	UDPAddr    *string `json:"udp_addr,omitempty" yaml:"udp_addr,omitempty"`
	PCAPFile   *string `json:"pcap_file,omitempty" yaml:"pcap_file,omitempty"`
	PCAPPort   *int    `json:"pcap_port,omitempty" yaml:"pcap_port,omitempty" validate:"omitempty,gt=0,lte=65535"`

	// Echo params
	EchoParent   *string `json:"echo_parent,omitempty" yaml:"echo_parent,omitempty"`
	EchoChild    *string `json:"echo_child,omitempty" yaml:"echo_child,omitempty"`
	EchoInterval *string `json:"echo_interval,omitempty" yaml:"echo_interval,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		CacheDuration: ptrString("10s"),
		Listen:        ptrString(":8082"),
		DBPath:        ptrString(""),
		Record:        ptrBool(false),
		LogInterval:   ptrString("10s"),
		Debug:         ptrBool(false),
		Source:        ptrString(SourceStdin),
		SerialPort:    ptrString("/dev/ttyUSB0"),
		SerialBaud:    ptrInt(115200),
		UDPAddr:       ptrString(":9870"),
		PCAPPort:      ptrInt(9870),
		EchoParent:    ptrString("map"),
		EchoChild:     ptrString("base_link"),
		EchoInterval:  ptrString("1s"),
	}
}

// LoadConfig loads a Config from a .json, .yaml or .yml file.
// The file is checked for extension and size before it is parsed and the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	for name, v := range map[string]*string{
		"cache_duration": c.CacheDuration,
		"log_interval":   c.LogInterval,
		"echo_interval":  c.EchoInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	switch c.GetSource() {
	case SourceSerial:
		if c.GetSerialPort() == "" {
			return fmt.Errorf("source %q requires serial_port", SourceSerial)
		}
	case SourcePCAP:
		if c.GetPCAPFile() == "" {
			return fmt.Errorf("source %q requires pcap_file", SourcePCAP)
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// GetCacheDuration returns the per-pair retention window.
func (c *Config) GetCacheDuration() time.Duration {
	return durationOr(c.CacheDuration, tfbuffer.DefaultCacheDuration)
}

// GetStaticPairs returns the pairs that are always treated as static.
func (c *Config) GetStaticPairs() []tfbuffer.Pair {
	pairs := make([]tfbuffer.Pair, 0, len(c.StaticPairs))
	for _, p := range c.StaticPairs {
		pairs = append(pairs, tfbuffer.Pair{Parent: p.Parent, Child: p.Child})
	}
	return pairs
}

// BufferOptions returns the tfbuffer options described by the config.
func (c *Config) BufferOptions() tfbuffer.Options {
	return tfbuffer.Options{
		CacheDuration: c.GetCacheDuration(),
		StaticPairs:   c.GetStaticPairs(),
	}
}

// IngressSource returns the ingress source described by the config.
func (c *Config) IngressSource() ingress.SourceConfig {
	return ingress.SourceConfig{
		Kind:       c.GetSource(),
		SerialPort: c.GetSerialPort(),
		SerialBaud: c.GetSerialBaud(),
		UDPAddr:    c.GetUDPAddr(),
		PCAPFile:   c.GetPCAPFile(),
		PCAPPort:   c.GetPCAPPort(),
	}
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string { return stringOr(c.Listen, ":8082") }

// GetDBPath returns the SQLite database path. Empty disables persistence.
func (c *Config) GetDBPath() string { return stringOr(c.DBPath, "") }

// GetRecord returns whether incoming samples are persisted.
func (c *Config) GetRecord() bool {
	if c.Record == nil {
		return false // default: recording disabled
	}
	return *c.Record
}

// GetLogInterval returns the statistics logging interval.
func (c *Config) GetLogInterval() time.Duration {
	return durationOr(c.LogInterval, 10*time.Second)
}

// GetDebug returns whether debug logging is enabled.
func (c *Config) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// GetSource returns the ingress source kind.
func (c *Config) GetSource() string { return stringOr(c.Source, SourceStdin) }

// GetSerialPort returns the serial device path.
func (c *Config) GetSerialPort() string { return stringOr(c.SerialPort, "/dev/ttyUSB0") }

// GetSerialBaud returns the serial baud rate.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// GetUDPAddr returns the UDP bind address.
func (c *Config) GetUDPAddr() string { return stringOr(c.UDPAddr, ":9870") }

// GetPCAPFile returns the capture file to replay.
func (c *Config) GetPCAPFile() string { return stringOr(c.PCAPFile, "") }

// GetPCAPPort returns the UDP port to extract from captures.
func (c *Config) GetPCAPPort() int {
	if c.PCAPPort == nil {
		return 9870
	}
	return *c.PCAPPort
}

// GetEchoParent returns the parent frame printed by the echo tool.
func (c *Config) GetEchoParent() string { return stringOr(c.EchoParent, "map") }

// GetEchoChild returns the child frame printed by the echo tool.
func (c *Config) GetEchoChild() string { return stringOr(c.EchoChild, "base_link") }

// GetEchoInterval returns the echo polling period.
func (c *Config) GetEchoInterval() time.Duration {
	return durationOr(c.EchoInterval, time.Second)
}
