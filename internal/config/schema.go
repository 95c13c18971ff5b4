package config

import (
	"time"

	"raywatch/internal/domain"
)

// Config is the raywatch configuration file
type Config struct {
	Version int `yaml:"version"`

	Scan     ScanConfig     `yaml:"scan"`
	API      APIConfig      `yaml:"api"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	// FallbackDevices are polled whenever a scan finds nothing
	FallbackDevices []domain.Unit `yaml:"fallback_devices"`

	// WatchConfig reloads fallback_devices when the file changes
	WatchConfig bool `yaml:"watch_config,omitempty"`
}

// ScanConfig holds discovery settings
type ScanConfig struct {
	Range          string   `yaml:"range"`
	Timeout        Duration `yaml:"timeout"`
	Grace          Duration `yaml:"grace"`
	ResolveTimeout Duration `yaml:"resolve_timeout"`
	MACPrefix      string   `yaml:"mac_prefix"`
	HostnamePrefix string   `yaml:"hostname_prefix"`
	NmapPath       string   `yaml:"nmap_path,omitempty"`
}

// APIConfig holds the charger control API settings
type APIConfig struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	LoginPath string   `yaml:"login_path"`
	GetPath   string   `yaml:"get_path"`
	Timeout   Duration `yaml:"timeout"`
	// VerifyTLS enables certificate verification. Chargers ship
	// self-signed certificates, so it is off by default.
	VerifyTLS bool `yaml:"verify_tls"`
	// MaxConcurrent bounds concurrent polls; zero means one per unit
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

// MonitorConfig holds continuous mode settings
type MonitorConfig struct {
	Interval     Duration `yaml:"interval"`
	ErrorPolicy  string   `yaml:"error_policy"`
	EmitAppeared bool     `yaml:"emit_appeared,omitempty"`
}

// HTTPConfig enables the HTTP surface when Addr is set
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// DatabaseConfig enables the charger journal when Path is set
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MQTTConfig enables the MQTT sink when Broker is set
type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	QoS         int    `yaml:"qos,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
