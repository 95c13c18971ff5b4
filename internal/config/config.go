// Package config provides configuration management for raywatch.
//
// Config file locations (priority order):
//  1. --config flag
//  2. $RAYWATCH_CONFIG
//  3. ./raywatch.yaml
//  4. $XDG_CONFIG_HOME/raywatch/config.yaml
//  5. ~/.config/raywatch/config.yaml
//  6. /etc/raywatch/config.yaml
//
// Without a file the defaults apply. Command line flags override file values.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"raywatch/internal/domain"
)

// Defaults
const (
	DefaultScanRange      = "192.168.0.0/24"
	DefaultMACPrefix      = "02:df:9a"
	DefaultHostnamePrefix = "ray-"
	DefaultUsername       = "Assembler"
	DefaultPassword       = "E2"
	DefaultLoginPath      = "/api/login.php"
	DefaultGetPath        = "/api/get.php"

	DefaultScanTimeout    = 3 * time.Second
	DefaultScanGrace      = 10 * time.Second
	DefaultResolveTimeout = time.Second
	DefaultAPITimeout     = 30 * time.Second
	DefaultInterval       = 3 * time.Second

	DefaultErrorPolicy = "continue"
)

// DefaultFallbackDevices returns the stock fallback device list
func DefaultFallbackDevices() []domain.Unit {
	return []domain.Unit{
		{Address: "192.168.0.12", Hostname: "ray-021260097381201829"},
	}
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. Keys missing from the file
// keep their defaults; an explicit empty fallback_devices list disables the
// fallback.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes a config document over the defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Scan: ScanConfig{
			Range:          DefaultScanRange,
			Timeout:        Duration(DefaultScanTimeout),
			Grace:          Duration(DefaultScanGrace),
			ResolveTimeout: Duration(DefaultResolveTimeout),
			MACPrefix:      DefaultMACPrefix,
			HostnamePrefix: DefaultHostnamePrefix,
		},
		API: APIConfig{
			Username:  DefaultUsername,
			Password:  DefaultPassword,
			LoginPath: DefaultLoginPath,
			GetPath:   DefaultGetPath,
			Timeout:   Duration(DefaultAPITimeout),
		},
		Monitor: MonitorConfig{
			Interval:    Duration(DefaultInterval),
			ErrorPolicy: DefaultErrorPolicy,
		},
		FallbackDevices: DefaultFallbackDevices(),
	}
}

// applyDefaults fills in values a file explicitly blanked
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Scan.Range == "" {
		c.Scan.Range = DefaultScanRange
	}
	if c.API.LoginPath == "" {
		c.API.LoginPath = DefaultLoginPath
	}
	if c.API.GetPath == "" {
		c.API.GetPath = DefaultGetPath
	}
	if c.Monitor.ErrorPolicy == "" {
		c.Monitor.ErrorPolicy = DefaultErrorPolicy
	}
	for i := range c.FallbackDevices {
		c.FallbackDevices[i].Source = domain.UnitSourceFallback
	}
}

// Validate reports every problem with the configuration
func (c *Config) Validate() error {
	var errs []error

	if !validTarget(c.Scan.Range) {
		errs = append(errs, fmt.Errorf("scan.range: %q is not a CIDR range or IP address", c.Scan.Range))
	}
	if c.Scan.Timeout <= 0 {
		errs = append(errs, errors.New("scan.timeout must be positive"))
	}
	if c.Scan.Grace < 0 {
		errs = append(errs, errors.New("scan.grace must not be negative"))
	}
	if c.Scan.MACPrefix == "" && c.Scan.HostnamePrefix == "" {
		errs = append(errs, errors.New("scan: at least one of mac_prefix and hostname_prefix is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.MaxConcurrent < 0 {
		errs = append(errs, errors.New("api.max_concurrent must not be negative"))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	switch c.Monitor.ErrorPolicy {
	case "continue", "exit":
	default:
		errs = append(errs, fmt.Errorf("monitor.error_policy: unknown policy %q", c.Monitor.ErrorPolicy))
	}
	for i, d := range c.FallbackDevices {
		if strings.TrimSpace(d.Address) == "" {
			errs = append(errs, fmt.Errorf("fallback_devices[%d]: ip is required", i))
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos: %d is not 0, 1 or 2", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

func validTarget(s string) bool {
	if _, _, err := net.ParseCIDR(s); err == nil {
		return true
	}
	return net.ParseIP(s) != nil
}
