// Package config provides configuration management for wifiscout.
//
// Config file locations (priority order):
//  1. $WIFISCOUT_CONFIG
//  2. ./wifiscout.yaml
//  3. ~/.config/wifiscout/config.yaml
//  4. /etc/wifiscout/config.yaml
//
// A missing file is not an error: defaults are used. Missing fields in a
// file are filled from the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"wifiscout/internal/domain"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Interface == "" {
		c.Interface = "wlan1"
	}

	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "/home/pi/files_nmap"
	}
	if c.Paths.ArtifactDir == "" {
		c.Paths.ArtifactDir = "/home/pi/auto_nmap"
	}
	if c.Paths.HandshakesDir == "" {
		c.Paths.HandshakesDir = "/home/pi/handshakes"
	}
	if c.Paths.RuntimeDir == "" {
		c.Paths.RuntimeDir = os.TempDir()
	}
	if c.Paths.SysClassNet == "" {
		c.Paths.SysClassNet = "/sys/class/net"
	}

	if c.Tools.WPASupplicant == "" {
		c.Tools.WPASupplicant = "wpa_supplicant"
	}
	if c.Tools.DHClient == "" {
		c.Tools.DHClient = "dhclient"
	}
	if c.Tools.IP == "" {
		c.Tools.IP = "ip"
	}
	if c.Tools.Pkill == "" {
		c.Tools.Pkill = "pkill"
	}
	if c.Tools.Nmap == "" {
		c.Tools.Nmap = "nmap"
	}

	setDuration(&c.Timing.Settle, 5*time.Second)
	setDuration(&c.Timing.SettlePoll, 250*time.Millisecond)
	setDuration(&c.Timing.CommandTimeout, 30*time.Second)
	setDuration(&c.Timing.ScanTimeout, 30*time.Minute)
	setDuration(&c.Timing.LinkCyclePause, time.Second)

	if c.Policy.MarkPolicy == "" {
		c.Policy.MarkPolicy = string(domain.MarkAlways)
	}
	if c.Policy.JoinFailurePolicy == "" {
		c.Policy.JoinFailurePolicy = string(domain.JoinFailureRetry)
	}

	if c.Discovery.URL == "" {
		c.Discovery.URL = "http://127.0.0.1:8081"
	}
	if c.Discovery.Username == "" {
		c.Discovery.Username = "pwnagotchi"
	}
	if c.Discovery.Password == "" {
		c.Discovery.Password = "pwnagotchi"
	}
	setDuration(&c.Discovery.PollInterval, 10*time.Second)

	if c.Web.Addr == "" {
		c.Web.Addr = ":9666"
	}

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Paths.DataDir, "wifiscout.db")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 28
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if _, err := domain.ParseMarkPolicy(c.Policy.MarkPolicy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if _, err := domain.ParseJoinFailurePolicy(c.Policy.JoinFailurePolicy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Timing.SettlePoll.Duration() > c.Timing.Settle.Duration() {
		return fmt.Errorf("timing: settle_poll %s exceeds settle %s",
			c.Timing.SettlePoll.Duration(), c.Timing.Settle.Duration())
	}
	return nil
}

// MarkPolicy returns the parsed scanned-set marking policy
func (c *Config) MarkPolicy() domain.MarkPolicy {
	p, _ := domain.ParseMarkPolicy(c.Policy.MarkPolicy)
	return p
}

// JoinFailurePolicy returns the parsed join failure policy
func (c *Config) JoinFailurePolicy() domain.JoinFailurePolicy {
	p, _ := domain.ParseJoinFailurePolicy(c.Policy.JoinFailurePolicy)
	return p
}

// SkipListPath returns the path of the skip list file
func (c *Config) SkipListPath() string {
	return filepath.Join(c.Paths.DataDir, "ssid_noscan.txt")
}

// KnownNetworksPath returns the path of the known networks file
func (c *Config) KnownNetworksPath() string {
	return filepath.Join(c.Paths.DataDir, "ssid_known.txt")
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Interface: %s, Mark: %s, Join failure: %s\n",
		c.Interface, c.Policy.MarkPolicy, c.Policy.JoinFailurePolicy)
	summary += fmt.Sprintf("Settle: %s, Command timeout: %s, Scan timeout: %s\n",
		c.Timing.Settle.Duration(), c.Timing.CommandTimeout.Duration(), c.Timing.ScanTimeout.Duration())
	summary += fmt.Sprintf("Artifacts: %s, Feed: %s every %s",
		c.Paths.ArtifactDir, c.Discovery.URL, c.Discovery.PollInterval.Duration())
	return summary
}
