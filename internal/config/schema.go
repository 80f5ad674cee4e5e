package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Interface string          `yaml:"interface"` // Scanning adapter, e.g. wlan1
	Paths     PathsConfig     `yaml:"paths"`
	Tools     ToolsConfig     `yaml:"tools"`
	Timing    TimingConfig    `yaml:"timing"`
	Policy    PolicyConfig    `yaml:"policy"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
}

// PathsConfig holds on-disk locations
type PathsConfig struct {
	DataDir       string `yaml:"data_dir"`       // skip list and known networks
	ArtifactDir   string `yaml:"artifact_dir"`   // raw scanner output
	HandshakesDir string `yaml:"handshakes_dir"` // browsable, written by other tools
	RuntimeDir    string `yaml:"runtime_dir"`    // ephemeral supplicant profiles
	SysClassNet   string `yaml:"sys_class_net"`
}

// ToolsConfig holds paths to the external binaries
type ToolsConfig struct {
	WPASupplicant string `yaml:"wpa_supplicant"`
	DHClient      string `yaml:"dhclient"`
	IP            string `yaml:"ip"`
	Pkill         string `yaml:"pkill"`
	Nmap          string `yaml:"nmap"`
}

// TimingConfig holds delays and timeouts
type TimingConfig struct {
	Settle         Duration `yaml:"settle"`           // max wait for link up after association
	SettlePoll     Duration `yaml:"settle_poll"`      // link state poll period
	CommandTimeout Duration `yaml:"command_timeout"`  // per external command
	ScanTimeout    Duration `yaml:"scan_timeout"`     // whole nmap run
	LinkCyclePause Duration `yaml:"link_cycle_pause"` // pause between link down and up
}

// PolicyConfig holds the scanned-set marking rules
type PolicyConfig struct {
	MarkPolicy        string `yaml:"mark_policy"`         // mark-always | mark-on-success
	JoinFailurePolicy string `yaml:"join_failure_policy"` // retry | mark
	LegacySlash24     bool   `yaml:"legacy_slash24"`      // zero the last octet instead of masking
}

// DiscoveryConfig holds the access point feed settings
type DiscoveryConfig struct {
	URL          string   `yaml:"url"` // bettercap REST API base
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	PollInterval Duration `yaml:"poll_interval"`
}

// WebConfig holds file browser settings
type WebConfig struct {
	Disabled bool   `yaml:"disabled"`
	Addr     string `yaml:"addr"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	Output     string `yaml:"output"` // stdout, stderr, file
	FilePath   string `yaml:"file_path,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"` // MB
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"` // days
	Compress   bool   `yaml:"compress,omitempty"`
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
