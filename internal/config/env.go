package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after the config file
const (
	EnvInterface     = "WIFISCOUT_INTERFACE"
	EnvFeedURL       = "WIFISCOUT_FEED_URL"
	EnvFeedUsername  = "WIFISCOUT_FEED_USERNAME"
	EnvFeedPassword  = "WIFISCOUT_FEED_PASSWORD"
	EnvFeedInterval  = "WIFISCOUT_FEED_INTERVAL"
	EnvWebAddr       = "WIFISCOUT_WEB_ADDR"
	EnvWebDisabled   = "WIFISCOUT_WEB_DISABLED"
	EnvLogLevel      = "WIFISCOUT_LOG_LEVEL"
	EnvDatabasePath  = "WIFISCOUT_DB"
	EnvLegacySlash24 = "WIFISCOUT_LEGACY_SLASH24"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values from the environment and revalidates
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvInterface, &c.Interface)
	str(EnvFeedURL, &c.Discovery.URL)
	str(EnvFeedUsername, &c.Discovery.Username)
	str(EnvFeedPassword, &c.Discovery.Password)
	str(EnvWebAddr, &c.Web.Addr)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvDatabasePath, &c.Database.Path)

	if v, ok := lookup(EnvFeedInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFeedInterval, err)
		}
		c.Discovery.PollInterval = Duration(d)
	}
	for key, dst := range map[string]*bool{
		EnvWebDisabled:   &c.Web.Disabled,
		EnvLegacySlash24: &c.Policy.LegacySlash24,
	} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	return c.Validate()
}
