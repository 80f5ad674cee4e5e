package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wifiscout/internal/config"
	"wifiscout/internal/logging"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// set in PersistentPreRunE
	cfg        *config.Config
	cfgPath    string
	rootLogger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wifiscout",
	Short: "Join nearby wireless networks and scan them",
	Long: `wifiscout takes the access point list from a bettercap session, joins
one open or known network at a time on a dedicated adapter, runs an nmap
scan against the attached subnet, and disconnects.

Examples:
  wifiscout run --interface wlan1
  wifiscout run --config /etc/wifiscout/config.yaml --no-web
  wifiscout sessions --limit 20
  wifiscout sessions --format yaml > history.yaml
  wifiscout check
  wifiscout config --write ./wifiscout.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search $WIFISCOUT_CONFIG, ./wifiscout.yaml, ~/.config/wifiscout)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with WIFISCOUT_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// initConfig loads the env file, the config file, environment overrides
// and builds the logger. Flags are applied later by each command.
func initConfig(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	var err error
	if cfgFile != "" {
		cfg, cfgPath, err = config.LoadFromPath(cfgFile)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config %s: %w", cfgPath, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	rootLogger, err = logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
