package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wifiscout/internal/config"
)

var configWrite string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or write the effective configuration",
	Long: `Print the configuration after defaults and WIFISCOUT_* overrides are
applied. The feed password is masked when printing.

Examples:
  wifiscout config
  wifiscout config --write /etc/wifiscout/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configWrite != "" {
			if err := cfg.Save(configWrite); err != nil {
				return err
			}
			pterm.Success.Printfln("Config written to %s", configWrite)
			return nil
		}

		if cfgPath != "" {
			fmt.Fprintf(os.Stderr, "# loaded from %s\n", cfgPath)
		} else {
			fmt.Fprintln(os.Stderr, "# no config file found, showing defaults")
		}
		return printConfig(os.Stdout, cfg)
	},
}

func init() {
	configCmd.Flags().StringVarP(&configWrite, "write", "w", "", "write the effective config to this path")
	rootCmd.AddCommand(configCmd)
}

func printConfig(w io.Writer, c *config.Config) error {
	masked := *c
	if masked.Discovery.Password != "" {
		masked.Discovery.Password = "********"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err
	}
	return enc.Close()
}
