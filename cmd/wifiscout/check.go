package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"wifiscout/internal/config"
	"wifiscout/internal/netif"
	"wifiscout/internal/preflight"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe privileges, tools, adapter and storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor := netif.NewMonitor(cfg.Paths.SysClassNet)
		report := preflight.New(monitor.Present).Run(context.Background(), preflightInput(cfg), rootLogger)

		data := pterm.TableData{{"Category", "Check", "Result", "Detail"}}
		for _, c := range report.Checks {
			result := pterm.Green("ok")
			switch {
			case !c.OK && c.Required:
				result = pterm.Red("fail")
			case !c.OK:
				result = pterm.Yellow("warn")
			}
			data = append(data, []string{string(c.Category), c.Name, result, c.Detail})
		}
		if err := pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(data).Render(); err != nil {
			return err
		}

		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d required checks failed", len(failed))
		}
		pterm.Success.Println("Ready to scan")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// preflightInput lists the tools and directories a run depends on
func preflightInput(c *config.Config) preflight.Input {
	return preflight.Input{
		Interface: c.Interface,
		Tools: map[string]string{
			"wpa_supplicant": c.Tools.WPASupplicant,
			"dhclient":       c.Tools.DHClient,
			"ip":             c.Tools.IP,
			"pkill":          c.Tools.Pkill,
			"nmap":           c.Tools.Nmap,
		},
		Dirs: map[string]string{
			"data":      c.Paths.DataDir,
			"artifacts": c.Paths.ArtifactDir,
			"runtime":   c.Paths.RuntimeDir,
		},
	}
}
