package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"wifiscout/internal/codec"
	"wifiscout/internal/domain"
	"wifiscout/internal/repository/sqlite"
)

var (
	sessionsLimit  int
	sessionsFormat string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recorded scan sessions",
	Long: `Print the scan history from the database, newest first.

Examples:
  wifiscout sessions
  wifiscout sessions --limit 5
  wifiscout sessions --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer repo.Close()

		ctx := context.Background()
		sessions, err := repo.ListSessions(ctx, sessionsLimit)
		if err != nil {
			return err
		}

		if sessionsFormat != "table" {
			exporter, err := codec.ForFormat(sessionsFormat)
			if err != nil {
				return err
			}
			return exporter.Export(sessions, os.Stdout)
		}

		if len(sessions) == 0 {
			pterm.Warning.Println("No sessions recorded.")
			return nil
		}
		if err := pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(sessionTable(sessions)).Render(); err != nil {
			return err
		}

		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}
		pterm.Info.Printfln("%d sessions, %d succeeded, %d failed, %d hosts up",
			stats.Sessions, stats.Succeeded, stats.Failed, stats.HostsUp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "number of sessions (0 for all)")
	sessionsCmd.Flags().StringVarP(&sessionsFormat, "format", "f", "table", "table, json or yaml")
}

// sessionTable renders sessions as rows with a header
func sessionTable(sessions []domain.ScanSession) pterm.TableData {
	data := pterm.TableData{{"Started", "SSID", "Known", "Outcome", "Stage", "Network", "Hosts", "Duration"}}
	for _, s := range sessions {
		known := ""
		if s.Known {
			known = "yes"
		}
		duration := "-"
		if s.FinishedAt != nil {
			duration = s.Duration().Round(time.Second).String()
		}
		data = append(data, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.SSID,
			known,
			outcomeLabel(s.Outcome),
			s.Stage,
			s.Network,
			strconv.Itoa(s.HostsUp),
			duration,
		})
	}
	return data
}

func outcomeLabel(o domain.Outcome) string {
	switch o {
	case domain.OutcomeSuccess:
		return pterm.Green(string(o))
	case domain.OutcomeFailure:
		return pterm.Red(string(o))
	default:
		return strings.ToLower(string(o))
	}
}
