package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
)

// Engine runs one scan against target. The XML report goes to artifact;
// console output, when the engine keeps it, goes to ConsoleLogPath(artifact).
type Engine interface {
	Scan(ctx context.Context, target, artifact string) (*nmap.Run, error)
}

// NmapEngine scans with the fast profile (-T4 -F)
type NmapEngine struct {
	binary string
	log    logrus.FieldLogger
}

// NewNmapEngine creates an engine; an empty binary resolves nmap from PATH
func NewNmapEngine(binary string, log logrus.FieldLogger) *NmapEngine {
	return &NmapEngine{binary: binary, log: log}
}

// Scan runs nmap against target, writing its XML report to artifact and
// its normal console output followed by any stderr lines to the console log
func (e *NmapEngine) Scan(ctx context.Context, target, artifact string) (*nmap.Run, error) {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithFastMode(),
	}
	if e.binary != "" {
		opts = append(opts, nmap.WithBinaryPath(e.binary))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	console, err := os.Create(ConsoleLogPath(artifact))
	if err != nil {
		return nil, fmt.Errorf("create console log: %w", err)
	}
	defer console.Close()
	scanner.ToFile(artifact).Streamer(console)

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		writeWarnings(console, *warnings)
		e.log.WithField("target", target).Debugf("Scan: nmap warnings: %v", *warnings)
	}
	if err != nil {
		fmt.Fprintf(console, "\n# nmap failed: %v\n", err)
		return nil, err
	}
	return result, nil
}

func writeWarnings(w io.Writer, warnings []string) {
	fmt.Fprintln(w, "\n# stderr")
	for _, line := range warnings {
		fmt.Fprintln(w, line)
	}
}

// ConsoleLogPath returns the console log that sits beside an XML artifact
func ConsoleLogPath(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".log"
}

// classify maps an engine error onto a ScanError
func classify(ctx context.Context, err error) *domain.ScanError {
	if errors.Is(err, nmap.ErrScanTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ScanError{Kind: domain.ScanTimeout, Err: err}
	}
	return &domain.ScanError{Kind: domain.ScanToolFailure, Err: err}
}

// hostsFromRun extracts live hosts and their open ports
func hostsFromRun(result *nmap.Run) []domain.ScannedHost {
	if result == nil {
		return nil
	}

	var hosts []domain.ScannedHost
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		var sh domain.ScannedHost
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				if sh.IP == "" {
					sh.IP = addr.Addr
				}
			case "mac":
				sh.MAC = strings.ToUpper(addr.Addr)
			}
		}
		if sh.IP == "" {
			sh.IP = host.Addresses[0].Addr
		}
		if len(host.Hostnames) > 0 {
			sh.Hostname = host.Hostnames[0].Name
		}
		for _, port := range host.Ports {
			if port.State.State == "open" {
				sh.OpenPorts = append(sh.OpenPorts, int(port.ID))
			}
		}
		hosts = append(hosts, sh)
	}
	return hosts
}
