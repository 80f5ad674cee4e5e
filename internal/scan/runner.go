// Package scan runs a port scan over the subnet of a joined network and
// keeps the raw report as an artifact.
package scan

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
)

const artifactTimeFormat = "2006-01-02_15-04-05"

// Addresser returns the IPv4 address and prefix of an interface
type Addresser interface {
	Address(iface string) (netip.Prefix, error)
}

// Result summarizes a completed scan
type Result struct {
	Artifact string
	// ConsoleLog is empty when the engine kept no console output
	ConsoleLog string
	Network    netip.Prefix
	HostsUp    int
	OpenPorts  int
	Hosts      []domain.ScannedHost
}

// Runner derives the target network and drives the scan engine
type Runner struct {
	addresser   Addresser
	engine      Engine
	artifactDir string
	timeout     time.Duration
	legacy      bool
	now         func() time.Time
	log         logrus.FieldLogger
}

// Option is a functional option for configuring Runner
type Option func(*Runner)

// WithTimeout bounds the whole scanner run
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLegacySlash24 zeroes only the last octet when deriving the network
func WithLegacySlash24(enabled bool) Option {
	return func(r *Runner) {
		r.legacy = enabled
	}
}

// NewRunner creates a scan runner writing artifacts into artifactDir
func NewRunner(addresser Addresser, engine Engine, artifactDir string, log logrus.FieldLogger, opts ...Option) *Runner {
	r := &Runner{
		addresser:   addresser,
		engine:      engine,
		artifactDir: artifactDir,
		timeout:     30 * time.Minute,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan scans the network iface is attached to. label names the artifact.
func (r *Runner) Scan(ctx context.Context, iface, label string) (*Result, error) {
	addr, err := r.addresser.Address(iface)
	if err != nil {
		if errors.Is(err, domain.ErrNoAddress) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNoAddress, err)
	}

	network := NetworkFor(addr, r.legacy)
	log := r.log.WithFields(logrus.Fields{"iface": iface, "network": network.String()})

	if err := os.MkdirAll(r.artifactDir, 0755); err != nil {
		return nil, &domain.ScanError{Kind: domain.ScanToolFailure, Err: fmt.Errorf("create artifact dir: %w", err)}
	}
	artifact := r.artifactPath(label)

	scanCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log.WithField("artifact", artifact).Info("Scan: scanning network")
	run, err := r.engine.Scan(scanCtx, network.String(), artifact)
	if err != nil {
		// the console log stays: it holds what nmap said before failing
		r.discard(artifact, log)
		return nil, classify(scanCtx, err)
	}
	if _, err := os.Stat(artifact); err != nil {
		return nil, &domain.ScanError{Kind: domain.ScanToolFailure, Err: fmt.Errorf("artifact not written: %w", err)}
	}

	hosts := hostsFromRun(run)
	result := &Result{
		Artifact: artifact,
		Network:  network,
		HostsUp:  len(hosts),
		Hosts:    hosts,
	}
	for _, h := range hosts {
		result.OpenPorts += len(h.OpenPorts)
	}
	if console := ConsoleLogPath(artifact); fileExists(console) {
		result.ConsoleLog = console
	}

	log.WithFields(logrus.Fields{
		"artifact":   artifact,
		"hosts_up":   result.HostsUp,
		"open_ports": result.OpenPorts,
	}).Info("Scan: complete")
	return result, nil
}

// discard removes a partial report left by a failed run
func (r *Runner) discard(artifact string, log logrus.FieldLogger) {
	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("artifact", artifact).Warn("Scan: could not remove partial artifact")
	}
}

func (r *Runner) artifactPath(label string) string {
	base := fmt.Sprintf("%s_%s", SanitizeLabel(label), r.now().Format(artifactTimeFormat))
	path := filepath.Join(r.artifactDir, base+".xml")
	for n := 1; fileExists(path) || fileExists(ConsoleLogPath(path)); n++ {
		path = filepath.Join(r.artifactDir, fmt.Sprintf("%s-%d.xml", base, n))
	}
	return path
}

// NetworkFor returns the scan target for an interface address.
// Legacy mode keeps the prefix length but zeroes only the last octet.
func NetworkFor(addr netip.Prefix, legacy bool) netip.Prefix {
	if !legacy {
		return addr.Masked()
	}
	b := addr.Addr().As4()
	b[3] = 0
	return netip.PrefixFrom(netip.AddrFrom4(b), addr.Bits())
}

// SanitizeLabel makes label safe for use in a file name
func SanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, label)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
