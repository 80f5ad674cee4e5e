// Package connect joins and leaves wireless networks through
// wpa_supplicant and dhclient.
package connect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
	"wifiscout/internal/netif"
)

// Link reports interface presence and waits for link state
type Link interface {
	Present(iface string) bool
	WaitLinkUp(ctx context.Context, iface string, timeout, poll time.Duration) (bool, error)
}

// Tools holds the external binaries used for a join
type Tools struct {
	WPASupplicant string
	DHClient      string
	IP            string
	Pkill         string
}

// Connected describes an established association
type Connected struct {
	Interface string
	SSID      string
	Profile   string
	LinkUp    bool // operstate reported up before the address request
}

// Manager performs join and disconnect sequences
type Manager struct {
	runner     netif.Runner
	link       Link
	tools      Tools
	runtimeDir string
	settle     time.Duration
	settlePoll time.Duration
	linkPause  time.Duration
	log        logrus.FieldLogger
}

// NewManager creates a connection manager
func NewManager(runner netif.Runner, link Link, log logrus.FieldLogger, opts ...Option) *Manager {
	m := &Manager{
		runner: runner,
		link:   link,
		tools: Tools{
			WPASupplicant: "wpa_supplicant",
			DHClient:      "dhclient",
			IP:            "ip",
			Pkill:         "pkill",
		},
		runtimeDir: os.TempDir(),
		settle:     5 * time.Second,
		settlePoll: 250 * time.Millisecond,
		linkPause:  time.Second,
		log:        log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProfilePath returns where the supplicant profile for iface is written
func (m *Manager) ProfilePath(iface string) string {
	return filepath.Join(m.runtimeDir, fmt.Sprintf("wifiscout-%s.conf", iface))
}

// Join associates iface with ssid and requests an address.
// A nil passphrase joins an open network.
func (m *Manager) Join(ctx context.Context, iface, ssid string, passphrase *string) (*Connected, error) {
	log := m.log.WithFields(logrus.Fields{"iface": iface, "ssid": ssid, "known": passphrase != nil})

	if !m.link.Present(iface) {
		return nil, &domain.ConnectError{Stage: domain.StagePrecondition, SSID: ssid, Err: domain.ErrAdapterAbsent}
	}

	profile, err := ProfileFor(ssid, passphrase)
	if err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageProfile, SSID: ssid, Err: err}
	}

	path := m.ProfilePath(iface)
	if err := os.MkdirAll(m.runtimeDir, 0755); err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageProfile, SSID: ssid, Err: fmt.Errorf("create runtime dir: %w", err)}
	}
	if err := os.WriteFile(path, []byte(profile), 0600); err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageProfile, SSID: ssid, Err: fmt.Errorf("write profile: %w", err)}
	}

	log.Info("Connect: starting supplicant")
	if _, err := m.runner.Run(ctx, m.tools.WPASupplicant, "-B", "-i", iface, "-c", path); err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageAssociate, SSID: ssid, Err: err}
	}

	up, err := m.link.WaitLinkUp(ctx, iface, m.settle, m.settlePoll)
	if err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageAssociate, SSID: ssid, Err: err}
	}
	if !up {
		log.WithField("settle", m.settle).Warn("Connect: link not up after settle, requesting address anyway")
	}

	if _, err := m.runner.Run(ctx, m.tools.DHClient, iface); err != nil {
		return nil, &domain.ConnectError{Stage: domain.StageAddress, SSID: ssid, Err: err}
	}

	log.Info("Connect: associated")
	return &Connected{Interface: iface, SSID: ssid, Profile: path, LinkUp: up}, nil
}

// Disconnect releases the lease, stops the supplicant and cycles the link.
// Every step is attempted; failures are logged only.
func (m *Manager) Disconnect(ctx context.Context, iface string) {
	log := m.log.WithField("iface", iface)
	log.Info("Connect: disconnecting")

	steps := []struct {
		name string
		args []string
	}{
		{m.tools.DHClient, []string{"-r", iface}},
		{m.tools.Pkill, []string{"-f", "wpa_supplicant.*" + iface}},
		{m.tools.IP, []string{"link", "set", iface, "down"}},
	}
	for _, step := range steps {
		if _, err := m.runner.Run(ctx, step.name, step.args...); err != nil {
			log.WithError(err).WithField("command", step.name).Debug("Connect: teardown step failed")
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(m.linkPause):
	}

	if _, err := m.runner.Run(ctx, m.tools.IP, "link", "set", iface, "up"); err != nil {
		log.WithError(err).Debug("Connect: link up failed")
	}

	if err := os.Remove(m.ProfilePath(iface)); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Connect: could not remove profile")
	}
}
