package connect

import "time"

// Option is a functional option for configuring Manager
type Option func(*Manager)

// WithTools overrides the external binary paths; empty fields keep defaults
func WithTools(t Tools) Option {
	return func(m *Manager) {
		if t.WPASupplicant != "" {
			m.tools.WPASupplicant = t.WPASupplicant
		}
		if t.DHClient != "" {
			m.tools.DHClient = t.DHClient
		}
		if t.IP != "" {
			m.tools.IP = t.IP
		}
		if t.Pkill != "" {
			m.tools.Pkill = t.Pkill
		}
	}
}

// WithRuntimeDir sets where supplicant profiles are written
func WithRuntimeDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.runtimeDir = dir
		}
	}
}

// WithSettle sets how long to wait for the link after association and how
// often to check it
func WithSettle(timeout, poll time.Duration) Option {
	return func(m *Manager) {
		m.settle = timeout
		if poll > 0 {
			m.settlePoll = poll
		}
	}
}

// WithLinkCyclePause sets the pause between link down and link up
func WithLinkCyclePause(d time.Duration) Option {
	return func(m *Manager) {
		m.linkPause = d
	}
}
