// Package netif reads wireless interface state from the OS and runs the
// external network tools.
//
// Presence and link state come from sysfs (/sys/class/net/<iface>); the
// IPv4 address comes from the kernel interface table.
package netif

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wifiscout/internal/domain"
)

// Monitor answers presence, link and address questions about interfaces
type Monitor struct {
	sysClassNet string
	addrs       func(iface string) ([]net.Addr, error)
}

// NewMonitor creates a monitor rooted at the given sysfs net directory
func NewMonitor(sysClassNet string) *Monitor {
	return &Monitor{
		sysClassNet: sysClassNet,
		addrs:       interfaceAddrs,
	}
}

// Present reports whether iface is attached
func (m *Monitor) Present(iface string) bool {
	if iface == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.sysClassNet, iface))
	return err == nil
}

// OperState returns the kernel operational state of iface (up, down, dormant, ...)
func (m *Monitor) OperState(iface string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.sysClassNet, iface, "operstate"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrAdapterAbsent
		}
		return "", fmt.Errorf("read operstate: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WaitLinkUp polls operstate until it reads "up" or timeout elapses.
// Returns true when the link came up in time.
func (m *Monitor) WaitLinkUp(ctx context.Context, iface string, timeout, poll time.Duration) (bool, error) {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if state, err := m.OperState(iface); err == nil && state == "up" {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// Address returns the first IPv4 address of iface with its prefix length
func (m *Monitor) Address(iface string) (netip.Prefix, error) {
	addrs, err := m.addrs(iface)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %v", domain.ErrNoAddress, err)
	}
	return firstIPv4(addrs)
}

func interfaceAddrs(iface string) ([]net.Addr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	return ifi.Addrs()
}

func firstIPv4(addrs []net.Addr) (netip.Prefix, error) {
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		ones, bits := ipnet.Mask.Size()
		if bits == net.IPv6len*8 {
			ones -= 96
		}
		addr, _ := netip.AddrFromSlice(ip4)
		return netip.PrefixFrom(addr, ones), nil
	}
	return netip.Prefix{}, domain.ErrNoAddress
}
