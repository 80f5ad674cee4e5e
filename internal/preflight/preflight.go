// Package preflight probes the host for what a scan sequence needs:
// privileges, external tools, the wireless adapter and writable storage.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/sirupsen/logrus"
)

// Category groups checks
type Category string

const (
	CategoryPermissions Category = "permissions"
	CategoryTools       Category = "tools"
	CategoryAdapter     Category = "adapter"
	CategoryStorage     Category = "storage"
	CategoryHost        Category = "host"
)

// minFreeBytes is the free space below which a storage check warns
const minFreeBytes = 50 * 1000 * 1000

// Check is the outcome of one probe
type Check struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Required bool     `json:"required"`
	Detail   string   `json:"detail"`
}

// Report holds every check from one run
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Checks    []Check       `json:"checks"`
}

// Failed returns required checks that did not pass
func (r *Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Required && !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// Warnings returns optional checks that did not pass
func (r *Report) Warnings() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Required && !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// Input names what to probe
type Input struct {
	Interface string
	// Tools maps a role (wpa_supplicant, nmap, ...) to a binary name or path
	Tools map[string]string
	// Dirs maps a role (data, artifacts, runtime) to a directory that must be writable
	Dirs map[string]string
}

// Prober runs the checks. The function fields are replaced in tests.
type Prober struct {
	lookPath  func(string) (string, error)
	euid      func() int
	present   func(string) bool
	hostInfo  func(context.Context) (*host.InfoStat, error)
	diskUsage func(context.Context, string) (*disk.UsageStat, error)
}

// New creates a prober using present for the adapter check
func New(present func(iface string) bool) *Prober {
	return &Prober{
		lookPath:  exec.LookPath,
		euid:      os.Geteuid,
		present:   present,
		hostInfo:  host.InfoWithContext,
		diskUsage: disk.UsageWithContext,
	}
}

// Run executes every check and logs the outcome
func (p *Prober) Run(ctx context.Context, in Input, log logrus.FieldLogger) *Report {
	start := time.Now()
	report := &Report{Timestamp: start}

	report.Checks = append(report.Checks, p.checkPrivileges())
	report.Checks = append(report.Checks, p.checkTools(in.Tools)...)
	report.Checks = append(report.Checks, p.checkAdapter(in.Interface))
	report.Checks = append(report.Checks, p.checkDirs(ctx, in.Dirs)...)
	report.Checks = append(report.Checks, p.checkHost(ctx))

	report.Duration = time.Since(start)

	for _, c := range report.Checks {
		entry := log.WithFields(logrus.Fields{"category": c.Category, "check": c.Name})
		switch {
		case c.OK:
			entry.Debugf("Preflight: %s", c.Detail)
		case c.Required:
			entry.Errorf("Preflight: %s", c.Detail)
		default:
			entry.Warnf("Preflight: %s", c.Detail)
		}
	}
	log.WithFields(logrus.Fields{
		"checks":   len(report.Checks),
		"failed":   len(report.Failed()),
		"warnings": len(report.Warnings()),
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("Preflight: complete")

	return report
}

func (p *Prober) checkPrivileges() Check {
	euid := p.euid()
	c := Check{Category: CategoryPermissions, Name: "root", Required: true, OK: euid == 0}
	if c.OK {
		c.Detail = "running as root"
	} else {
		c.Detail = fmt.Sprintf("running as uid %d; joining networks needs root", euid)
	}
	return c
}

func (p *Prober) checkTools(tools map[string]string) []Check {
	roles := make([]string, 0, len(tools))
	for role := range tools {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	checks := make([]Check, 0, len(roles))
	for _, role := range roles {
		bin := tools[role]
		c := Check{Category: CategoryTools, Name: role, Required: true}
		path, err := p.lookPath(bin)
		if err != nil {
			c.Detail = fmt.Sprintf("%s not found: %v", bin, err)
		} else {
			c.OK = true
			c.Detail = path
		}
		checks = append(checks, c)
	}
	return checks
}

func (p *Prober) checkAdapter(iface string) Check {
	// the adapter may be plugged in later, so absence only warns
	c := Check{Category: CategoryAdapter, Name: iface, OK: p.present(iface)}
	if c.OK {
		c.Detail = iface + " present"
	} else {
		c.Detail = iface + " not present"
	}
	return c
}

func (p *Prober) checkDirs(ctx context.Context, dirs map[string]string) []Check {
	roles := make([]string, 0, len(dirs))
	for role := range dirs {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var checks []Check
	for _, role := range roles {
		dir := dirs[role]
		c := Check{Category: CategoryStorage, Name: role, Required: true}
		if err := probeWritable(dir); err != nil {
			c.Detail = fmt.Sprintf("%s not writable: %v", dir, err)
			checks = append(checks, c)
			continue
		}
		c.OK = true
		c.Detail = dir + " writable"
		checks = append(checks, c)

		if usage, err := p.diskUsage(ctx, dir); err == nil {
			space := Check{
				Category: CategoryStorage,
				Name:     role + "_space",
				OK:       usage.Free >= minFreeBytes,
				Detail:   fmt.Sprintf("%s free on %s", humanize.Bytes(usage.Free), dir),
			}
			checks = append(checks, space)
		}
	}
	return checks
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".wifiscout-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}

func (p *Prober) checkHost(ctx context.Context) Check {
	c := Check{Category: CategoryHost, Name: "platform"}
	info, err := p.hostInfo(ctx)
	if err != nil {
		c.Detail = fmt.Sprintf("host info unavailable: %v", err)
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s %s %s (kernel %s, %s)", info.Hostname, info.Platform, info.PlatformVersion, info.KernelVersion, info.KernelArch)
	return c
}
