package domain

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of a scan session
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ScanSession tracks one connect/scan/disconnect sequence
type ScanSession struct {
	ID         string     `json:"id" yaml:"id"`
	SSID       string     `json:"ssid" yaml:"ssid"`
	Known      bool       `json:"known" yaml:"known"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Outcome    Outcome    `json:"outcome" yaml:"outcome"`

	// Stage names the step that failed (empty on success)
	Stage    string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Network  string `json:"network,omitempty" yaml:"network,omitempty"`
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`

	HostsUp int           `json:"hosts_up" yaml:"hosts_up"`
	Hosts   []ScannedHost `json:"hosts,omitempty" yaml:"hosts,omitempty"`
}

// ScannedHost is a live host found during a session scan
type ScannedHost struct {
	IP        string `json:"ip" yaml:"ip"`
	Hostname  string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	MAC       string `json:"mac,omitempty" yaml:"mac,omitempty"`
	OpenPorts []int  `json:"open_ports,omitempty" yaml:"open_ports,omitempty"`
}

// NewScanSession starts a pending session for the given SSID
func NewScanSession(ssid string, known bool) *ScanSession {
	return &ScanSession{
		ID:        uuid.NewString(),
		SSID:      ssid,
		Known:     known,
		StartedAt: time.Now(),
		Outcome:   OutcomePending,
	}
}

// Succeed marks the session successful
func (s *ScanSession) Succeed() {
	now := time.Now()
	s.FinishedAt = &now
	s.Outcome = OutcomeSuccess
	s.Stage = ""
	s.Error = ""
}

// Fail marks the session failed at the given stage
func (s *ScanSession) Fail(stage string, err error) {
	now := time.Now()
	s.FinishedAt = &now
	s.Outcome = OutcomeFailure
	s.Stage = stage
	if err != nil {
		s.Error = err.Error()
	}
}

// Duration returns how long the session ran (zero while pending)
func (s *ScanSession) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// ScannedSet remembers every SSID attempted during this process lifetime.
// It only grows; a restart is the only way to clear it.
type ScannedSet struct {
	mu    sync.RWMutex
	ssids map[string]struct{}
}

// NewScannedSet creates an empty set
func NewScannedSet() *ScannedSet {
	return &ScannedSet{ssids: make(map[string]struct{})}
}

// Add records an SSID. Returns false if it was already present.
func (s *ScannedSet) Add(ssid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ssids[ssid]; ok {
		return false
	}
	s.ssids[ssid] = struct{}{}
	return true
}

// Contains reports whether the SSID was already attempted
func (s *ScannedSet) Contains(ssid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ssids[ssid]
	return ok
}

// Len returns the number of attempted SSIDs
func (s *ScannedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ssids)
}

// List returns the attempted SSIDs sorted
func (s *ScannedSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ssids))
	for ssid := range s.ssids {
		out = append(out, ssid)
	}
	sort.Strings(out)
	return out
}
