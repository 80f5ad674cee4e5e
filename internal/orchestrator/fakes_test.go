package orchestrator

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"wifiscout/internal/connect"
	"wifiscout/internal/domain"
	"wifiscout/internal/logging"
	"wifiscout/internal/scan"
	"wifiscout/internal/service"
)

type joinCall struct {
	ssid       string
	passphrase *string
	state      domain.State
}

type fakeConnector struct {
	o *Orchestrator

	mu           sync.Mutex
	joins        []joinCall
	disconnects  int
	disconnState domain.State
	disconnErr   error // ctx error seen by Disconnect
	joinErr      map[string]error
}

func (f *fakeConnector) Join(ctx context.Context, iface, ssid string, passphrase *string) (*connect.Connected, error) {
	state := f.o.Snapshot().State
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, joinCall{ssid: ssid, passphrase: passphrase, state: state})
	if err := f.joinErr[ssid]; err != nil {
		return nil, err
	}
	return &connect.Connected{Interface: iface, SSID: ssid}, nil
}

func (f *fakeConnector) Disconnect(ctx context.Context, iface string) {
	state := f.o.Snapshot().State
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.disconnState = state
	f.disconnErr = ctx.Err()
}

func (f *fakeConnector) joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, j := range f.joins {
		out = append(out, j.ssid)
	}
	return out
}

func (f *fakeConnector) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type fakeScanner struct {
	o *Orchestrator

	mu      sync.Mutex
	calls   []string
	states  []domain.State
	err     map[string]error
	block   chan struct{} // when set, Scan waits on it or ctx
	started chan struct{}
	panics  bool
}

func (f *fakeScanner) Scan(ctx context.Context, iface, label string) (*scan.Result, error) {
	state := f.o.Snapshot().State
	f.mu.Lock()
	f.calls = append(f.calls, label)
	f.states = append(f.states, state)
	block, started, panics := f.block, f.started, f.panics
	err := f.err[label]
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if panics {
		panic("scanner exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &domain.ScanError{Kind: domain.ScanToolFailure, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	return &scan.Result{
		Artifact: "/tmp/" + label + ".xml",
		Network:  netip.MustParsePrefix("192.168.1.0/24"),
		HostsUp:  1,
		Hosts:    []domain.ScannedHost{{IP: "192.168.1.1"}},
	}, nil
}

type fakePresence struct {
	present atomic.Bool
}

func newPresence(present bool) *fakePresence {
	p := &fakePresence{}
	p.present.Store(present)
	return p
}

func (f *fakePresence) Present(string) bool { return f.present.Load() }

type recordingStatus struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingStatus) Set(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
}

func (r *recordingStatus) count(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l == text {
			n++
		}
	}
	return n
}

func (r *recordingStatus) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

type recordingHistory struct {
	mu       sync.Mutex
	sessions []domain.ScanSession
}

func (h *recordingHistory) Record(ctx context.Context, s *domain.ScanSession) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, *s)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *recordingEvents) Publish(ev service.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEvents) count(t service.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	o        *Orchestrator
	conn     *fakeConnector
	scanner  *fakeScanner
	presence *fakePresence
	status   *recordingStatus
	history  *recordingHistory
	events   *recordingEvents
}

func newHarness(t *testing.T, cfg Config, creds *domain.CredentialSet) *harness {
	t.Helper()
	if cfg.Interface == "" {
		cfg.Interface = "wlan1"
	}
	h := &harness{
		conn:     &fakeConnector{joinErr: map[string]error{}},
		scanner:  &fakeScanner{err: map[string]error{}},
		presence: newPresence(true),
		status:   &recordingStatus{},
		history:  &recordingHistory{},
		events:   &recordingEvents{},
	}
	o, err := New(cfg, Deps{
		Credentials: creds,
		Presence:    h.presence,
		Connector:   h.conn,
		Scanner:     h.scanner,
		Status:      h.status,
		History:     h.history,
		Events:      h.events,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h.o = o
	h.conn.o = o
	h.scanner.o = o

	o.Start(context.Background())
	t.Cleanup(o.Close)
	return h
}

// cycle delivers aps and waits for any worker it started
func (h *harness) cycle(aps ...domain.AccessPoint) {
	h.o.HandleAccessPoints(context.Background(), aps)
	h.o.Wait()
}

func openAP(ssid string) domain.AccessPoint {
	return domain.AccessPoint{SSID: ssid, Encryption: "OPEN"}
}

func securedAP(ssid string) domain.AccessPoint {
	return domain.AccessPoint{SSID: ssid, Encryption: "WPA2"}
}
