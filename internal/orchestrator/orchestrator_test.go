package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"wifiscout/internal/connect"
	"wifiscout/internal/domain"
	"wifiscout/internal/logging"
	"wifiscout/internal/service"
	"wifiscout/internal/status"
)

var defaultSkip = []string{"Club_Totalplay_WiFi", "Megacable Gratis", "CASINO_HERMOSILLO"}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, Deps{}, logging.Discard()); err == nil {
		t.Error("expected error without interface")
	}
	if _, err := New(Config{Interface: "wlan1"}, Deps{}, logging.Discard()); err == nil {
		t.Error("expected error without collaborators")
	}
}

func TestOpenNetworkFullSequence(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())

	h.cycle(openAP("CafeOpen"))

	if got := h.conn.joined(); len(got) != 1 || got[0] != "CafeOpen" {
		t.Fatalf("joined = %v, want [CafeOpen]", got)
	}
	if h.conn.joins[0].passphrase != nil {
		t.Error("open network should be joined without passphrase")
	}
	if h.conn.joins[0].state != domain.StateConnecting {
		t.Errorf("state during join = %s, want connecting", h.conn.joins[0].state)
	}
	if h.scanner.states[0] != domain.StateScanning {
		t.Errorf("state during scan = %s, want scanning", h.scanner.states[0])
	}
	if h.conn.disconnState != domain.StateDisconnecting {
		t.Errorf("state during disconnect = %s, want disconnecting", h.conn.disconnState)
	}

	snap := h.o.Snapshot()
	if snap.State != domain.StateIdle || snap.SSID != "" {
		t.Errorf("final state = %s (%q), want idle", snap.State, snap.SSID)
	}
	if len(snap.Scanned) != 1 || snap.Scanned[0] != "CafeOpen" {
		t.Errorf("scanned = %v, want [CafeOpen]", snap.Scanned)
	}
	if h.status.last() != status.Succeeded("CafeOpen") {
		t.Errorf("status = %q", h.status.last())
	}
	if h.status.count(status.Scanning("CafeOpen")) != 1 {
		t.Error("scanning status should be shown once")
	}

	if len(h.history.sessions) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(h.history.sessions))
	}
	s := h.history.sessions[0]
	if s.Outcome != domain.OutcomeSuccess || s.HostsUp != 1 || s.Network != "192.168.1.0/24" {
		t.Errorf("unexpected session %+v", s)
	}
	if snap.LastSession == nil || snap.LastSession.ID != s.ID {
		t.Error("snapshot should expose the last session")
	}
	if h.events.count(service.EventSessionStarted) != 1 {
		t.Error("expected one session_started event")
	}
}

func TestSkipListedNetworkNeverSelected(t *testing.T) {
	creds := domain.NewCredentialSet(defaultSkip, nil)
	h := newHarness(t, Config{}, creds)

	for i := 0; i < 3; i++ {
		h.cycle(openAP("Club_Totalplay_WiFi"), openAP("Megacable Gratis"))
	}

	if got := h.conn.joined(); len(got) != 0 {
		t.Errorf("joined = %v, want none", got)
	}
	if snap := h.o.Snapshot(); len(snap.Scanned) != 0 {
		t.Errorf("scanned = %v, want empty", snap.Scanned)
	}
	if h.status.last() != status.Searching {
		t.Errorf("status = %q, want %q", h.status.last(), status.Searching)
	}
}

func TestSkipListSelectsNextOpenNetwork(t *testing.T) {
	creds := domain.NewCredentialSet(defaultSkip, nil)
	h := newHarness(t, Config{}, creds)

	h.cycle(openAP("CASINO_HERMOSILLO"), securedAP("Locked"), openAP(""), openAP("Plaza"))

	if got := h.conn.joined(); len(got) != 1 || got[0] != "Plaza" {
		t.Errorf("joined = %v, want [Plaza]", got)
	}
}

func TestKnownNetworkPreferred(t *testing.T) {
	creds := domain.NewCredentialSet(nil, []domain.KnownNetwork{{SSID: "Home", Passphrase: "secret12"}})
	h := newHarness(t, Config{}, creds)

	h.cycle(openAP("CafeOpen"), securedAP("Home"))

	joins := h.conn.joins
	if len(joins) != 1 || joins[0].ssid != "Home" {
		t.Fatalf("joined = %v, want [Home]", h.conn.joined())
	}
	if joins[0].passphrase == nil || *joins[0].passphrase != "secret12" {
		t.Error("known network should be joined with its passphrase")
	}
	if !h.history.sessions[0].Known {
		t.Error("session should be marked known")
	}

	// Next cycle falls through to the open network
	h.cycle(openAP("CafeOpen"), securedAP("Home"))
	if got := h.conn.joined(); len(got) != 2 || got[1] != "CafeOpen" {
		t.Errorf("joined = %v, want [Home CafeOpen]", got)
	}
}

func TestKnownNetworksInFileOrder(t *testing.T) {
	creds := domain.NewCredentialSet(nil, []domain.KnownNetwork{
		{SSID: "Second", Passphrase: "password2"},
		{SSID: "First", Passphrase: "password1"},
	})
	h := newHarness(t, Config{}, creds)

	aps := []domain.AccessPoint{securedAP("First"), securedAP("Second")}
	h.cycle(aps...)
	h.cycle(aps...)

	got := h.conn.joined()
	if len(got) != 2 || got[0] != "Second" || got[1] != "First" {
		t.Errorf("joined = %v, want [Second First]", got)
	}
}

func TestNoAddressStillMarkedAndDisconnected(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.scanner.err["CafeOpen"] = domain.ErrNoAddress

	h.cycle(openAP("CafeOpen"))

	if snap := h.o.Snapshot(); len(snap.Scanned) != 1 {
		t.Errorf("scanned = %v, want [CafeOpen]", snap.Scanned)
	}
	if n := h.conn.disconnectCount(); n != 1 {
		t.Errorf("disconnects = %d, want 1", n)
	}
	s := h.history.sessions[0]
	if s.Outcome != domain.OutcomeFailure || s.Stage != "no_address" {
		t.Errorf("session outcome=%s stage=%s, want failure/no_address", s.Outcome, s.Stage)
	}
	if h.status.last() != status.Failed("CafeOpen") {
		t.Errorf("status = %q", h.status.last())
	}
}

func TestDisconnectExactlyOncePerSequence(t *testing.T) {
	tests := []struct {
		name    string
		joinErr error
		scanErr error
	}{
		{name: "success"},
		{name: "scan failure", scanErr: &domain.ScanError{Kind: domain.ScanToolFailure, Err: errors.New("exit 1")}},
		{name: "scan timeout", scanErr: &domain.ScanError{Kind: domain.ScanTimeout, Err: errors.New("deadline")}},
		{name: "join failure", joinErr: &domain.ConnectError{Stage: domain.StageAssociate, SSID: "Net", Err: errors.New("exit 255")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, domain.EmptyCredentialSet())
			if tt.joinErr != nil {
				h.conn.joinErr["Net"] = tt.joinErr
			}
			if tt.scanErr != nil {
				h.scanner.err["Net"] = tt.scanErr
			}

			h.cycle(openAP("Net"))

			if n := h.conn.disconnectCount(); n != 1 {
				t.Errorf("disconnects = %d, want 1", n)
			}
			if snap := h.o.Snapshot(); snap.State != domain.StateIdle {
				t.Errorf("state = %s, want idle", snap.State)
			}
		})
	}
}

func TestNoSSIDJoinedTwice(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.scanner.err["B"] = errors.New("boom")

	aps := []domain.AccessPoint{openAP("A"), openAP("B"), openAP("C")}
	for i := 0; i < 10; i++ {
		h.cycle(aps...)
	}

	seen := map[string]int{}
	for _, ssid := range h.conn.joined() {
		seen[ssid]++
	}
	for ssid, n := range seen {
		if n != 1 {
			t.Errorf("%s joined %d times", ssid, n)
		}
	}
	if len(seen) != 3 {
		t.Errorf("joined %v, want A, B and C once each", seen)
	}
}

func TestAtMostOneWorker(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.scanner.block = make(chan struct{})
	h.scanner.started = make(chan struct{}, 1)

	ctx := context.Background()
	aps := []domain.AccessPoint{openAP("A"), openAP("B")}

	h.o.HandleAccessPoints(ctx, aps)
	select {
	case <-h.scanner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not reach scan")
	}

	h.o.HandleAccessPoints(ctx, aps)
	h.o.HandleAccessPoints(ctx, aps)
	if got := h.conn.joined(); len(got) != 1 {
		t.Fatalf("joined = %v while worker active, want one join", got)
	}
	if snap := h.o.Snapshot(); snap.State != domain.StateScanning || snap.SSID != "A" {
		t.Errorf("snapshot = %s/%q, want scanning/A", snap.State, snap.SSID)
	}

	close(h.scanner.block)
	h.o.Wait()

	h.o.HandleAccessPoints(ctx, aps)
	<-h.scanner.started
	h.o.Wait()
	if got := h.conn.joined(); len(got) != 2 || got[1] != "B" {
		t.Errorf("joined = %v, want [A B]", got)
	}
}

func TestConcurrentDeliveriesSpawnOneWorker(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.scanner.block = make(chan struct{})

	aps := []domain.AccessPoint{openAP("A"), openAP("B"), openAP("C")}
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			h.o.HandleAccessPoints(context.Background(), aps)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	close(h.scanner.block)
	h.o.Wait()
	if got := h.conn.joined(); len(got) != 1 {
		t.Errorf("joined = %v, want exactly one", got)
	}
}

func TestAdapterEdgesAreIdempotent(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.presence.present.Store(false)

	for i := 0; i < 5; i++ {
		h.cycle(openAP("CafeOpen"))
	}
	if n := h.status.count(status.AdapterMissing); n != 1 {
		t.Errorf("missing notifications = %d, want 1", n)
	}
	if n := h.events.count(service.EventAdapterMissing); n != 1 {
		t.Errorf("missing events = %d, want 1", n)
	}
	if got := h.conn.joined(); len(got) != 0 {
		t.Errorf("no join should happen while adapter absent, got %v", got)
	}
	if h.o.Snapshot().AdapterPresent {
		t.Error("snapshot should report adapter absent")
	}

	h.presence.present.Store(true)
	for i := 0; i < 3; i++ {
		h.cycle()
	}
	if n := h.status.count(status.AdapterRestored); n != 1 {
		t.Errorf("restored notifications = %d, want 1", n)
	}
	if n := h.events.count(service.EventAdapterRestored); n != 1 {
		t.Errorf("restored events = %d, want 1", n)
	}

	// A second outage produces a second pair of edges
	h.presence.present.Store(false)
	h.cycle()
	h.cycle()
	if n := h.status.count(status.AdapterMissing); n != 2 {
		t.Errorf("missing notifications after second outage = %d, want 2", n)
	}
}

func TestMarkPolicies(t *testing.T) {
	scanErr := &domain.ScanError{Kind: domain.ScanToolFailure, Err: errors.New("exit 1")}
	tests := []struct {
		name      string
		policy    domain.MarkPolicy
		wantJoins int
	}{
		{"mark-always marks failed scan", domain.MarkAlways, 1},
		{"mark-on-success leaves failed scan eligible", domain.MarkOnSuccess, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{MarkPolicy: tt.policy}, domain.EmptyCredentialSet())
			h.scanner.err["Flaky"] = scanErr

			for i := 0; i < 3; i++ {
				h.cycle(openAP("Flaky"))
			}
			if got := len(h.conn.joined()); got != tt.wantJoins {
				t.Errorf("joins = %d, want %d", got, tt.wantJoins)
			}
		})
	}
}

func TestJoinFailurePolicies(t *testing.T) {
	transient := &domain.ConnectError{Stage: domain.StageAddress, SSID: "Home", Err: errors.New("no lease")}
	unjoinable := &domain.ConnectError{Stage: domain.StageProfile, SSID: "Home",
		Err: fmt.Errorf("%w: passphrase must be 8 to 63 characters, got 5", domain.ErrUnjoinable)}
	creds := domain.NewCredentialSet(nil, []domain.KnownNetwork{{SSID: "Home", Passphrase: "secret12"}})

	tests := []struct {
		name        string
		policy      domain.JoinFailurePolicy
		err         *domain.ConnectError
		wantJoins   int
		wantScanned bool
	}{
		{"retry leaves network eligible", domain.JoinFailureRetry, transient, 3, false},
		{"mark stops retries", domain.JoinFailureMark, transient, 1, true},
		{"unjoinable marked even under retry", domain.JoinFailureRetry, unjoinable, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{JoinFailurePolicy: tt.policy}, creds)
			h.conn.joinErr["Home"] = tt.err

			for i := 0; i < 3; i++ {
				h.cycle(securedAP("Home"))
			}
			if got := len(h.conn.joined()); got != tt.wantJoins {
				t.Errorf("joins = %d, want %d", got, tt.wantJoins)
			}
			if got := len(h.o.Snapshot().Scanned) == 1; got != tt.wantScanned {
				t.Errorf("scanned = %v, want marked=%v", h.o.Snapshot().Scanned, tt.wantScanned)
			}
			if n := h.conn.disconnectCount(); n != tt.wantJoins {
				t.Errorf("disconnects = %d, want one per join (%d)", n, tt.wantJoins)
			}
			if len(h.scanner.calls) != 0 {
				t.Error("scanner must not run after a failed join")
			}
			if s := h.history.sessions[0]; s.Stage != string(tt.err.Stage) {
				t.Errorf("session stage = %q, want %s", s.Stage, tt.err.Stage)
			}
		})
	}
}

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }

type linkUp struct{}

func (linkUp) Present(string) bool { return true }

func (linkUp) WaitLinkUp(context.Context, string, time.Duration, time.Duration) (bool, error) {
	return true, nil
}

// joinRecorder records join attempts made through a real connect.Manager
type joinRecorder struct {
	*connect.Manager
	mu    sync.Mutex
	joins []string
}

func (r *joinRecorder) Join(ctx context.Context, iface, ssid string, passphrase *string) (*connect.Connected, error) {
	r.mu.Lock()
	r.joins = append(r.joins, ssid)
	r.mu.Unlock()
	return r.Manager.Join(ctx, iface, ssid, passphrase)
}

func TestBadKnownPassphraseDoesNotBlockOpenNetwork(t *testing.T) {
	creds := domain.NewCredentialSet(nil, []domain.KnownNetwork{{SSID: "Home", Passphrase: "short"}})
	conn := &joinRecorder{Manager: connect.NewManager(nopRunner{}, linkUp{}, logging.Discard(),
		connect.WithRuntimeDir(t.TempDir()),
		connect.WithSettle(time.Millisecond, time.Millisecond),
		connect.WithLinkCyclePause(0),
	)}
	scanner := &fakeScanner{err: map[string]error{}}

	o, err := New(Config{Interface: "wlan1"}, Deps{
		Credentials: creds,
		Presence:    newPresence(true),
		Connector:   conn,
		Scanner:     scanner,
		Status:      &recordingStatus{},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	scanner.o = o
	o.Start(context.Background())
	t.Cleanup(o.Close)

	for i := 0; i < 5; i++ {
		o.HandleAccessPoints(context.Background(), []domain.AccessPoint{securedAP("Home"), openAP("CafeOpen")})
		o.Wait()
	}

	if want := []string{"Home", "CafeOpen"}; !equalStrings(conn.joins, want) {
		t.Errorf("joins = %v, want %v", conn.joins, want)
	}
	if want := []string{"CafeOpen"}; !equalStrings(scanner.calls, want) {
		t.Errorf("scanned = %v, want %v", scanner.calls, want)
	}
	if got := o.Snapshot().Scanned; !equalStrings(got, []string{"CafeOpen", "Home"}) {
		t.Errorf("scanned set = %v, want [CafeOpen Home]", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIgnoredUntilStartedAndAfterClose(t *testing.T) {
	h := &harness{
		conn:     &fakeConnector{joinErr: map[string]error{}},
		scanner:  &fakeScanner{err: map[string]error{}},
		presence: newPresence(true),
		status:   &recordingStatus{},
	}
	o, err := New(Config{Interface: "wlan1"}, Deps{
		Presence:  h.presence,
		Connector: h.conn,
		Scanner:   h.scanner,
		Status:    h.status,
	}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	h.conn.o, h.scanner.o = o, o

	o.HandleAccessPoints(context.Background(), []domain.AccessPoint{openAP("A")})
	o.Wait()
	if len(h.conn.joined()) != 0 {
		t.Error("deliveries before Start must be ignored")
	}

	o.Start(context.Background())
	o.Close()
	o.HandleAccessPoints(context.Background(), []domain.AccessPoint{openAP("A")})
	o.Wait()
	if len(h.conn.joined()) != 0 {
		t.Error("deliveries after Close must be ignored")
	}
	if o.Snapshot().Ready {
		t.Error("snapshot should report not ready after Close")
	}
}

func TestWorkerPanicRecovered(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	h.scanner.panics = true

	h.cycle(openAP("Boom"))

	if n := h.conn.disconnectCount(); n != 1 {
		t.Errorf("disconnects = %d, want 1 after panic", n)
	}
	if s := h.history.sessions[0]; s.Outcome != domain.OutcomeFailure || s.Stage != "panic" {
		t.Errorf("session = %s/%s, want failure/panic", s.Outcome, s.Stage)
	}

	// The gate was released: the next network is picked up
	h.scanner.panics = false
	h.cycle(openAP("Boom"), openAP("Next"))
	if got := h.conn.joined(); len(got) != 2 || got[1] != "Next" {
		t.Errorf("joined = %v, want [Boom Next]", got)
	}
}

func TestCloseCancelsWorkerAndStillDisconnects(t *testing.T) {
	h := newHarness(t, Config{CleanupTimeout: time.Second}, domain.EmptyCredentialSet())
	h.scanner.block = make(chan struct{}) // never closed; only ctx ends the scan
	h.scanner.started = make(chan struct{}, 1)

	h.o.HandleAccessPoints(context.Background(), []domain.AccessPoint{openAP("Slow")})
	<-h.scanner.started

	closed := make(chan struct{})
	go func() {
		h.o.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the worker")
	}

	if n := h.conn.disconnectCount(); n != 1 {
		t.Errorf("disconnects = %d, want 1", n)
	}
	if h.conn.disconnErr != nil {
		t.Errorf("disconnect ran with a dead context: %v", h.conn.disconnErr)
	}
}

func TestCancelledDeliveryIsIgnored(t *testing.T) {
	h := newHarness(t, Config{}, domain.EmptyCredentialSet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.o.HandleAccessPoints(ctx, []domain.AccessPoint{openAP("A")})
	h.o.Wait()
	if len(h.conn.joined()) != 0 {
		t.Error("cancelled delivery should not start a worker")
	}
}
