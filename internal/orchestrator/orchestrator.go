// Package orchestrator decides which nearby network to join next and runs
// the join, scan and disconnect sequence for it.
//
// HandleAccessPoints is the only trigger. Each call looks at the adapter,
// picks at most one candidate and hands it to a background worker; the call
// itself returns immediately. At most one worker runs at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"wifiscout/internal/connect"
	"wifiscout/internal/domain"
	"wifiscout/internal/scan"
	"wifiscout/internal/service"
	"wifiscout/internal/status"
)

// Connector joins and leaves networks
type Connector interface {
	Join(ctx context.Context, iface, ssid string, passphrase *string) (*connect.Connected, error)
	Disconnect(ctx context.Context, iface string)
}

// Scanner scans the network an interface is attached to
type Scanner interface {
	Scan(ctx context.Context, iface, label string) (*scan.Result, error)
}

// Presence reports whether the scanning adapter is attached
type Presence interface {
	Present(iface string) bool
}

// StatusSink receives the short status line
type StatusSink interface {
	Set(text string)
}

// SessionRecorder persists finished sessions
type SessionRecorder interface {
	Record(ctx context.Context, session *domain.ScanSession) error
}

// Config holds orchestrator settings
type Config struct {
	Interface         string
	MarkPolicy        domain.MarkPolicy
	JoinFailurePolicy domain.JoinFailurePolicy
	// CleanupTimeout bounds the disconnect and history write that follow a
	// sequence, which still run after shutdown has cancelled the worker
	CleanupTimeout time.Duration
}

// Deps are the collaborators the orchestrator drives
type Deps struct {
	Credentials *domain.CredentialSet
	Presence    Presence
	Connector   Connector
	Scanner     Scanner
	Status      StatusSink
	History     SessionRecorder   // optional
	Events      service.Publisher // optional
}

// Snapshot is a point-in-time view for the status API
type Snapshot struct {
	Ready          bool                `json:"ready"`
	State          domain.State        `json:"state"`
	SSID           string              `json:"ssid,omitempty"`
	AdapterPresent bool                `json:"adapter_present"`
	Scanned        []string            `json:"scanned"`
	LastSession    *domain.ScanSession `json:"last_session,omitempty"`
}

// candidate is the network chosen for one sequence
type candidate struct {
	ssid       string
	passphrase *string
}

func (c candidate) known() bool { return c.passphrase != nil }

// Orchestrator owns the scanned set and sequences connect, scan and disconnect
type Orchestrator struct {
	cfg   Config
	deps  Deps
	creds *domain.CredentialSet
	log   logrus.FieldLogger

	gate *semaphore.Weighted
	wg   sync.WaitGroup

	mu             sync.Mutex
	ready          bool
	ctx            context.Context
	cancel         context.CancelFunc
	state          domain.State
	current        string
	adapterMissing bool
	scanned        *domain.ScannedSet
	lastSession    *domain.ScanSession
}

// New creates an orchestrator. It ignores feed deliveries until Start.
func New(cfg Config, deps Deps, log logrus.FieldLogger) (*Orchestrator, error) {
	if cfg.Interface == "" {
		return nil, errors.New("orchestrator: interface required")
	}
	if deps.Presence == nil || deps.Connector == nil || deps.Scanner == nil || deps.Status == nil {
		return nil, errors.New("orchestrator: presence, connector, scanner and status are required")
	}
	if cfg.MarkPolicy == "" {
		cfg.MarkPolicy = domain.MarkAlways
	}
	if cfg.JoinFailurePolicy == "" {
		cfg.JoinFailurePolicy = domain.JoinFailureRetry
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 30 * time.Second
	}

	creds := deps.Credentials
	if creds == nil {
		creds = domain.EmptyCredentialSet()
	}

	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		creds:   creds,
		log:     log.WithField("iface", cfg.Interface),
		gate:    semaphore.NewWeighted(1),
		state:   domain.StateIdle,
		scanned: domain.NewScannedSet(),
	}, nil
}

// Start makes the orchestrator accept feed deliveries. Workers run under
// a context derived from ctx.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ready {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.ready = true
	o.log.WithFields(logrus.Fields{
		"mark_policy":         o.cfg.MarkPolicy,
		"join_failure_policy": o.cfg.JoinFailurePolicy,
		"known":               o.creds.KnownCount(),
		"skipped":             o.creds.SkipCount(),
	}).Info("Orchestrator: ready")
}

// Close stops accepting deliveries, cancels an in-flight worker and waits
// for its cleanup to finish
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.ready = false
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.log.Info("Orchestrator: stopped")
}

// Wait blocks until the in-flight worker, if any, has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Snapshot returns the current state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Ready:          o.ready,
		State:          o.state,
		SSID:           o.current,
		AdapterPresent: !o.adapterMissing,
		Scanned:        o.scanned.List(),
	}
	if o.lastSession != nil {
		s := *o.lastSession
		snap.LastSession = &s
	}
	return snap
}

// HandleAccessPoints runs one decision cycle over the current feed list.
// It never blocks on the connect/scan sequence.
func (o *Orchestrator) HandleAccessPoints(ctx context.Context, aps []domain.AccessPoint) {
	if ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return
	}

	if !o.deps.Presence.Present(o.cfg.Interface) {
		if !o.adapterMissing {
			o.adapterMissing = true
			o.log.Warn("Orchestrator: adapter disconnected")
			o.deps.Status.Set(status.AdapterMissing)
			o.publish(service.EventAdapterMissing, map[string]string{"interface": o.cfg.Interface})
		}
		return
	}
	if o.adapterMissing {
		o.adapterMissing = false
		o.log.Info("Orchestrator: adapter reconnected")
		o.deps.Status.Set(status.AdapterRestored)
		o.publish(service.EventAdapterRestored, map[string]string{"interface": o.cfg.Interface})
	}

	if o.state != domain.StateIdle {
		return
	}

	cand, ok := o.selectCandidate(aps)
	if !ok {
		o.deps.Status.Set(status.Searching)
		return
	}

	if !o.gate.TryAcquire(1) {
		return
	}

	session := domain.NewScanSession(cand.ssid, cand.known())
	o.state = domain.StateConnecting
	o.current = cand.ssid
	o.wg.Add(1)

	o.log.WithFields(logrus.Fields{"ssid": cand.ssid, "known": cand.known()}).Info("Orchestrator: selected network")
	go o.run(o.ctx, cand, session)
}

// selectCandidate applies known-first, then open-network selection.
// Caller holds o.mu.
func (o *Orchestrator) selectCandidate(aps []domain.AccessPoint) (candidate, bool) {
	visible := make(map[string]struct{}, len(aps))
	for _, ap := range aps {
		if ap.HasIdentifier() {
			visible[ap.SSID] = struct{}{}
		}
	}

	for _, kn := range o.creds.Known() {
		if o.scanned.Contains(kn.SSID) {
			continue
		}
		if _, ok := visible[kn.SSID]; !ok {
			continue
		}
		passphrase := kn.Passphrase
		return candidate{ssid: kn.SSID, passphrase: &passphrase}, true
	}

	for _, ap := range aps {
		if !ap.IsOpen() || !ap.HasIdentifier() {
			continue
		}
		if o.scanned.Contains(ap.SSID) {
			continue
		}
		if o.creds.IsSkipped(ap.SSID) {
			o.log.WithField("ssid", ap.SSID).Debug("Orchestrator: discarding skip-listed network")
			continue
		}
		return candidate{ssid: ap.SSID}, true
	}

	o.log.Debug("Orchestrator: no new networks to scan")
	return candidate{}, false
}

// run is the worker: join, scan, disconnect. Cleanup runs on every path.
func (o *Orchestrator) run(ctx context.Context, cand candidate, session *domain.ScanSession) {
	defer o.wg.Done()
	defer o.gate.Release(1)
	defer o.finish(ctx, session)
	defer o.disconnect(ctx)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker panic: %v", r)
			o.log.WithField("ssid", cand.ssid).WithError(err).Error("Orchestrator: recovered from panic")
			session.Fail("panic", err)
			o.deps.Status.Set(status.Failed(cand.ssid))
		}
	}()

	log := o.log.WithField("ssid", cand.ssid)
	o.publish(service.EventSessionStarted, map[string]interface{}{
		"id":    session.ID,
		"ssid":  cand.ssid,
		"known": cand.known(),
	})

	if _, err := o.deps.Connector.Join(ctx, o.cfg.Interface, cand.ssid, cand.passphrase); err != nil {
		stage := domain.FailureStage(err)
		log.WithError(err).WithField("stage", stage).Error("Orchestrator: join failed")
		session.Fail(stage, err)
		switch {
		case errors.Is(err, domain.ErrUnjoinable):
			// retrying cannot help and would hold back every later candidate
			log.Warn("Orchestrator: network cannot be joined, not retrying")
			o.scanned.Add(cand.ssid)
		case o.cfg.JoinFailurePolicy == domain.JoinFailureMark:
			o.scanned.Add(cand.ssid)
		}
		o.deps.Status.Set(status.Failed(cand.ssid))
		return
	}

	o.setState(domain.StateScanning)
	o.deps.Status.Set(status.Scanning(cand.ssid))

	result, err := o.deps.Scanner.Scan(ctx, o.cfg.Interface, cand.ssid)
	if err != nil {
		stage := domain.FailureStage(err)
		log.WithError(err).WithField("stage", stage).Error("Orchestrator: scan failed")
		session.Fail(stage, err)
	} else {
		session.Network = result.Network.String()
		session.Artifact = result.Artifact
		session.HostsUp = result.HostsUp
		session.Hosts = result.Hosts
		session.Succeed()
		log.WithFields(logrus.Fields{
			"artifact": result.Artifact,
			"hosts_up": result.HostsUp,
		}).Info("Orchestrator: scan saved")
	}

	if err == nil || o.cfg.MarkPolicy == domain.MarkAlways {
		o.scanned.Add(cand.ssid)
	}
	if err == nil {
		o.deps.Status.Set(status.Succeeded(cand.ssid))
	} else {
		o.deps.Status.Set(status.Failed(cand.ssid))
	}
}

// disconnect tears the link down even when ctx was cancelled by shutdown
func (o *Orchestrator) disconnect(ctx context.Context) {
	o.setState(domain.StateDisconnecting)

	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CleanupTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("panic", r).Error("Orchestrator: recovered from panic during disconnect")
		}
	}()
	o.deps.Connector.Disconnect(cleanup, o.cfg.Interface)
}

// finish records the session and returns to idle
func (o *Orchestrator) finish(ctx context.Context, session *domain.ScanSession) {
	if session.Outcome == domain.OutcomePending {
		session.Fail("unknown", errors.New("sequence ended without outcome"))
	}

	if o.deps.History != nil {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CleanupTimeout)
		if err := o.deps.History.Record(cleanup, session); err != nil {
			o.log.WithError(err).Warn("Orchestrator: could not record session")
		}
		cancel()
	}

	o.mu.Lock()
	o.state = domain.StateIdle
	o.current = ""
	o.lastSession = session
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s domain.State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) publish(t service.EventType, payload interface{}) {
	if o.deps.Events != nil {
		o.deps.Events.Publish(service.Event{Type: t, Payload: payload})
	}
}
