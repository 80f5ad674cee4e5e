package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
)

// Handler receives each delivered access point list
type Handler func(ctx context.Context, aps []domain.AccessPoint)

// Poller fetches from a Source on a fixed interval and hands every list
// to the Handler. Fetch failures skip the cycle.
type Poller struct {
	source   Source
	handler  Handler
	interval time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller. A non-positive interval falls back to 10s.
func NewPoller(source Source, handler Handler, interval time.Duration, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		source:   source,
		handler:  handler,
		interval: interval,
		log:      log,
	}
}

// Start begins polling with an immediate first delivery
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.poll(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.log.Debug("Discovery: stopping poller")
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()

	p.log.WithField("interval", p.interval).Info("Discovery: poller started")
}

// Stop cancels polling and waits for the loop to exit
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Poll runs a single fetch and delivery
func (p *Poller) Poll(ctx context.Context) {
	p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) {
	aps, err := p.source.AccessPoints(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.WithError(err).Warn("Discovery: fetch failed, skipping cycle")
		}
		return
	}
	p.log.WithField("count", len(aps)).Debug("Discovery: delivering access points")
	p.handler(ctx, aps)
}
