// Package watch re-samples every tracked admin's god mode on a fixed
// interval and reports changes.
package watch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"godwatch/internal/admin"
	"godwatch/internal/audit"
	"godwatch/internal/host"
	"godwatch/internal/metrics"
)

// DefaultInterval is used when no interval is configured
const DefaultInterval = 15 * time.Second

// Notifier sends a line of text to the external sink without blocking.
type Notifier interface {
	Send(text string)
}

// Poller detects god mode transitions by sampling. Toggles that happen and
// revert within one interval are not seen.
type Poller struct {
	registry *admin.Registry
	host     host.Host
	notifier Notifier
	journal  *audit.Log
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPoller creates a poller; it does nothing until Start. journal may be nil.
func NewPoller(registry *admin.Registry, h host.Host, notifier Notifier, journal *audit.Log, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		registry: registry,
		host:     h,
		notifier: notifier,
		journal:  journal,
		interval: interval,
	}
}

// Interval returns the sampling period
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start runs Tick every interval until ctx is done or Stop is called
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	log.Printf("👀 God mode poller started (every %v)", p.interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Tick()
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-progress tick
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
}

// Tick samples every registered admin once and returns how many
// transitions it found.
func (p *Poller) Tick() int {
	start := time.Now()
	transitions := 0

	for rec := range p.registry.Snapshot() {
		current := p.host.IsInvulnerable(rec.ID)
		changed, ok := p.registry.Observe(rec.ID, current)
		if !ok || !changed {
			// ok=false: disconnected since the snapshot
			continue
		}
		transitions++
		p.report(rec.ID, current)
	}

	metrics.ObservePoll(time.Since(start).Seconds())
	return transitions
}

func (p *Poller) report(id string, invulnerable bool) {
	label := host.Label(p.host, id)
	seconds := int(p.interval / time.Second)

	log.Printf("⚠️ %s has changed their god mode status to %t within the last %d seconds!", label, invulnerable, seconds)
	metrics.RecordTransition(invulnerable)
	p.journal.EmitSimple(audit.EventTypeTransition, id, audit.TransitionPayload{
		Invulnerable:    invulnerable,
		IntervalSeconds: seconds,
	})
	p.notifier.Send(TransitionMessage(label, invulnerable, seconds))
}

// TransitionMessage formats the webhook text for a god mode change
func TransitionMessage(label string, invulnerable bool, seconds int) string {
	return fmt.Sprintf("`[AdminWatch]: %s changed god mode status to %t within the last %d seconds`", label, invulnerable, seconds)
}
