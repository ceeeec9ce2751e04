// Package service owns the watcher's state and wires its parts together.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"godwatch/internal/admin"
	"godwatch/internal/audit"
	"godwatch/internal/config"
	"godwatch/internal/hooks"
	"godwatch/internal/host"
	"godwatch/internal/offense"
	"godwatch/internal/watch"
)

// Notifier is the external message sink
type Notifier interface {
	Send(text string)
}

// Options holds the service's collaborators
type Options struct {
	Settings    config.Settings
	Host        host.Host
	Permissions host.PermissionRegistry // optional
	Notifier    Notifier
	Journal     *audit.Log // optional
}

// Service is created at startup and torn down at shutdown. It owns the
// admin registry and offense counters and hands them to the components
// that need them.
type Service struct {
	settings    config.Settings
	host        host.Host
	permissions host.PermissionRegistry

	registry *admin.Registry
	tracker  *offense.Tracker
	poller   *watch.Poller
	router   *hooks.Router

	mu      sync.Mutex
	started bool
}

// New builds the service. Nothing runs until Start.
func New(opts Options) *Service {
	settings := opts.Settings
	settings.Normalize()

	registry := admin.NewRegistry()
	tracker := offense.NewTracker(offense.Policy{
		AttacksBefore:      settings.AttacksBefore,
		AttackCount:        settings.AttackCount,
		KickAfterAttacking: settings.KickAfterAttacking,
	}, opts.Host, opts.Notifier, opts.Journal)
	interval := time.Duration(settings.IntervalSeconds) * time.Second

	return &Service{
		settings:    settings,
		host:        opts.Host,
		permissions: opts.Permissions,
		registry:    registry,
		tracker:     tracker,
		poller:      watch.NewPoller(registry, opts.Host, opts.Notifier, opts.Journal, interval),
		router: hooks.NewRouter(registry, tracker, opts.Host, opts.Journal, hooks.Features{
			CancelAttack:    settings.CancelAttack,
			TurretExemption: settings.TurretExemption,
		}),
	}
}

// Start registers the override permission, clears offense counters,
// registers admins that are already online and starts the poller.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.permissions != nil {
		s.permissions.RegisterPermission(host.OverridePermission)
	}
	s.tracker.Reset()

	if !s.settings.CancelAttack {
		log.Println("ℹ️ Attack cancellation disabled, attack events ignored")
	}
	if !s.settings.TurretExemption {
		log.Println("ℹ️ Turret exemption disabled, targeting queries ignored")
	}

	for _, id := range s.host.OnlinePlayers() {
		s.router.PlayerConnected(id)
	}

	s.poller.Start(ctx)
	log.Printf("✅ Admin watch started (%d admins online)", s.registry.Len())
}

// Stop halts the poller
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.poller.Stop()
	log.Println("🛑 Admin watch stopped")
}

// Settings returns the effective settings
func (s *Service) Settings() config.Settings {
	return s.settings
}

// Registry returns the admin registry
func (s *Service) Registry() *admin.Registry {
	return s.registry
}

// Offenses returns the offense tracker
func (s *Service) Offenses() *offense.Tracker {
	return s.tracker
}

// Router returns the event router for the host transport
func (s *Service) Router() *hooks.Router {
	return s.router
}

// Poller returns the god mode poller
func (s *Service) Poller() *watch.Poller {
	return s.poller
}
