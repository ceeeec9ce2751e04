// Package hooks routes game server events into the admin registry and the
// offense tracker.
package hooks

import (
	"log"
	"sync/atomic"

	"godwatch/internal/admin"
	"godwatch/internal/audit"
	"godwatch/internal/host"
	"godwatch/internal/metrics"
	"godwatch/internal/offense"
)

// Features are the startup flags that decide which channels exist at all.
type Features struct {
	CancelAttack    bool // subscribe to attack events
	TurretExemption bool // subscribe to targetability queries
}

// Router dispatches host events. Every handler is cheap and non-blocking.
type Router struct {
	registry *admin.Registry
	tracker  *offense.Tracker
	host     host.Host
	journal  *audit.Log
	features Features

	// occupied mirrors registry non-emptiness; channels are live only
	// while at least one admin is online
	occupied atomic.Bool
}

// NewRouter creates a router and hooks it to the registry's occupancy
// changes. journal may be nil.
func NewRouter(registry *admin.Registry, tracker *offense.Tracker, h host.Host, journal *audit.Log, features Features) *Router {
	r := &Router{
		registry: registry,
		tracker:  tracker,
		host:     h,
		journal:  journal,
		features: features,
	}
	r.occupied.Store(registry.Len() > 0)
	registry.OnOccupancy(r.setOccupied)
	return r
}

func (r *Router) setOccupied(occupied bool) {
	if r.occupied.Swap(occupied) == occupied {
		return
	}
	if occupied {
		log.Println("🔔 Admin online, combat hooks active")
	} else {
		log.Println("🔕 No admins online, combat hooks suspended")
	}
}

// AttackSubscribed reports whether attack events are currently evaluated
func (r *Router) AttackSubscribed() bool {
	return r.features.CancelAttack && r.occupied.Load()
}

// TargetSubscribed reports whether targetability queries are currently evaluated
func (r *Router) TargetSubscribed() bool {
	return r.features.TurretExemption && r.occupied.Load()
}

// PlayerConnected registers the player if they are an admin
func (r *Router) PlayerConnected(id string) {
	if !r.host.IsPrivileged(id) {
		return
	}
	invulnerable := r.host.IsInvulnerable(id)
	if !r.registry.Register(id, invulnerable) {
		return
	}
	metrics.SetAdminsOnline(r.registry.Len())
	r.journal.EmitSimple(audit.EventTypeConnect, id, audit.ConnectPayload{
		Name:         r.host.DisplayName(id),
		Invulnerable: invulnerable,
	})
	log.Printf("🛡️ Tracking admin %s (god mode: %t)", host.Label(r.host, id), invulnerable)
}

// PlayerDisconnected drops the player from the registry. The offense
// counter is kept for the life of the process.
func (r *Router) PlayerDisconnected(id, reason string) {
	if !r.registry.Unregister(id) {
		return
	}
	metrics.SetAdminsOnline(r.registry.Len())
	r.journal.EmitSimple(audit.EventTypeDisconnect, id, audit.DisconnectPayload{Reason: reason})
	log.Printf("👋 Admin %s left (%s)", host.Label(r.host, id), reason)
}

// PlayerAttacked decides an attack by attacker on victim. victim is nil
// when the target is not an entity the host can describe.
func (r *Router) PlayerAttacked(attacker string, victim *host.Victim, canCancel bool) host.Verdict {
	if !r.AttackSubscribed() {
		return host.Default
	}
	if !r.host.IsPrivileged(attacker) {
		return host.Default
	}
	if r.host.HasPermission(attacker, host.OverridePermission) {
		return host.Default
	}
	if victim == nil || !victim.IsPlayer || victim.IsNPC {
		return host.Default
	}
	if !r.host.IsInvulnerable(attacker) {
		return host.Default
	}

	r.tracker.Record(attacker, *victim)
	if !canCancel {
		return host.Default
	}
	return host.Cancel
}

// CanBeTargeted answers whether automated defenses may target id
func (r *Router) CanBeTargeted(id string) host.Verdict {
	if !r.TargetSubscribed() {
		return host.Default
	}
	if !r.host.IsPrivileged(id) {
		return host.Default
	}
	if r.host.IsInvulnerable(id) {
		return host.Deny
	}
	return host.Default
}
