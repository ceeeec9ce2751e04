package hooks

import (
	"testing"

	"godwatch/internal/admin"
	"godwatch/internal/host"
	"godwatch/internal/host/hosttest"
	"godwatch/internal/offense"
)

var player = &host.Victim{ID: "p1", Name: "Player", IsPlayer: true}

func newRouter(features Features) (*Router, *admin.Registry, *offense.Tracker, *hosttest.Host) {
	h := hosttest.New()
	h.Join("admin", hosttest.Player{Name: "Admin", Admin: true, God: true})
	h.Join("p1", hosttest.Player{Name: "Player"})
	reg := admin.NewRegistry()
	tr := offense.NewTracker(offense.Policy{AttacksBefore: 10, AttackCount: 15, KickAfterAttacking: true}, h, &hosttest.Notifier{}, nil)
	return NewRouter(reg, tr, h, nil, features), reg, tr, h
}

var allOn = Features{CancelAttack: true, TurretExemption: true}

func TestConnectRegistersOnlyAdmins(t *testing.T) {
	r, reg, _, _ := newRouter(allOn)

	r.PlayerConnected("p1")
	r.PlayerConnected("admin")
	r.PlayerConnected("admin")

	if reg.IsAdmin("p1") {
		t.Error("regular player must not be registered")
	}
	if !reg.IsAdmin("admin") || reg.Len() != 1 {
		t.Errorf("Expected exactly the admin registered, Len=%d", reg.Len())
	}
	rec, _ := reg.Get("admin")
	if !rec.Invulnerable {
		t.Error("registration should capture current god mode")
	}

	r.PlayerDisconnected("admin", "disconnect")
	if reg.IsAdmin("admin") {
		t.Error("disconnect should unregister")
	}
	r.PlayerDisconnected("admin", "disconnect") // stale, no-op
}

func TestAttackInGodModeIsCancelledAndCounted(t *testing.T) {
	r, _, tr, _ := newRouter(allOn)
	r.PlayerConnected("admin")

	if v := r.PlayerAttacked("admin", player, true); v != host.Cancel {
		t.Errorf("Expected cancel, got %v", v)
	}
	if tr.Count("admin") != 1 {
		t.Errorf("Expected count 1, got %d", tr.Count("admin"))
	}

	if v := r.PlayerAttacked("admin", player, false); v != host.Default {
		t.Errorf("uncancellable attack should get default, got %v", v)
	}
	if tr.Count("admin") != 2 {
		t.Errorf("uncancellable attack still counts, got %d", tr.Count("admin"))
	}
}

func TestAttackAllowedCases(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *hosttest.Host)
		victim *host.Victim
	}{
		{
			name:   "override permission",
			setup:  func(h *hosttest.Host) { h.Grant("admin", host.OverridePermission) },
			victim: player,
		},
		{
			name:   "no victim",
			victim: nil,
		},
		{
			name:   "npc victim",
			victim: &host.Victim{ID: "npc", IsPlayer: true, IsNPC: true},
		},
		{
			name:   "non-player entity",
			victim: &host.Victim{ID: "turret"},
		},
		{
			name:   "admin not in god mode",
			setup:  func(h *hosttest.Host) { h.SetGod("admin", false) },
			victim: player,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, tr, h := newRouter(allOn)
			r.PlayerConnected("admin")
			if tt.setup != nil {
				tt.setup(h)
			}

			for i := 0; i < 20; i++ {
				if v := r.PlayerAttacked("admin", tt.victim, true); v != host.Default {
					t.Fatalf("Expected default, got %v", v)
				}
			}
			if tr.Count("admin") != 0 {
				t.Errorf("Expected no offenses, got %d", tr.Count("admin"))
			}
			if len(h.Kicks()) != 0 {
				t.Errorf("Expected no kicks, got %v", h.Kicks())
			}
		})
	}
}

// TestNonAdminAttackerIgnored verifies regular players are never tracked
func TestNonAdminAttackerIgnored(t *testing.T) {
	r, _, tr, h := newRouter(allOn)
	r.PlayerConnected("admin")
	h.SetGod("p1", true)

	r.PlayerAttacked("p1", &host.Victim{ID: "admin", IsPlayer: true}, true)
	if tr.Count("p1") != 0 {
		t.Errorf("Expected no offense for non-admin, got %d", tr.Count("p1"))
	}
}

// TestCancelAttackDisabled: flag off, god mode admin attacks 5 times, count stays 0
func TestCancelAttackDisabled(t *testing.T) {
	r, _, tr, _ := newRouter(Features{CancelAttack: false, TurretExemption: true})
	r.PlayerConnected("admin")

	if r.AttackSubscribed() {
		t.Fatal("attack channel must not be subscribed")
	}
	for i := 0; i < 5; i++ {
		if v := r.PlayerAttacked("admin", player, true); v != host.Default {
			t.Errorf("Expected default, got %v", v)
		}
	}
	if tr.Count("admin") != 0 {
		t.Errorf("Expected count 0, got %d", tr.Count("admin"))
	}
}

// TestSubscriptionsFollowOccupancy verifies channels are suspended with no admins online
func TestSubscriptionsFollowOccupancy(t *testing.T) {
	r, _, _, _ := newRouter(allOn)

	if r.AttackSubscribed() || r.TargetSubscribed() {
		t.Error("no admins online, channels should be suspended")
	}
	r.PlayerConnected("admin")
	if !r.AttackSubscribed() || !r.TargetSubscribed() {
		t.Error("admin online, channels should be active")
	}
	r.PlayerDisconnected("admin", "bye")
	if r.AttackSubscribed() || r.TargetSubscribed() {
		t.Error("last admin left, channels should be suspended")
	}
}

func TestCanBeTargeted(t *testing.T) {
	r, _, _, h := newRouter(allOn)
	r.PlayerConnected("admin")

	if v := r.CanBeTargeted("admin"); v != host.Deny {
		t.Errorf("god mode admin: expected deny, got %v", v)
	}
	if v := r.CanBeTargeted("p1"); v != host.Default {
		t.Errorf("regular player: expected default, got %v", v)
	}
	h.SetGod("admin", false)
	if v := r.CanBeTargeted("admin"); v != host.Default {
		t.Errorf("mortal admin: expected default, got %v", v)
	}
}

func TestCanBeTargetedDisabled(t *testing.T) {
	r, _, _, _ := newRouter(Features{CancelAttack: true, TurretExemption: false})
	r.PlayerConnected("admin")

	if v := r.CanBeTargeted("admin"); v != host.Default {
		t.Errorf("feature off: expected default, got %v", v)
	}
}
