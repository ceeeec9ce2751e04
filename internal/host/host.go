// Package host describes the game server this service runs against.
// Everything the watcher needs from the outside world goes through these
// interfaces, so the core never talks to a transport directly.
package host

import "fmt"

// OverridePermission exempts an admin from offense tracking and attack cancellation.
const OverridePermission = "adminfix.override"

// Host is the query and command surface of the game server.
type Host interface {
	// IsPrivileged reports whether the account is flagged as an admin
	IsPrivileged(id string) bool
	// IsInvulnerable reports whether the account is currently in god mode
	IsInvulnerable(id string) bool
	// HasPermission reports whether the account holds a named permission
	HasPermission(id, perm string) bool
	// DisplayName returns the account's name, or "" if unknown
	DisplayName(id string) string
	// OnlinePlayers lists every connected account
	OnlinePlayers() []string
	// Kick disconnects the account with a reason
	Kick(id, reason string)
	// SendChatMessage delivers a chat line to a single account
	SendChatMessage(id, text string)
}

// PermissionRegistry can declare a named permission on the game server.
type PermissionRegistry interface {
	RegisterPermission(name string)
}

// Vec3 is a world position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// Victim is the entity on the receiving end of an attack.
type Victim struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsPlayer bool   `json:"is_player"`
	IsNPC    bool   `json:"is_npc"`
	Position Vec3   `json:"position"`
}

// Verdict is a hook's answer to the game server.
type Verdict uint8

const (
	// Default leaves the game server's own behavior in place
	Default Verdict = iota
	// Cancel suppresses the attack's effect
	Cancel
	// Deny marks the player as not targetable
	Deny
)

func (v Verdict) String() string {
	switch v {
	case Cancel:
		return "cancel"
	case Deny:
		return "deny"
	default:
		return "default"
	}
}

// Label renders "name/id" the way notifications identify players.
func Label(h Host, id string) string {
	name := h.DisplayName(id)
	if name == "" {
		return id
	}
	return name + "/" + id
}
