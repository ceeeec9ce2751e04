package bridge

import "godwatch/internal/host"

// Frame types sent by the game server
const (
	FrameSync       = "sync"       // full roster, sent once per connection
	FrameConnect    = "connect"    // player joined
	FrameDisconnect = "disconnect" // player left
	FrameState      = "state"      // player flags changed
	FrameAttack     = "attack"     // expects FrameAttackResult
	FrameTarget     = "target"     // expects FrameTargetResult
)

// Frame types sent to the game server
const (
	FrameAttackResult       = "attack_result"
	FrameTargetResult       = "target_result"
	FrameKick               = "kick"
	FrameChat               = "chat"
	FrameRegisterPermission = "register_permission"
)

// PlayerState is the game server's view of one connected player
type PlayerState struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Admin       bool     `json:"admin"`
	God         bool     `json:"god"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether perm was granted
func (p PlayerState) HasPermission(perm string) bool {
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// Frame is one JSON websocket message in either direction. Only the fields
// relevant to Type are set.
type Frame struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`

	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text,omitempty"`

	Player  *PlayerState  `json:"player,omitempty"`
	Players []PlayerState `json:"players,omitempty"`

	Attacker  string       `json:"attacker,omitempty"`
	Victim    *host.Victim `json:"victim,omitempty"`
	CanCancel bool         `json:"can_cancel,omitempty"`

	Verdict string `json:"verdict,omitempty"`
}

// knownFrame bounds the metrics label
func knownFrame(t string) string {
	switch t {
	case FrameSync, FrameConnect, FrameDisconnect, FrameState, FrameAttack, FrameTarget:
		return t
	default:
		return "unknown"
	}
}
