// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"sort"
	"sync"
)

// Player is one fake connected account
type Player struct {
	Name        string
	Admin       bool
	God         bool
	Permissions map[string]bool
}

// Kick records a Kick call
type Kick struct {
	ID     string
	Reason string
}

// Chat records a SendChatMessage call
type Chat struct {
	ID   string
	Text string
}

// Host is a scriptable host.Host and host.PermissionRegistry
type Host struct {
	mu          sync.Mutex
	players     map[string]*Player
	kicks       []Kick
	chats       []Chat
	permissions []string
}

// New creates an empty fake host
func New() *Host {
	return &Host{players: make(map[string]*Player)}
}

// Join adds or replaces a player
func (h *Host) Join(id string, p Player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := p
	h.players[id] = &cp
}

// Leave removes a player
func (h *Host) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.players, id)
}

// SetGod flips a player's god mode
func (h *Host) SetGod(id string, god bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.players[id]; ok {
		p.God = god
	}
}

// Grant gives a player a permission
func (h *Host) Grant(id, perm string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.players[id]; ok {
		if p.Permissions == nil {
			p.Permissions = make(map[string]bool)
		}
		p.Permissions[perm] = true
	}
}

func (h *Host) IsPrivileged(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return ok && p.Admin
}

func (h *Host) IsInvulnerable(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return ok && p.God
}

func (h *Host) HasPermission(id, perm string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return ok && p.Permissions[perm]
}

func (h *Host) DisplayName(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.players[id]; ok {
		return p.Name
	}
	return ""
}

func (h *Host) OnlinePlayers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.players))
	for id := range h.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Host) Kick(id, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kicks = append(h.kicks, Kick{ID: id, Reason: reason})
}

func (h *Host) SendChatMessage(id, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chats = append(h.chats, Chat{ID: id, Text: text})
}

func (h *Host) RegisterPermission(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissions = append(h.permissions, name)
}

// Kicks returns recorded kicks
func (h *Host) Kicks() []Kick {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Kick(nil), h.kicks...)
}

// Chats returns recorded chat messages
func (h *Host) Chats() []Chat {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Chat(nil), h.chats...)
}

// Permissions returns registered permission names
func (h *Host) Permissions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.permissions...)
}

// Notifier records every message sent
type Notifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *Notifier) Send(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

// Messages returns everything sent so far
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
