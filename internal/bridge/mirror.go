package bridge

import (
	"sort"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// departedNameTTL keeps names of players who left so late reports can
// still name them
const departedNameTTL = time.Hour

// Mirror is the last-known roster reported by the game server. It answers
// the query half of host.Host.
type Mirror struct {
	mu       sync.RWMutex
	players  map[string]PlayerState
	departed cache.Cache[string, string]
}

// NewMirror creates an empty roster
func NewMirror() *Mirror {
	return &Mirror{
		players:  make(map[string]PlayerState),
		departed: cache.NewCache[string, string]().WithTTL(departedNameTTL).WithMaxKeys(10000),
	}
}

// Upsert stores or replaces a player's state
func (m *Mirror) Upsert(p PlayerState) {
	m.mu.Lock()
	m.players[p.ID] = p
	m.mu.Unlock()
}

// Remove forgets a player, remembering their name for a while
func (m *Mirror) Remove(id string) {
	m.mu.Lock()
	p, found := m.players[id]
	delete(m.players, id)
	m.mu.Unlock()

	if found && p.Name != "" {
		m.departed.Set(id, p.Name, 0)
	}
}

// Replace swaps the whole roster and returns the IDs that are gone
func (m *Mirror) Replace(players []PlayerState) []string {
	next := make(map[string]PlayerState, len(players))
	for _, p := range players {
		next[p.ID] = p
	}

	m.mu.Lock()
	var gone []string
	for id, p := range m.players {
		if _, still := next[id]; !still {
			gone = append(gone, id)
			if p.Name != "" {
				m.departed.Set(id, p.Name, 0)
			}
		}
	}
	m.players = next
	m.mu.Unlock()

	sort.Strings(gone)
	return gone
}

// Player returns the stored state for id
func (m *Mirror) Player(id string) (PlayerState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, found := m.players[id]
	return p, found
}

func (m *Mirror) IsPrivileged(id string) bool {
	p, _ := m.Player(id)
	return p.Admin
}

func (m *Mirror) IsInvulnerable(id string) bool {
	p, _ := m.Player(id)
	return p.God
}

func (m *Mirror) HasPermission(id, perm string) bool {
	p, found := m.Player(id)
	return found && p.HasPermission(perm)
}

// DisplayName falls back to recently departed players
func (m *Mirror) DisplayName(id string) string {
	if p, found := m.Player(id); found {
		return p.Name
	}
	if name, found := m.departed.Get(id); found {
		return name
	}
	return ""
}

// OnlinePlayers returns connected IDs in sorted order
func (m *Mirror) OnlinePlayers() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
