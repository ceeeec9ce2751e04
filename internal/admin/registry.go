// Package admin keeps the set of connected admins and the god mode state
// last observed for each of them.
package admin

import (
	"iter"
	"sort"
	"sync"
)

// Record is one connected admin.
type Record struct {
	ID           string `json:"id"`
	Invulnerable bool   `json:"invulnerable"`
}

// Registry is the authoritative admin set, keyed by account ID.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	// onOccupancy fires when the registry goes empty -> non-empty (true)
	// or non-empty -> empty (false)
	onOccupancy func(occupied bool)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// OnOccupancy registers the empty/non-empty transition callback.
// The callback runs outside the registry lock.
func (r *Registry) OnOccupancy(fn func(occupied bool)) {
	r.mu.Lock()
	r.onOccupancy = fn
	r.mu.Unlock()
}

// Register adds an admin. Registering an ID that is already present keeps
// the existing record and returns false.
func (r *Registry) Register(id string, invulnerable bool) bool {
	r.mu.Lock()
	if _, exists := r.records[id]; exists {
		r.mu.Unlock()
		return false
	}
	r.records[id] = &Record{ID: id, Invulnerable: invulnerable}
	first := len(r.records) == 1
	fn := r.onOccupancy
	r.mu.Unlock()

	if first && fn != nil {
		fn(true)
	}
	return true
}

// Unregister removes an admin. Returns false if the ID was not registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	if _, exists := r.records[id]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.records, id)
	empty := len(r.records) == 0
	fn := r.onOccupancy
	r.mu.Unlock()

	if empty && fn != nil {
		fn(false)
	}
	return true
}

// IsAdmin reports registry membership.
func (r *Registry) IsAdmin(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.records[id]
	return found
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, found := r.records[id]
	if !found {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of registered admins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Observe stores a freshly sampled god mode value. changed is true when it
// differs from the stored one; ok is false if id is no longer registered,
// in which case nothing is stored.
func (r *Registry) Observe(id string, invulnerable bool) (changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, found := r.records[id]
	if !found {
		return false, false
	}
	if rec.Invulnerable == invulnerable {
		return false, true
	}
	rec.Invulnerable = invulnerable
	return true, true
}

// Snapshot returns a lazy sequence over the current records. Each range
// over it copies the registry at that moment, so it can be ranged again
// and the loop body may mutate the registry freely.
func (r *Registry) Snapshot() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range r.copyRecords() {
			if !yield(rec) {
				return
			}
		}
	}
}

// List returns the current records sorted by ID.
func (r *Registry) List() []Record {
	records := r.copyRecords()
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}

func (r *Registry) copyRecords() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec)
	}
	return records
}
