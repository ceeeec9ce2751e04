// Package offense counts attacks made by admins while in god mode and
// escalates from a chat warning to a webhook report to a kick.
package offense

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"godwatch/internal/audit"
	"godwatch/internal/host"
	"godwatch/internal/metrics"
)

const (
	// ReportEvery gates detailed reports once AttacksBefore is reached
	ReportEvery = 5

	WarningMessage = "[<color=red>Warning</color>]: You are PvPing while in God Mode!"
	KickReason     = "Stop attacking players while in God Mode!!"
)

// Policy holds the escalation thresholds.
type Policy struct {
	AttacksBefore      int  // detailed reports start at this count
	AttackCount        int  // kick at this count
	KickAfterAttacking bool // whether AttackCount kicks at all
}

// Notifier sends a line of text to the external sink without blocking.
type Notifier interface {
	Send(text string)
}

// Outcome describes what a single Record call did.
type Outcome struct {
	Count    int  // counter value this offense produced (before any kick reset)
	Reported bool // detailed notification sent
	Warned   bool // chat warning sent to the attacker
	Kicked   bool // attacker kicked and counter reset
}

// Tracker holds one counter per attacker.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int

	policy   Policy
	host     host.Host
	notifier Notifier
	journal  *audit.Log
}

// NewTracker creates a tracker. journal may be nil.
func NewTracker(policy Policy, h host.Host, notifier Notifier, journal *audit.Log) *Tracker {
	return &Tracker{
		counts:   make(map[string]int),
		policy:   policy,
		host:     h,
		notifier: notifier,
		journal:  journal,
	}
}

// Record counts one offense by attacker against victim and applies the
// escalation policy. The report check and the kick check are independent;
// when both fire the report carries the pre-reset count.
func (t *Tracker) Record(attacker string, victim host.Victim) Outcome {
	t.mu.Lock()
	count := t.counts[attacker] + 1
	t.counts[attacker] = count

	out := Outcome{Count: count}
	out.Reported = count >= t.policy.AttacksBefore && count%ReportEvery == 0
	out.Warned = !out.Reported
	out.Kicked = t.policy.KickAfterAttacking && count >= t.policy.AttackCount
	if out.Kicked {
		t.counts[attacker] = 0
	}
	t.mu.Unlock()

	metrics.RecordOffense()
	t.journal.EmitSimple(audit.EventTypeOffense, attacker, audit.OffensePayload{
		Victim:   victim.ID,
		Count:    count,
		Position: victim.Position,
	})

	if out.Reported {
		t.notifier.Send(t.reportMessage(attacker, victim, count))
	} else {
		t.host.SendChatMessage(attacker, WarningMessage)
	}

	if out.Kicked {
		log.Printf("🥾 Kicking %s after %d attacks in god mode", host.Label(t.host, attacker), count)
		t.host.Kick(attacker, KickReason)
		metrics.RecordKick()
		t.journal.EmitSimple(audit.EventTypeKick, attacker, audit.KickPayload{
			Reason: KickReason,
			Count:  count,
		})
	}

	return out
}

func (t *Tracker) reportMessage(attacker string, victim host.Victim, count int) string {
	victimLabel := victim.ID
	if victim.Name != "" {
		victimLabel = victim.Name + "/" + victim.ID
	}
	return fmt.Sprintf("```[AdminWatch]: %s tried to attack %s while in god mode. \n"+
		"\nThey have done this %d times. \n"+
		"\nVictim Position: %s```",
		host.Label(t.host, attacker), victimLabel, count, victim.Position)
}

// Count returns the current counter for id (0 if none).
func (t *Tracker) Count(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[id]
}

// Reset drops every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.counts = make(map[string]int)
	t.mu.Unlock()
}

// Entry is one counter in a Snapshot.
type Entry struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Snapshot returns every counter sorted by descending count.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.counts))
	for id, count := range t.counts {
		entries = append(entries, Entry{ID: id, Count: count})
	}
	t.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
