// Package audit writes a local, append-only JSONL trail of what the
// watcher saw and did. It is bounded and rate limited so a misbehaving
// game server cannot fill the disk; entries are dropped, never blocked on.
package audit

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	goccy "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"godwatch/internal/metrics"
)

const (
	BufferSize           = 1024
	MaxEventsPerSec      = 500
	MaxEventsPerPlayer   = 20
	BatchFlushSize       = 64
	BatchFlushInterval   = 250 * time.Millisecond
	PlayerLimiterCleanup = 5 * time.Minute
)

// Log is the audit writer. A nil *Log accepts and discards everything.
type Log struct {
	events chan Event
	out    io.Writer
	closer io.Closer

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // map[string]*playerLimiterEntry

	sequence atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

type playerLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// New creates a log writing to out. If out is an io.Closer it is closed on Stop.
func New(out io.Writer) *Log {
	l := &Log{
		events:        make(chan Event, BufferSize),
		out:           out,
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
	if c, ok := out.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Start launches the writer and limiter cleanup goroutines
func (l *Log) Start() {
	if l == nil || l.running.Swap(true) {
		return
	}
	l.wg.Add(2)
	go l.writerLoop()
	go l.cleanupLoop()
}

// Stop flushes pending events and closes the output
func (l *Log) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		l.running.Store(false)
		close(l.stopChan)
		l.wg.Wait()
		if l.closer != nil {
			if err := l.closer.Close(); err != nil {
				log.Printf("⚠️ Closing audit log: %v", err)
			}
		}
	})
}

// Emit queues an event. Returns false if the log is stopped, rate limited
// or full.
func (l *Log) Emit(event Event) bool {
	if l == nil || !l.running.Load() {
		return false
	}

	if !l.globalLimiter.Allow() {
		l.drop()
		return false
	}
	if event.PlayerID != "" && !l.playerLimiter(event.PlayerID).Allow() {
		l.drop()
		return false
	}

	event.Sequence = l.sequence.Add(1)
	select {
	case l.events <- event:
		return true
	default:
		l.drop()
		return false
	}
}

// EmitSimple builds and queues an event
func (l *Log) EmitSimple(eventType EventType, playerID string, payload interface{}) bool {
	if l == nil {
		return false
	}
	return l.Emit(NewEvent(eventType, playerID, payload))
}

func (l *Log) drop() {
	l.dropped.Add(1)
	metrics.RecordAuditDropped()
}

func (l *Log) playerLimiter(playerID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := l.playerLimiters.Load(playerID); ok {
		e := entry.(*playerLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &playerLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerPlayer, MaxEventsPerPlayer),
	}
	entry.lastUsed.Store(now)
	actual, _ := l.playerLimiters.LoadOrStore(playerID, entry)
	return actual.(*playerLimiterEntry).limiter
}

func (l *Log) writerLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-l.stopChan:
			for {
				batch = l.collect(batch[:0])
				if len(batch) == 0 {
					return
				}
				l.flush(batch)
			}
		case <-ticker.C:
			batch = l.collect(batch[:0])
			if len(batch) > 0 {
				l.flush(batch)
			}
		}
	}
}

// collect drains up to BatchFlushSize queued events without blocking
func (l *Log) collect(batch []Event) []Event {
	for len(batch) < BatchFlushSize {
		select {
		case ev := <-l.events:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (l *Log) flush(batch []Event) {
	for _, ev := range batch {
		data, err := goccy.Marshal(ev)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := l.out.Write(data); err != nil {
			log.Printf("⚠️ Audit write failed: %v", err)
			return
		}
		l.written.Add(1)
	}
}

func (l *Log) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(PlayerLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-PlayerLimiterCleanup).UnixNano()
			l.playerLimiters.Range(func(key, value interface{}) bool {
				if value.(*playerLimiterEntry).lastUsed.Load() < cutoff {
					l.playerLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

// Stats holds audit counters
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
	Running bool   `json:"running"`
}

// Stats returns current counters
func (l *Log) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Written: l.written.Load(),
		Dropped: l.dropped.Load(),
		Pending: len(l.events),
		Running: l.running.Load(),
	}
}
