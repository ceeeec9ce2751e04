// Package notify delivers short text messages to a Discord-style webhook.
//
// Send never blocks the caller: messages go into a bounded queue drained by
// a single dispatcher goroutine. A failed delivery is logged and dropped;
// nothing is retried and no error reaches the code that asked for the
// message.
package notify

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	goccy "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"godwatch/internal/metrics"
)

// Config configures the webhook sender
type Config struct {
	Endpoint  string        // empty disables sending
	QueueSize int           // pending messages before new ones are dropped
	Timeout   time.Duration // per-request timeout
}

// DefaultConfig returns production defaults for endpoint
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:  endpoint,
		QueueSize: 100,
		Timeout:   10 * time.Second,
	}
}

// message is the JSON envelope the webhook expects
type message struct {
	Content string `json:"content"`
}

// StatusError is returned by deliver when the webhook answers with
// anything other than 204 No Content.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.Code) + ": " + e.Body
}

// Webhook is the notifier
type Webhook struct {
	endpoint string
	client   *http.Client
	queue    chan string
	quit     chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewWebhook creates a notifier. Nothing is sent until Start is called.
func NewWebhook(cfg Config) *Webhook {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Webhook{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		queue:    make(chan string, cfg.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Enabled reports whether an endpoint is configured
func (w *Webhook) Enabled() bool {
	return w.endpoint != ""
}

// Start begins the dispatcher loop
func (w *Webhook) Start() {
	if w.running.Swap(true) {
		return
	}
	w.wg.Add(1)
	go w.dispatcher()
	log.Println("📨 Webhook dispatcher started")
}

// Stop ends the dispatcher. Messages still queued are discarded.
func (w *Webhook) Stop() {
	if !w.running.Swap(false) {
		return
	}
	close(w.quit)
	w.wg.Wait()
	log.Printf("📨 Webhook dispatcher stopped - sent: %d, failed: %d, dropped: %d",
		w.sent.Load(), w.failed.Load(), w.dropped.Load())
}

// Send queues text for delivery. With no endpoint configured it only logs.
// If the queue is full the message is dropped.
func (w *Webhook) Send(text string) {
	if w.endpoint == "" {
		log.Println("❌ No webhook url configured, notification not sent")
		metrics.RecordNotification("disabled")
		return
	}

	select {
	case w.queue <- text:
	default:
		w.dropped.Add(1)
		metrics.RecordNotification("dropped")
		log.Printf("⚠️ Webhook queue full, dropping notification (total dropped: %d)", w.dropped.Load())
	}
}

func (w *Webhook) dispatcher() {
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.quit
		cancel()
	}()

	for {
		select {
		case <-w.quit:
			return
		case text := <-w.queue:
			w.process(ctx, text)
		}
	}
}

func (w *Webhook) process(ctx context.Context, text string) {
	err := w.deliver(ctx, text)
	if err == nil {
		w.sent.Add(1)
		metrics.RecordNotification("sent")
		return
	}

	w.failed.Add(1)
	metrics.RecordNotification("failed")
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		log.Printf("⚠️ Webhook answered %d", statusErr.Code)
		return
	}
	log.Printf("⚠️ Webhook delivery failed: %v", err)
}

// deliver performs one POST. Only a 204 counts as success.
func (w *Webhook) deliver(ctx context.Context, text string) error {
	body, err := goccy.Marshal(message{Content: text})
	if err != nil {
		return errors.Wrap(err, "encoding webhook message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// Stats holds delivery counters
type Stats struct {
	Enabled bool   `json:"enabled"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
}

// Stats returns current delivery counters
func (w *Webhook) Stats() Stats {
	return Stats{
		Enabled: w.Enabled(),
		Sent:    w.sent.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
		Pending: len(w.queue),
	}
}
