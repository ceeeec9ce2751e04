// Package bridge connects the watcher to a game server over a websocket.
//
// The game server dials in and streams player and combat events as JSON
// frames. The bridge keeps a Mirror of the roster so host queries never
// round-trip, answers attack and targetability frames synchronously, and
// pushes kick/chat commands back down the same socket.
package bridge

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	goccy "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"godwatch/internal/host"
	"godwatch/internal/metrics"
)

const (
	sendBufferSize = 256
	writeTimeout   = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 64 * 1024
)

// Events receives player and combat events from the game server.
type Events interface {
	PlayerConnected(id string)
	PlayerDisconnected(id, reason string)
	PlayerAttacked(attacker string, victim *host.Victim, canCancel bool) host.Verdict
	CanBeTargeted(id string) host.Verdict
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Game servers are not browsers and send no Origin; anything that does
	// is a page trying to reach the bridge.
	CheckOrigin: func(r *http.Request) bool {
		return r.Header.Get("Origin") == ""
	},
}

// conn is one game server connection
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Bridge implements host.Host and host.PermissionRegistry on top of the
// websocket link.
type Bridge struct {
	*Mirror

	token string

	mu          sync.Mutex
	events      Events
	active      *conn
	permissions []string
}

// New creates a bridge. An empty token accepts any connection.
func New(mirror *Mirror, token string) *Bridge {
	return &Bridge{
		Mirror: mirror,
		token:  token,
	}
}

// SetEvents attaches the event consumer
func (b *Bridge) SetEvents(events Events) {
	b.mu.Lock()
	b.events = events
	b.mu.Unlock()
}

// Connected reports whether a game server is attached
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

// RegisterPermission declares perm now and again on every new connection
func (b *Bridge) RegisterPermission(name string) {
	b.mu.Lock()
	for _, p := range b.permissions {
		if p == name {
			b.mu.Unlock()
			return
		}
	}
	b.permissions = append(b.permissions, name)
	b.mu.Unlock()

	b.push(Frame{Type: FrameRegisterPermission, Name: name})
}

// Kick asks the game server to disconnect id
func (b *Bridge) Kick(id, reason string) {
	b.push(Frame{Type: FrameKick, ID: id, Reason: reason})
}

// SendChatMessage asks the game server to message id
func (b *Bridge) SendChatMessage(id, text string) {
	b.push(Frame{Type: FrameChat, ID: id, Text: text})
}

// push queues a frame on the active connection, dropping it if there is
// none or its buffer is full
func (b *Bridge) push(f Frame) bool {
	data, err := goccy.Marshal(f)
	if err != nil {
		log.Printf("⚠️ Encoding %s frame: %v", f.Type, err)
		return false
	}

	b.mu.Lock()
	c := b.active
	b.mu.Unlock()

	if c == nil {
		log.Printf("⚠️ No game server connected, dropping %s for %s", f.Type, f.ID)
		return false
	}
	return c.enqueue(data)
}

func (c *conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Println("⚠️ Bridge send buffer full, dropping frame")
		return false
	}
}

// authorized checks the bearer token
func (b *Bridge) authorized(r *http.Request) bool {
	if b.token == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(b.token)) == 1
}

// ServeHTTP upgrades the request and serves the connection until it
// closes. A newer connection replaces an older one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		metrics.RecordConnectionRejected("auth")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordConnectionRejected("upgrade")
		log.Printf("Bridge upgrade error: %v", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := &conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	previous := b.active
	b.active = c
	permissions := append([]string(nil), b.permissions...)
	b.mu.Unlock()

	if previous != nil {
		log.Println("🔌 Replacing previous game server connection")
		previous.close()
	}
	metrics.SetBridgeConnected(true)
	log.Printf("🔌 Game server connected from %s", r.RemoteAddr)

	go c.writeLoop()
	for _, name := range permissions {
		if data, err := goccy.Marshal(Frame{Type: FrameRegisterPermission, Name: name}); err == nil {
			c.enqueue(data)
		}
	}

	b.readLoop(c)

	c.close()
	b.mu.Lock()
	if b.active == c {
		b.active = nil
		metrics.SetBridgeConnected(false)
	}
	b.mu.Unlock()
	log.Println("🔌 Game server disconnected")
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (b *Bridge) readLoop(c *conn) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Bridge read error: %v", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := goccy.Unmarshal(data, &f); err != nil {
			log.Printf("⚠️ Malformed bridge frame: %v", err)
			continue
		}
		metrics.RecordBridgeFrame(knownFrame(f.Type))

		if reply, ok := b.Handle(f); ok {
			if out, err := goccy.Marshal(reply); err == nil {
				c.enqueue(out)
			}
		}
	}
}

// Handle applies one inbound frame. It returns a reply frame when the
// frame type expects one.
func (b *Bridge) Handle(f Frame) (Frame, bool) {
	b.mu.Lock()
	events := b.events
	b.mu.Unlock()

	switch f.Type {
	case FrameSync:
		gone := b.Mirror.Replace(f.Players)
		if events == nil {
			return Frame{}, false
		}
		for _, id := range gone {
			events.PlayerDisconnected(id, "not in roster")
		}
		for _, p := range f.Players {
			events.PlayerConnected(p.ID)
		}

	case FrameConnect:
		if f.Player == nil {
			return Frame{}, false
		}
		b.Mirror.Upsert(*f.Player)
		if events != nil {
			events.PlayerConnected(f.Player.ID)
		}

	case FrameState:
		if f.Player != nil {
			b.Mirror.Upsert(*f.Player)
		}

	case FrameDisconnect:
		if events != nil {
			events.PlayerDisconnected(f.ID, f.Reason)
		}
		b.Mirror.Remove(f.ID)

	case FrameAttack:
		verdict := host.Default
		if events != nil {
			verdict = events.PlayerAttacked(f.Attacker, f.Victim, f.CanCancel)
		}
		return Frame{Type: FrameAttackResult, Seq: f.Seq, Verdict: verdict.String()}, true

	case FrameTarget:
		verdict := host.Default
		if events != nil {
			verdict = events.CanBeTargeted(f.ID)
		}
		return Frame{Type: FrameTargetResult, Seq: f.Seq, Verdict: verdict.String()}, true

	default:
		log.Printf("⚠️ Unknown bridge frame type %q", f.Type)
	}
	return Frame{}, false
}
