package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goccy "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"godwatch/internal/host"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type call struct {
	Kind   string
	ID     string
	Reason string
}

// recorder implements Events and records every call
type recorder struct {
	mu      sync.Mutex
	calls   []call
	verdict host.Verdict
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) PlayerConnected(id string) { r.add(call{Kind: "connect", ID: id}) }

func (r *recorder) PlayerDisconnected(id, reason string) {
	r.add(call{Kind: "disconnect", ID: id, Reason: reason})
}

func (r *recorder) PlayerAttacked(attacker string, victim *host.Victim, canCancel bool) host.Verdict {
	r.add(call{Kind: "attack", ID: attacker})
	return r.verdict
}

func (r *recorder) CanBeTargeted(id string) host.Verdict {
	r.add(call{Kind: "target", ID: id})
	return r.verdict
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// ============================================================================
// Mirror Tests
// ============================================================================

func TestMirrorQueries(t *testing.T) {
	m := NewMirror()
	m.Upsert(PlayerState{ID: "1", Name: "Alice", Admin: true, God: true, Permissions: []string{host.OverridePermission}})
	m.Upsert(PlayerState{ID: "2", Name: "Bob"})

	if !m.IsPrivileged("1") || m.IsPrivileged("2") || m.IsPrivileged("3") {
		t.Error("IsPrivileged mismatch")
	}
	if !m.IsInvulnerable("1") || m.IsInvulnerable("2") {
		t.Error("IsInvulnerable mismatch")
	}
	if !m.HasPermission("1", host.OverridePermission) || m.HasPermission("2", host.OverridePermission) {
		t.Error("HasPermission mismatch")
	}
	if diff := cmp.Diff([]string{"1", "2"}, m.OnlinePlayers()); diff != "" {
		t.Errorf("OnlinePlayers mismatch (-want +got):\n%s", diff)
	}
}

func TestMirrorRemembersDepartedNames(t *testing.T) {
	m := NewMirror()
	m.Upsert(PlayerState{ID: "1", Name: "Alice"})
	m.Remove("1")

	if m.IsPrivileged("1") {
		t.Error("removed player should not be privileged")
	}
	if got := m.DisplayName("1"); got != "Alice" {
		t.Errorf("Expected departed name Alice, got %q", got)
	}
	if got := m.DisplayName("unknown"); got != "" {
		t.Errorf("Expected empty name, got %q", got)
	}
}

func TestMirrorReplace(t *testing.T) {
	m := NewMirror()
	m.Upsert(PlayerState{ID: "1", Name: "Alice"})
	m.Upsert(PlayerState{ID: "2", Name: "Bob"})
	m.Upsert(PlayerState{ID: "3", Name: "Carol"})

	gone := m.Replace([]PlayerState{{ID: "2", Name: "Bob"}, {ID: "4", Name: "Dave"}})

	if diff := cmp.Diff([]string{"1", "3"}, gone); diff != "" {
		t.Errorf("gone mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2", "4"}, m.OnlinePlayers()); diff != "" {
		t.Errorf("OnlinePlayers mismatch (-want +got):\n%s", diff)
	}
	if m.DisplayName("3") != "Carol" {
		t.Error("replaced-out player name should be remembered")
	}
}

// ============================================================================
// Frame Handling Tests
// ============================================================================

func TestHandleRosterFrames(t *testing.T) {
	b := New(NewMirror(), "")
	rec := &recorder{}
	b.SetEvents(rec)

	b.Handle(Frame{Type: FrameConnect, Player: &PlayerState{ID: "1", Name: "Alice", Admin: true}})
	b.Handle(Frame{Type: FrameState, Player: &PlayerState{ID: "1", Name: "Alice", Admin: true, God: true}})
	b.Handle(Frame{Type: FrameSync, Players: []PlayerState{{ID: "2", Name: "Bob"}}})
	b.Handle(Frame{Type: FrameDisconnect, ID: "2", Reason: "quit"})
	b.Handle(Frame{Type: FrameConnect}) // no player, ignored
	b.Handle(Frame{Type: "bogus"})

	want := []call{
		{Kind: "connect", ID: "1"},
		{Kind: "disconnect", ID: "1", Reason: "not in roster"},
		{Kind: "connect", ID: "2"},
		{Kind: "disconnect", ID: "2", Reason: "quit"},
	}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	if len(b.OnlinePlayers()) != 0 {
		t.Errorf("Expected empty roster, got %v", b.OnlinePlayers())
	}
}

func TestHandleStateUpdatesMirror(t *testing.T) {
	b := New(NewMirror(), "")
	b.Handle(Frame{Type: FrameConnect, Player: &PlayerState{ID: "1", Admin: true}})
	if b.IsInvulnerable("1") {
		t.Fatal("should start mortal")
	}
	b.Handle(Frame{Type: FrameState, Player: &PlayerState{ID: "1", Admin: true, God: true}})
	if !b.IsInvulnerable("1") {
		t.Error("state frame should update god mode")
	}
}

func TestHandleAttackReplies(t *testing.T) {
	b := New(NewMirror(), "")

	reply, ok := b.Handle(Frame{Type: FrameAttack, Seq: 7, Attacker: "1"})
	if !ok {
		t.Fatal("attack should get a reply")
	}
	if diff := cmp.Diff(Frame{Type: FrameAttackResult, Seq: 7, Verdict: "default"}, reply); diff != "" {
		t.Errorf("no events attached (-want +got):\n%s", diff)
	}

	b.SetEvents(&recorder{verdict: host.Cancel})
	reply, _ = b.Handle(Frame{Type: FrameAttack, Seq: 8, Attacker: "1", Victim: &host.Victim{ID: "2", IsPlayer: true}, CanCancel: true})
	if reply.Verdict != "cancel" || reply.Seq != 8 {
		t.Errorf("Unexpected reply %+v", reply)
	}

	b.SetEvents(&recorder{verdict: host.Deny})
	reply, ok = b.Handle(Frame{Type: FrameTarget, Seq: 9, ID: "1"})
	if !ok || reply.Type != FrameTargetResult || reply.Verdict != "deny" || reply.Seq != 9 {
		t.Errorf("Unexpected reply %+v", reply)
	}
}

func TestPushWithoutConnection(t *testing.T) {
	b := New(NewMirror(), "")
	b.Kick("1", "bye")
	b.SendChatMessage("1", "hi")
	if b.Connected() {
		t.Error("should not be connected")
	}
}

// ============================================================================
// Websocket Tests
// ============================================================================

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f Frame
	if err := goccy.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return f
}

func writeFrame(t *testing.T, ws *websocket.Conn, f Frame) {
	t.Helper()
	data, err := goccy.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitConnected(t *testing.T, b *Bridge, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Connected() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Connected never became %t", want)
}

func TestWebsocketRoundTrip(t *testing.T) {
	b := New(NewMirror(), "")
	b.SetEvents(&recorder{verdict: host.Cancel})
	b.RegisterPermission(host.OverridePermission)

	srv := httptest.NewServer(b)
	defer srv.Close()

	ws := dial(t, srv, "")
	defer ws.Close()

	// permissions declared before connecting are replayed
	f := readFrame(t, ws)
	if f.Type != FrameRegisterPermission || f.Name != host.OverridePermission {
		t.Fatalf("Expected permission frame, got %+v", f)
	}
	waitConnected(t, b, true)

	writeFrame(t, ws, Frame{Type: FrameAttack, Seq: 42, Attacker: "1", CanCancel: true})
	f = readFrame(t, ws)
	if f.Type != FrameAttackResult || f.Seq != 42 || f.Verdict != "cancel" {
		t.Errorf("Unexpected reply %+v", f)
	}

	b.Kick("1", "Stop it")
	f = readFrame(t, ws)
	if diff := cmp.Diff(Frame{Type: FrameKick, ID: "1", Reason: "Stop it"}, f); diff != "" {
		t.Errorf("Kick frame mismatch (-want +got):\n%s", diff)
	}

	b.SendChatMessage("1", "warned")
	f = readFrame(t, ws)
	if f.Type != FrameChat || f.Text != "warned" {
		t.Errorf("Unexpected chat frame %+v", f)
	}

	ws.Close()
	waitConnected(t, b, false)
}

func TestWebsocketReplacesPrevious(t *testing.T) {
	b := New(NewMirror(), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	first := dial(t, srv, "")
	defer first.Close()
	waitConnected(t, b, true)

	second := dial(t, srv, "")
	defer second.Close()

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("first connection should be closed")
	}

	b.Kick("1", "bye")
	f := readFrame(t, second)
	if f.Type != FrameKick {
		t.Errorf("Expected kick on new connection, got %+v", f)
	}
}

func TestWebsocketAuth(t *testing.T) {
	b := New(NewMirror(), "s3cret")
	srv := httptest.NewServer(b)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer wrong"}})
	if err == nil {
		t.Fatal("Expected dial to fail with wrong token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	ws := dial(t, srv, "s3cret")
	ws.Close()
}

func TestWebsocketRejectsBrowserOrigin(t *testing.T) {
	b := New(NewMirror(), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("Expected dial with Origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}
