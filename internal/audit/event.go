package audit

import (
	"time"

	goccy "github.com/goccy/go-json"

	"godwatch/internal/host"
)

// EventType classifies audit entries
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeConnect
	EventTypeDisconnect
	EventTypeTransition
	EventTypeOffense
	EventTypeKick
)

// EventVersion is bumped when the line format changes
const EventVersion uint8 = 1

// Event is one line of the audit file
type Event struct {
	Version   uint8            `json:"version"`
	Type      string           `json:"type"`
	Timestamp int64            `json:"timestamp"` // Unix nano
	Sequence  uint64           `json:"sequence"`
	PlayerID  string           `json:"playerId"`
	Payload   goccy.RawMessage `json:"payload,omitempty"`
}

// String returns the event type as written to disk
func (t EventType) String() string {
	switch t {
	case EventTypeConnect:
		return "connect"
	case EventTypeDisconnect:
		return "disconnect"
	case EventTypeTransition:
		return "transition"
	case EventTypeOffense:
		return "offense"
	case EventTypeKick:
		return "kick"
	default:
		return "unknown"
	}
}

// NewEvent builds an event, encoding payload as JSON
func NewEvent(eventType EventType, playerID string, payload interface{}) Event {
	var raw []byte
	if payload != nil {
		raw, _ = goccy.Marshal(payload)
	}
	return Event{
		Version:   EventVersion,
		Type:      eventType.String(),
		Timestamp: time.Now().UnixNano(),
		PlayerID:  playerID,
		Payload:   raw,
	}
}

// Payload types

type ConnectPayload struct {
	Name         string `json:"name,omitempty"`
	Invulnerable bool   `json:"invulnerable"`
}

type DisconnectPayload struct {
	Reason string `json:"reason,omitempty"`
}

type TransitionPayload struct {
	Invulnerable    bool `json:"invulnerable"`
	IntervalSeconds int  `json:"intervalSeconds"`
}

type OffensePayload struct {
	Victim   string    `json:"victim"`
	Count    int       `json:"count"`
	Position host.Vec3 `json:"position"`
}

type KickPayload struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
