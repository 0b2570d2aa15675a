package sync

import (
	"encoding/json"
	"strings"
)

const (
	MsgJoin   = "join"
	MsgUpdate = "update"
	MsgLock   = "lock"
	MsgUnlock = "unlock"
	MsgPing   = "ping"
)

const (
	EventSnapshot   = "snapshot"
	EventUpdate     = "update"
	EventLocksState = "locks_state"
	EventLockError  = "lock_error"
	EventPeers      = "peers"
	EventError      = "error"
	EventPong       = "pong"
)

const (
	CodeBadRequest    = "bad_request"
	CodeBadPassword   = "bad_password"
	CodeLockedByOther = "locked_by_other"
)

// Message is an inbound client message. String fields that were absent or
// not strings are left empty.
type Message struct {
	Type       string
	Content    string
	HasContent bool
	BlockID    string
	Color      string
	Label      string
}

// Decode parses an inbound frame. It reports false for anything that is not
// a JSON object with a recognized type; such frames are dropped silently.
func Decode(data []byte) (Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Message{}, false
	}

	msgType, ok := stringField(fields, "type")
	if !ok {
		return Message{}, false
	}

	msg := Message{Type: msgType}
	switch msgType {
	case MsgJoin, MsgUpdate:
		msg.Content, msg.HasContent = stringField(fields, "content")
	case MsgLock:
		blockID, _ := stringField(fields, "blockId")
		msg.BlockID = strings.TrimSpace(blockID)
		msg.Color, _ = stringField(fields, "color")
		msg.Label, _ = stringField(fields, "label")
	case MsgUnlock:
		blockID, _ := stringField(fields, "blockId")
		msg.BlockID = strings.TrimSpace(blockID)
	case MsgPing:
	default:
		return Message{}, false
	}

	return msg, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Event is an outbound message. Every event serializes with a "type" field.
type Event interface {
	EventType() string
}

type SnapshotEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type UpdateEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type LockInfo struct {
	BlockID string `json:"blockId"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Label   string `json:"label"`
}

type LocksStateEvent struct {
	Type  string     `json:"type"`
	Locks []LockInfo `json:"locks"`
}

type LockErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	BlockID string `json:"blockId"`
	Name    string `json:"name"`
}

type PeersEvent struct {
	Type  string   `json:"type"`
	Peers []string `json:"peers"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Type string `json:"type"`
}

func (e SnapshotEvent) EventType() string   { return e.Type }
func (e UpdateEvent) EventType() string     { return e.Type }
func (e LocksStateEvent) EventType() string { return e.Type }
func (e LockErrorEvent) EventType() string  { return e.Type }
func (e PeersEvent) EventType() string      { return e.Type }
func (e ErrorEvent) EventType() string      { return e.Type }
func (e PongEvent) EventType() string       { return e.Type }

func NewSnapshot(content string) SnapshotEvent {
	return SnapshotEvent{Type: EventSnapshot, Content: content}
}

func NewUpdate(content string) UpdateEvent {
	return UpdateEvent{Type: EventUpdate, Content: content}
}

func NewLocksState(locks []LockInfo) LocksStateEvent {
	if locks == nil {
		locks = []LockInfo{}
	}
	return LocksStateEvent{Type: EventLocksState, Locks: locks}
}

func NewLockError(blockID string, holder string) LockErrorEvent {
	return LockErrorEvent{Type: EventLockError, Code: CodeLockedByOther, BlockID: blockID, Name: holder}
}

func NewPeers(names []string) PeersEvent {
	if names == nil {
		names = []string{}
	}
	return PeersEvent{Type: EventPeers, Peers: names}
}

func NewError(code string, message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: code, Message: message}
}

func NewPong() PongEvent {
	return PongEvent{Type: EventPong}
}
