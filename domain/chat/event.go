package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound event types carried by the websocket envelope.
const (
	EventJoin          = "join"
	EventSend          = "message.send"
	EventTyping        = "message.typing"
	EventTypingStopped = "message.typingStopped"
	EventReaction      = "reaction.toggle"
)

// Envelope is the framing for every client-to-server event. Data is decoded
// into the payload type selected by Type; unknown types are rejected at the
// transport boundary.
type Envelope struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

type JoinPayload struct {
	Identity string `json:"identity" validate:"required,max=64"`
}

type SendPayload struct {
	Sender   string  `json:"sender" validate:"required"`
	Receiver *string `json:"receiver"`
	Content  string  `json:"content" validate:"required"`
}

type TypingPayload struct {
	Sender   string  `json:"sender" validate:"required"`
	Receiver *string `json:"receiver"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
	Emoji     string `json:"emoji" validate:"required,max=16"`
	Identity  string `json:"identity" validate:"required"`
}

// Frame is a server-to-client event. Sinks wrap it in the same
// {type, data} envelope used for inbound traffic.
type Frame interface {
	FrameType() string
}

type PresenceEntry struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

// PresenceFrame is always a full snapshot, never a diff, so clients replace
// their view instead of reconciling deltas.
type PresenceFrame struct {
	Users []PresenceEntry `json:"users"`
}

func (PresenceFrame) FrameType() string { return "presence" }

// HistoryFrame is the join reply: everything said so far, oldest first,
// plus the current online set.
type HistoryFrame struct {
	Messages []Message       `json:"messages"`
	Users    []PresenceEntry `json:"users"`
}

func (HistoryFrame) FrameType() string { return "history" }

type MessageFrame struct {
	MessageID uuid.UUID   `json:"messageId"`
	Sender    string      `json:"sender"`
	Receiver  *string     `json:"receiver"`
	Content   string      `json:"content"`
	Kind      ContentKind `json:"kind"`
	Mime      string      `json:"mime,omitempty"`
	Lang      string      `json:"lang,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (MessageFrame) FrameType() string { return "message.received" }

func NewMessageFrame(m Message) MessageFrame {
	return MessageFrame{
		MessageID: m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Content:   m.Content,
		Kind:      m.Kind,
		Mime:      m.Mime,
		Lang:      m.Lang,
		Timestamp: m.Timestamp,
	}
}

type TypingFrame struct {
	Sender   string  `json:"sender"`
	Receiver *string `json:"receiver"`
	Stopped  bool    `json:"-"`
}

func (f TypingFrame) FrameType() string {
	if f.Stopped {
		return EventTypingStopped
	}
	return EventTyping
}

type ReactionFrame struct {
	MessageID uuid.UUID `json:"messageId"`
	Reactions Reactions `json:"reactions"`
}

func (ReactionFrame) FrameType() string { return "reaction.updated" }

// ErrorFrame is delivered only to the session whose event failed. Other
// clients observe no trace of a rejected operation.
type ErrorFrame struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func (ErrorFrame) FrameType() string { return "error" }
