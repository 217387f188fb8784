package chat

import (
	"time"

	"github.com/google/uuid"
)

type ContentKind string

const (
	KindText       ContentKind = "text"
	KindAttachment ContentKind = "attachment"
)

// Reactions maps an emoji symbol to the identities currently reacting with it.
// Order within a set carries no meaning.
type Reactions map[string][]string

// Toggle applies toggle semantics for one identity on one emoji: a second
// toggle restores the state before the first. The emoji key is removed
// entirely once its set is empty. Returns true when the identity was added.
func (r Reactions) Toggle(emoji, identity string) bool {
	for i, who := range r[emoji] {
		if who == identity {
			set := append(r[emoji][:i], r[emoji][i+1:]...)
			if len(set) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = set
			}
			return false
		}
	}
	r[emoji] = append(r[emoji], identity)
	return true
}

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, set := range r {
		out[emoji] = append([]string(nil), set...)
	}
	return out
}

// Message is the persisted chat record. Receiver is nil for public messages
// and immutable once stored; only Reactions may change afterwards.
// Content is an opaque blob: plain text, or a data URI for voice and image
// attachments. The core never interprets it beyond kind detection.
type Message struct {
	ID        uuid.UUID   `json:"messageId"`
	Sender    string      `json:"sender"`
	Receiver  *string     `json:"receiver"`
	Content   string      `json:"content"`
	Kind      ContentKind `json:"kind"`
	Mime      string      `json:"mime,omitempty"`
	Lang      string      `json:"lang,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Reactions Reactions   `json:"reactions"`
}

func (m Message) Private() bool {
	return m.Receiver != nil
}

// Concerns returns the identities allowed to receive the message live:
// sender and receiver for a private message, nobody in particular otherwise.
func (m Message) Concerns() []string {
	if m.Receiver == nil {
		return nil
	}
	if *m.Receiver == m.Sender {
		return []string{m.Sender}
	}
	return []string{m.Sender, *m.Receiver}
}
