//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"clchat/domain/chat"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// EventSink pushes one server frame to a connected client. Implementations
// must not block on the network: a session that cannot keep up returns an
// error instead of stalling the caller.
type EventSink interface {
	Consume(ctx context.Context, f chat.Frame) error
}

// MessageStore is the persistence gateway the routing core writes through.
// History reads are ordered by timestamp ascending. ByID returns
// errors.ErrMessageNotFound for unknown ids. SetReactions only ever mutates
// the reactions of an existing record; everything else is immutable.
type MessageStore interface {
	Store(m chat.Message) error
	History() ([]chat.Message, error)
	PairHistory(a, b string) ([]chat.Message, error)
	ByID(id uuid.UUID) (chat.Message, error)
	SetReactions(id uuid.UUID, r chat.Reactions) error
}

// SeenStore keeps last-seen timestamps for identities that went offline.
type SeenStore interface {
	RecordSeen(identity string, at time.Time) error
	AllSeen() (map[string]time.Time, error)
}

// SearchIndex is the full-text side channel fed asynchronously after
// persistence. It is best effort and never consulted for history reads.
type SearchIndex interface {
	Index(batch []chat.Message) error
	Search(ctx context.Context, terms string, limit int) ([]SearchHit, error)
}

type SearchHit struct {
	MessageID uuid.UUID `json:"messageId"`
	Sender    string    `json:"sender"`
	Score     float64   `json:"score"`
}

// Worker doesn't protect itself: supervision, restarts and panic recovery
// belong to the Supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
