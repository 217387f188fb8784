package runtime

import (
	"clchat/contract"
	"clchat/domain/chat"
	"clchat/errors"
	"clchat/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Ledger applies toggle-semantics reactions onto persisted messages. The
// read-modify-write on a single message's reactions is serialized by a
// per-message lock; different messages proceed fully in parallel. There is
// deliberately no global lock spanning unrelated messages.
type Ledger struct {
	registry *Registry
	store    contract.MessageStore
	metrics  observability.ChatMetrics
	log      *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLedger(registry *Registry, store contract.MessageStore, metrics observability.ChatMetrics, log *slog.Logger) *Ledger {
	return &Ledger{
		registry: registry,
		store:    store,
		metrics:  metrics,
		log:      log,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}

// React toggles identity's reaction on the message, persists the updated
// state, then broadcasts the full post-toggle reaction map to all online
// sessions. Concurrent togglers converge on the same observed state without
// causal ordering between their updates because the broadcast is always the
// whole map, never a delta.
func (l *Ledger) React(ctx context.Context, messageID uuid.UUID, emoji, identity string) (chat.Reactions, error) {
	if !l.registry.IsOnline(identity) {
		return nil, errors.ErrUnauthenticatedSender
	}

	lock := l.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := l.store.ByID(messageID)
	if err != nil {
		return nil, err
	}

	reactions := msg.Reactions.Clone()
	if reactions == nil {
		reactions = chat.Reactions{}
	}
	added := reactions.Toggle(emoji, identity)

	if err := l.store.SetReactions(messageID, reactions); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistenceUnavailable, err)
	}

	frame := chat.ReactionFrame{MessageID: messageID, Reactions: reactions}
	for _, sink := range l.registry.Sinks() {
		if err := sink.Consume(ctx, frame); err != nil {
			l.log.Debug("Reaction broadcast dropped", "message_id", messageID, "error", err)
		}
	}

	l.metrics.RecordReaction(added)
	return reactions, nil
}
