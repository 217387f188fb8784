package services

import (
	"clchat/contract"
	"clchat/domain/chat"
	"clchat/errors"
	"clchat/observability"
	"clchat/runtime"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// IChatService is the surface the transport layer drives. One method per
// inbound wire event, plus the session lifecycle pair.
type IChatService interface {
	Join(ctx context.Context, id chat.SessionID, identity string, sink contract.EventSink) error
	Leave(ctx context.Context, id chat.SessionID)
	Send(ctx context.Context, sender string, receiver *string, content string) error
	Typing(ctx context.Context, sender string, receiver *string, stopped bool) error
	React(ctx context.Context, messageID, emoji, identity string) error
}

type ChatService struct {
	registry *runtime.Registry
	tracker  *runtime.PresenceTracker
	router   *runtime.Router
	ledger   *runtime.Ledger
	store    contract.MessageStore
	metrics  observability.ChatMetrics
	log      *slog.Logger
}

func NewChatService(
	registry *runtime.Registry,
	tracker *runtime.PresenceTracker,
	router *runtime.Router,
	ledger *runtime.Ledger,
	store contract.MessageStore,
	metrics observability.ChatMetrics,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		registry: registry,
		tracker:  tracker,
		router:   router,
		ledger:   ledger,
		store:    store,
		metrics:  metrics,
		log:      log,
	}
}

// Join completes the handshake: the identity is bound to this session
// (replacing any prior binding), and the new session alone receives the
// message history with the current online set. The presence broadcast to
// everyone else rides on the registry change feed.
func (s *ChatService) Join(ctx context.Context, id chat.SessionID, identity string, sink contract.EventSink) error {
	displaced, wasDisplaced := s.registry.Register(identity, id, sink)
	s.metrics.SetConnections(len(s.registry.Online()))

	if wasDisplaced {
		// The old session stays open but is no longer addressable as this
		// identity; it gets one final frame saying why it went quiet.
		frame := chat.ErrorFrame{Code: errors.CodeSessionReplaced, Detail: "identity rejoined from another connection"}
		if err := displaced.Consume(ctx, frame); err != nil {
			s.log.Debug("Displaced session unreachable", "identity", identity, "error", err)
		}
	}

	if info, ok := s.registry.InfoOf(identity); ok {
		s.log.Info("Identity joined", "identity", identity, "session", info.ID, "at", info.JoinedAt)
	}

	history, err := s.store.History()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistenceUnavailable, err)
	}
	return sink.Consume(ctx, chat.HistoryFrame{Messages: history, Users: s.tracker.Snapshot()})
}

// Leave handles the transport "session ended" signal, whatever caused it.
// A stale disconnect from a displaced session is swallowed by the registry.
func (s *ChatService) Leave(ctx context.Context, id chat.SessionID) {
	identity, removed := s.registry.Unregister(id)
	s.metrics.SetConnections(len(s.registry.Online()))
	if removed {
		s.log.Info("Identity went offline", "identity", identity)
	}
}

func (s *ChatService) Send(ctx context.Context, sender string, receiver *string, content string) error {
	_, err := s.router.Send(ctx, sender, receiver, content)
	return err
}

func (s *ChatService) Typing(ctx context.Context, sender string, receiver *string, stopped bool) error {
	return s.router.Typing(ctx, sender, receiver, stopped)
}

func (s *ChatService) React(ctx context.Context, messageID, emoji, identity string) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return fmt.Errorf("%w: malformed message id", errors.ErrInvalidEvent)
	}
	_, err = s.ledger.React(ctx, id, emoji, identity)
	return err
}
