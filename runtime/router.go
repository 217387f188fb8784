package runtime

import (
	"clchat/contract"
	"clchat/domain/chat"
	"clchat/errors"
	"clchat/moderation"
	"clchat/observability"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Router classifies inbound messages as public or private, persists them and
// fans them out to the live delivery set. Per-sender ordering comes from the
// transport: a session's read pump invokes Send sequentially, so one
// sender's messages are persisted in invocation order.
type Router struct {
	registry  *Registry
	store     contract.MessageStore
	moderator *moderation.Moderator
	metrics   observability.ChatMetrics
	indexCh   chan<- chat.Message
	log       *slog.Logger
}

func NewRouter(
	registry *Registry,
	store contract.MessageStore,
	moderator *moderation.Moderator,
	metrics observability.ChatMetrics,
	indexCh chan<- chat.Message,
	log *slog.Logger,
) *Router {
	return &Router{
		registry:  registry,
		store:     store,
		moderator: moderator,
		metrics:   metrics,
		indexCh:   indexCh,
		log:       log,
	}
}

// Send validates the sender, persists the message, then fans it out.
//
// The order is load-bearing: persist-then-fan-out, never the reverse, so a
// late client fetching history sees exactly what live clients saw. Delivery
// targets are resolved from the registry at dispatch time, after the write.
// Persistence completion is the commit point; a sender disconnecting
// mid-flight does not cancel fan-out to the remaining peers.
func (r *Router) Send(ctx context.Context, sender string, receiver *string, content string) (chat.Message, error) {
	if !r.registry.IsOnline(sender) {
		return chat.Message{}, errors.ErrUnauthenticatedSender
	}

	kind, mime := chat.DetectContent(content)
	lang := ""
	if kind == chat.KindText {
		censored, matched := r.moderator.Censor(content)
		if len(matched) > 0 {
			r.log.Info("Censored message content", "sender", sender, "words", len(matched))
		}
		content = censored
		lang = whatlanggo.Detect(content).Lang.Iso6391()
	}

	msg := chat.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		Kind:      kind,
		Mime:      mime,
		Lang:      lang,
		Timestamp: time.Now().UTC(),
		Reactions: chat.Reactions{},
	}

	if err := r.store.Store(msg); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceUnavailable, err)
	}
	r.enqueueIndex(msg)

	var sinks []contract.EventSink
	if msg.Private() {
		sinks = r.registry.SinksFor(msg.Concerns()...)
	} else {
		sinks = r.registry.Sinks()
	}

	frame := chat.NewMessageFrame(msg)
	for _, sink := range sinks {
		if err := sink.Consume(ctx, frame); err != nil {
			r.log.Warn("Live delivery failed, recoverable via history", "sender", sender, "error", err)
		}
	}

	r.metrics.RecordMessage(msg.Private(), string(msg.Kind))
	return msg, nil
}

// Typing relays a transient indicator using the same routing rule as Send,
// minus persistence. Public indicators exclude the originating identity;
// private ones reach only the addressed peer, if online.
func (r *Router) Typing(ctx context.Context, sender string, receiver *string, stopped bool) error {
	if !r.registry.IsOnline(sender) {
		return errors.ErrUnauthenticatedSender
	}

	var sinks []contract.EventSink
	if receiver == nil {
		sinks = r.registry.SinksExcept(sender)
	} else {
		sinks = r.registry.SinksFor(*receiver)
	}

	frame := chat.TypingFrame{Sender: sender, Receiver: receiver, Stopped: stopped}
	for _, sink := range sinks {
		if err := sink.Consume(ctx, frame); err != nil {
			r.log.Debug("Typing relay dropped", "sender", sender, "error", err)
		}
	}
	return nil
}

// enqueueIndex hands the persisted message to the search indexer. Indexing
// is best effort: a saturated indexer loses the document, history does not.
func (r *Router) enqueueIndex(msg chat.Message) {
	if r.indexCh == nil {
		return
	}
	select {
	case r.indexCh <- msg:
	default:
		r.log.Debug("Search index event lost", "message_id", msg.ID)
	}
}
