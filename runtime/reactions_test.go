package runtime

import (
	"clchat/domain/chat"
	"clchat/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedMessage(store *fakeStore) chat.Message {
	msg := chat.Message{
		ID:        uuid.New(),
		Sender:    "alice",
		Content:   "react to me",
		Kind:      chat.KindText,
		Timestamp: time.Now().UTC(),
		Reactions: chat.Reactions{},
	}
	store.messages = append(store.messages, msg)
	return msg
}

func TestLedger_React_Adds_Persists_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	store := &fakeStore{}
	msg := seedMessage(store)
	ledger := NewLedger(registry, store, testMetrics(), slog.Default())

	aliceSink, bobSink := &captureSink{}, &captureSink{}
	registry.Register("alice", newSessionID(), aliceSink)
	registry.Register("bob", newSessionID(), bobSink)

	reactions, err := ledger.React(context.Background(), msg.ID, "👍", "bob")
	req.NoError(err)
	req.Equal([]string{"bob"}, reactions["👍"])

	// Persisted
	stored, err := store.ByID(msg.ID)
	req.NoError(err)
	req.Equal([]string{"bob"}, stored.Reactions["👍"])

	// Broadcast carries the full post-toggle map, to every session
	for _, sink := range []*captureSink{aliceSink, bobSink} {
		frames := sink.Frames()
		req.Len(frames, 1)
		frame := frames[0].(chat.ReactionFrame)
		req.Equal(msg.ID, frame.MessageID)
		req.Equal(reactions, frame.Reactions)
	}
}

func TestLedger_React_Double_Toggle_Restores_Prior_State(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	store := &fakeStore{}
	msg := seedMessage(store)
	ledger := NewLedger(registry, store, testMetrics(), slog.Default())
	registry.Register("bob", newSessionID(), &captureSink{})

	_, err := ledger.React(context.Background(), msg.ID, "👍", "bob")
	req.NoError(err)
	reactions, err := ledger.React(context.Background(), msg.ID, "👍", "bob")
	req.NoError(err)

	req.NotContains(reactions, "👍")
	stored, err := store.ByID(msg.ID)
	req.NoError(err)
	req.NotContains(stored.Reactions, "👍")
}

func TestLedger_React_Unknown_Message(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	ledger := NewLedger(registry, &fakeStore{}, testMetrics(), slog.Default())
	registry.Register("bob", newSessionID(), &captureSink{})

	_, err := ledger.React(context.Background(), uuid.New(), "👍", "bob")

	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestLedger_React_Rejects_Offline_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	store := &fakeStore{}
	msg := seedMessage(store)
	ledger := NewLedger(registry, store, testMetrics(), slog.Default())

	_, err := ledger.React(context.Background(), msg.ID, "👍", "ghost")

	req.ErrorIs(err, errors.ErrUnauthenticatedSender)
}

func TestLedger_React_Concurrent_Togglers_Converge(t *testing.T) {
	req := require.New(t)
	const n = 20
	registry := NewRegistry(4 * n)
	store := &fakeStore{}
	msg := seedMessage(store)
	ledger := NewLedger(registry, store, testMetrics(), slog.Default())

	identities := make([]string, n)
	for i := range identities {
		identities[i] = fmt.Sprintf("user-%02d", i)
		registry.Register(identities[i], newSessionID(), &captureSink{})
	}

	var wg sync.WaitGroup
	for _, identity := range identities {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			_, err := ledger.React(context.Background(), msg.ID, "🔥", identity)
			req.NoError(err)
		}(identity)
	}
	wg.Wait()

	// Every toggle survived the race: the lost-update anomaly would leave
	// fewer identities in the final set.
	stored, err := store.ByID(msg.ID)
	req.NoError(err)
	req.ElementsMatch(identities, stored.Reactions["🔥"])
}
