package runtime

import (
	"clchat/domain/chat"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// captureSink records every frame it consumes; shared by the runtime tests.
type captureSink struct {
	mu     sync.Mutex
	frames []chat.Frame
	fail   bool
}

func (s *captureSink) Consume(_ context.Context, f chat.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sink full")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *captureSink) Frames() []chat.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Frame(nil), s.frames...)
}

func newSessionID() chat.SessionID {
	return chat.SessionID(uuid.NewString())
}

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	id := newSessionID()
	sink := &captureSink{}

	// Given nobody online
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.Online())

	// When alice registers
	displaced, wasDisplaced := registry.Register("alice", id, sink)

	// Then both lookup directions agree
	req.False(wasDisplaced)
	req.Nil(displaced)
	req.True(registry.IsOnline("alice"))

	gotSession, ok := registry.SessionOf("alice")
	req.True(ok)
	req.Equal(id, gotSession)

	gotIdentity, ok := registry.IdentityOf(id)
	req.True(ok)
	req.Equal("alice", gotIdentity)

	req.Equal([]string{"alice"}, registry.Online())

	change := <-registry.Changes()
	req.Equal("alice", change.Identity)
	req.True(change.Online)
}

func TestRegistry_Register_Replaces_Prior_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	oldID, newID := newSessionID(), newSessionID()
	oldSink, newSink := &captureSink{}, &captureSink{}

	// Given alice is online on one session
	registry.Register("alice", oldID, oldSink)

	// When she rejoins from another connection
	displaced, wasDisplaced := registry.Register("alice", newID, newSink)

	// Then the bindings were replaced, never stacked
	req.True(wasDisplaced)
	req.Same(oldSink, displaced.(*captureSink))
	req.Equal([]string{"alice"}, registry.Online())

	gotSession, ok := registry.SessionOf("alice")
	req.True(ok)
	req.Equal(newID, gotSession)

	// And the old session is no longer addressable
	_, ok = registry.IdentityOf(oldID)
	req.False(ok)
}

func TestRegistry_Stale_Unregister_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	oldID, newID := newSessionID(), newSessionID()

	// Given alice rejoined, displacing her old session
	registry.Register("alice", oldID, &captureSink{})
	registry.Register("alice", newID, &captureSink{})

	// When the displaced session's disconnect finally lands
	identity, removed := registry.Unregister(oldID)

	// Then the reconnection stays online
	req.False(removed)
	req.Empty(identity)
	req.True(registry.IsOnline("alice"))
}

func TestRegistry_Unregister_Removes_Both_Directions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	id := newSessionID()
	registry.Register("alice", id, &captureSink{})
	<-registry.Changes()

	identity, removed := registry.Unregister(id)

	req.True(removed)
	req.Equal("alice", identity)
	req.False(registry.IsOnline("alice"))
	_, ok := registry.SessionOf("alice")
	req.False(ok)
	_, ok = registry.IdentityOf(id)
	req.False(ok)

	change := <-registry.Changes()
	req.Equal("alice", change.Identity)
	req.False(change.Online)
}

func TestRegistry_InfoOf(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	id := newSessionID()
	registry.Register("alice", id, &captureSink{})

	info, ok := registry.InfoOf("alice")

	req.True(ok)
	req.Equal(id, info.ID)
	req.True(info.Identified())
	req.False(info.JoinedAt.IsZero())

	_, ok = registry.InfoOf("ghost")
	req.False(ok)
}

func TestRegistry_SinksFor_Deduplicates(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	sink := &captureSink{}
	registry.Register("alice", newSessionID(), sink)

	// Sender == receiver resolves to a single sink
	sinks := registry.SinksFor("alice", "alice")
	req.Len(sinks, 1)

	// Offline identities contribute nothing
	sinks = registry.SinksFor("alice", "ghost")
	req.Len(sinks, 1)
}

func TestRegistry_SinksExcept(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(16)
	aliceSink, bobSink := &captureSink{}, &captureSink{}
	registry.Register("alice", newSessionID(), aliceSink)
	registry.Register("bob", newSessionID(), bobSink)

	sinks := registry.SinksExcept("alice")

	req.Len(sinks, 1)
	req.Same(bobSink, sinks[0].(*captureSink))
}

func TestRegistry_Concurrent_Register_Unregister(t *testing.T) {
	req := require.New(t)
	const n = 50
	registry := NewRegistry(4 * n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%02d", i)
			id := newSessionID()
			registry.Register(identity, id, &captureSink{})
			if i%2 == 0 {
				registry.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	req.Len(registry.Online(), n/2)
	req.Len(registry.Sinks(), n/2)
}
