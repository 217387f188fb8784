package runtime

import (
	"clchat/contract"
	"clchat/domain/chat"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// PresenceChange is emitted on every successful register and unregister.
// The PresenceTracker consumes the feed; the channel must be drained for
// registrations to proceed once the buffer is full.
type PresenceChange struct {
	Identity string
	Online   bool
	At       time.Time
}

type binding struct {
	session  chat.SessionID
	sink     contract.EventSink
	joinedAt time.Time
}

// Registry is the source of truth for "online": a concurrency-safe
// bidirectional identity <-> session mapping. Lookups are linearizable with
// respect to register/unregister; both directions mutate under one lock so
// no caller ever observes a half-updated pair.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]binding
	bySession  map[chat.SessionID]string
	changes    chan PresenceChange
}

func NewRegistry(changeBuffer int) *Registry {
	return &Registry{
		byIdentity: make(map[string]binding),
		bySession:  make(map[chat.SessionID]string),
		changes:    make(chan PresenceChange, changeBuffer),
	}
}

func (r *Registry) Changes() <-chan PresenceChange { return r.changes }

// Register binds identity to the given session. A prior live session for the
// same identity is atomically replaced, never stacked: it stops being
// addressable as identity but is not closed here (that policy belongs to the
// session lifecycle owner). The displaced sink is returned so the caller can
// notify it.
func (r *Registry) Register(identity string, id chat.SessionID, sink contract.EventSink) (contract.EventSink, bool) {
	r.mu.Lock()
	var displaced contract.EventSink
	if old, ok := r.byIdentity[identity]; ok && old.session != id {
		delete(r.bySession, old.session)
		displaced = old.sink
	}
	r.byIdentity[identity] = binding{session: id, sink: sink, joinedAt: time.Now().UTC()}
	r.bySession[id] = identity
	r.mu.Unlock()

	r.changes <- PresenceChange{Identity: identity, Online: true, At: time.Now().UTC()}
	return displaced, displaced != nil
}

// Unregister removes the mapping held by the given session. A disconnect for
// a session that has since been superseded by a newer registration is a
// no-op: the stale eviction must not knock a valid reconnection offline.
func (r *Registry) Unregister(id chat.SessionID) (string, bool) {
	r.mu.Lock()
	identity, ok := r.bySession[id]
	if ok {
		delete(r.bySession, id)
		delete(r.byIdentity, identity)
	}
	r.mu.Unlock()

	if !ok {
		return "", false
	}
	r.changes <- PresenceChange{Identity: identity, Online: false, At: time.Now().UTC()}
	return identity, true
}

func (r *Registry) SessionOf(identity string) (chat.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byIdentity[identity]
	return b.session, ok
}

// InfoOf describes the live session currently bound to identity.
func (r *Registry) InfoOf(identity string) (chat.SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byIdentity[identity]
	if !ok {
		return chat.SessionInfo{}, false
	}
	return chat.SessionInfo{ID: b.session, Identity: identity, JoinedAt: b.joinedAt}, true
}

func (r *Registry) IdentityOf(id chat.SessionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.bySession[id]
	return identity, ok
}

func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byIdentity[identity]
	return ok
}

// Online returns the current online identities, sorted for stable snapshots.
func (r *Registry) Online() []string {
	r.mu.RLock()
	out := lo.Keys(r.byIdentity)
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Sinks returns every live sink, the delivery set of a public message.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contract.EventSink, 0, len(r.byIdentity))
	for _, b := range r.byIdentity {
		out = append(out, b.sink)
	}
	return out
}

// SinksFor resolves the live sinks of the given identities, deduplicated.
// Offline identities simply contribute nothing.
func (r *Registry) SinksFor(identities ...string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(identities))
	var out []contract.EventSink
	for _, identity := range identities {
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}
		if b, ok := r.byIdentity[identity]; ok {
			out = append(out, b.sink)
		}
	}
	return out
}

// SinksExcept returns every live sink but the one bound to identity. Public
// typing relays use it so a sender never hears its own echo.
func (r *Registry) SinksExcept(identity string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []contract.EventSink
	for who, b := range r.byIdentity {
		if who == identity {
			continue
		}
		out = append(out, b.sink)
	}
	return out
}
