package runtime

import (
	"clchat/contract"
	"clchat/domain/chat"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// PresenceTracker derives the online-user view from the registry change feed
// and rebroadcasts it as a full snapshot on every change. Snapshots are
// recomputed at send time, so a client never receives a view older than the
// join or leave it caused. Identities that went offline keep a last-seen
// timestamp, restored from the SeenStore across restarts.
type PresenceTracker struct {
	registry *Registry
	seen     contract.SeenStore
	log      *slog.Logger

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

func NewPresenceTracker(registry *Registry, seen contract.SeenStore, log *slog.Logger) (*PresenceTracker, error) {
	restored, err := seen.AllSeen()
	if err != nil {
		return nil, err
	}
	if restored == nil {
		restored = make(map[string]time.Time)
	}
	return &PresenceTracker{
		registry: registry,
		seen:     seen,
		log:      log,
		lastSeen: restored,
	}, nil
}

// Run drains the registry change feed. It must be running for registrations
// to make progress once the feed buffer fills up.
func (t *PresenceTracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.log.Debug("Stopping presence tracker")
			return nil
		case change, ok := <-t.registry.Changes():
			if !ok {
				return nil
			}
			if !change.Online {
				t.recordSeen(change.Identity, change.At)
			}
			t.Broadcast(ctx)
		}
	}
}

func (t *PresenceTracker) recordSeen(identity string, at time.Time) {
	t.mu.Lock()
	t.lastSeen[identity] = at
	t.mu.Unlock()

	if err := t.seen.RecordSeen(identity, at); err != nil {
		t.log.Warn("Failed to persist last-seen", "identity", identity, "error", err)
	}
}

// Broadcast pushes the current snapshot to every live session.
func (t *PresenceTracker) Broadcast(ctx context.Context) {
	frame := chat.PresenceFrame{Users: t.Snapshot()}
	for _, sink := range t.registry.Sinks() {
		if err := sink.Consume(ctx, frame); err != nil {
			t.log.Debug("Presence snapshot dropped for slow session", "error", err)
		}
	}
}

// Snapshot lists every known identity with its online flag, sorted by
// identity: the currently registered ones plus everyone with a last-seen
// record. Online wins when an identity appears in both.
func (t *PresenceTracker) Snapshot() []chat.PresenceEntry {
	online := t.registry.Online()
	onlineSet := make(map[string]struct{}, len(online))
	for _, identity := range online {
		onlineSet[identity] = struct{}{}
	}

	t.mu.RLock()
	offline := make([]string, 0, len(t.lastSeen))
	for identity := range t.lastSeen {
		if _, isOnline := onlineSet[identity]; !isOnline {
			offline = append(offline, identity)
		}
	}
	t.mu.RUnlock()

	entries := lo.Map(online, func(identity string, _ int) chat.PresenceEntry {
		return chat.PresenceEntry{Identity: identity, Online: true}
	})
	entries = append(entries, lo.Map(offline, func(identity string, _ int) chat.PresenceEntry {
		return chat.PresenceEntry{Identity: identity, Online: false}
	})...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return entries
}

func (t *PresenceTracker) IsOnline(identity string) bool {
	return t.registry.IsOnline(identity)
}

// LastSeenOf reports when an identity was last unregistered. The record is
// retained across its next registration, so offline peers stay listed.
func (t *PresenceTracker) LastSeenOf(identity string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.lastSeen[identity]
	return at, ok
}
