package chat

import "time"

// SessionID is assigned by the transport layer, one per connection.
// A later connection on the same socket is a new session with a new id.
type SessionID string

// SessionInfo describes one live transport connection as the registry sees
// it. Identity is empty until the join handshake completes and is set
// exactly once per session lifetime:
//
//	Connected(anonymous) -> Connected(identified) -> Disconnected
//
// A disconnected session is never reused.
type SessionInfo struct {
	ID       SessionID
	Identity string
	JoinedAt time.Time
}

func (s SessionInfo) Identified() bool {
	return s.Identity != ""
}
