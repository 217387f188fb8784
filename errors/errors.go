package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnauthenticatedSender rejects send/react/typing events from a
	// session that never completed its join handshake. The connection
	// stays open.
	ErrUnauthenticatedSender = fmt.Errorf("sender is not a registered online identity")

	// ErrMessageNotFound rejects a reaction referencing an unknown message.
	ErrMessageNotFound = fmt.Errorf("message not found")

	// ErrPersistenceUnavailable aborts an operation whose durable write
	// failed. Nothing is fanned out in that case.
	ErrPersistenceUnavailable = fmt.Errorf("persistence unavailable")

	// ErrInvalidEvent rejects a frame that failed decoding or validation.
	ErrInvalidEvent = fmt.Errorf("invalid event payload")

	ErrEmptyWordList = fmt.Errorf("no censored words have been found")
	ErrWorkerPanic   = fmt.Errorf("worker panic")
)

// Wire error codes surfaced to the initiating session only.
const (
	CodeUnauthenticated = "unauthenticated_sender"
	CodeMessageNotFound = "message_not_found"
	CodePersistence     = "persistence_unavailable"
	CodeInvalidEvent    = "invalid_event"
	CodeSessionReplaced = "session_replaced"
	CodeInternal        = "internal"
)

// CodeOf maps a domain error to the wire code sent back to the initiating
// session. Unknown errors collapse to an internal code so internals never
// leak to clients.
func CodeOf(err error) string {
	switch {
	case stderrors.Is(err, ErrUnauthenticatedSender):
		return CodeUnauthenticated
	case stderrors.Is(err, ErrMessageNotFound):
		return CodeMessageNotFound
	case stderrors.Is(err, ErrPersistenceUnavailable):
		return CodePersistence
	case stderrors.Is(err, ErrInvalidEvent):
		return CodeInvalidEvent
	default:
		return CodeInternal
	}
}
