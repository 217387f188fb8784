// Package transport owns the websocket side of the chat: one Session per
// connection, with a read pump feeding the chat service and a write pump
// draining the outbound buffer.
package transport

import (
	"clchat/domain/chat"
	"clchat/errors"
	"clchat/observability"
	"clchat/services"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Session is one live transport connection. It implements
// contract.EventSink: Consume enqueues a frame without blocking, reporting
// an error when the session cannot keep up.
type Session struct {
	id   chat.SessionID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	// identity is written by the read pump only, once, at join time.
	identity string

	limiter      *rate.Limiter
	writeTimeout time.Duration
	pongTimeout  time.Duration
	log          *slog.Logger
	closeOnce    sync.Once
}

func newSession(conn *websocket.Conn, cfg SessionConfig, log *slog.Logger) *Session {
	conn.SetReadLimit(cfg.MaxMessageSize)
	return &Session{
		id:           chat.SessionID(uuid.NewString()),
		conn:         conn,
		send:         make(chan []byte, cfg.SendBufferSize),
		done:         make(chan struct{}),
		limiter:      rate.NewLimiter(rate.Limit(cfg.EventRatePerSecond), cfg.EventBurst),
		writeTimeout: cfg.WriteTimeout,
		pongTimeout:  cfg.PongTimeout,
		log:          log,
	}
}

type SessionConfig struct {
	SendBufferSize     int
	MaxMessageSize     int64
	EventRatePerSecond float64
	EventBurst         int
	WriteTimeout       time.Duration
	PongTimeout        time.Duration
}

func (s *Session) ID() chat.SessionID { return s.id }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Consume enqueues one outbound frame. It never blocks: a full buffer means
// the client is too slow and the frame is sacrificed (history catches live
// message losses; presence and reactions are resent in full on every change).
func (s *Session) Consume(_ context.Context, f chat.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Type: f.FrameType(), Data: data})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return fmt.Errorf("session %s closed", s.id)
	case s.send <- payload:
		return nil
	default:
		return fmt.Errorf("session %s send buffer full", s.id)
	}
}

func (s *Session) sendError(code, detail string) {
	if err := s.Consume(context.Background(), chat.ErrorFrame{Code: code, Detail: detail}); err != nil {
		s.log.Debug("Error frame dropped", "session", s.id, "code", code)
	}
}

// readPump decodes inbound envelopes and drives the chat service until the
// connection dies. Events of one session are handled strictly in order,
// which is what gives a single sender its persist-order guarantee.
func (s *Session) readPump(ctx context.Context, svc services.IChatService, validate *validator.Validate, metrics observability.ChatMetrics) {
	defer func() {
		svc.Leave(ctx, s.id)
		s.teardown()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadEnd(err)
			return
		}
		if !s.limiter.Allow() {
			s.log.Warn("Event rate limit exceeded, discarding", "session", s.id)
			continue
		}
		s.handleEvent(ctx, svc, validate, metrics, raw)
	}
}

func (s *Session) handleEvent(ctx context.Context, svc services.IChatService, validate *validator.Validate, metrics observability.ChatMetrics, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.reject(metrics, errors.CodeInvalidEvent, "malformed envelope")
		return
	}
	metrics.RecordEvent(env.Type)

	var err error
	switch env.Type {
	case chat.EventJoin:
		err = s.handleJoin(ctx, svc, validate, env.Data)
	case chat.EventSend:
		err = s.handleSend(ctx, svc, validate, env.Data)
	case chat.EventTyping:
		err = s.handleTyping(ctx, svc, validate, env.Data, false)
	case chat.EventTypingStopped:
		err = s.handleTyping(ctx, svc, validate, env.Data, true)
	case chat.EventReaction:
		err = s.handleReaction(ctx, svc, validate, env.Data)
	default:
		err = fmt.Errorf("%w: unknown event type %q", errors.ErrInvalidEvent, env.Type)
	}

	if err != nil {
		s.reject(metrics, errors.CodeOf(err), err.Error())
	}
}

func (s *Session) reject(metrics observability.ChatMetrics, code, detail string) {
	metrics.RecordRejection(code)
	s.sendError(code, detail)
}

func (s *Session) handleJoin(ctx context.Context, svc services.IChatService, validate *validator.Validate, data json.RawMessage) error {
	var p chat.JoinPayload
	if err := decode(validate, data, &p); err != nil {
		return err
	}
	if s.identity != "" {
		return fmt.Errorf("%w: session already joined as %q", errors.ErrInvalidEvent, s.identity)
	}
	if err := svc.Join(ctx, s.id, p.Identity, s); err != nil {
		return err
	}
	s.identity = p.Identity
	return nil
}

// actingIdentity resolves the identity an event acts as. The session's own
// join-time identity is authoritative; a payload naming anyone else is
// rejected, never trusted.
func (s *Session) actingIdentity(claimed string) (string, error) {
	if s.identity == "" {
		return "", errors.ErrUnauthenticatedSender
	}
	if claimed != "" && claimed != s.identity {
		return "", fmt.Errorf("%w: payload identity %q does not match session identity", errors.ErrInvalidEvent, claimed)
	}
	return s.identity, nil
}

func (s *Session) handleSend(ctx context.Context, svc services.IChatService, validate *validator.Validate, data json.RawMessage) error {
	var p chat.SendPayload
	if err := decode(validate, data, &p); err != nil {
		return err
	}
	sender, err := s.actingIdentity(p.Sender)
	if err != nil {
		return err
	}
	return svc.Send(ctx, sender, p.Receiver, p.Content)
}

func (s *Session) handleTyping(ctx context.Context, svc services.IChatService, validate *validator.Validate, data json.RawMessage, stopped bool) error {
	var p chat.TypingPayload
	if err := decode(validate, data, &p); err != nil {
		return err
	}
	sender, err := s.actingIdentity(p.Sender)
	if err != nil {
		return err
	}
	return svc.Typing(ctx, sender, p.Receiver, stopped)
}

func (s *Session) handleReaction(ctx context.Context, svc services.IChatService, validate *validator.Validate, data json.RawMessage) error {
	var p chat.ReactionPayload
	if err := decode(validate, data, &p); err != nil {
		return err
	}
	identity, err := s.actingIdentity(p.Identity)
	if err != nil {
		return err
	}
	return svc.React(ctx, p.MessageID, p.Emoji, identity)
}

func decode(validate *validator.Validate, data json.RawMessage, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidEvent, err)
	}
	if err := validate.Struct(into); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidEvent, err)
	}
	return nil
}

// writePump drains the send buffer and keeps the connection alive with
// pings. It owns all writes on the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.pongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Debug("Write failed", "session", s.id, "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Debug("Connection close failed", "session", s.id, "error", err)
		}
	})
}

func (s *Session) logReadEnd(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		s.log.Info("Session disconnected", "session", s.id, "identity", s.identity)
	case err == io.EOF || isExpectedCloseError(err):
		s.log.Info("Session connection closed", "session", s.id)
	default:
		s.log.Warn("Unexpected read error", "session", s.id, "error", err)
	}
}

// isExpectedCloseError matches the noise every dying websocket produces.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
