package transport

import (
	"clchat/observability"
	"clchat/services"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket sessions and hands them to
// the chat service. Origin checks are open: the browser clients are served
// from arbitrary hosts, like the product this replaces.
type Handler struct {
	svc      services.IChatService
	validate *validator.Validate
	metrics  observability.ChatMetrics
	cfg      SessionConfig
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc services.IChatService, metrics observability.ChatMetrics, cfg SessionConfig, log *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := newSession(conn, h.cfg, h.log)
	h.log.Info("Session connected", "session", session.ID(), "remote", r.RemoteAddr)

	go session.writePump()
	session.readPump(r.Context(), h.svc, h.validate, h.metrics)
}
