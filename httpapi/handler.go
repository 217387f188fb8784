// Package httpapi exposes the stateless read surface: message history,
// presence and search. It reads the exact same stores the socket layer
// writes, so the two views can never diverge.
package httpapi

import (
	"clchat/contract"
	"clchat/observability"
	"clchat/runtime"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	store       contract.MessageStore
	search      contract.SearchIndex
	tracker     *runtime.PresenceTracker
	registry    *runtime.Registry
	searchLimit int
	log         *slog.Logger
}

func NewHandler(
	store contract.MessageStore,
	search contract.SearchIndex,
	tracker *runtime.PresenceTracker,
	registry *runtime.Registry,
	searchLimit int,
	log *slog.Logger,
) *Handler {
	return &Handler{
		store:       store,
		search:      search,
		tracker:     tracker,
		registry:    registry,
		searchLimit: searchLimit,
		log:         log,
	}
}

// Router assembles the HTTP surface. The websocket endpoint and the metrics
// endpoint are injected so this package stays free of transport and
// registry plumbing.
func (h *Handler) Router(ws http.Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.healthz)
	r.Get("/debug/stats", h.debugStats)
	r.Handle("/metrics", metrics)
	r.Handle("/ws", ws)

	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.history)
		r.Get("/messages/{a}/{b}", h.pairHistory)
		r.Get("/online", h.online)
		r.Get("/search", h.searchMessages)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) debugStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, observability.Snapshot(len(h.registry.Online())))
}

// history returns every message, timestamp ascending, straight from the
// durable store. A fetch issued right after a live broadcast must include
// that message: the router persists before it fans out.
func (h *Handler) history(w http.ResponseWriter, _ *http.Request) {
	messages, err := h.store.History()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) pairHistory(w http.ResponseWriter, r *http.Request) {
	a := chi.URLParam(r, "a")
	b := chi.URLParam(r, "b")
	messages, err := h.store.PairHistory(a, b)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) online(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"online": h.registry.Online(),
		"users":  h.tracker.Snapshot(),
	})
}

func (h *Handler) searchMessages(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	limit := h.searchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	hits, err := h.search.Search(r.Context(), terms, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if hits == nil {
		hits = []contract.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.log.Error("Read path failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
