package httpapi

import (
	"clchat/contract"
	"clchat/domain/chat"
	"clchat/mocks"
	"clchat/runtime"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type nopSink struct{}

func (nopSink) Consume(context.Context, chat.Frame) error { return nil }

type apiFixture struct {
	server   *httptest.Server
	store    *mocks.MockMessageStore
	search   *mocks.MockSearchIndex
	registry *runtime.Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	req := require.New(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	log := slog.Default()

	store := mocks.NewMockMessageStore(ctrl)
	search := mocks.NewMockSearchIndex(ctrl)
	seen := mocks.NewMockSeenStore(ctrl)
	seen.EXPECT().AllSeen().Return(map[string]time.Time{"carol": time.Now().UTC()}, nil)

	registry := runtime.NewRegistry(64)
	tracker, err := runtime.NewPresenceTracker(registry, seen, log)
	req.NoError(err)

	handler := NewHandler(store, search, tracker, registry, 25, log)
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(handler.Router(ws, metrics))
	t.Cleanup(server.Close)
	return &apiFixture{server: server, store: store, search: search, registry: registry}
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestAPI_Healthz(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	var body map[string]string
	status := getJSON(t, f.server.URL+"/healthz", &body)

	req.Equal(http.StatusOK, status)
	req.Equal("ok", body["status"])
}

func TestAPI_Messages(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	history := []chat.Message{
		{ID: uuid.New(), Sender: "alice", Content: "hi", Kind: chat.KindText, Timestamp: time.Now().UTC(), Reactions: chat.Reactions{}},
	}
	f.store.EXPECT().History().Return(history, nil)

	var body []chat.Message
	status := getJSON(t, f.server.URL+"/api/messages", &body)

	req.Equal(http.StatusOK, status)
	req.Len(body, 1)
	req.Equal(history[0].ID, body[0].ID)
}

func TestAPI_Messages_Storage_Failure(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	f.store.EXPECT().History().Return(nil, context.DeadlineExceeded)

	status := getJSON(t, f.server.URL+"/api/messages", nil)

	req.Equal(http.StatusInternalServerError, status)
}

func TestAPI_Pair_Messages(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	bob := "bob"
	pair := []chat.Message{
		{ID: uuid.New(), Sender: "alice", Receiver: &bob, Content: "psst", Kind: chat.KindText, Timestamp: time.Now().UTC(), Reactions: chat.Reactions{}},
	}
	f.store.EXPECT().PairHistory("alice", "bob").Return(pair, nil)

	var body []chat.Message
	status := getJSON(t, f.server.URL+"/api/messages/alice/bob", &body)

	req.Equal(http.StatusOK, status)
	req.Len(body, 1)
}

func TestAPI_Online(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	f.registry.Register("alice", chat.SessionID(uuid.NewString()), nopSink{})

	var body struct {
		Online []string            `json:"online"`
		Users  []chat.PresenceEntry `json:"users"`
	}
	status := getJSON(t, f.server.URL+"/api/online", &body)

	req.Equal(http.StatusOK, status)
	req.Equal([]string{"alice"}, body.Online)
	req.Equal([]chat.PresenceEntry{
		{Identity: "alice", Online: true},
		{Identity: "carol", Online: false},
	}, body.Users)
}

func TestAPI_Search(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	hit := contract.SearchHit{MessageID: uuid.New(), Sender: "alice", Score: 1.5}
	f.search.EXPECT().Search(gomock.Any(), "deploy", 25).Return([]contract.SearchHit{hit}, nil)

	var body []contract.SearchHit
	status := getJSON(t, f.server.URL+"/api/search?q=deploy", &body)

	req.Equal(http.StatusOK, status)
	req.Equal([]contract.SearchHit{hit}, body)
}

func TestAPI_Search_Client_Limit_Is_Clamped(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	// Configured cap is 25; a smaller client limit passes through, a larger
	// one would not.
	f.search.EXPECT().Search(gomock.Any(), "deploy", 5).Return(nil, nil)

	var body []contract.SearchHit
	status := getJSON(t, f.server.URL+"/api/search?q=deploy&limit=5", &body)

	req.Equal(http.StatusOK, status)
	req.Empty(body)
}

func TestAPI_Debug_Stats(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	var body map[string]any
	status := getJSON(t, f.server.URL+"/debug/stats", &body)

	req.Equal(http.StatusOK, status)
	req.Contains(body, "goroutines")
}
