package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream/streamtest"
	"github.com/twiced-technology-gmbh/dirwatch/internal/watcher"
)

func newWatcher(t *testing.T) *watcher.Watcher {
	t.Helper()
	s := streamtest.New()
	w := watcher.NewFileWatcher("/watched", nil,
		watcher.WithFactory(s.Factory()),
		watcher.WithDirExists(func(string) bool { return true }),
	)
	require.True(t, w.IsActive())
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func newTestServer(t *testing.T, store journal.Store) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(newWatcher(t), store, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var st Status
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &st))
	assert.Equal(t, "active", st.State)
	assert.Equal(t, "/watched", st.Root)
	assert.Equal(t, []string{"file-events"}, st.Mask)
	assert.GreaterOrEqual(t, st.Registered, 1)
	assert.Empty(t, st.Error)
}

func TestLifecycleEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var st Status
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/pause", &st))
	assert.Equal(t, "paused", st.State)

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/resume", &st))
	assert.Equal(t, "active", st.State)

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/stop", &st))
	assert.Equal(t, "stopped", st.State)

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/resume", &st))
	assert.Equal(t, "stopped", st.State)
}

func TestLifecycleRequiresPost(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/stop") //nolint:noctx // test
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEventsWithoutJournal(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var resp output.ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/events", &resp))
	assert.Equal(t, clierr.JournalDisabled, resp.Code)
}

func TestEventsFromJournal(t *testing.T) {
	store, err := journal.Open(filepath.Join(t.TempDir(), "events.jsonl"), 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(context.Background(), fsevent.ChangeEvent{
			ID:    uint64(i + 1),
			Flags: fsevent.FlagItemModified,
			Path:  "/watched/f",
		}))
	}
	_, ts := newTestServer(t, store)

	var entries []journal.Entry
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events?limit=2", &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(4), entries[0].ID)
	assert.Equal(t, uint64(5), entries[1].ID)

	var bad output.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/events?limit=zero", &bad))
	assert.Equal(t, clierr.InvalidInput, bad.Code)
}

func TestWebsocketReceivesBroadcast(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.Broadcaster().ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ev := fsevent.ChangeEvent{ID: 9, Flags: fsevent.FlagItemCreated | fsevent.FlagItemIsFile, Path: "/watched/new"}
	srv.Broadcaster().Broadcast(journal.NewEntry(ev, time.Now()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "/watched/new", msg.Data.Path)
	assert.Equal(t, []string{"created", "is-file"}, msg.Data.Kinds)

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.Broadcaster().ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
