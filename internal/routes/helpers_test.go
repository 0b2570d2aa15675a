package routes

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	gwebsocket "github.com/gorilla/websocket"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/metrics"
	"github.com/rejdeboer/collab-server/internal/sync"
	"github.com/rejdeboer/collab-server/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type TestApp struct {
	server   *httptest.Server
	hub      *websocket.Hub
	clock    *clock.Mock
	metrics  *metrics.Metrics
	settings configuration.Settings
}

type TestEvent struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	BlockID string          `json:"blockId"`
	Name    string          `json:"name"`
	Peers   []string        `json:"peers"`
	Locks   []sync.LockInfo `json:"locks"`
}

func GetTestApp(t *testing.T, modify func(*configuration.Settings)) *TestApp {
	t.Helper()

	settings := configuration.Default()
	if modify != nil {
		modify(&settings)
	}

	clk := clock.NewMock()
	m := metrics.NewNop()
	sink := audit.NewLogSink(zerolog.Nop())
	hub := websocket.NewHub(settings, clk, m, sink, zerolog.Nop())

	server := httptest.NewServer(CreateHandler(settings, &Env{
		Hub:     hub,
		Metrics: m,
		Audit:   sink,
		Clock:   clk,
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
	})

	return &TestApp{
		server:   server,
		hub:      hub,
		clock:    clk,
		metrics:  m,
		settings: settings,
	}
}

func (app *TestApp) wsURL(params url.Values) string {
	return "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws?" + params.Encode()
}

func (app *TestApp) Dial(t *testing.T, params url.Values) *gwebsocket.Conn {
	t.Helper()

	ws, _, err := gwebsocket.DefaultDialer.Dial(app.wsURL(params), nil)
	require.NoError(t, err, "error connecting to server")
	t.Cleanup(func() { ws.Close() })
	return ws
}

// Join connects to room and consumes the join snapshot.
func (app *TestApp) Join(t *testing.T, room string, password string, name string) (*gwebsocket.Conn, TestEvent) {
	t.Helper()

	ws := app.Dial(t, url.Values{
		"room":     {room},
		"password": {password},
		"name":     {name},
	})
	snapshot := ReadEvent(t, ws)
	require.Equal(t, sync.EventSnapshot, snapshot.Type)
	return ws, snapshot
}

func Send(t *testing.T, ws *gwebsocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

func ReadEvent(t *testing.T, ws *gwebsocket.Conn) TestEvent {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var event TestEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// ReadEventOfType skips events until one of eventType arrives.
func ReadEventOfType(t *testing.T, ws *gwebsocket.Conn, eventType string) TestEvent {
	t.Helper()
	for {
		if event := ReadEvent(t, ws); event.Type == eventType {
			return event
		}
	}
}

// ReadClose skips events until the server closes the connection and returns
// the close code.
func ReadClose(t *testing.T, ws *gwebsocket.Conn) int {
	t.Helper()
	for {
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, _, err := ws.ReadMessage(); err != nil {
			var closeErr *gwebsocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			return closeErr.Code
		}
	}
}

func (app *TestApp) Snapshot(t *testing.T, room string) websocket.RoomSnapshot {
	t.Helper()

	r, ok := app.hub.GetRoom(room)
	require.True(t, ok, "room %s does not exist", room)
	snapshot, ok := r.Snapshot()
	require.True(t, ok)
	return snapshot
}
