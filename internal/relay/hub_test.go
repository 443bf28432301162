package relay_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EchoPBX/trackbus-gateway/internal/relay"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func Test_Hub_WithoutClientsIsNoop(t *testing.T) {
	hub := relay.NewHub(nil, 0)

	assert.NotPanics(t, func() {
		hub.Send(sdk.Command{Name: "event", Target: "click"})
	})
	assert.Empty(t, hub.Trackers())
	assert.Zero(t, hub.Clients())
}

func Test_Hub_RelaysCommands(t *testing.T) {
	hub := relay.NewHub(nil, 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Send(sdk.Command{Name: "config", Target: "UA-1", Params: map[string]any{"page_path": "/home"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, map[string]any{
		"type":    relay.TypeCommand,
		"command": "config",
		"target":  "UA-1",
		"params":  map[string]any{"page_path": "/home"},
	}, got)
}

func Test_Hub_LearnsTrackers(t *testing.T) {
	hub := relay.NewHub(nil, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)

	require.NoError(t, first.WriteJSON(relay.Inbound{Type: relay.TypeTrackers, IDs: []string{"UA-1", "G-2"}}))
	require.Eventually(t, func() bool { return len(hub.Trackers()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, second.WriteJSON(relay.Inbound{Type: relay.TypeTrackers, IDs: []string{"G-2", "", "G-3"}}))
	require.Eventually(t, func() bool { return len(hub.Trackers()) == 3 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"UA-1", "G-2", "G-3"}, hub.Trackers())
}

func Test_Hub_ForgetsDisconnectedClients(t *testing.T) {
	hub := relay.NewHub(nil, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { hub.Send(sdk.Command{Name: "event"}) })
}

func Test_Hub_Close(t *testing.T) {
	hub := relay.NewHub(nil, 0)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
