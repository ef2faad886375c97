package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nitplane/nitplane/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	if messageType == "fail" {
		return errors.New("nope")
	}
	client.SendMessage(&Message{Type: "echo", Data: map[string]any{"type": messageType}})
	return nil
}

func startHub(t *testing.T, origins []string) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewServer(logger.NewNop(), origins)
	hub.SetMessageHandler(echoHandler{})
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesClients(t *testing.T) {
	hub, srv := startHub(t, nil)
	a := dial(t, srv, nil)
	b := dial(t, srv, nil)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(&Message{Type: MessageTypeFlightsUpdate, Data: map[string]any{"count": 3}})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MessageTypeFlightsUpdate, msg.Type)
		assert.Equal(t, float64(3), msg.Data["count"])
	}
}

func TestHandlerRepliesToSender(t *testing.T) {
	_, srv := startHub(t, nil)
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeFlightsRequest}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "echo", msg.Type)
	assert.Equal(t, MessageTypeFlightsRequest, msg.Data["type"])
}

func TestHandlerErrorIsReported(t *testing.T) {
	_, srv := startHub(t, nil)
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: "fail"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "fail", msg.Data["request_type"])
}

func TestClientUnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://radar.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://radar.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestOriginCheckerDefaultsToSameOrigin(t *testing.T) {
	check := originChecker(nil)

	req := httptest.NewRequest(http.MethodGet, "http://radar.example/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://radar.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
