package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
)

func init() {
	logger.Silence()
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(ctx)
	go hub.Run()
	t.Cleanup(cancel)
	return hub, cancel
}

// connect поднимает сервер, регистрирующий клиента для userID, и подключается к нему.
func connect(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, userID)
		hub.Register(client)
		client.Run()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Online(userID) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHub_BroadcastToUser(t *testing.T) {
	hub, _ := startHub(t)
	seller, other := uuid.New(), uuid.New()
	conn := connect(t, hub, seller)
	otherConn := connect(t, hub, other)

	hub.BroadcastToUser(seller, "order_purchased", map[string]interface{}{"amount": 100})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "order_purchased", msg.Type)
	assert.EqualValues(t, 100, msg.Data["amount"])

	// Другой пользователь событие не получает.
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_BroadcastToOfflineUser(t *testing.T) {
	hub, _ := startHub(t)

	assert.NotPanics(t, func() {
		hub.BroadcastToUser(uuid.New(), "order_shipped", nil)
	})
}

func TestHub_UnmarshalableEventDropped(t *testing.T) {
	hub, _ := startHub(t)

	assert.NotPanics(t, func() {
		hub.BroadcastToUser(uuid.New(), "bad", make(chan int))
	})
}

func TestHub_StopsOnContextCancel(t *testing.T) {
	hub, cancel := startHub(t)
	userID := uuid.New()
	conn := connect(t, hub, userID)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Online(userID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, _ := startHub(t)
	userID := uuid.New()
	conn := connect(t, hub, userID)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Online(userID) == 0 }, 2*time.Second, 5*time.Millisecond)
}
