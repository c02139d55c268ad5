package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
)

// dialPair returns both ends of a live websocket connection.
func dialPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server side never accepted the connection")
	}
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

func readEvent(t *testing.T, conn *websocket.Conn) models.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event models.WSEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestBroadcastToConversationReachesRoomOnly(t *testing.T) {
	hub := NewHub()

	memberServer, memberClient := dialPair(t)
	outsiderServer, outsiderClient := dialPair(t)

	member := NewClient(memberServer, 1, "sess-1")
	outsider := NewClient(outsiderServer, 2, "sess-2")
	hub.JoinRoom("conv-1", member)
	hub.JoinRoom("conv-other", outsider)

	hub.BroadcastToConversation("conv-1", models.WSEvent{Type: models.EventMessage, Data: "hello"})

	event := readEvent(t, memberClient)
	assert.Equal(t, models.EventMessage, event.Type)

	require.NoError(t, outsiderClient.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := outsiderClient.ReadMessage()
	assert.Error(t, err, "outsider must not receive the event")
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	hub := NewHub()

	firstServer, firstClient := dialPair(t)
	secondServer, secondClient := dialPair(t)

	hub.Attach(NewClient(firstServer, 7, "sess-a"))
	hub.Attach(NewClient(secondServer, 7, "sess-b"))

	hub.SendToUser(7, models.WSEvent{Type: models.EventPresence})

	assert.Equal(t, models.EventPresence, readEvent(t, firstClient).Type)
	assert.Equal(t, models.EventPresence, readEvent(t, secondClient).Type)
}

func TestSendToOfflineUserIsNoop(t *testing.T) {
	hub := NewHub()
	hub.SendToUser(99, models.WSEvent{Type: models.EventPresence})
}

func TestFailedWriteDropsClient(t *testing.T) {
	hub := NewHub()

	server, _ := dialPair(t)
	client := NewClient(server, 1, "sess-1")
	hub.JoinRoom("conv-1", client)
	require.Equal(t, 1, hub.RoomSize("conv-1"))

	// Kill the server side so the next write fails.
	require.NoError(t, server.Close())
	hub.BroadcastToConversation("conv-1", models.WSEvent{Type: models.EventMessage})

	assert.Equal(t, 0, hub.RoomSize("conv-1"))
}

func TestLeaveRoomRemovesClient(t *testing.T) {
	hub := NewHub()

	server, _ := dialPair(t)
	client := NewClient(server, 1, "sess-1")
	hub.JoinRoom("conv-1", client)
	hub.LeaveRoom("conv-1", client)

	assert.Equal(t, 0, hub.RoomSize("conv-1"))
}
