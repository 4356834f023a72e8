package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func dialWS(t *testing.T, h *ChatHandler, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketSessionHandOut(t *testing.T) {
	h, _ := newTestHandler(t)
	conn := dialWS(t, h, "?client=ws-visitor")

	var out wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "session", out.Type)
	assert.NotEmpty(t, out.SessionID)
}

func TestWebSocketTurn(t *testing.T) {
	h, up := newTestHandler(t, `{"reply":"hello over ws"}`)
	conn := dialWS(t, h, "?client=ws-visitor")

	var session wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &session))

	require.NoError(t, websocket.JSON.Send(conn, wsInbound{Type: "message", Text: "hi"}))

	var out wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "bot", out.Role)
	assert.Equal(t, "hello over ws", out.Text)
	assert.Nil(t, out.Form)

	require.Len(t, up.bodies, 1)
	assert.Equal(t, session.SessionID, up.bodies[0]["session_id"])
}

func TestWebSocketPingPong(t *testing.T) {
	h, _ := newTestHandler(t)
	conn := dialWS(t, h, "?client=ws-visitor")

	var session wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &session))

	require.NoError(t, websocket.JSON.Send(conn, wsInbound{Type: "ping"}))

	var out wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	assert.Equal(t, "pong", out.Type)
}

func TestWebSocketFormOpenCarriesState(t *testing.T) {
	h, _ := newTestHandler(t, `{"message":"Please fill out the form below."}`)
	conn := dialWS(t, h, "?client=ws-visitor")

	var session wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &session))

	require.NoError(t, websocket.JSON.Send(conn, wsInbound{Type: "message", Text: "book me"}))

	var out wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	require.NotNil(t, out.Form)
	assert.True(t, out.Form.Visible)
	assert.NotEmpty(t, out.Form.Slots)
}

func TestWebSocketHistoryReplay(t *testing.T) {
	h, _ := newTestHandler(t, `{"reply":"first reply"}`)

	// Seed a conversation over HTTP first.
	first := postJSON(t, h.HandleMessage, "/api/chat", map[string]string{
		"client_id": "ws-visitor",
		"message":   "hello",
	})
	require.Equal(t, 200, first.Code)

	conn := dialWS(t, h, "?client=ws-visitor")

	var session wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &session))

	var history wsOutbound
	require.NoError(t, websocket.JSON.Receive(conn, &history))
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hello", history.Messages[0].Text)
	assert.Equal(t, "first reply", history.Messages[1].Text)
}
