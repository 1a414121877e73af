// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clientrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
)

func wsServer(t *testing.T, serve func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recv(t *testing.T, sub ports.Subscription) (ports.Notification, bool) {
	t.Helper()
	select {
	case n, ok := <-sub.C():
		return n, ok
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
		return ports.Notification{}, false
	}
}

func TestNotificationStreamDelivers(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(ports.Notification{State: "Open", At: at})
		_ = conn.WriteJSON(ports.Notification{State: "login-ready"})
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	})

	sub, err := NewNotificationStream(url, nil).Subscribe(context.Background())
	require.NoError(t, err)

	n, ok := recv(t, sub)
	require.True(t, ok)
	assert.Equal(t, "Open", n.State)
	assert.Equal(t, at, n.At.UTC())

	n, ok = recv(t, sub)
	require.True(t, ok)
	assert.Equal(t, "login-ready", n.State)
	assert.False(t, n.At.IsZero(), "missing timestamps are stamped on receipt")

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok = <-sub.C()
	assert.False(t, ok)
}

func TestNotificationStreamClosesChannelWhenServerHangsUp(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "client exiting"))
	})

	sub, err := NewNotificationStream(url, nil).Subscribe(context.Background())
	require.NoError(t, err)

	_, ok := recv(t, sub)
	assert.False(t, ok)
	require.NoError(t, sub.Close())
}

func TestNotificationStreamDialFailure(t *testing.T) {
	_, err := NewNotificationStream("ws://127.0.0.1:1/notifications", nil).Subscribe(context.Background())
	assert.Error(t, err)
}
