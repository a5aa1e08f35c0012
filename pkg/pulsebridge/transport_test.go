// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newBridgeServer serves a fake bridge over WebSocket behind Basic auth
func newBridgeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Text messages are noise, the client must skip them
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))

		decoder := NewDecoder()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, b := range data {
				p, _ := decoder.DecodeByte(b)
				if p == nil || p.Type() != MsgPingRequest {
					continue
				}
				frame, _ := Encode(NewPingResponse(3 * time.Second))
				// Split the frame across two messages
				conn.WriteMessage(websocket.BinaryMessage, frame[:3])
				conn.WriteMessage(websocket.BinaryMessage, frame[3:])
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialWebSocket(t *testing.T) {
	srv := newBridgeServer(t)

	conn, err := DialWebSocket(context.Background(), wsURL(srv), "admin", "secret", false)
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	c := NewClient(conn)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if res.Uptime != 3*time.Second {
		t.Errorf("Uptime = %v, want 3s", res.Uptime)
	}
}

func TestDialWebSocket_Unauthorized(t *testing.T) {
	srv := newBridgeServer(t)

	_, err := DialWebSocket(context.Background(), wsURL(srv), "admin", "wrong", false)
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("error = %v, want HTTP 401", err)
	}
}

func TestDialWebSocket_BadURL(t *testing.T) {
	for _, u := range []string{"http://localhost/ws", "://bad"} {
		if _, err := DialWebSocket(context.Background(), u, "", "", false); err == nil {
			t.Errorf("DialWebSocket(%q) succeeded", u)
		}
	}
}
