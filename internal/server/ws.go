package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LandmarksHandler pushes each frame result to WebSocket clients as JSON.
type LandmarksHandler struct {
	hub *Hub
}

// NewLandmarksHandler creates a LandmarksHandler reading from hub.
func NewLandmarksHandler(hub *Hub) *LandmarksHandler {
	return &LandmarksHandler{hub: hub}
}

// ServeHTTP upgrades the connection and writes results until the client
// goes away. The latest result, if any, is sent immediately.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	// Reads handle control frames and detect the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last uint64
	send := func() bool {
		_, msg, seq := h.hub.Latest()
		if msg == nil || seq == last {
			return true
		}
		last = seq
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, msg) == nil
	}

	if !send() {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-updates:
			if !send() {
				return
			}
		}
	}
}
