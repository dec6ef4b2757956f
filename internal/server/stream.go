package server

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultStreamInterval caps the MJPEG stream at about 15 FPS.
const DefaultStreamInterval = 66 * time.Millisecond

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	hub      *Hub
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler sending at most one frame per
// interval.
func NewStreamHandler(hub *Hub, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{hub: hub, interval: interval}
}

// ServeHTTP streams frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.hub.streamers.Add(1)
	defer h.hub.streamers.Add(-1)

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var sent time.Time
	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
		}

		if wait := h.interval - time.Since(sent); wait > 0 {
			time.Sleep(wait)
		}

		jpeg, _, _ := h.hub.Latest()
		if jpeg == nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")
		if flusher != nil {
			flusher.Flush()
		}
		sent = time.Now()
	}
}
