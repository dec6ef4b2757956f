package server

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/app"
)

// Hub holds the latest annotated frame and result and wakes subscribed
// stream and websocket clients. It satisfies app.Publisher.
type Hub struct {
	mu     sync.RWMutex
	jpeg   []byte
	result []byte
	seq    uint64
	subs   map[chan struct{}]struct{}

	// streamers counts MJPEG clients; frames are only encoded while it is
	// non-zero.
	streamers atomic.Int32
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan struct{}]struct{})}
}

// Publish stores the frame and result and notifies subscribers. It runs on
// the frame loop goroutine and never blocks on clients.
func (h *Hub) Publish(frame *gocv.Mat, result *app.Result) {
	msg, err := json.Marshal(result)
	if err != nil {
		log.Printf("hub: encode result: %v", err)
		return
	}

	var jpeg []byte
	if h.streamers.Load() > 0 && frame != nil && !frame.Empty() {
		buf, err := gocv.IMEncode(".jpg", *frame)
		if err != nil {
			log.Printf("hub: encode frame: %v", err)
		} else {
			jpeg = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		}
	}

	h.mu.Lock()
	h.result = msg
	if jpeg != nil {
		h.jpeg = jpeg
	}
	h.seq++
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel that receives a signal after each Publish.
// Signals coalesce when the reader is slow. Call cancel to unsubscribe.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Latest returns the most recent JPEG frame, result JSON and publish count.
func (h *Hub) Latest() (jpeg, result []byte, seq uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.result, h.seq
}

// Subscribers returns the number of subscribed clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
