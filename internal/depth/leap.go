package depth

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/ayusman/fingerfuse/internal/detector"
)

// DefaultLeapURL is the local Leap Motion service WebSocket endpoint.
const DefaultLeapURL = "ws://127.0.0.1:6437/v6.json"

// ErrClosed is returned by Frame after the connection has been closed.
var ErrClosed = errors.New("depth tracker closed")

// Logf is the package diagnostic logger. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LeapTracker reads frames from the Leap Motion service. A background
// reader keeps only the most recent frame; Frame returns that snapshot.
type LeapTracker struct {
	conn *websocket.Conn

	mu      sync.Mutex
	latest  *Frame
	readErr error
	closed  bool

	done chan struct{}
}

// DialLeap connects to the Leap Motion service at url and starts reading frames.
func DialLeap(ctx context.Context, url string) (*LeapTracker, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial leap service %s", url)
	}

	// Keep streaming while the capture window has focus instead of the service.
	for _, opt := range []map[string]bool{{"background": true}, {"focused": true}} {
		if err := conn.WriteJSON(opt); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "configure leap stream")
		}
	}

	t := &LeapTracker{
		conn: conn,
		done: make(chan struct{}),
	}
	go t.readLoop()

	return t, nil
}

// Frame returns the most recently received frame, or nil if no hand was in view.
func (t *LeapTracker) Frame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.readErr != nil {
		return nil, t.readErr
	}
	return t.latest, nil
}

// Close closes the connection and waits for the reader to exit.
func (t *LeapTracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.conn.Close()
	<-t.done
	return err
}

func (t *LeapTracker) readLoop() {
	defer close(t.done)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if !t.closed {
				t.readErr = errors.Wrap(err, "read leap frame")
			}
			t.mu.Unlock()
			return
		}

		frame, ok, err := decodeFrame(data)
		if err != nil {
			Logf("depth: skipping malformed leap message: %v", err)
			continue
		}
		if !ok {
			continue
		}

		t.mu.Lock()
		t.latest = frame
		t.mu.Unlock()
	}
}

// leapMessage is the subset of the Leap v6 JSON frame used here.
// Service greetings and events carry no frame id.
type leapMessage struct {
	ID         *int64          `json:"id"`
	Hands      []leapHand      `json:"hands"`
	Pointables []leapPointable `json:"pointables"`
}

type leapHand struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type leapPointable struct {
	HandID       int64     `json:"handId"`
	Type         int       `json:"type"`
	TipPosition  []float64 `json:"tipPosition"`
	BTipPosition []float64 `json:"btipPosition"`
}

// decodeFrame converts one service message. ok is false for messages that
// are not frames. A frame without hands yields a nil *Frame.
func decodeFrame(data []byte) (frame *Frame, ok bool, err error) {
	var msg leapMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, errors.Wrap(err, "decode leap message")
	}
	if msg.ID == nil {
		return nil, false, nil
	}
	if len(msg.Hands) == 0 {
		return nil, true, nil
	}

	frame = &Frame{Hands: make([]Hand, len(msg.Hands))}
	byID := make(map[int64]int, len(msg.Hands))
	for i, h := range msg.Hands {
		frame.Hands[i].Handedness = handedness(h.Type)
		byID[h.ID] = i
	}

	for _, p := range msg.Pointables {
		idx, found := byID[p.HandID]
		if !found || p.Type < Thumb || p.Type > Pinky {
			continue
		}
		// Distal bone end joint; older services only send the tip.
		pos := p.BTipPosition
		if len(pos) != 3 {
			pos = p.TipPosition
		}
		if len(pos) != 3 {
			continue
		}
		frame.Hands[idx].SetTip(p.Type, detector.Point3D{X: pos[0], Y: pos[1], Z: pos[2]})
	}

	return frame, true, nil
}

func handedness(leapType string) string {
	if strings.EqualFold(leapType, "left") {
		return "Left"
	}
	return "Right"
}
