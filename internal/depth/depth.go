// Package depth adapts a depth-sensing hand tracker to per-hand fingertip
// positions in millimeters.
package depth

import (
	"context"

	"github.com/ayusman/fingerfuse/internal/detector"
)

// Finger indices in canonical order.
const (
	Thumb = iota
	Index
	Middle
	Ring
	Pinky
)

// Hand is one tracked hand with its fingertips in canonical thumb-to-pinky
// order, in millimeters. Present[i] is set when the device reported finger i;
// Tips[i] is meaningless otherwise.
type Hand struct {
	Handedness string                                `json:"handedness"`
	Tips       [detector.NumFingers]detector.Point3D `json:"tips"`
	Present    [detector.NumFingers]bool             `json:"present"`
}

// Frame holds the hands visible in one device frame, in device order.
type Frame struct {
	Hands []Hand `json:"hands"`
}

// Tracker is a source of depth-tracker frames.
type Tracker interface {
	// Frame returns the latest device frame, or nil when no hand is in view.
	Frame(ctx context.Context) (*Frame, error)

	// Close releases the device connection.
	Close() error
}

// FirstHand returns the first hand of f, or nil if f is nil or empty.
// Only this hand is used for fusion, whichever RGB hand is being fused.
func FirstHand(f *Frame) *Hand {
	if f == nil || len(f.Hands) == 0 {
		return nil
	}
	return &f.Hands[0]
}

// Tip returns fingertip i and whether the device reported it.
func (h *Hand) Tip(i int) (detector.Point3D, bool) {
	if h == nil || i < 0 || i >= len(h.Tips) {
		return detector.Point3D{}, false
	}
	return h.Tips[i], h.Present[i]
}

// SetTip records fingertip i as reported by the device.
func (h *Hand) SetTip(i int, p detector.Point3D) {
	h.Tips[i] = p
	h.Present[i] = true
}
