package keyboard

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/detector"
)

// DefaultPressDepth is the fingertip z at or below which a hovering
// fingertip counts as pressing. RGB depth grows negative toward the camera.
const DefaultPressDepth = -0.05

var (
	keyColor     = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	pressedColor = color.RGBA{G: 255, B: 255, A: 255}
)

// Keyboard tests fused fingertips against a layout.
type Keyboard struct {
	layout     Layout
	pressDepth float64
}

// New creates a keyboard for layout.
func New(layout Layout, pressDepth float64) *Keyboard {
	return &Keyboard{layout: layout, pressDepth: pressDepth}
}

// Layout returns the active layout.
func (k *Keyboard) Layout() Layout {
	return k.layout
}

// Pressed returns the ids of keys under a fingertip that is pushed to
// PressDepth or beyond, in layout order. The result may be empty.
func (k *Keyboard) Pressed(hand *detector.HandLandmarks) []string {
	if hand == nil {
		return nil
	}

	var pressed []string
	for _, key := range k.layout.Keys {
		for i := 0; i < detector.NumFingers; i++ {
			tip := hand.Fingertip(i)
			if tip.Z <= k.pressDepth && key.Contains(tip.X, tip.Y) {
				pressed = append(pressed, key.ID)
				break
			}
		}
	}
	return pressed
}

// Render draws the key regions onto img, highlighting keys in pressed.
func (k *Keyboard) Render(img *gocv.Mat, pressed []string) {
	if img == nil || img.Empty() {
		return
	}
	w, h := img.Cols(), img.Rows()

	down := make(map[string]bool, len(pressed))
	for _, id := range pressed {
		down[id] = true
	}

	for _, key := range k.layout.Keys {
		rect := image.Rect(
			int(key.X*float64(w)), int(key.Y*float64(h)),
			int((key.X+key.Width)*float64(w)), int((key.Y+key.Height)*float64(h)),
		)

		c, thickness := keyColor, 1
		if down[key.ID] {
			c, thickness = pressedColor, -1
		}
		gocv.Rectangle(img, rect, c, thickness)
		gocv.PutText(img, key.Label, image.Pt(rect.Min.X+5, rect.Max.Y-8), gocv.FontHersheySimplex, 0.5, keyColor, 1)
	}
}

// State tracks which keys are held so presses can be reported once.
type State struct {
	down map[string]bool
}

// NewState creates an empty key state.
func NewState() *State {
	return &State{down: make(map[string]bool)}
}

// Update records the currently pressed keys and returns the ones that were
// not pressed on the previous update.
func (s *State) Update(pressed []string) []string {
	now := make(map[string]bool, len(pressed))
	var fresh []string
	for _, id := range pressed {
		if now[id] {
			continue
		}
		now[id] = true
		if !s.down[id] {
			fresh = append(fresh, id)
		}
	}
	s.down = now
	return fresh
}
