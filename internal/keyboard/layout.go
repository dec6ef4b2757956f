// Package keyboard provides the virtual keyboard overlay and key-press test.
package keyboard

import (
	"errors"
	"fmt"
)

// ErrEmptyLayout is returned when a layout has no keys.
var ErrEmptyLayout = errors.New("layout has no keys")

// Key is one key region in normalized image coordinates.
type Key struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the normalized point (x, y) lies inside k.
func (k Key) Contains(x, y float64) bool {
	return x >= k.X && x < k.X+k.Width && y >= k.Y && y < k.Y+k.Height
}

// Layout is a named set of keys.
type Layout struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Keys []Key  `json:"keys"`
}

// Validate checks that the layout has keys with unique ids and regions
// inside the unit square.
func (l Layout) Validate() error {
	if len(l.Keys) == 0 {
		return ErrEmptyLayout
	}
	seen := make(map[string]bool, len(l.Keys))
	for _, k := range l.Keys {
		if k.ID == "" {
			return fmt.Errorf("key %q: empty id", k.Label)
		}
		if seen[k.ID] {
			return fmt.Errorf("key %q: duplicate id", k.ID)
		}
		seen[k.ID] = true
		if k.Width <= 0 || k.Height <= 0 {
			return fmt.Errorf("key %q: non-positive size", k.ID)
		}
		if k.X < 0 || k.Y < 0 || k.X+k.Width > 1 || k.Y+k.Height > 1 {
			return fmt.Errorf("key %q: outside the frame", k.ID)
		}
	}
	return nil
}

// Default layout geometry.
const (
	defaultTop    = 0.55
	defaultLeft   = 0.05
	defaultKeyW   = 0.09
	defaultKeyH   = 0.09
	defaultRowOff = 0.03
)

// DefaultLayout returns a QWERTY layout across the lower half of the frame.
func DefaultLayout() Layout {
	rows := []string{"QWERTYUIOP", "ASDFGHJKL", "ZXCVBNM"}

	layout := Layout{ID: "qwerty", Name: "QWERTY"}
	for r, row := range rows {
		y := defaultTop + float64(r)*defaultKeyH
		left := defaultLeft + float64(r)*defaultRowOff
		for c, ch := range row {
			label := string(ch)
			layout.Keys = append(layout.Keys, Key{
				ID:     label,
				Label:  label,
				X:      left + float64(c)*defaultKeyW,
				Y:      y,
				Width:  defaultKeyW,
				Height: defaultKeyH,
			})
		}
	}

	layout.Keys = append(layout.Keys, Key{
		ID:     "space",
		Label:  "SPACE",
		X:      defaultLeft + 2*defaultKeyW,
		Y:      defaultTop + 3*defaultKeyH,
		Width:  5 * defaultKeyW,
		Height: defaultKeyH,
	})

	return layout
}
