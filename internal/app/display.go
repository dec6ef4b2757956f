package app

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/detector"
)

// Display shows annotated frames and reports key presses.
type Display interface {
	Show(img *gocv.Mat)
	// PollKey returns the last key pressed, or -1.
	PollKey() int
	Close() error
}

// WindowDisplay is a HighGUI window. It must be used from the main thread.
type WindowDisplay struct {
	window *gocv.Window
}

// NewWindowDisplay opens a window titled name.
func NewWindowDisplay(name string) *WindowDisplay {
	return &WindowDisplay{window: gocv.NewWindow(name)}
}

func (d *WindowDisplay) Show(img *gocv.Mat) {
	d.window.IMShow(*img)
}

func (d *WindowDisplay) PollKey() int {
	return d.window.WaitKey(1)
}

func (d *WindowDisplay) Close() error {
	return d.window.Close()
}

// HeadlessDisplay drops frames. It is used with the tray and the HTTP
// stream in place of a window.
type HeadlessDisplay struct {
	keys chan int
}

// NewHeadlessDisplay creates a display with no window.
func NewHeadlessDisplay() *HeadlessDisplay {
	return &HeadlessDisplay{keys: make(chan int, 1)}
}

func (d *HeadlessDisplay) Show(*gocv.Mat) {}

// PressKey queues key for the next PollKey, dropping it if one is pending.
func (d *HeadlessDisplay) PressKey(key int) {
	select {
	case d.keys <- key:
	default:
	}
}

func (d *HeadlessDisplay) PollKey() int {
	select {
	case k := <-d.keys:
		return k
	default:
		return -1
	}
}

func (d *HeadlessDisplay) Close() error { return nil }

var (
	fusedColor = color.RGBA{G: 255, A: 255}
	rawColor   = color.RGBA{R: 255, G: 160, A: 255}
)

// handConnections are the MediaPipe landmark pairs joined by bones.
var handConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// drawHand draws the hand skeleton with larger dots on the fingertips.
func drawHand(img *gocv.Mat, hand *detector.HandLandmarks, c color.RGBA) {
	w, h := img.Cols(), img.Rows()
	px := func(i int) image.Point {
		x, y := hand.Points[i].Pixel(w, h)
		return image.Pt(x, y)
	}

	for _, conn := range handConnections {
		gocv.Line(img, px(conn[0]), px(conn[1]), c, 1)
	}
	for i := range hand.Points {
		gocv.Circle(img, px(i), 2, c, -1)
	}
	for i := 0; i < detector.NumFingers; i++ {
		gocv.Circle(img, px(detector.FingertipIndex(i)), 6, c, 2)
	}
}
