// Package app runs the capture, fusion and virtual keyboard frame loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"slices"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/capture"
	"github.com/ayusman/fingerfuse/internal/depth"
	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/fusion"
	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/marker"
)

// QuitKey stops the loop when pressed in the display window.
const QuitKey = 'q'

// ErrQuit is returned by Step when the quit key was pressed.
var ErrQuit = errors.New("quit requested")

// Dispatcher receives newly pressed key ids. *plugin.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(keyID string) bool
}

// Publisher receives every finished frame. *server.Hub satisfies it.
type Publisher interface {
	Publish(frame *gocv.Mat, result *Result)
}

// Publishers sends each frame to every publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(frame *gocv.Mat, result *Result) {
	for _, p := range ps {
		p.Publish(frame, result)
	}
}

// Config holds the resources the loop owns. Camera, Detector, Markers,
// Keyboard, Engine and Display are required; the rest are optional.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Depth      depth.Tracker
	Markers    *marker.Detector
	Keyboard   *keyboard.Keyboard
	Engine     *fusion.Engine
	Display    Display
	Dispatcher Dispatcher
	Publisher  Publisher

	// FuseAllHands runs every detected hand through the engine. The
	// filters are shared, so a two-hand frame then advances them twice.
	// By default only the first hand is fused and the rest are drawn raw.
	FuseAllHands bool
}

// Result describes one processed frame.
type Result struct {
	Seq     uint64                   `json:"seq"`
	Time    time.Time                `json:"time"`
	Width   int                      `json:"width"`
	Height  int                      `json:"height"`
	Hands   []detector.HandLandmarks `json:"hands"`
	Fused   []detector.HandLandmarks `json:"fused,omitempty"`
	Markers []image.Point            `json:"markers"`
	Depth   bool                     `json:"depth"`
	Pressed []string                 `json:"pressed"`
	Typed   []string                 `json:"typed,omitempty"`
}

// Stats summarizes the run so far.
type Stats struct {
	Frames  uint64    `json:"frames"`
	Fused   uint64    `json:"fused"`
	Typed   uint64    `json:"typed"`
	Enabled bool      `json:"enabled"`
	Started time.Time `json:"started"`
	Last    time.Time `json:"last"`
}

// App is the frame loop. Step and Run must be called from one goroutine;
// SetEnabled and Stats are safe from any goroutine.
type App struct {
	config  Config
	keys    *keyboard.State
	pressed []string
	seq     uint64
	lastErr string

	mu    sync.RWMutex
	stats Stats

	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and creates an enabled App.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Camera == nil:
		return nil, errors.New("app: camera is required")
	case cfg.Detector == nil:
		return nil, errors.New("app: detector is required")
	case cfg.Markers == nil:
		return nil, errors.New("app: marker detector is required")
	case cfg.Keyboard == nil:
		return nil, errors.New("app: keyboard is required")
	case cfg.Engine == nil:
		return nil, errors.New("app: fusion engine is required")
	case cfg.Display == nil:
		return nil, errors.New("app: display is required")
	}

	return &App{
		config: cfg,
		keys:   keyboard.NewState(),
		stats:  Stats{Enabled: true},
	}, nil
}

// SetEnabled pauses or resumes hand processing. Paused frames are still
// captured and shown.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Enabled = enabled
}

// IsEnabled reports whether hand processing is on.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.Enabled
}

// Stats returns a snapshot of the run counters.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Run opens the camera and processes frames until ctx is done, the quit
// key is pressed or a frame read fails. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.mu.Lock()
	a.stats.Started = time.Now()
	a.mu.Unlock()
	log.Println("Frame loop started")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if _, err := a.Step(ctx); err != nil {
			if errors.Is(err, ErrQuit) {
				log.Println("Quit requested")
				return nil
			}
			return err
		}
	}
}

// Step reads and fully processes one frame.
func (a *App) Step(ctx context.Context) (*Result, error) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	a.seq++
	res := &Result{
		Seq:    a.seq,
		Time:   time.Now(),
		Width:  frame.Cols(),
		Height: frame.Rows(),
	}

	if a.IsEnabled() {
		a.process(ctx, frame, res)
	}

	a.record(res)

	if a.config.Publisher != nil {
		a.config.Publisher.Publish(frame, res)
	}

	a.config.Display.Show(frame)
	if a.config.Display.PollKey() == QuitKey {
		return res, ErrQuit
	}
	return res, nil
}

func (a *App) process(ctx context.Context, frame *gocv.Mat, res *Result) {
	hands, err := a.config.Detector.Detect(frame)
	if err != nil {
		a.logOnce("detector", err)
		hands = nil
	}
	res.Hands = hands

	depthFrame := a.queryDepth(ctx)
	res.Depth = depth.FirstHand(depthFrame) != nil

	// Markers are segmented before the overlay is drawn.
	res.Markers = a.config.Markers.Detect(frame)
	a.config.Keyboard.Render(frame, a.pressed)

	if len(hands) == 0 {
		a.pressed = nil
		a.keys.Update(nil)
		return
	}

	fuseCount := 1
	if a.config.FuseAllHands {
		fuseCount = len(hands)
	}

	for i := range hands {
		if i >= fuseCount {
			drawHand(frame, &hands[i], rawColor)
			continue
		}
		fused := a.config.Engine.Fuse(hands[i], depthFrame, res.Markers, res.Width, res.Height)
		res.Fused = append(res.Fused, fused)
		drawHand(frame, &fused, fusedColor)
		res.Pressed = appendUnique(res.Pressed, a.config.Keyboard.Pressed(&fused)...)
	}

	a.pressed = res.Pressed
	if len(res.Pressed) > 0 {
		log.Printf("Pressed: %v", res.Pressed)
	}

	res.Typed = a.keys.Update(res.Pressed)
	if a.config.Dispatcher != nil {
		for _, id := range res.Typed {
			a.config.Dispatcher.Dispatch(id)
		}
	}
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

// queryDepth returns the latest depth frame, or nil when the tracker is
// missing or failing.
func (a *App) queryDepth(ctx context.Context) *depth.Frame {
	if a.config.Depth == nil {
		return nil
	}
	f, err := a.config.Depth.Frame(ctx)
	if err != nil {
		a.logOnce("depth", err)
		return nil
	}
	return f
}

// logOnce logs err unless it repeats the previous logged error.
func (a *App) logOnce(source string, err error) {
	msg := source + ": " + err.Error()
	if msg == a.lastErr {
		return
	}
	a.lastErr = msg
	log.Printf("Frame %d: %s", a.seq, msg)
}

func (a *App) record(res *Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Frames++
	a.stats.Last = res.Time
	if len(res.Fused) > 0 {
		a.stats.Fused++
	}
	a.stats.Typed += uint64(len(res.Typed))
}

// Close releases the camera, detector, depth tracker and display. It is
// safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.config.Camera.Close(); err != nil {
			errs = append(errs, fmt.Errorf("camera: %w", err))
		}
		if err := a.config.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detector: %w", err))
		}
		if a.config.Depth != nil {
			if err := a.config.Depth.Close(); err != nil {
				errs = append(errs, fmt.Errorf("depth: %w", err))
			}
		}
		if err := a.config.Display.Close(); err != nil {
			errs = append(errs, fmt.Errorf("display: %w", err))
		}
		a.closeErr = errors.Join(errs...)
		log.Println("Frame loop stopped")
	})
	return a.closeErr
}
