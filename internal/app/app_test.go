package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/capture"
	"github.com/ayusman/fingerfuse/internal/depth"
	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/fusion"
	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/marker"
	"github.com/ayusman/fingerfuse/internal/plugin"
	"github.com/ayusman/fingerfuse/internal/store"
)

type recordingDispatcher struct {
	keys []string
}

func (d *recordingDispatcher) Dispatch(keyID string) bool {
	d.keys = append(d.keys, keyID)
	return true
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []*Result
}

func (p *recordingPublisher) Publish(frame *gocv.Mat, res *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
}

type fixture struct {
	app        *App
	camera     *capture.MockCamera
	detector   *detector.MockDetector
	tracker    *depth.MockTracker
	display    *HeadlessDisplay
	dispatcher *recordingDispatcher
	publisher  *recordingPublisher
	engine     *fusion.Engine
}

// newFixture builds an App over frameCount black frames.
func newFixture(t *testing.T, frameCount int) *fixture {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	var frames []*gocv.Mat
	for i := 0; i < frameCount; i++ {
		m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		t.Cleanup(func() { m.Close() })
		frames = append(frames, &m)
	}

	f := &fixture{
		camera:     capture.NewMockCamera(frames, false),
		detector:   detector.NewMockDetector(),
		tracker:    depth.NewMockTracker(),
		display:    NewHeadlessDisplay(),
		dispatcher: &recordingDispatcher{},
		publisher:  &recordingPublisher{},
		engine:     fusion.NewEngine(fusion.DefaultConfig()),
	}

	a, err := New(Config{
		Camera:     f.camera,
		Detector:   f.detector,
		Depth:      f.tracker,
		Markers:    marker.NewDetector(marker.DefaultConfig()),
		Keyboard:   keyboard.New(keyboard.DefaultLayout(), keyboard.DefaultPressDepth),
		Engine:     f.engine,
		Display:    f.display,
		Dispatcher: f.dispatcher,
		Publisher:  f.publisher,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.app = a

	if err := f.camera.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return f
}

func keyCenter(t *testing.T, id string) (float64, float64) {
	t.Helper()
	for _, k := range keyboard.DefaultLayout().Keys {
		if k.ID == id {
			return k.X + k.Width/2, k.Y + k.Height/2
		}
	}
	t.Fatalf("key %q not in default layout", id)
	return 0, 0
}

func TestNew_RequiresResources(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no resources should fail")
	}
	if _, err := New(Config{Camera: capture.NewMockCamera(nil, false)}); err == nil {
		t.Error("New() without a detector should fail")
	}
}

func TestStep_NoHand(t *testing.T) {
	f := newFixture(t, 1)

	res, err := f.app.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(res.Fused) != 0 || len(res.Pressed) != 0 {
		t.Errorf("no hand should produce no fusion, got %+v", res)
	}
	if f.detector.Calls() != 1 || f.tracker.Calls() != 1 {
		t.Errorf("detector calls = %d, tracker calls = %d, want 1 each", f.detector.Calls(), f.tracker.Calls())
	}
	if u := f.engine.Finger(0).Uncertainty(); u != 3000 {
		t.Errorf("filters must not advance without a hand, trace = %f", u)
	}
	if res.Width != 640 || res.Height != 480 {
		t.Errorf("frame size = %dx%d", res.Width, res.Height)
	}
}

func TestStep_KeyPressDispatchedOnce(t *testing.T) {
	f := newFixture(t, 3)

	x, y := keyCenter(t, "G")
	f.detector.SetHands([]detector.HandLandmarks{detector.TypingLandmarks(x, y, -0.1)})

	first, err := f.app.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(first.Pressed) != 1 || first.Pressed[0] != "G" {
		t.Fatalf("Pressed = %v, want [G]", first.Pressed)
	}
	if len(first.Typed) != 1 || first.Typed[0] != "G" {
		t.Errorf("Typed = %v, want [G]", first.Typed)
	}

	second, err := f.app.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(second.Pressed) != 1 || len(second.Typed) != 0 {
		t.Errorf("held key should stay pressed without retyping, got pressed=%v typed=%v", second.Pressed, second.Typed)
	}

	// Lifting the hand releases the key.
	f.detector.SetHands(nil)
	if _, err := f.app.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if len(f.dispatcher.keys) != 1 || f.dispatcher.keys[0] != "G" {
		t.Errorf("dispatched %v, want [G]", f.dispatcher.keys)
	}
	if len(f.publisher.results) != 3 {
		t.Errorf("published %d results, want 3", len(f.publisher.results))
	}

	stats := f.app.Stats()
	if stats.Frames != 3 || stats.Fused != 2 || stats.Typed != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestStep_DepthDrivesFilters(t *testing.T) {
	f := newFixture(t, 1)

	hand := detector.OpenPalmLandmarks()
	f.detector.SetHands([]detector.HandLandmarks{hand})
	dh := depth.Hand{Handedness: "Right"}
	for i := 0; i < detector.NumFingers; i++ {
		dh.SetTip(i, detector.Point3D{X: 1, Y: 1, Z: 100})
	}
	f.tracker.SetFrame(&depth.Frame{Hands: []depth.Hand{dh}})

	res, err := f.app.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !res.Depth {
		t.Error("Result.Depth should be set")
	}
	if len(res.Fused) != 1 {
		t.Fatalf("expected one fused hand, got %d", len(res.Fused))
	}
	if f.engine.Finger(0).Uncertainty() >= 3000 {
		t.Error("filters should have advanced")
	}
	if res.Fused[0].Fingertip(0) == hand.Fingertip(0) {
		t.Error("fused fingertip should come from the filter")
	}
}

func TestStep_SecondHandDoesNotAdvanceFilters(t *testing.T) {
	one := newFixture(t, 1)
	two := newFixture(t, 1)

	var dh depth.Hand
	dh.SetTip(0, detector.Point3D{Z: 50})
	frame := &depth.Frame{Hands: []depth.Hand{dh}}
	one.tracker.SetFrame(frame)
	two.tracker.SetFrame(frame)

	hand := detector.OpenPalmLandmarks()
	one.detector.SetHands([]detector.HandLandmarks{hand})
	two.detector.SetHands([]detector.HandLandmarks{hand, detector.TypingLandmarks(0.2, 0.2, 0)})

	for _, f := range []*fixture{one, two} {
		if _, err := f.app.Step(context.Background()); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	if one.engine.Finger(0).State() != two.engine.Finger(0).State() {
		t.Error("a second hand must not add filter updates")
	}
}

func TestStep_FuseAllHands(t *testing.T) {
	x, y := keyCenter(t, "G")
	hands := []detector.HandLandmarks{detector.OpenPalmLandmarks(), detector.TypingLandmarks(x, y, -0.1)}

	tests := []struct {
		name        string
		fuseAll     bool
		wantFused   int
		wantPressed []string
	}{
		{name: "first hand only", fuseAll: false, wantFused: 1},
		{name: "every hand", fuseAll: true, wantFused: 2, wantPressed: []string{"G"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			f.app.config.FuseAllHands = tt.fuseAll
			f.detector.SetHands(hands)

			res, err := f.app.Step(context.Background())
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if len(res.Fused) != tt.wantFused {
				t.Errorf("fused %d hands, want %d", len(res.Fused), tt.wantFused)
			}
			if len(res.Pressed) != len(tt.wantPressed) || (len(res.Pressed) > 0 && res.Pressed[0] != tt.wantPressed[0]) {
				t.Errorf("Pressed = %v, want %v", res.Pressed, tt.wantPressed)
			}
		})
	}
}

func TestAppendUnique(t *testing.T) {
	got := appendUnique([]string{"A"}, "B", "A", "C", "B")
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("appendUnique() = %v, want [A B C]", got)
	}
}

func TestStep_DetectorErrorIsNotFatal(t *testing.T) {
	f := newFixture(t, 1)
	f.detector.SetError(errors.New("service restarted"))

	res, err := f.app.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(res.Fused) != 0 {
		t.Error("no fusion expected when detection fails")
	}
}

func TestStep_Paused(t *testing.T) {
	f := newFixture(t, 1)
	f.app.SetEnabled(false)

	if _, err := f.app.Step(context.Background()); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if f.detector.Calls() != 0 {
		t.Error("paused app should not run detection")
	}
	if f.app.IsEnabled() {
		t.Error("IsEnabled() should be false")
	}
}

func TestRun_ReadFailureEndsLoop(t *testing.T) {
	f := newFixture(t, 2)

	err := f.app.Run(context.Background())
	if !errors.Is(err, capture.ErrReadFailed) {
		t.Fatalf("Run() error = %v, want ErrReadFailed", err)
	}
	if f.app.Stats().Frames != 2 {
		t.Errorf("processed %d frames, want 2", f.app.Stats().Frames)
	}
	if !f.tracker.Closed() || f.camera.IsOpen() {
		t.Error("resources should be released when the loop ends")
	}
}

func TestRun_QuitKey(t *testing.T) {
	f := newFixture(t, 5)
	f.display.PressKey(QuitKey)

	if err := f.app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.app.Stats().Frames != 1 {
		t.Errorf("processed %d frames, want 1", f.app.Stats().Frames)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	f := newFixture(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.app.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.camera.Reads() != 0 {
		t.Errorf("no frame should be read after cancel, got %d", f.camera.Reads())
	}
	if err := f.app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.camera.Close()
	f.camera.SetOpenError(errors.New("no device"))

	if err := f.app.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the camera cannot open")
	}
}

func TestPublishers(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	res := &Result{Seq: 1}

	Publishers{a, b}.Publish(nil, res)

	if len(a.results) != 1 || len(b.results) != 1 || b.results[0] != res {
		t.Errorf("each publisher should receive the result once, got %d and %d", len(a.results), len(b.results))
	}
}

func TestBindingRouter(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	repo := s.Bindings()
	if err := repo.Create(&store.Binding{
		KeyID: "space", PluginName: "keyboard", ActionName: "shortcut",
		Config: json.RawMessage(`{"key":"v","modifiers":["cmd"]}`), Enabled: true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(&store.Binding{KeyID: "Q", PluginName: "keyboard", ActionName: "type"}); err != nil {
		t.Fatal(err)
	}

	router := NewBindingRouter(repo)

	route, ok, err := router.Route("space")
	if err != nil || !ok || route.Action != "shortcut" || string(route.Config) != `{"key":"v","modifiers":["cmd"]}` {
		t.Errorf("Route(space) = %+v, %v, %v", route, ok, err)
	}

	route, ok, err = router.Route("A")
	if err != nil || !ok || route.Plugin != plugin.DefaultPlugin || route.Action != plugin.DefaultAction {
		t.Errorf("Route(A) = %+v, %v, %v; want default route", route, ok, err)
	}

	if _, ok, err := router.Route("Q"); err != nil || ok {
		t.Errorf("disabled binding should not route, got ok=%v err=%v", ok, err)
	}
}
