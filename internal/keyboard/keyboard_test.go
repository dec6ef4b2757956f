package keyboard

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingerfuse/internal/detector"
)

func keyCenter(t *testing.T, l Layout, id string) (float64, float64) {
	t.Helper()
	for _, k := range l.Keys {
		if k.ID == id {
			return k.X + k.Width/2, k.Y + k.Height/2
		}
	}
	t.Fatalf("key %q not in layout", id)
	return 0, 0
}

func TestDefaultLayout_Valid(t *testing.T) {
	l := DefaultLayout()
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(l.Keys) != 27 {
		t.Errorf("expected 27 keys, got %d", len(l.Keys))
	}
}

func TestLayout_Validate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{name: "empty", layout: Layout{}, wantErr: true},
		{name: "missing id", layout: Layout{Keys: []Key{{Width: 0.1, Height: 0.1}}}, wantErr: true},
		{name: "duplicate id", layout: Layout{Keys: []Key{
			{ID: "A", Width: 0.1, Height: 0.1},
			{ID: "A", X: 0.2, Width: 0.1, Height: 0.1},
		}}, wantErr: true},
		{name: "zero size", layout: Layout{Keys: []Key{{ID: "A"}}}, wantErr: true},
		{name: "outside frame", layout: Layout{Keys: []Key{{ID: "A", X: 0.95, Width: 0.1, Height: 0.1}}}, wantErr: true},
		{name: "ok", layout: Layout{Keys: []Key{{ID: "A", X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKey_Contains(t *testing.T) {
	k := Key{ID: "A", X: 0.2, Y: 0.2, Width: 0.1, Height: 0.1}

	if !k.Contains(0.25, 0.25) {
		t.Error("center should be inside")
	}
	if !k.Contains(0.2, 0.2) {
		t.Error("top-left edge should be inside")
	}
	if k.Contains(0.3, 0.25) {
		t.Error("right edge belongs to the next key")
	}
	if k.Contains(0.1, 0.25) {
		t.Error("point left of key should be outside")
	}
}

func TestKeyboard_Pressed(t *testing.T) {
	layout := DefaultLayout()
	kb := New(layout, DefaultPressDepth)

	t.Run("fingertip pushed into a key", func(t *testing.T) {
		x, y := keyCenter(t, layout, "G")
		hand := detector.TypingLandmarks(x, y, -0.1)

		if diff := cmp.Diff([]string{"G"}, kb.Pressed(&hand)); diff != "" {
			t.Errorf("Pressed() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("hovering fingertip does not press", func(t *testing.T) {
		x, y := keyCenter(t, layout, "G")
		hand := detector.TypingLandmarks(x, y, 0.0)

		if got := kb.Pressed(&hand); len(got) != 0 {
			t.Errorf("Pressed() = %v, want none", got)
		}
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		x, y := keyCenter(t, layout, "Q")
		hand := detector.TypingLandmarks(x, y, DefaultPressDepth)

		if diff := cmp.Diff([]string{"Q"}, kb.Pressed(&hand)); diff != "" {
			t.Errorf("Pressed() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("two fingers in layout order", func(t *testing.T) {
		hand := detector.OpenPalmLandmarks()
		px, py := keyCenter(t, layout, "P")
		ax, ay := keyCenter(t, layout, "A")
		hand.SetFingertip(0, detector.Point3D{X: px, Y: py, Z: -0.2})
		hand.SetFingertip(3, detector.Point3D{X: ax, Y: ay, Z: -0.2})

		if diff := cmp.Diff([]string{"P", "A"}, kb.Pressed(&hand)); diff != "" {
			t.Errorf("Pressed() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nil hand", func(t *testing.T) {
		if got := kb.Pressed(nil); got != nil {
			t.Errorf("Pressed(nil) = %v", got)
		}
	})
}

func TestState_Update(t *testing.T) {
	s := NewState()

	steps := []struct {
		pressed []string
		want    []string
	}{
		{pressed: []string{"A"}, want: []string{"A"}},
		{pressed: []string{"A"}, want: nil},
		{pressed: []string{"A", "B", "B"}, want: []string{"B"}},
		{pressed: nil, want: nil},
		{pressed: []string{"A"}, want: []string{"A"}},
	}

	for i, step := range steps {
		got := s.Update(step.pressed)
		if diff := cmp.Diff(step.want, got); diff != "" {
			t.Errorf("step %d: Update() mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestKeyboard_Render(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	kb := New(DefaultLayout(), DefaultPressDepth)
	kb.Render(&img, []string{"space"})

	if gocv.CountNonZero(toGray(t, img)) == 0 {
		t.Error("Render() drew nothing")
	}

	// Pressed keys are filled.
	x, y := keyCenter(t, kb.Layout(), "space")
	px := img.GetVecbAt(int(y*480), int(x*640))
	if px[1] != 255 || px[2] != 0 {
		t.Errorf("pressed key pixel = %v, want filled highlight", px)
	}
}

func toGray(t *testing.T, img gocv.Mat) gocv.Mat {
	t.Helper()
	gray := gocv.NewMat()
	t.Cleanup(func() { gray.Close() })
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}
