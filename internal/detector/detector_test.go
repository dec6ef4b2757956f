package detector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const epsilon = 1e-9

func TestFingertipIndex(t *testing.T) {
	tests := []struct {
		finger int
		want   int
	}{
		{finger: 0, want: IndexTip},
		{finger: 1, want: MiddleTip},
		{finger: 2, want: RingTip},
		{finger: 3, want: PinkyTip},
		{finger: 4, want: ThumbTip},
	}

	for _, tt := range tests {
		if got := FingertipIndex(tt.finger); got != tt.want {
			t.Errorf("FingertipIndex(%d) = %d, want %d", tt.finger, got, tt.want)
		}
	}
}

func TestFingertipIndex_DistinctAndInRange(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < NumFingers; i++ {
		idx := FingertipIndex(i)
		if idx < 0 || idx >= NumLandmarks {
			t.Fatalf("finger %d maps to out-of-range landmark %d", i, idx)
		}
		if seen[idx] {
			t.Errorf("landmark %d mapped twice", idx)
		}
		seen[idx] = true
	}
}

func TestHandLandmarks_SetFingertip(t *testing.T) {
	hand := OpenPalmLandmarks()
	p := Point3D{X: 0.1, Y: 0.2, Z: 0.3}

	hand.SetFingertip(2, p)

	if hand.Points[RingTip] != p {
		t.Errorf("RingTip = %+v, want %+v", hand.Points[RingTip], p)
	}
	if hand.Fingertip(2) != p {
		t.Errorf("Fingertip(2) = %+v, want %+v", hand.Fingertip(2), p)
	}
}

func TestPoint3D(t *testing.T) {
	t.Run("distance", func(t *testing.T) {
		d := Point3D{X: 1, Y: 2, Z: 2}.Distance(Point3D{})
		if math.Abs(d-3.0) > epsilon {
			t.Errorf("Distance = %f, want 3", d)
		}
	})

	t.Run("pixel", func(t *testing.T) {
		x, y := Point3D{X: 0.5, Y: 0.25}.Pixel(800, 600)
		if x != 400 || y != 150 {
			t.Errorf("Pixel = (%d, %d), want (400, 150)", x, y)
		}
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("decodes hands", func(t *testing.T) {
		line := []byte(`{"hands":[{"handedness":"Left","score":0.9,"points":[{"x":0.1,"y":0.2,"z":0.3}]}]}` + "\n")

		hands, err := parseResponse(line)
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" {
			t.Errorf("handedness = %s, want Left", hands[0].Handedness)
		}
		if hands[0].Points[Wrist] != (Point3D{X: 0.1, Y: 0.2, Z: 0.3}) {
			t.Errorf("wrist = %+v", hands[0].Points[Wrist])
		}
	})

	t.Run("no hands", func(t *testing.T) {
		hands, err := parseResponse([]byte(`{"hands":[]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"hands":`)); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})

	t.Run("extra points are dropped", func(t *testing.T) {
		h := jsonHand{Points: make([]Point3D, NumLandmarks+3)}
		h.Points[NumLandmarks+2] = Point3D{X: 9}
		lm := h.toHandLandmarks()
		for _, p := range lm.Points {
			if p.X == 9 {
				t.Error("point beyond NumLandmarks was copied")
			}
		}
	})
}

func TestMediaPipeDetector_Args(t *testing.T) {
	d := &MediaPipeDetector{config: DefaultConfig(), scriptPath: "hand_service.py"}

	args := d.args()
	want := []string{
		"hand_service.py",
		"--max-hands", "2",
		"--model-complexity", "0",
		"--min-detection-confidence", "0.7",
		"--min-tracking-confidence", "0.7",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}

	out := buf.Bytes()
	if len(out) != 4+len(payload) {
		t.Fatalf("frame length = %d, want %d", len(out), 4+len(payload))
	}
	if n := binary.BigEndian.Uint32(out[:4]); n != uint32(len(payload)) {
		t.Errorf("length prefix = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(out[4:], payload) {
		t.Errorf("payload = %x, want %x", out[4:], payload)
	}
}

func TestServiceScript_AcceptsArgs(t *testing.T) {
	path := filepath.Join("..", "..", "scripts", serviceScript)
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("bundled service script missing: %v", err)
	}
	if got := firstExisting([]string{path}); got == "" {
		t.Errorf("firstExisting(%q) = \"\"", path)
	}

	d := &MediaPipeDetector{config: DefaultConfig(), scriptPath: path}
	for _, arg := range d.args()[1:] {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		if !strings.Contains(string(src), `"`+arg+`"`) {
			t.Errorf("service script does not declare flag %s", arg)
		}
	}
	for _, field := range []string{`"hands"`, `"points"`, `"handedness"`, `"score"`} {
		if !strings.Contains(string(src), field) {
			t.Errorf("service script does not emit %s", field)
		}
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{OpenPalmLandmarks(), TypingLandmarks(0.3, 0.6, -0.1)})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestTypingLandmarks(t *testing.T) {
	hand := TypingLandmarks(0.3, 0.6, -0.1)

	if hand.Points[IndexTip] != (Point3D{X: 0.3, Y: 0.6, Z: -0.1}) {
		t.Errorf("IndexTip = %+v", hand.Points[IndexTip])
	}
	if hand.Points[MiddleTip] != OpenPalmLandmarks().Points[MiddleTip] {
		t.Error("other fingertips should match the open palm")
	}
}
