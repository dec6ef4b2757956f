package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/fusion"
	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/marker"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.Equal(t, fusion.DefaultConfig(), cfg.Fusion())
	assert.Equal(t, marker.DefaultConfig(), cfg.Marker())
	assert.Equal(t, detector.DefaultConfig(), cfg.Detector())
	assert.Equal(t, keyboard.DefaultPressDepth, cfg.GetPressDepth())
	assert.Equal(t, "", cfg.GetLayoutID())
	assert.Equal(t, 30, cfg.GetCameraFPS())
	assert.False(t, cfg.GetFuseAllHands())
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
  "marker_weight": 0.6,
  "marker_rgb_weight": 0.4,
  "depth_scale": 10,
  "filter_rgb_only": true,
  "measurement_noise": 2.5,
  "marker_hsv_lower": [40, 80, 80],
  "marker_annotate": false,
  "max_hands": 1,
  "press_depth": -0.1,
  "layout_id": "abc",
  "fuse_all_hands": true,
  "camera_fps": 15
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	f := cfg.Fusion()
	assert.Equal(t, 0.6, f.Weights.Marker)
	assert.Equal(t, 0.4, f.Weights.MarkerRGB)
	assert.Equal(t, 0.7, f.Weights.Depth, "unset fields keep defaults")
	assert.Equal(t, 10.0, f.Weights.DepthScale)
	assert.True(t, f.FilterRGBOnly)
	assert.Equal(t, 2.5, f.Filter.MeasurementNoise)
	assert.Equal(t, 0.1, f.Filter.ProcessNoise)

	m := cfg.Marker()
	assert.Equal(t, [3]float64{40, 80, 80}, m.Lower)
	assert.Equal(t, [3]float64{85, 255, 255}, m.Upper)
	assert.False(t, m.Annotate)

	assert.Equal(t, 1, cfg.Detector().MaxHands)
	assert.Equal(t, -0.1, cfg.GetPressDepth())
	assert.Equal(t, "abc", cfg.GetLayoutID())
	assert.Equal(t, 15, cfg.GetCameraFPS())
	assert.True(t, cfg.GetFuseAllHands())
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "wrong extension", file: "tuning.yaml", body: `{}`},
		{name: "bad json", file: "tuning.json", body: `{"marker_weight":`},
		{name: "weight out of range", file: "tuning.json", body: `{"depth_weight": 1.5}`},
		{name: "zero depth scale", file: "tuning.json", body: `{"depth_scale": 0}`},
		{name: "bad hsv range", file: "tuning.json", body: `{"marker_hsv_lower": [90, 0, 0], "marker_hsv_upper": [80, 255, 255]}`},
		{name: "model complexity", file: "tuning.json", body: `{"model_complexity": 3}`},
		{name: "confidence", file: "tuning.json", body: `{"min_tracking_confidence": -0.1}`},
		{name: "fps", file: "tuning.json", body: `{"camera_fps": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, 1024*1024+1)
		for i := range big {
			big[i] = ' '
		}
		path := writeConfig(t, "big.json", string(big))
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "too large")
	})
}

func TestTuningConfig_Merge(t *testing.T) {
	base, err := ParseTuningConfig([]byte(`{"marker_weight": 0.5, "camera_fps": 10}`))
	require.NoError(t, err)

	override, err := ParseTuningConfig([]byte(`{"camera_fps": 20, "layout_id": "x"}`))
	require.NoError(t, err)

	base.Merge(override)
	assert.Equal(t, 0.5, base.Fusion().Weights.Marker)
	assert.Equal(t, 20, base.GetCameraFPS())
	assert.Equal(t, "x", base.GetLayoutID())

	// Merged values are copies.
	*override.CameraFPS = 99
	assert.Equal(t, 20, base.GetCameraFPS())

	base.Merge(nil)
	assert.Equal(t, 20, base.GetCameraFPS())
}
