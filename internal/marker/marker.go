// Package marker finds colour-sticker fingertip markers in video frames.
package marker

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// MaxMarkers is the maximum number of markers returned per frame.
const MaxMarkers = 5

// Config holds the colour segmentation settings.
type Config struct {
	// Lower and Upper bound the HSV range of the sticker colour
	// (OpenCV scale: H 0-180, S and V 0-255).
	Lower [3]float64
	Upper [3]float64

	// MinArea is the contour area in pixels a blob must exceed.
	MinArea float64

	// Annotate draws a dot at each detected centroid.
	Annotate bool
}

// DefaultConfig returns settings for green stickers.
func DefaultConfig() Config {
	return Config{
		Lower:    [3]float64{35, 100, 100},
		Upper:    [3]float64{85, 255, 255},
		MinArea:  50,
		Annotate: true,
	}
}

// markerColor is the annotation colour (red on a BGR frame).
var markerColor = color.RGBA{R: 255, A: 255}

// Detector segments sticker-coloured blobs and returns their centroids.
type Detector struct {
	config Config
}

// NewDetector creates a marker detector.
func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

// Detect returns up to MaxMarkers centroid pixel positions of qualifying
// blobs in the BGR frame img, in contour discovery order. When annotation
// is enabled the centroids are drawn onto img.
func (d *Detector) Detect(img *gocv.Mat) []image.Point {
	if img == nil || img.Empty() {
		return nil
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lb := gocv.NewScalar(d.config.Lower[0], d.config.Lower[1], d.config.Lower[2], 0)
	ub := gocv.NewScalar(d.config.Upper[0], d.config.Upper[1], d.config.Upper[2], 0)
	gocv.InRangeWithScalar(hsv, lb, ub, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var positions []image.Point
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) <= d.config.MinArea {
			continue
		}

		c, ok := centroid(contour)
		if !ok {
			continue
		}
		positions = append(positions, c)

		if d.config.Annotate {
			gocv.Circle(img, c, 5, markerColor, -1)
		}
	}

	if len(positions) > MaxMarkers {
		positions = positions[:MaxMarkers]
	}
	return positions
}

// centroid returns the centre of mass of the contour from its spatial
// moments, truncated to whole pixels. ok is false for degenerate contours
// with zero area.
func centroid(contour gocv.PointVector) (image.Point, bool) {
	pts := gocv.NewMatFromPointVector(contour, false)
	defer pts.Close()

	m := gocv.Moments(pts, false)
	if m["m00"] == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(m["m10"]/m["m00"]), int(m["m01"]/m["m00"])), true
}
