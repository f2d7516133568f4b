// Package gaze implements the screen-relative gaze pipeline: mapping
// normalised gaze samples onto a registered surface and smoothing the mapped
// positions with a sliding-window moving average to suppress tracking jitter.
//
// The tracker backend owns everything upstream of this package (eye capture,
// marker detection, calibration). Samples arrive here as plain
// (timestamp, x, y) records and leave as pixel positions ready to render.
package gaze

import (
	"fmt"
	"math"
)

// Sample is a single gaze estimate from the tracker, expressed as normalised
// coordinates relative to the registered surface. Coordinates are nominally
// in [0,1] but can overshoot due to measurement noise. The backend reports
// NaN in either coordinate when it has no valid estimate; such samples are
// expected and frequent, not errors.
type Sample struct {
	Timestamp float64 `json:"timestamp"` // seconds, tracker clock domain
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Valid reports whether the sample carries a usable gaze estimate.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.X) && !math.IsNaN(s.Y)
}

// Surface is the pixel extent of the target surface (camera frame or
// physical display). Dimensions are fixed for the lifetime of a session.
type Surface struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewSurface validates the surface extent. The mapper divides by nothing but
// multiplies by both dimensions, so zero or negative extents would silently
// collapse every sample onto an axis.
func NewSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return Surface{}, fmt.Errorf("invalid surface extent %dx%d: dimensions must be positive", width, height)
	}
	return Surface{Width: width, Height: height}, nil
}

// Point is a gaze position mapped onto the surface, in pixels. Out-of-range
// normalised input maps outside the visible surface; that is allowed and the
// renderer clips it.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Map projects a normalised sample onto the surface by scaling each
// coordinate by the pixel extent and rounding to the nearest pixel. No
// clamping is performed here; see Clamp for the opt-in policy.
func (sf Surface) Map(s Sample) Point {
	return Point{
		X: int(math.Round(float64(sf.Width) * s.X)),
		Y: int(math.Round(float64(sf.Height) * s.Y)),
	}
}

// Clamp restricts a mapped point to the surface bounds. Whether overshoot is
// clamped or passed through is a per-session policy; the reference tracker
// behaviour is to pass it through.
func (sf Surface) Clamp(p Point) Point {
	if p.X < 0 {
		p.X = 0
	} else if p.X >= sf.Width {
		p.X = sf.Width - 1
	}
	if p.Y < 0 {
		p.Y = 0
	} else if p.Y >= sf.Height {
		p.Y = sf.Height - 1
	}
	return p
}
