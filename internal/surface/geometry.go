// Package surface converts between the physical screen and its pixel grid
// for tracker registration. The tracker locates the screen by detecting
// four fiducial markers drawn near its corners; registration tells it the
// screen's physical size and where each marker sits on it.
package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const mmPerInch = 25.4

// EdgeOffsetsMM is the marker margin from each screen edge in millimetres:
// [[left, right], [top, bottom]].
type EdgeOffsetsMM [2][2]float64

// Geometry describes one physical screen: its pixel grid, pixel density,
// and the fiducial marker dimensions used for registration.
type Geometry struct {
	WidthPx  int
	HeightPx int

	// DPIX, DPIY are the physical dots per inch reported for each axis.
	DPIX float64
	DPIY float64

	MarkerSizeMM   float64
	MarkerBorderMM float64
	EdgeOffsetsMM  EdgeOffsetsMM
}

// NewGeometry validates the screen description.
func NewGeometry(g Geometry) (Geometry, error) {
	if g.WidthPx <= 0 || g.HeightPx <= 0 {
		return Geometry{}, fmt.Errorf("invalid screen size %dx%d: extents must be positive", g.WidthPx, g.HeightPx)
	}
	if g.DPIX <= 0 || g.DPIY <= 0 {
		return Geometry{}, fmt.Errorf("invalid dpi %gx%g: must be positive", g.DPIX, g.DPIY)
	}
	if g.MarkerSizeMM <= 0 {
		return Geometry{}, fmt.Errorf("invalid marker size %gmm: must be positive", g.MarkerSizeMM)
	}
	for _, axis := range g.EdgeOffsetsMM {
		for _, off := range axis {
			if off < 0 {
				return Geometry{}, fmt.Errorf("invalid edge offset %gmm: must not be negative", off)
			}
		}
	}
	return g, nil
}

// DPI is the effective pixel density: the mean of the two axes.
func (g Geometry) DPI() float64 {
	return stat.Mean([]float64{g.DPIX, g.DPIY}, nil)
}

// MMToPix converts a physical length to whole pixels at the effective DPI.
func (g Geometry) MMToPix(lengthMM float64) int {
	return int(lengthMM * g.DPI() / mmPerInch)
}

// PixToMM converts a pixel length to millimetres at the effective DPI.
func (g Geometry) PixToMM(lengthPx int) float64 {
	return float64(lengthPx) * mmPerInch / g.DPI()
}

// SizeMM is the physical screen size in millimetres.
func (g Geometry) SizeMM() (width, height float64) {
	return g.PixToMM(g.WidthPx), g.PixToMM(g.HeightPx)
}

// Marker is one fiducial marker position for registration. X and Y are the
// marker's top-left corner in metres in the tracker's screen frame: origin
// at the screen's top-left, X rightward, Y downward and negative.
type Marker struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// MarkerLayout places four markers near the screen corners: top-left,
// top-right, bottom-left, bottom-right. Positions follow the tracker's
// convention of metres with negative Y.
func (g Geometry) MarkerLayout() []Marker {
	widthMM, heightMM := g.SizeMM()
	w := widthMM * 1e-3
	h := heightMM * 1e-3
	ms := g.MarkerSizeMM * 1e-3

	left := g.EdgeOffsetsMM[0][0] * 1e-3
	right := g.EdgeOffsetsMM[0][1] * 1e-3
	top := g.EdgeOffsetsMM[1][0] * 1e-3
	bottom := g.EdgeOffsetsMM[1][1] * 1e-3

	return []Marker{
		{ID: 0, X: left, Y: -top - ms, Size: ms},
		{ID: 1, X: w - right - ms, Y: -top - ms, Size: ms},
		{ID: 2, X: left, Y: -h + bottom, Size: ms},
		{ID: 3, X: w - right - ms, Y: -h + bottom, Size: ms},
	}
}

// MarkerRect is one marker's pixel-space bounding box for drawing on the
// overlay.
type MarkerRect struct {
	ID     int `json:"id"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Size   int `json:"size"`
	Border int `json:"border"`
}

// MarkerRects returns the pixel-space draw boxes matching MarkerLayout.
func (g Geometry) MarkerRects() []MarkerRect {
	size := g.MMToPix(g.MarkerSizeMM)
	border := g.MMToPix(g.MarkerBorderMM)
	left := g.MMToPix(g.EdgeOffsetsMM[0][0])
	right := g.MMToPix(g.EdgeOffsetsMM[0][1])
	top := g.MMToPix(g.EdgeOffsetsMM[1][0])
	bottom := g.MMToPix(g.EdgeOffsetsMM[1][1])

	return []MarkerRect{
		{ID: 0, X: left, Y: top, Size: size, Border: border},
		{ID: 1, X: g.WidthPx - right - size, Y: top, Size: size, Border: border},
		{ID: 2, X: left, Y: g.HeightPx - bottom - size, Size: size, Border: border},
		{ID: 3, X: g.WidthPx - right - size, Y: g.HeightPx - bottom - size, Size: size, Border: border},
	}
}

// RegistrationRequest is the screen description sent to the tracker: the
// physical screen size in metres plus the marker layout.
type RegistrationRequest struct {
	ScreenWidthM  float64  `json:"screen_width_m"`
	ScreenHeightM float64  `json:"screen_height_m"`
	MarkerIDs     []int    `json:"marker_ids"`
	Markers       []Marker `json:"markers"`
}

// Registration builds the request for this screen.
func (g Geometry) Registration() RegistrationRequest {
	widthMM, heightMM := g.SizeMM()
	markers := g.MarkerLayout()
	ids := make([]int, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
	}
	return RegistrationRequest{
		ScreenWidthM:  widthMM * 1e-3,
		ScreenHeightM: heightMM * 1e-3,
		MarkerIDs:     ids,
		Markers:       markers,
	}
}

// RegistrationCommand encodes the request as a tracker command line:
// S=<width_m>,<height_m>,<id:x:y:size>,...
func (g Geometry) RegistrationCommand() string {
	req := g.Registration()
	cmd := fmt.Sprintf("S=%.4f,%.4f", req.ScreenWidthM, req.ScreenHeightM)
	for _, m := range req.Markers {
		cmd += fmt.Sprintf(",%d:%.4f:%.4f:%.4f", m.ID, m.X, m.Y, m.Size)
	}
	return cmd
}

// Aspect is the pixel aspect ratio width/height.
func (g Geometry) Aspect() float64 {
	return float64(g.WidthPx) / float64(g.HeightPx)
}

// PhysicalAspect is the physical aspect ratio accounting for anisotropic
// DPI. It differs from Aspect when pixels are not square.
func (g Geometry) PhysicalAspect() float64 {
	widthMM := float64(g.WidthPx) * mmPerInch / g.DPIX
	heightMM := float64(g.HeightPx) * mmPerInch / g.DPIY
	return widthMM / heightMM
}

// SquarePixels reports whether the two DPI axes agree to within 1%.
func (g Geometry) SquarePixels() bool {
	return math.Abs(g.DPIX-g.DPIY) <= 0.01*g.DPI()
}
