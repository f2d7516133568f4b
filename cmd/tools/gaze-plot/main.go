// Command gaze-plot renders a stored gaze session to PNG plots.
//
// It produces three plots: the smoothed gaze path across the screen, and
// each axis against tracker time (raw mapped pixel vs smoothed position).
//
// Usage:
//
//	go run ./cmd/tools/gaze-plot [flags]
//
// Flags:
//
//	-db        Path to the sqlite database (default: gaze.db)
//	-session   Session ID to plot (default: most recent session)
//	-out       Output directory for PNGs (default: plots)
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gazekit/gazeboard/internal/db"
)

func main() {
	dbPath := flag.String("db", "gaze.db", "Path to the sqlite database")
	sessionID := flag.String("session", "", "Session ID to plot (default: most recent)")
	outDir := flag.String("out", "plots", "Output directory for PNGs")
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	id := *sessionID
	if id == "" {
		sessions, err := database.Sessions()
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("No sessions in database")
		}
		id = sessions[0].SessionID
		log.Printf("No -session given, using most recent: %s", id)
	}

	trace, err := database.Trace(id, 0)
	if err != nil {
		log.Fatalf("Failed to load trace: %v", err)
	}
	if len(trace) == 0 {
		log.Fatalf("Session %s has no trace points", id)
	}
	log.Printf("Loaded %d trace points for session %s", len(trace), id)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	if err := plotPath(trace, filepath.Join(*outDir, fmt.Sprintf("%s_path.png", id))); err != nil {
		log.Fatalf("Failed to plot path: %v", err)
	}
	if err := plotAxis(trace, axisX, filepath.Join(*outDir, fmt.Sprintf("%s_x.png", id))); err != nil {
		log.Fatalf("Failed to plot X axis: %v", err)
	}
	if err := plotAxis(trace, axisY, filepath.Join(*outDir, fmt.Sprintf("%s_y.png", id))); err != nil {
		log.Fatalf("Failed to plot Y axis: %v", err)
	}

	stats, err := database.Stats(id)
	if err != nil {
		log.Fatalf("Failed to compute stats: %v", err)
	}
	log.Printf("Session %s: %d points over %.1fs, speed p50=%.0f p85=%.0f p98=%.0f px/s",
		id, stats.PointCount, stats.DurationSec, stats.P50Speed, stats.P85Speed, stats.P98Speed)
	log.Printf("Plots written to %s", *outDir)
}

var (
	rawColor    = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	smoothColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// plotPath draws the smoothed gaze path in screen coordinates.
func plotPath(trace []db.TracePoint, outFile string) error {
	p := plot.New()
	p.Title.Text = "Smoothed gaze path"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"

	pts := make(plotter.XYs, len(trace))
	for i, t := range trace {
		// Flip Y so the plot matches screen orientation (origin top-left).
		pts[i] = plotter.XY{X: t.SmoothX, Y: -t.SmoothY}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = smoothColor
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(10*vg.Inch, 6*vg.Inch, outFile)
}

type axis int

const (
	axisX axis = iota
	axisY
)

// plotAxis draws one coordinate against tracker time, raw and smoothed
// overlaid so the window's effect is visible.
func plotAxis(trace []db.TracePoint, a axis, outFile string) error {
	p := plot.New()
	p.X.Label.Text = "Tracker time (s)"
	p.Y.Label.Text = "Position (px)"
	if a == axisX {
		p.Title.Text = "Gaze X: raw vs smoothed"
	} else {
		p.Title.Text = "Gaze Y: raw vs smoothed"
	}

	t0 := trace[0].TrackerTS
	rawPts := make(plotter.XYs, len(trace))
	smoothPts := make(plotter.XYs, len(trace))
	for i, t := range trace {
		ts := t.TrackerTS - t0
		if a == axisX {
			rawPts[i] = plotter.XY{X: ts, Y: float64(t.RawX)}
			smoothPts[i] = plotter.XY{X: ts, Y: t.SmoothX}
		} else {
			rawPts[i] = plotter.XY{X: ts, Y: float64(t.RawY)}
			smoothPts[i] = plotter.XY{X: ts, Y: t.SmoothY}
		}
	}

	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		return err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(0.5)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	smoothLine, err := plotter.NewLine(smoothPts)
	if err != nil {
		return err
	}
	smoothLine.Color = smoothColor
	smoothLine.Width = vg.Points(1)
	p.Add(smoothLine)
	p.Legend.Add("smoothed", smoothLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, outFile)
}
