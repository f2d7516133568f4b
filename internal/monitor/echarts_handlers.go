// Package monitor serves debugging-only chart endpoints (no auth) for
// inspecting stored gaze traces and the live render pipeline without a
// frontend build.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gazekit/gazeboard/internal/db"
	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/render"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WebServer holds the handles the chart endpoints read from.
type WebServer struct {
	db        *db.DB
	session   *gaze.Session
	publisher *render.Publisher
}

func NewWebServer(database *db.DB, session *gaze.Session, publisher *render.Publisher) *WebServer {
	return &WebServer{
		db:        database,
		session:   session,
		publisher: publisher,
	}
}

// AttachRoutes mounts the chart endpoints under /debug/gaze/.
func (ws *WebServer) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/gaze/", ws.handleDashboard)
	mux.HandleFunc("/debug/gaze/trace", ws.handleTraceChart)
	mux.HandleFunc("/debug/gaze/speeds", ws.handleSpeedChart)
	mux.HandleFunc("/debug/gaze/render", ws.handleRenderStats)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sessionID resolves the session to chart: the query parameter if given,
// otherwise the live session.
func (ws *WebServer) sessionID(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	if ws.session != nil {
		return ws.session.ID
	}
	return ""
}

// handleTraceChart renders the stored trace of a session as a scatter plot
// in screen coordinates, coloured by tracker time so the path reads
// chronologically.
// Query params:
//   - session_id (optional; defaults to the live session)
//   - max_points (optional; default 8000) to reduce payload size
func (ws *WebServer) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	sessionID := ws.sessionID(r)
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "no session to chart")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	trace, err := ws.db.Trace(sessionID, 0)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get trace: %v", err))
		return
	}
	if len(trace) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no trace points available")
		return
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(trace) > maxPoints {
		stride = int(math.Ceil(float64(len(trace)) / float64(maxPoints)))
	}

	t0 := trace[0].TrackerTS
	data := make([]opts.ScatterData, 0, len(trace)/stride+1)
	maxX, maxY, maxT := 0.0, 0.0, 0.0
	for i := 0; i < len(trace); i += stride {
		p := trace[i]
		t := p.TrackerTS - t0
		if p.SmoothX > maxX {
			maxX = p.SmoothX
		}
		if p.SmoothY > maxY {
			maxY = p.SmoothY
		}
		if t > maxT {
			maxT = t
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.SmoothX, p.SmoothY, t}})
	}
	if maxT == 0 {
		maxT = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gaze Trace", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Gaze Trace", Subtitle: fmt.Sprintf("session=%s points=%d stride=%d", sessionID, len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: maxX * 1.05, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		// Screen Y grows downward; invert the axis so the chart matches it.
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: maxY * 1.05, Name: "Y (px)", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxT),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("trace", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSpeedChart renders the session's gaze speed percentiles as a bar
// chart.
func (ws *WebServer) handleSpeedChart(w http.ResponseWriter, r *http.Request) {
	sessionID := ws.sessionID(r)
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "no session to chart")
		return
	}

	stats, err := ws.db.Stats(sessionID)
	if err != nil {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("failed to get stats: %v", err))
		return
	}

	x := []string{"mean", "p50", "p85", "p98"}
	y := []opts.BarData{
		{Value: stats.MeanSpeed},
		{Value: stats.P50Speed},
		{Value: stats.P85Speed},
		{Value: stats.P98Speed},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Gaze Speed (px/s)", Subtitle: fmt.Sprintf("session=%s points=%d duration=%.1fs", sessionID, stats.PointCount, stats.DurationSec)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("speed", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRenderStats reports the render publisher's counters as JSON.
func (ws *WebServer) handleRenderStats(w http.ResponseWriter, r *http.Request) {
	if ws.publisher == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "render publisher not configured")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws.publisher.Stats())
}

// handleDashboard renders a simple page with iframes to the debug charts.
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sessionID := ws.sessionID(r)
	qs := ""
	if sessionID != "" {
		qs = "?session_id=" + url.QueryEscape(sessionID)
	}
	safeQs := html.EscapeString(qs)

	doc := fmt.Sprintf(dashboardHTML, html.EscapeString(sessionID), safeQs, safeQs)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>Gaze debug dashboard</title>
<style>body { font-family: sans-serif; margin: 1em; } iframe { border: 1px solid #444; margin-bottom: 1em; }</style>
</head>
<body>
<h1>Gaze debug dashboard</h1>
<p>session: <code>%s</code></p>
<iframe src="/debug/gaze/trace%s" width="940" height="940"></iframe>
<iframe src="/debug/gaze/speeds%s" width="940" height="760"></iframe>
<p><a href="/debug/gaze/render">render publisher stats</a></p>
</body>
</html>
`
