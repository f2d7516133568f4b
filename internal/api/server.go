// Package api serves the gaze pipeline's JSON endpoints: live position,
// stored sessions and traces, tracker commands, and the effective tuning
// config.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gazekit/gazeboard/internal/config"
	"github.com/gazekit/gazeboard/internal/db"
	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/monitoring"
	"github.com/gazekit/gazeboard/internal/trackermux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m       trackermux.TrackerMuxInterface
	db      *db.DB
	session *gaze.Session
	tuning  *config.TuningConfig
}

func NewServer(m trackermux.TrackerMuxInterface, database *db.DB, session *gaze.Session, tuning *config.TuningConfig) *Server {
	return &Server{
		m:       m,
		db:      database,
		session: session,
		tuning:  tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/position", s.showPosition)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}/trace", s.showTrace)
	mux.HandleFunc("/api/sessions/{id}/stats", s.showStats)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// positionResponse is the live smoothed cursor plus ingest counters.
type positionResponse struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	TrackerTS float64 `json:"tracker_ts"`
	Accepted  uint64  `json:"accepted"`
	Dropped   uint64  `json:"dropped"`
	WindowLen int     `json:"window_len"`
}

func (s *Server) showPosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	pos, ts, ok := s.session.Snapshot()
	if !ok {
		// No valid sample yet: there is no position to report.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	accepted, dropped := s.session.Counts()
	w.Header().Set("Content-Type", "application/json")
	resp := positionResponse{
		X: pos.X, Y: pos.Y, TrackerTS: ts,
		Accepted: accepted, Dropped: dropped,
		WindowLen: s.session.WindowLen(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write position")
		return
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessions, err := s.db.Sessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.SessionRow{}
	}

	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

func (s *Server) showTrace(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0 // db default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	trace, err := s.db.Trace(r.PathValue("id"), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve trace: %v", err))
		return
	}
	if trace == nil {
		trace = []db.TracePoint{}
	}

	if err := json.NewEncoder(w).Encode(trace); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write trace")
		return
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := s.db.Stats(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("Failed to compute stats: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	surface := s.session.Surface()
	cfg := map[string]interface{}{
		"surface_width":    surface.Width,
		"surface_height":   surface.Height,
		"window_size":      s.tuning.GetWindowSize(),
		"clamp_to_surface": s.tuning.GetClampToSurface(),
		"stream_rate_hz":   s.tuning.GetStreamRateHz(),
		"render_fps":       s.tuning.GetRenderFPS(),
	}

	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
