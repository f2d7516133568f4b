package gaze

import (
	"sync"

	"github.com/google/uuid"
)

// SessionConfig holds the per-session pipeline parameters. The surface is
// established once by the external registration step before any sample is
// processed; there is no way to construct a running session without it.
type SessionConfig struct {
	Surface        Surface
	WindowSize     int  // smoothing window capacity (points)
	ClampToSurface bool // clamp overshooting samples instead of passing through
}

// Session is one tracking session: the pipeline state from sample ingest to
// the smoothed marker position. Sample ingest and position reads typically
// run on different goroutines (stream handler vs render ticker), so all
// mutable state is guarded by mu.
type Session struct {
	ID      string
	surface Surface
	clamp   bool

	mu       sync.Mutex
	smoother *Smoother
	last     Position
	lastTS   float64 // tracker timestamp of the newest accepted sample
	hasLast  bool
	accepted uint64
	dropped  uint64
}

// NewSession validates the configuration and returns a session with a fresh
// smoothing window and a generated ID.
func NewSession(cfg SessionConfig) (*Session, error) {
	surface, err := NewSurface(cfg.Surface.Width, cfg.Surface.Height)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:       uuid.NewString(),
		surface:  surface,
		clamp:    cfg.ClampToSurface,
		smoother: NewSmoother(cfg.WindowSize),
	}, nil
}

// OnSample ingests one gaze sample from the stream handler. Samples with a
// NaN coordinate are dropped with no state change: they never enter the
// window and never move the marker. Valid samples are mapped onto the
// surface, optionally clamped, and pushed into the smoothing window.
//
// The mapped point, the updated average, and whether the sample was accepted
// are returned so the caller can persist the trace.
func (s *Session) OnSample(timestamp, x, y float64) (Point, Position, bool) {
	sample := Sample{Timestamp: timestamp, X: x, Y: y}
	if !sample.Valid() {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return Point{}, Position{}, false
	}

	p := s.surface.Map(sample)
	if s.clamp {
		p = s.surface.Clamp(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.smoother.Push(p)
	s.last = pos
	s.lastTS = timestamp
	s.hasLast = true
	s.accepted++
	return p, pos, true
}

// Current returns the latest smoothed position. The second return is false
// until the first valid sample has been accepted; callers must skip the
// frame rather than render an undefined position.
func (s *Session) Current() (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Snapshot returns the latest smoothed position together with the tracker
// timestamp of the sample that produced it.
func (s *Session) Snapshot() (Position, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastTS, s.hasLast
}

// Counts returns the number of samples accepted into the window and the
// number dropped as invalid.
func (s *Session) Counts() (accepted, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted, s.dropped
}

// WindowLen returns the number of points currently in the smoothing window.
func (s *Session) WindowLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoother.Len()
}

// Surface returns the session's registered surface extent.
func (s *Session) Surface() Surface { return s.surface }
