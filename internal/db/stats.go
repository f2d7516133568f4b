package db

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SessionStats is a per-session rollup computed from the stored trace.
// Speeds are smoothed-position speeds in pixels per second between
// consecutive samples.
type SessionStats struct {
	SessionID   string  `json:"session_id"`
	PointCount  int     `json:"point_count"`
	DurationSec float64 `json:"duration_sec"`
	MeanSpeed   float64 `json:"mean_speed_px_s"`
	P50Speed    float64 `json:"p50_speed_px_s"`
	P85Speed    float64 `json:"p85_speed_px_s"`
	P98Speed    float64 `json:"p98_speed_px_s"`
}

// Stats computes the rollup for one session. Sessions with fewer than two
// points have zero speeds.
func (db *DB) Stats(sessionID string) (SessionStats, error) {
	trace, err := db.Trace(sessionID, 0)
	if err != nil {
		return SessionStats{}, err
	}
	if len(trace) == 0 {
		return SessionStats{}, fmt.Errorf("no trace for session %q", sessionID)
	}

	stats := SessionStats{
		SessionID:   sessionID,
		PointCount:  len(trace),
		DurationSec: trace[len(trace)-1].TrackerTS - trace[0].TrackerTS,
	}

	speeds := make([]float64, 0, len(trace)-1)
	for i := 1; i < len(trace); i++ {
		dt := trace[i].TrackerTS - trace[i-1].TrackerTS
		if dt <= 0 {
			continue
		}
		dx := trace[i].SmoothX - trace[i-1].SmoothX
		dy := trace[i].SmoothY - trace[i-1].SmoothY
		speeds = append(speeds, math.Hypot(dx, dy)/dt)
	}
	if len(speeds) == 0 {
		return stats, nil
	}

	stats.MeanSpeed = stat.Mean(speeds, nil)

	// stat.Quantile wants sorted input.
	sort.Float64s(speeds)
	stats.P50Speed = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	stats.P85Speed = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	stats.P98Speed = stat.Quantile(0.98, stat.Empirical, speeds, nil)

	return stats, nil
}
