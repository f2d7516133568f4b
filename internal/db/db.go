// Package db stores tracking sessions and their gaze traces in sqlite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gazekit/gazeboard/internal/gaze"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the sqlite database at path and
// applies any pending migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; the ingest loop is the only writer so
	// a small pool avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(4)

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// SessionRow is one tracking session as stored.
type SessionRow struct {
	SessionID     string     `json:"session_id"`
	SurfaceWidth  int        `json:"surface_width"`
	SurfaceHeight int        `json:"surface_height"`
	WindowSize    int        `json:"window_size"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	PointCount    int64      `json:"point_count"`
}

// TracePoint is one accepted gaze sample: the raw mapped pixel and the
// smoothed position it produced.
type TracePoint struct {
	TrackerTS float64 `json:"tracker_ts"`
	RawX      int     `json:"raw_x"`
	RawY      int     `json:"raw_y"`
	SmoothX   float64 `json:"smooth_x"`
	SmoothY   float64 `json:"smooth_y"`
}

// StartSession records the beginning of a tracking session.
func (db *DB) StartSession(sessionID string, surface gaze.Surface, windowSize int) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, surface_width, surface_height, window_size)
		 VALUES (?, ?, ?, ?)`,
		sessionID, surface.Width, surface.Height, windowSize,
	)
	if err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ? AND ended_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no open session %q", sessionID)
	}
	return nil
}

// RecordPoint persists one accepted sample and the smoothed position it
// produced.
func (db *DB) RecordPoint(sessionID string, trackerTS float64, raw gaze.Point, smoothed gaze.Position) error {
	_, err := db.Exec(
		`INSERT INTO gaze_points (session_id, tracker_ts, raw_x, raw_y, smooth_x, smooth_y)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, trackerTS, raw.X, raw.Y, smoothed.X, smoothed.Y,
	)
	return err
}

// RecordPoints persists a batch of trace points in one transaction. The
// ingest loop batches inserts so a 125 Hz stream does not issue 125
// transactions a second.
func (db *DB) RecordPoints(sessionID string, points []TracePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO gaze_points (session_id, tracker_ts, raw_x, raw_y, smooth_x, smooth_y)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(sessionID, p.TrackerTS, p.RawX, p.RawY, p.SmoothX, p.SmoothY); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sessions lists stored sessions, most recent first.
func (db *DB) Sessions() ([]SessionRow, error) {
	rows, err := db.Query(`
		SELECT s.session_id, s.surface_width, s.surface_height, s.window_size,
		       s.started_at, s.ended_at, COUNT(p.session_id)
		FROM sessions s
		LEFT JOIN gaze_points p ON p.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC
		LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var s SessionRow
		var endedAt sql.NullTime
		if err := rows.Scan(
			&s.SessionID, &s.SurfaceWidth, &s.SurfaceHeight, &s.WindowSize,
			&s.StartedAt, &endedAt, &s.PointCount,
		); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			s.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Trace returns up to limit trace points for a session in stream order.
func (db *DB) Trace(sessionID string, limit int) ([]TracePoint, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := db.Query(
		`SELECT tracker_ts, raw_x, raw_y, smooth_x, smooth_y
		 FROM gaze_points WHERE session_id = ?
		 ORDER BY tracker_ts ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TracePoint
	for rows.Next() {
		var p TracePoint
		if err := rows.Scan(&p.TrackerTS, &p.RawX, &p.RawY, &p.SmoothX, &p.SmoothY); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}
