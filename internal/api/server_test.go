package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazekit/gazeboard/internal/config"
	"github.com/gazekit/gazeboard/internal/db"
	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/monitoring"
	"github.com/gazekit/gazeboard/internal/trackermux"
)

func init() {
	monitoring.SetLogger(nil)
}

type fixture struct {
	server  *Server
	source  *trackermux.TestableSource
	session *gaze.Session
	db      *db.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "gaze.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	session, err := gaze.NewSession(gaze.SessionConfig{
		Surface:    gaze.Surface{Width: 1920, Height: 1080},
		WindowSize: 10,
	})
	require.NoError(t, err)

	source := trackermux.NewTestableSource()
	m := trackermux.NewTrackerMux(source)

	return &fixture{
		server:  NewServer(m, database, session, &config.TuningConfig{}),
		source:  source,
		session: session,
		db:      database,
	}
}

func (f *fixture) request(t *testing.T, method, target string, body url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.ServeMux().ServeHTTP(rec, req)
	return rec
}

func TestPositionBeforeFirstSample(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodGet, "/api/position", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPositionAfterSamples(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.session.OnSample(1.0, 0.5, 0.5)
	f.session.OnSample(1.008, 0.5, 0.5)

	rec := f.request(t, http.MethodGet, "/api/position", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp positionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 960.0, resp.X)
	assert.Equal(t, 540.0, resp.Y)
	assert.Equal(t, 1.008, resp.TrackerTS)
	assert.Equal(t, uint64(2), resp.Accepted)
	assert.Equal(t, uint64(0), resp.Dropped)
	assert.Equal(t, 2, resp.WindowLen)
}

func TestListSessionsEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestSessionTraceAndStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.db.StartSession("s-1", gaze.Surface{Width: 1920, Height: 1080}, 10))
	require.NoError(t, f.db.RecordPoint("s-1", 1.0, gaze.Point{X: 100, Y: 100}, gaze.Position{X: 100, Y: 100}))
	require.NoError(t, f.db.RecordPoint("s-1", 1.1, gaze.Point{X: 200, Y: 100}, gaze.Position{X: 200, Y: 100}))

	rec := f.request(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []db.SessionRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(2), sessions[0].PointCount)

	rec = f.request(t, http.MethodGet, "/api/sessions/s-1/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trace []db.TracePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trace))
	require.Len(t, trace, 2)
	assert.Equal(t, 100, trace[0].RawX)

	rec = f.request(t, http.MethodGet, "/api/sessions/s-1/trace?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trace = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trace))
	assert.Len(t, trace, 1)

	rec = f.request(t, http.MethodGet, "/api/sessions/s-1/trace?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/sessions/s-1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats db.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.PointCount)
	assert.InDelta(t, 1000.0, stats.MeanSpeed, 1e-6)

	rec = f.request(t, http.MethodGet, "/api/sessions/missing/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodPost, "/api/command", url.Values{"command": {"R=60"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "R=60\n", f.source.WriteBuffer.String())

	rec = f.request(t, http.MethodPost, "/api/command", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/command", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShowConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, float64(1920), cfg["surface_width"])
	assert.Equal(t, float64(10), cfg["window_size"])
	assert.Equal(t, false, cfg["clamp_to_surface"])
	assert.Equal(t, float64(125), cfg["stream_rate_hz"])
	assert.Equal(t, float64(60), cfg["render_fps"])
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, target := range []string{"/api/position", "/api/sessions", "/api/config"} {
		rec := f.request(t, http.MethodPost, target, url.Values{})
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}
