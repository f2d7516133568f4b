package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// stubSource is a PositionSource with a settable position.
type stubSource struct {
	mu  sync.Mutex
	pos gaze.Position
	ts  float64
	ok  bool
}

func (s *stubSource) Set(pos gaze.Position, ts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos, s.ts, s.ok = pos, ts, true
}

func (s *stubSource) Snapshot() (gaze.Position, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.ts, s.ok
}

func TestPublisherSkipsFramesWithoutPosition(t *testing.T) {
	t.Parallel()

	p := NewPublisher(Config{FPS: 200}, &stubSource{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.Stats().SkippedFrames > 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, p.Stats().FrameCount)
}

func TestPublisherBroadcastsFrames(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	source.Set(gaze.Position{X: 960, Y: 540}, 1.5)

	p := NewPublisher(Config{FPS: 200}, source)
	c := p.addClient("test-client")
	defer p.removeClient("test-client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	select {
	case frame := <-c.frameCh:
		assert.Equal(t, 960.0, frame.X)
		assert.Equal(t, 540.0, frame.Y)
		assert.Equal(t, 1.5, frame.TrackerTS)
		assert.NotZero(t, frame.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestPublisherSequenceIncrements(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	source.Set(gaze.Position{X: 1, Y: 1}, 0.1)

	p := NewPublisher(Config{FPS: 500}, source)
	c := p.addClient("seq-client")
	defer p.removeClient("seq-client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	var last uint64
	for i := 0; i < 5; i++ {
		select {
		case frame := <-c.frameCh:
			assert.Greater(t, frame.Seq, last)
			last = frame.Seq
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestPublisherDropsForSlowClients(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	source.Set(gaze.Position{X: 1, Y: 1}, 0.1)

	p := NewPublisher(Config{FPS: 500}, source)
	// Client that never reads; its buffer fills and frames drop.
	p.addClient("slow-client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.Stats().DroppedFrames > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPublisherDoubleStart(t *testing.T) {
	t.Parallel()

	p := NewPublisher(DefaultConfig(), &stubSource{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	assert.Error(t, p.Start(ctx))
}

func TestServeWSDeliversFrames(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	source.Set(gaze.Position{X: 100, Y: 200}, 3.0)

	p := NewPublisher(Config{FPS: 200}, source)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/marker", p.ServeWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/marker"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame DrawRequest
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, 100.0, frame.X)
	assert.Equal(t, 200.0, frame.Y)

	require.Eventually(t, func() bool {
		return p.Stats().ClientCount == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return p.Stats().ClientCount == 0
	}, 2*time.Second, 5*time.Millisecond)
}
