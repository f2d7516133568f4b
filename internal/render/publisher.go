// Package render drives the on-screen gaze marker. A fixed-cadence ticker
// samples the smoothed position and broadcasts draw requests to connected
// overlay clients over websockets.
package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gazekit/gazeboard/internal/gaze"
	"github.com/gazekit/gazeboard/internal/monitoring"
)

// DrawRequest is one frame of the marker overlay: where to draw the dot.
type DrawRequest struct {
	// Seq increments per published frame so clients can detect gaps.
	Seq uint64 `json:"seq"`
	// X, Y are the smoothed position in surface pixels.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// TrackerTS is the tracker timestamp of the newest sample in the window.
	TrackerTS float64 `json:"tracker_ts"`
}

// PositionSource yields the current smoothed position and the tracker
// timestamp of the newest sample. ok is false when no valid sample has
// arrived yet, in which case the frame is skipped.
type PositionSource interface {
	Snapshot() (pos gaze.Position, trackerTS float64, ok bool)
}

// Config holds configuration for the render publisher.
type Config struct {
	// FPS is the render cadence in frames per second.
	FPS int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{FPS: 60}
}

// Publisher ticks at the render cadence and fans draw requests out to
// overlay clients. The render timeline is independent of sample ingest:
// a stalled stream produces repeated frames at the last position, and a
// stream faster than the cadence is downsampled for free.
type Publisher struct {
	config Config
	source PositionSource

	clients   map[string]*client
	clientsMu sync.RWMutex

	frameCount    atomic.Uint64
	skippedFrames atomic.Uint64
	droppedFrames atomic.Uint64
	clientCount   atomic.Int32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// client is one connected overlay. Slow clients get frames dropped rather
// than stalling the ticker.
type client struct {
	id      string
	frameCh chan DrawRequest
	doneCh  chan struct{}
}

// NewPublisher creates a Publisher reading positions from source.
func NewPublisher(cfg Config, source PositionSource) *Publisher {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultConfig().FPS
	}
	return &Publisher{
		config:  cfg,
		source:  source,
		clients: make(map[string]*client),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the render ticker. It returns once the loop is running.
func (p *Publisher) Start(ctx context.Context) error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	p.running.Store(true)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.renderLoop(ctx)
	}()

	monitoring.Logf("[Render] Publisher started at %d FPS", p.config.FPS)
	return nil
}

// Stop halts the ticker and disconnects all clients.
func (p *Publisher) Stop() {
	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	close(p.stopCh)
	p.wg.Wait()

	p.clientsMu.Lock()
	for id, c := range p.clients {
		close(c.doneCh)
		delete(p.clients, id)
	}
	p.clientsMu.Unlock()

	monitoring.Logf("[Render] Publisher stopped after %d frames (%d skipped, %d dropped)",
		p.frameCount.Load(), p.skippedFrames.Load(), p.droppedFrames.Load())
}

func (p *Publisher) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(p.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.publishFrame()
		}
	}
}

func (p *Publisher) publishFrame() {
	pos, ts, ok := p.source.Snapshot()
	if !ok {
		// Nothing to draw yet.
		p.skippedFrames.Add(1)
		return
	}

	frame := DrawRequest{
		Seq:       p.frameCount.Add(1),
		X:         pos.X,
		Y:         pos.Y,
		TrackerTS: ts,
	}

	p.clientsMu.RLock()
	for _, c := range p.clients {
		select {
		case c.frameCh <- frame:
		default:
			// Client is slow, drop the frame for this client so the
			// ticker never blocks.
			p.droppedFrames.Add(1)
		}
	}
	p.clientsMu.RUnlock()
}

// addClient registers a new overlay client.
func (p *Publisher) addClient(id string) *client {
	c := &client{
		id:      id,
		frameCh: make(chan DrawRequest, 10),
		doneCh:  make(chan struct{}),
	}

	p.clientsMu.Lock()
	p.clients[id] = c
	p.clientsMu.Unlock()

	p.clientCount.Add(1)
	monitoring.Logf("[Render] Client connected: %s (total: %d)", id, p.clientCount.Load())
	return c
}

// removeClient unregisters an overlay client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	if c, ok := p.clients[id]; ok {
		close(c.doneCh)
		delete(p.clients, id)
		p.clientsMu.Unlock()
		p.clientCount.Add(-1)
		monitoring.Logf("[Render] Client disconnected: %s (remaining: %d)", id, p.clientCount.Load())
	} else {
		p.clientsMu.Unlock()
	}
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		FrameCount:    p.frameCount.Load(),
		SkippedFrames: p.skippedFrames.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		ClientCount:   p.clientCount.Load(),
		Running:       p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	FrameCount    uint64 `json:"frame_count"`
	SkippedFrames uint64 `json:"skipped_frames"`
	DroppedFrames uint64 `json:"dropped_frames"`
	ClientCount   int32  `json:"client_count"`
	Running       bool   `json:"running"`
}
