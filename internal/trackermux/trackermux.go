// Package trackermux provides an abstraction over the eye-tracker backend's
// sample stream with the ability for multiple clients to subscribe to
// gaze records and to send control commands to a single backend connection.
//
// The backend's own wire protocol is proprietary; what reaches this process
// is a line-oriented record stream (one "timestamp,x,y" record per line)
// carried over a serial link, a UDP socket, or a fixture file in dev mode.
package trackermux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var ErrWriteFailed = fmt.Errorf("failed to write to tracker link")

// TrackerMux is a generic multiplexer that allows multiple clients to
// subscribe to gaze records arriving from a single tracker link.
type TrackerMux[T SampleSource] struct {
	source       T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// TrackerMuxInterface defines the interface for the TrackerMux type.
type TrackerMuxInterface interface {
	// Subscribe creates a new channel for receiving gaze records from the
	// tracker link. The channel ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided control command to the tracker link.
	SendCommand(string) error
	// Monitor reads records from the tracker link and fans them out to
	// subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the tracker link.
	Close() error

	// Initialize issues the session-start command sequence (clock sync,
	// stream rate, screen tracking on).
	Initialize(streamRateHz int) error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewTrackerMux creates a TrackerMux instance backed by the given tracker
// link.
func NewTrackerMux[T SampleSource](source T) *TrackerMux[T] {
	return &TrackerMux[T]{
		source:      source,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *TrackerMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the tracker mux.
func (m *TrackerMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Initialize syncs the clock to the backend and starts the gaze-in-screen
// stream at the requested rate. Screen tracking must be enabled or the
// backend emits no gaze-in-screen records at all.
func (m *TrackerMux[T]) Initialize(streamRateHz int) error {
	// sync the backend clock to the current UNIX time
	command := fmt.Sprintf("C=%d", time.Now().Unix())
	if err := m.SendCommand(command); err != nil {
		return fmt.Errorf("failed to synchronize clock: %w", err)
	}

	if streamRateHz <= 0 {
		streamRateHz = 125
	}

	for _, command := range []string{
		fmt.Sprintf("R=%d", streamRateHz), // gaze-in-screen stream rate
		"T1",                              // enable screen tracking
		"L1",                              // start a basic signal log session
	} {
		if err := m.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}

	return nil
}

// SendCommand sends a control command to the tracker link.
func (m *TrackerMux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // ensure command ends with a newline
	}
	n, err := m.source.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the tracker link for gaze records and fans them out to
// subscribers. Slow subscribers miss records rather than stalling the
// stream: a gaze sample that cannot be delivered immediately is already
// stale by the next one.
func (m *TrackerMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.source)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// read from the tracker link on a separate goroutine so the blocking
	// scan.Scan does not interfere with the outer loop awaiting lines and
	// context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the link
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// subscriber not ready; drop rather than block the stream
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *TrackerMux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.source.Close()
}
