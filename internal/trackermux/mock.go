package trackermux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gazekit/gazeboard/internal/monitoring"
)

// MockSource implements SampleSource for dev mode: it replays fixture
// records at a fixed rate and captures any commands written to it.
type MockSource struct {
	io.Reader

	mu       sync.Mutex
	commands bytes.Buffer
	closed   bool
	stop     func()
}

// NewMockSource replays the given fixture data (one gaze record per line)
// at rateHz, cycling back to the first record at end of input.
func NewMockSource(fixture []byte, rateHz int) *MockSource {
	if rateHz <= 0 {
		rateHz = 125
	}

	lines := strings.Split(strings.TrimSpace(string(fixture)), "\n")
	r, w := io.Pipe()

	done := make(chan struct{})
	go func() {
		defer w.Close()
		ticker := time.NewTicker(time.Second / time.Duration(rateHz))
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, lines[i%len(lines)]+"\n"); err != nil {
					return
				}
				i++
			}
		}
	}()

	var once sync.Once
	return &MockSource{
		Reader: r,
		stop: func() {
			once.Do(func() { close(done) })
		},
	}
}

// Write captures commands so tests and dev sessions can inspect what would
// have been sent to the backend.
func (m *MockSource) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("mock tracker link closed")
	}
	monitoring.Logf("mock tracker link received command %q", strings.TrimSpace(string(p)))
	return m.commands.Write(p)
}

// Commands returns everything written to the mock link so far.
func (m *MockSource) Commands() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands.String()
}

// Close stops the replay goroutine.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stop()
	return nil
}

// NewMockTrackerMux creates a TrackerMux backed by a fixture replay source.
func NewMockTrackerMux(fixture []byte, rateHz int) *TrackerMux[*MockSource] {
	return NewTrackerMux[*MockSource](NewMockSource(fixture, rateHz))
}

// TestableSource implements SampleSource with configurable behaviour for
// unit tests: scripted reads, captured writes, injectable errors.
type TestableSource struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the link
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite causes Write to report one byte fewer than written
	ShortWrite bool

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSource creates a TestableSource for unit tests.
func NewTestableSource() *TestableSource {
	ts := &TestableSource{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	ts.readCond = sync.NewCond(&ts.mu)
	return ts
}

// AddReadData appends data to the read buffer and wakes blocked readers.
func (t *TestableSource) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

func (t *TestableSource) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
	}
	if t.Closed {
		return 0, errors.New("tracker link closed")
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestableSource) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

func (t *TestableSource) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return nil
}
