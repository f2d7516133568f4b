package trackermux

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazekit/gazeboard/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewTrackerMux(NewTestableSource())

	idA, chA := m.Subscribe()
	idB, chB := m.Subscribe()
	assert.NotEqual(t, idA, idB)
	assert.NotNil(t, chA)
	assert.NotNil(t, chB)

	m.Unsubscribe(idA)
	_, open := <-chA
	assert.False(t, open, "unsubscribed channel must be closed")

	// Unsubscribing twice is harmless.
	m.Unsubscribe(idA)
	m.Unsubscribe(idB)
}

func TestMonitorFansOutRecords(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	source.BlockReads = true
	m := NewTrackerMux(source)

	_, ch := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitorDone := make(chan error, 1)
	go func() { monitorDone <- m.Monitor(ctx) }()

	source.AddReadData([]byte("1.0,0.5,0.5\n2.0,nan,nan\n"))

	var got []string
	for len(got) < 2 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for records")
		}
	}
	assert.Equal(t, []string{"1.0,0.5,0.5", "2.0,nan,nan"}, got)

	cancel()
	select {
	case err := <-monitorDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancellation")
	}
}

func TestMonitorDropsForSlowSubscribers(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	source.BlockReads = true
	m := NewTrackerMux(source)

	// Subscriber that never reads: records addressed to it are dropped so
	// the stream keeps flowing to others.
	m.Subscribe()
	_, active := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Monitor(ctx)

	source.AddReadData([]byte("1.0,0.1,0.1\n"))

	select {
	case line := <-active:
		assert.Equal(t, "1.0,0.1,0.1", line)
	case <-time.After(2 * time.Second):
		t.Fatal("active subscriber starved by a slow one")
	}
}

func TestSendCommandAppendsNewline(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	m := NewTrackerMux(source)

	require.NoError(t, m.SendCommand("R=125"))
	require.NoError(t, m.SendCommand("T1\n"))
	assert.Equal(t, "R=125\nT1\n", source.WriteBuffer.String())
}

func TestSendCommandShortWrite(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	source.ShortWrite = true
	m := NewTrackerMux(source)

	err := m.SendCommand("T1")
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestInitializeCommandSequence(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	m := NewTrackerMux(source)

	require.NoError(t, m.Initialize(125))

	commands := strings.Split(strings.TrimSpace(source.WriteBuffer.String()), "\n")
	require.Len(t, commands, 4)
	assert.True(t, strings.HasPrefix(commands[0], "C="), "first command syncs the clock, got %q", commands[0])
	assert.Equal(t, "R=125", commands[1])
	assert.Equal(t, "T1", commands[2])
	assert.Equal(t, "L1", commands[3])
}

func TestInitializeDefaultsRate(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	m := NewTrackerMux(source)

	require.NoError(t, m.Initialize(0))
	assert.Contains(t, source.WriteBuffer.String(), "R=125\n")
}

func TestCloseClosesSubscribersAndSource(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	m := NewTrackerMux(source)
	_, ch := m.Subscribe()

	require.NoError(t, m.Close())

	_, open := <-ch
	assert.False(t, open)
	assert.True(t, source.Closed)
}

func TestMonitorReturnsReadError(t *testing.T) {
	t.Parallel()

	source := NewTestableSource()
	source.ReadError = assert.AnError
	m := NewTrackerMux(source)

	err := m.Monitor(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMockSourceReplaysFixtures(t *testing.T) {
	t.Parallel()

	fixture := []byte("1.0,0.5,0.5\n2.0,nan,nan\n")
	m := NewMockTrackerMux(fixture, 500)
	defer m.Close()

	_, ch := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Monitor(ctx)

	var got []string
	for len(got) < 3 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fixture replay")
		}
	}
	// Replay cycles back to the first record at end of input.
	assert.Equal(t, "1.0,0.5,0.5", got[0])
	assert.Equal(t, "2.0,nan,nan", got[1])
	assert.Equal(t, "1.0,0.5,0.5", got[2])
}

func TestMockSourceCapturesCommands(t *testing.T) {
	t.Parallel()

	source := NewMockSource([]byte("1.0,0.5,0.5\n"), 125)
	defer source.Close()
	m := NewTrackerMux(source)

	require.NoError(t, m.SendCommand("R=60"))
	assert.Equal(t, "R=60\n", source.Commands())
}

func TestPortOptionsNormalize(t *testing.T) {
	t.Parallel()

	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, 8, opts.DataBits)
	assert.Equal(t, 1, opts.StopBits)
	assert.Equal(t, "N", opts.Parity)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "M"}.Normalize()
	assert.Error(t, err)

	opts, err = PortOptions{Parity: "even"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)
}
