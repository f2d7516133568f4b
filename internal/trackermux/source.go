package trackermux

import (
	"io"
	"time"
)

// SampleSource defines the minimal interface needed for a tracker link:
// reads carry the gaze record stream, writes carry control commands. This
// abstraction enables unit testing without tracker hardware.
type SampleSource interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSampleSource extends SampleSource with read timeout capabilities.
// This is an optional interface that sources may implement.
type TimeoutSampleSource interface {
	SampleSource
	// SetReadTimeout sets the read timeout for the tracker link.
	SetReadTimeout(timeout time.Duration) error
}
