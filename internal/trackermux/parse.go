package trackermux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gazekit/gazeboard/internal/gaze"
)

// ParseSample parses one gaze-in-screen record of the form
// "timestamp,x,y". The coordinate fields accept "nan" (any case), which
// parses into a valid Sample that reports Valid() == false: a NaN record is
// an expected tracking-loss signal, not a malformed line.
func ParseSample(line string) (gaze.Sample, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != 3 {
		return gaze.Sample{}, fmt.Errorf("malformed gaze record %q: expected 3 fields, got %d", line, len(segments))
	}

	timestamp, err := strconv.ParseFloat(strings.TrimSpace(segments[0]), 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(segments[1]), 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("failed to parse x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(segments[2]), 64)
	if err != nil {
		return gaze.Sample{}, fmt.Errorf("failed to parse y: %w", err)
	}

	return gaze.Sample{Timestamp: timestamp, X: x, Y: y}, nil
}
