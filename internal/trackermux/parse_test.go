package trackermux

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazekit/gazeboard/internal/gaze"
)

func TestParseSample(t *testing.T) {
	t.Parallel()

	s, err := ParseSample("12.5,0.25,0.75")
	require.NoError(t, err)
	assert.Equal(t, gaze.Sample{Timestamp: 12.5, X: 0.25, Y: 0.75}, s)
	assert.True(t, s.Valid())
}

func TestParseSampleWhitespaceAndNewline(t *testing.T) {
	t.Parallel()

	s, err := ParseSample(" 1.0, 0.5 ,0.5\n")
	require.NoError(t, err)
	assert.Equal(t, gaze.Sample{Timestamp: 1.0, X: 0.5, Y: 0.5}, s)
}

func TestParseSampleNaNIsNotAnError(t *testing.T) {
	t.Parallel()

	// Tracking loss is reported as nan coordinates; the record itself is
	// well-formed and drops downstream, not here.
	s, err := ParseSample("3.2,nan,NaN")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.X))
	assert.True(t, math.IsNaN(s.Y))
	assert.False(t, s.Valid())
}

func TestParseSampleOvershoot(t *testing.T) {
	t.Parallel()

	s, err := ParseSample("3.2,-0.02,1.07")
	require.NoError(t, err)
	assert.True(t, s.Valid())
	assert.Equal(t, -0.02, s.X)
	assert.Equal(t, 1.07, s.Y)
}

func TestParseSampleMalformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"1.0,0.5",
		"1.0,0.5,0.5,extra",
		"then,0.5,0.5",
		"1.0,x,0.5",
		"1.0,0.5,y",
	} {
		t.Run(line, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSample(line)
			assert.Error(t, err, "line %q should not parse", line)
		})
	}
}
