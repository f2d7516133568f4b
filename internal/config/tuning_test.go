package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.Equal(t, 10, cfg.GetWindowSize())
	assert.False(t, cfg.GetClampToSurface())
	assert.Equal(t, 125, cfg.GetStreamRateHz())
	assert.Equal(t, 60, cfg.GetRenderFPS())
	assert.Equal(t, 2*time.Second, cfg.GetCommandTimeout())
	assert.Equal(t, 20.0, cfg.GetMarkerSizeMM())
	assert.Equal(t, 1.0, cfg.GetMarkerBorderMM())
	assert.Equal(t, 10.0, cfg.GetEdgeOffsetMM())
	assert.Equal(t, 64, cfg.GetTraceBatchSize())
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"window_size": 20, "clamp_to_surface": true}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.GetWindowSize())
	assert.True(t, cfg.GetClampToSurface())
	// Omitted fields fall back to defaults.
	assert.Equal(t, 125, cfg.GetStreamRateHz())
	assert.Equal(t, 60, cfg.GetRenderFPS())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadTuningConfig(path)
	assert.ErrorContains(t, err, ".json extension")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		contents string
		wantErr  string
	}{
		{"window too small", `{"window_size": 0}`, "window_size"},
		{"rate too high", `{"stream_rate_hz": 1000}`, "stream_rate_hz"},
		{"fps zero", `{"render_fps": 0}`, "render_fps"},
		{"bad timeout", `{"command_timeout": "soon"}`, "command_timeout"},
		{"marker size zero", `{"marker_size_mm": 0}`, "marker_size_mm"},
		{"negative offset", `{"edge_offset_mm": -1}`, "edge_offset_mm"},
		{"batch zero", `{"trace_batch_size": 0}`, "trace_batch_size"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadTuningConfig(writeConfig(t, tc.contents))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	assert.Equal(t, 10, cfg.GetWindowSize())
	assert.Equal(t, 125, cfg.GetStreamRateHz())
}
