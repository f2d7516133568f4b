package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for pipeline tuning
// parameters. The schema matches the /api/config endpoint so the same JSON
// can be used for both startup configuration and inspection at runtime.
// All fields are pointers: omitted fields keep their defaults, so partial
// configs are safe.
type TuningConfig struct {
	// Smoothing params
	WindowSize     *int  `json:"window_size,omitempty"`      // sliding-window capacity (points)
	ClampToSurface *bool `json:"clamp_to_surface,omitempty"` // clamp overshoot instead of passing through

	// Stream params
	StreamRateHz   *int    `json:"stream_rate_hz,omitempty"`  // gaze-in-screen sample rate requested from the backend
	CommandTimeout *string `json:"command_timeout,omitempty"` // duration string like "2s"

	// Render params
	RenderFPS *int `json:"render_fps,omitempty"` // marker redraw cadence

	// Marker board geometry (physical units)
	MarkerSizeMM   *float64 `json:"marker_size_mm,omitempty"`
	MarkerBorderMM *float64 `json:"marker_border_mm,omitempty"`
	EdgeOffsetMM   *float64 `json:"edge_offset_mm,omitempty"`

	// Trace persistence
	TraceBatchSize *int `json:"trace_batch_size,omitempty"` // points per insert batch
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and to be under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into an empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}

	if c.StreamRateHz != nil && (*c.StreamRateHz < 1 || *c.StreamRateHz > 500) {
		return fmt.Errorf("stream_rate_hz must be between 1 and 500, got %d", *c.StreamRateHz)
	}

	if c.RenderFPS != nil && (*c.RenderFPS < 1 || *c.RenderFPS > 240) {
		return fmt.Errorf("render_fps must be between 1 and 240, got %d", *c.RenderFPS)
	}

	if c.CommandTimeout != nil && *c.CommandTimeout != "" {
		if _, err := time.ParseDuration(*c.CommandTimeout); err != nil {
			return fmt.Errorf("invalid command_timeout '%s': %w", *c.CommandTimeout, err)
		}
	}

	if c.MarkerSizeMM != nil && *c.MarkerSizeMM <= 0 {
		return fmt.Errorf("marker_size_mm must be positive, got %f", *c.MarkerSizeMM)
	}

	if c.EdgeOffsetMM != nil && *c.EdgeOffsetMM < 0 {
		return fmt.Errorf("edge_offset_mm must be non-negative, got %f", *c.EdgeOffsetMM)
	}

	if c.TraceBatchSize != nil && *c.TraceBatchSize < 1 {
		return fmt.Errorf("trace_batch_size must be at least 1, got %d", *c.TraceBatchSize)
	}

	return nil
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetClampToSurface returns the clamp_to_surface value or the default.
// The reference tracker behaviour is to pass overshoot through unclamped.
func (c *TuningConfig) GetClampToSurface() bool {
	if c.ClampToSurface == nil {
		return false
	}
	return *c.ClampToSurface
}

// GetStreamRateHz returns the stream_rate_hz value or the default.
func (c *TuningConfig) GetStreamRateHz() int {
	if c.StreamRateHz == nil {
		return 125
	}
	return *c.StreamRateHz
}

// GetCommandTimeout parses and returns the CommandTimeout as a
// time.Duration.
func (c *TuningConfig) GetCommandTimeout() time.Duration {
	if c.CommandTimeout == nil || *c.CommandTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.CommandTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetRenderFPS returns the render_fps value or the default.
func (c *TuningConfig) GetRenderFPS() int {
	if c.RenderFPS == nil {
		return 60
	}
	return *c.RenderFPS
}

// GetMarkerSizeMM returns the marker_size_mm value or the default.
func (c *TuningConfig) GetMarkerSizeMM() float64 {
	if c.MarkerSizeMM == nil {
		return 20
	}
	return *c.MarkerSizeMM
}

// GetMarkerBorderMM returns the marker_border_mm value or the default.
func (c *TuningConfig) GetMarkerBorderMM() float64 {
	if c.MarkerBorderMM == nil {
		return 1
	}
	return *c.MarkerBorderMM
}

// GetEdgeOffsetMM returns the edge_offset_mm value or the default.
func (c *TuningConfig) GetEdgeOffsetMM() float64 {
	if c.EdgeOffsetMM == nil {
		return 10
	}
	return *c.EdgeOffsetMM
}

// GetTraceBatchSize returns the trace_batch_size value or the default.
func (c *TuningConfig) GetTraceBatchSize() int {
	if c.TraceBatchSize == nil {
		return 64
	}
	return *c.TraceBatchSize
}
