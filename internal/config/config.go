// Package config handles shaderwall configuration loading and management.
package config

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Config holds all settings.
type Config struct {
	Window   WindowConfig    `yaml:"window"`
	Render   RenderConfig    `yaml:"render"`
	Surfaces []SurfaceConfig `yaml:"surfaces"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// WindowConfig holds host window settings shared by every surface.
type WindowConfig struct {
	Backend    string `yaml:"backend"` // sdl or glfw
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`  // 0 keeps each surface's own size
	Height     int    `yaml:"height"` // 0 keeps each surface's own size
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"`
}

// RenderConfig holds the shader contract and drawing defaults.
type RenderConfig struct {
	Dialect           string     `yaml:"dialect"` // es100 or native
	ClearColor        [4]float32 `yaml:"clear_color"`
	PositionAttribute string     `yaml:"position_attribute"`
	TimeUniform       string     `yaml:"time_uniform"`
	ResolutionUniform string     `yaml:"resolution_uniform"`
	Geometry          string     `yaml:"geometry"` // triangles or strip
	ShowFPS           bool       `yaml:"show_fps"`
}

// SurfaceConfig describes one window. Either Shader names a built-in, or
// VertexFile and FragmentFile point at GLSL sources.
type SurfaceConfig struct {
	Name              string `yaml:"name"`
	Shader            string `yaml:"shader"`
	VertexFile        string `yaml:"vertex_file"`
	FragmentFile      string `yaml:"fragment_file"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	PositionAttribute string `yaml:"position_attribute"`
	Geometry          string `yaml:"geometry"`
	Dialect           string `yaml:"dialect"` // overrides render.dialect
}

// Label returns the name used for the surface's window and logger.
func (s SurfaceConfig) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Shader != "":
		return s.Shader
	default:
		return s.FragmentFile
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Backend:    "sdl",
			Title:      "shaderwall",
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
		},
		Render: RenderConfig{
			Dialect:           "es100",
			ClearColor:        [4]float32{0, 0, 0, 1},
			PositionAttribute: "aPosition",
			TimeUniform:       "uTime",
			ResolutionUniform: "uResolution",
			Geometry:          "triangles",
			ShowFPS:           false,
		},
		Surfaces: []SurfaceConfig{
			{Shader: "fractal"},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	switch strings.ToLower(c.Window.Backend) {
	case "sdl", "glfw":
	default:
		err = multierr.Append(err, fmt.Errorf("window.backend: unknown backend %q", c.Window.Backend))
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		err = multierr.Append(err, fmt.Errorf("window: negative size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.FPSLimit < 0 {
		err = multierr.Append(err, fmt.Errorf("window.fps_limit: %d is negative", c.Window.FPSLimit))
	}
	for i, v := range c.Render.ClearColor {
		if v < 0 || v > 1 {
			err = multierr.Append(err, fmt.Errorf("render.clear_color[%d]: %v is outside [0, 1]", i, v))
		}
	}
	if c.Render.PositionAttribute == "" {
		err = multierr.Append(err, fmt.Errorf("render.position_attribute: must not be empty"))
	}
	if len(c.Surfaces) == 0 {
		err = multierr.Append(err, fmt.Errorf("surfaces: at least one surface is required"))
	}
	for i, s := range c.Surfaces {
		hasFiles := s.VertexFile != "" || s.FragmentFile != ""
		switch {
		case s.Shader != "" && hasFiles:
			err = multierr.Append(err, fmt.Errorf("surfaces[%d]: set either shader or vertex_file/fragment_file, not both", i))
		case s.Shader == "" && (s.VertexFile == "" || s.FragmentFile == ""):
			err = multierr.Append(err, fmt.Errorf("surfaces[%d]: needs a shader name or both vertex_file and fragment_file", i))
		}
		if s.Width < 0 || s.Height < 0 {
			err = multierr.Append(err, fmt.Errorf("surfaces[%d]: negative size %dx%d", i, s.Width, s.Height))
		}
	}
	return err
}
