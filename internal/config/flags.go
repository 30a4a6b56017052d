package config

import (
	"flag"
	"strings"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging and FPS reports")
	flagBackend    = flag.String("backend", "", "Window backend: sdl or glfw")
	flagShader     = flag.String("shader", "", "Comma-separated built-in shaders to show")
	flagAll        = flag.Bool("all", false, "Show every built-in shader")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagList       = flag.Bool("list", false, "List built-in shaders and exit")
	flagCheck      = flag.Bool("check", false, "Build every configured surface once and exit")
	flagSnapshot   = flag.String("snapshot", "", "With -check, save a PNG of every surface into this directory")
	flagSaveConfig = flag.String("save-config", "", "Write the effective config to this path (- for stdout, user for the config dir) and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// ListRequested reports whether -list was given.
func ListRequested() bool {
	return *flagList
}

// CheckRequested reports whether -check was given.
func CheckRequested() bool {
	return *flagCheck
}

// SnapshotDir returns the -snapshot directory, or "" when not given.
func SnapshotDir() string {
	return *flagSnapshot
}

// SaveConfigPath returns the -save-config target: "" when not given, "-"
// for stdout, otherwise a file path.
func SaveConfigPath() string {
	if *flagSaveConfig == "user" {
		return UserPath()
	}
	return *flagSaveConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, builtins []string) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Render.ShowFPS = true
	}
	if *flagBackend != "" {
		cfg.Window.Backend = *flagBackend
	}
	if *flagWindowed {
		cfg.Window.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Window.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}

	var names []string
	switch {
	case *flagAll:
		names = builtins
	case *flagShader != "":
		for _, n := range strings.Split(*flagShader, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) > 0 {
		cfg.Surfaces = make([]SurfaceConfig, 0, len(names))
		for _, n := range names {
			cfg.Surfaces = append(cfg.Surfaces, SurfaceConfig{Shader: n})
		}
	}
}
