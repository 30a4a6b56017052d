// Package app wires configuration, windows and the surface manager together.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/catalog"
	"github.com/Faultbox/shaderwall/internal/config"
	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/shader"
	"github.com/Faultbox/shaderwall/internal/engine/snapshot"
	"github.com/Faultbox/shaderwall/internal/engine/surface"
	"github.com/Faultbox/shaderwall/internal/engine/window"
	"github.com/Faultbox/shaderwall/internal/engine/window/glfwwindow"
	"github.com/Faultbox/shaderwall/internal/logger"
)

// Fallback canvas size when neither config nor catalog gives one.
const (
	defaultWidth  = 800
	defaultHeight = 600
)

// DisplayFunc opens a window.Display delivering events to the given
// callbacks.
type DisplayFunc func(events window.Events, fpsLimit int) (window.Display, error)

// Backend returns the DisplayFunc for a configured backend name.
func Backend(name string) (DisplayFunc, error) {
	switch strings.ToLower(name) {
	case "", "sdl":
		return func(ev window.Events, fps int) (window.Display, error) {
			d, err := window.NewSDL(ev, fps)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	case "glfw":
		return func(ev window.Events, fps int) (window.Display, error) {
			d, err := glfwwindow.New(ev, fps)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown window backend %q", name)
	}
}

// App is a set of shader surfaces, one per window.
type App struct {
	cfg     *config.Config
	display window.Display
	manager *surface.Manager

	hosts   map[surface.Handle]window.Host
	handles map[uint32]surface.Handle

	snapshots *snapshot.Writer

	mountErr error
	stopErr  error
	snapErr  error
}

// New opens a display and mounts every configured surface. A surface that
// fails to build is logged and skipped; New fails only when none could be
// mounted.
func New(cfg *config.Config, open DisplayFunc) (*App, error) {
	dialect, err := shader.ParseDialect(cfg.Render.Dialect)
	if err != nil {
		return nil, err
	}
	shape, err := geometry.ParseShape(cfg.Render.Geometry)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		hosts:   make(map[surface.Handle]window.Host),
		handles: make(map[uint32]surface.Handle),
	}
	a.manager = surface.NewManager(surface.Options{
		Dialect:           dialect,
		Shape:             shape,
		PositionAttribute: cfg.Render.PositionAttribute,
		TimeUniform:       cfg.Render.TimeUniform,
		ResolutionUniform: cfg.Render.ResolutionUniform,
		ClearColor:        cfg.Render.ClearColor,
		ShowFPS:           cfg.Render.ShowFPS,
		OnStop:            a.onStop,
		BeforePresent:     a.beforePresent,
	})

	a.display, err = open(window.Events{
		OnResize: a.onResize,
		OnClose:  a.onClose,
	}, cfg.Window.FPSLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to open display: %w", err)
	}

	for _, sc := range cfg.Surfaces {
		if err := a.mount(sc); err != nil {
			logger.Error("surface skipped", zap.String("surface", sc.Label()), zap.Error(err))
			a.mountErr = multierr.Append(a.mountErr, fmt.Errorf("%s: %w", sc.Label(), err))
		}
	}
	if a.manager.Len() == 0 {
		a.display.Close()
		return nil, fmt.Errorf("no surface could be mounted: %w", a.mountErr)
	}

	logger.Info("surfaces mounted",
		zap.Int("mounted", a.manager.Len()),
		zap.Int("configured", len(cfg.Surfaces)),
	)
	return a, nil
}

// program is a surface config resolved to sources and a canvas size.
type program struct {
	label     string
	vertex    string
	fragment  string
	attribute string
	shape     geometry.Shape
	dialect   shader.Dialect
	width     int
	height    int
}

func resolve(sc config.SurfaceConfig, win config.WindowConfig, render config.RenderConfig) (program, error) {
	p := program{label: sc.Label(), attribute: sc.PositionAttribute}

	shapeName := render.Geometry
	if sc.Shader != "" {
		e, err := catalog.Lookup(sc.Shader)
		if err != nil {
			return p, err
		}
		p.vertex, p.fragment = e.Vertex, e.Fragment
		p.width, p.height = e.Width, e.Height
		if p.attribute == "" {
			p.attribute = e.Attribute
		}
		shapeName = e.Shape.String()
	} else {
		vs, err := os.ReadFile(sc.VertexFile)
		if err != nil {
			return p, fmt.Errorf("reading vertex shader: %w", err)
		}
		fs, err := os.ReadFile(sc.FragmentFile)
		if err != nil {
			return p, fmt.Errorf("reading fragment shader: %w", err)
		}
		p.vertex, p.fragment = string(vs), string(fs)
	}
	if sc.Geometry != "" {
		shapeName = sc.Geometry
	}
	shape, err := geometry.ParseShape(shapeName)
	if err != nil {
		return p, err
	}
	p.shape = shape

	dialectName := render.Dialect
	if sc.Dialect != "" {
		dialectName = sc.Dialect
	}
	if p.dialect, err = shader.ParseDialect(dialectName); err != nil {
		return p, err
	}

	// Surface size beats the window-wide size, which beats the catalog.
	if win.Width > 0 {
		p.width = win.Width
	}
	if win.Height > 0 {
		p.height = win.Height
	}
	if sc.Width > 0 {
		p.width = sc.Width
	}
	if sc.Height > 0 {
		p.height = sc.Height
	}
	if p.width <= 0 {
		p.width = defaultWidth
	}
	if p.height <= 0 {
		p.height = defaultHeight
	}
	return p, nil
}

func (a *App) mount(sc config.SurfaceConfig) error {
	p, err := resolve(sc, a.cfg.Window, a.cfg.Render)
	if err != nil {
		return err
	}

	title := p.label
	if a.cfg.Window.Title != "" {
		title = a.cfg.Window.Title + " - " + p.label
	}
	host, err := a.display.Open(window.Config{
		Name:       p.label,
		Title:      title,
		Width:      p.width,
		Height:     p.height,
		Fullscreen: a.cfg.Window.Fullscreen,
		VSync:      a.cfg.Window.VSync,
	})
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	h, err := a.manager.Mount(host, p.vertex, p.fragment,
		surface.WithAttribute(p.attribute),
		surface.WithShape(p.shape),
		surface.WithDialect(p.dialect),
	)
	if err != nil {
		host.Close()
		return err
	}
	a.hosts[h] = host
	a.handles[host.ID()] = h
	return nil
}

// Run draws every surface until ctx is done, the user quits or the last
// window closes.
func (a *App) Run(ctx context.Context) error {
	logger.Info("starting render loop")
	err := a.manager.Run(ctx, a.display)
	if errors.Is(err, window.ErrQuit) {
		logger.Info("quit requested")
		return nil
	}
	return err
}

// Check draws one frame on every mounted surface and reports every surface
// that failed to mount or to draw. When snapshotDir is set, each drawn frame
// is also saved there as a PNG.
func (a *App) Check(snapshotDir string) error {
	if snapshotDir != "" {
		a.snapshots = snapshot.NewWriter(snapshotDir)
		defer func() { a.snapshots = nil }()
	}
	a.manager.Step(0)
	return multierr.Combine(a.mountErr, a.stopErr, a.snapErr)
}

// Mounted returns the number of surfaces still drawing.
func (a *App) Mounted() int {
	return a.manager.Len()
}

// Close unmounts every surface and closes the display.
func (a *App) Close() error {
	logger.Info("closing surfaces")
	err := a.manager.Close()
	for h, host := range a.hosts {
		host.Close()
		delete(a.hosts, h)
	}
	a.display.Close()
	return err
}

func (a *App) beforePresent(h surface.Handle, host surface.Host) {
	if a.snapshots == nil {
		return
	}
	width, height := host.Size()
	path, err := a.snapshots.Capture(host.Device(), host.Name(), width, height)
	if err != nil {
		a.snapErr = multierr.Append(a.snapErr, fmt.Errorf("%s: snapshot: %w", host.Name(), err))
		return
	}
	logger.Info("snapshot saved", zap.String("surface", host.Name()), zap.String("path", path))
}

func (a *App) onResize(id uint32, width, height int) {
	h, ok := a.handles[id]
	if !ok {
		return
	}
	if err := a.manager.Resize(h, width, height); err != nil {
		logger.Warn("resize ignored", zap.Uint32("window", id), zap.Error(err))
	}
}

func (a *App) onClose(id uint32) {
	h, ok := a.handles[id]
	if !ok {
		return
	}
	if err := a.manager.Unmount(h); err != nil {
		logger.Warn("unmount on close", zap.Uint32("window", id), zap.Error(err))
	}
	a.closeHost(h)
}

// onStop runs after the manager has already unmounted h.
func (a *App) onStop(h surface.Handle, err error) {
	host, ok := a.hosts[h]
	label := fmt.Sprintf("surface %d", h)
	if ok {
		label = host.Name()
	}
	a.stopErr = multierr.Append(a.stopErr, fmt.Errorf("%s: %w", label, err))
	a.closeHost(h)
}

func (a *App) closeHost(h surface.Handle) {
	host, ok := a.hosts[h]
	if !ok {
		return
	}
	delete(a.hosts, h)
	delete(a.handles, host.ID())
	host.Close()
}
