// Package window handles SDL2 windows and their OpenGL contexts.
package window

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/gpu/gl41"
	"github.com/Faultbox/shaderwall/internal/logger"
)

func init() {
	// OpenGL calls must be made from the main thread
	runtime.LockOSThread()
}

// SDL is a Display backed by SDL2. Every window gets its own GL context.
type SDL struct {
	events  Events
	pacer   *Pacer
	vsync   *VSync
	start   time.Time
	windows map[uint32]*Window
}

var _ Display = (*SDL)(nil)

// NewSDL initializes SDL2. fpsLimit caps Next when vsync is off or not
// honored by the driver; zero disables the cap.
func NewSDL(events Events, fpsLimit int) (*SDL, error) {
	logger.Info("initializing SDL2")
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}
	return &SDL{
		events:  events,
		pacer:   NewPacer(fpsLimit),
		vsync:   NewVSync(),
		start:   time.Now(),
		windows: make(map[uint32]*Window),
	}, nil
}

// Open creates a window and makes its context current.
func (d *SDL) Open(cfg Config) (Host, error) {
	// We want OpenGL 4.1 Core Profile (max supported on macOS)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 4)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 1)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	sdl.GLSetAttribute(sdl.GL_DOUBLEBUFFER, 1)

	flags := uint32(sdl.WINDOW_OPENGL | sdl.WINDOW_SHOWN | sdl.WINDOW_RESIZABLE | sdl.WINDOW_ALLOW_HIGHDPI)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	sw, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width),
		int32(cfg.Height),
		flags,
	)
	if err != nil {
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	ctx, err := sw.GLCreateContext()
	if err != nil {
		sw.Destroy()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	dev, err := gl41.New()
	if err != nil {
		sdl.GLDeleteContext(ctx)
		sw.Destroy()
		return nil, err
	}

	id, err := sw.GetID()
	if err != nil {
		sdl.GLDeleteContext(ctx)
		sw.Destroy()
		return nil, fmt.Errorf("SDL_GetWindowID failed: %w", err)
	}

	// Swap interval applies to the current context.
	setSwapInterval(id, d.vsync.Claim(id, cfg.VSync))

	w := &Window{
		display:   d,
		id:        id,
		name:      cfg.Label(),
		sdlWindow: sw,
		glContext: ctx,
		device:    dev,
	}
	d.windows[id] = w

	dw, dh := w.Size()
	logger.Info("window created",
		zap.Uint32("id", id),
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("drawable_width", dw),
		zap.Int("drawable_height", dh),
		zap.Bool("fullscreen", cfg.Fullscreen),
		zap.Bool("vsync", cfg.VSync),
	)
	return w, nil
}

// Next drains pending events, waits for the frame-rate cap and returns the
// time since the display was created.
func (d *SDL) Next(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if err := d.handle(event); err != nil {
			return 0, err
		}
	}
	if err := d.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	return time.Since(d.start), nil
}

func (d *SDL) handle(event sdl.Event) error {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return ErrQuit

	case *sdl.WindowEvent:
		w, ok := d.windows[e.WindowID]
		if !ok {
			return nil
		}
		switch e.Event {
		case sdl.WINDOWEVENT_SIZE_CHANGED:
			// Drawable size, not window size (HiDPI)
			width, height := w.Size()
			d.events.Resized(w.id, width, height)
		case sdl.WINDOWEVENT_CLOSE:
			d.events.Closed(w.id)
		}

	case *sdl.KeyboardEvent:
		if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
			return ErrQuit
		}
	}
	return nil
}

// Close destroys every open window and shuts SDL2 down.
func (d *SDL) Close() {
	for _, w := range d.windows {
		w.Close()
	}
	logger.Info("closing SDL2")
	sdl.Quit()
}

// Window wraps an SDL2 window and its OpenGL context.
type Window struct {
	display   *SDL
	id        uint32
	name      string
	sdlWindow *sdl.Window
	glContext sdl.GLContext
	device    gpu.Device
}

func (w *Window) ID() uint32         { return w.id }
func (w *Window) Name() string       { return w.name }
func (w *Window) Device() gpu.Device { return w.device }

// MakeCurrent makes the window's context current on this thread.
func (w *Window) MakeCurrent() error {
	if w.sdlWindow == nil {
		return fmt.Errorf("window %d is closed", w.id)
	}
	return w.sdlWindow.GLMakeCurrent(w.glContext)
}

// Present swaps the OpenGL buffers.
func (w *Window) Present() {
	if w.sdlWindow != nil {
		w.sdlWindow.GLSwap()
	}
}

// Size returns the drawable size in device pixels.
func (w *Window) Size() (int, int) {
	if w.sdlWindow == nil {
		return 0, 0
	}
	width, height := w.sdlWindow.GLGetDrawableSize()
	return int(width), int(height)
}

// Close destroys the context and the window. Calling it twice is a no-op.
func (w *Window) Close() {
	if w.sdlWindow == nil {
		return
	}
	logger.Info("closing window", zap.Uint32("id", w.id), zap.String("title", w.name))

	if w.glContext != nil {
		sdl.GLDeleteContext(w.glContext)
		w.glContext = nil
	}
	w.sdlWindow.Destroy()
	w.sdlWindow = nil
	delete(w.display.windows, w.id)

	if next, ok := w.display.vsync.Release(w.id); ok {
		if nw := w.display.windows[next]; nw != nil && nw.MakeCurrent() == nil {
			setSwapInterval(next, 1)
		}
	}
}

func setSwapInterval(id uint32, interval int) {
	if err := sdl.GLSetSwapInterval(interval); err != nil {
		logger.Warn("failed to set swap interval",
			zap.Uint32("window", id),
			zap.Int("interval", interval),
			zap.Error(err),
		)
	}
}
