// Package glfwwindow implements window.Display on GLFW 3.3.
package glfwwindow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/gpu/gl41"
	"github.com/Faultbox/shaderwall/internal/engine/window"
	"github.com/Faultbox/shaderwall/internal/logger"
)

// Display is a window.Display backed by GLFW.
// IMPORTANT: New, Open, Next and Close must be called on the main thread.
type Display struct {
	events  window.Events
	pacer   *window.Pacer
	vsync   *window.VSync
	start   time.Time
	nextID  uint32
	windows map[*glfw.Window]*Window
	quit    bool
}

var _ window.Display = (*Display)(nil)

// New initializes GLFW.
func New(events window.Events, fpsLimit int) (*Display, error) {
	logger.Info("initializing GLFW", zap.String("version", glfw.GetVersionString()))
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init failed: %w", err)
	}
	return &Display{
		events:  events,
		pacer:   window.NewPacer(fpsLimit),
		vsync:   window.NewVSync(),
		start:   time.Now(),
		windows: make(map[*glfw.Window]*Window),
	}, nil
}

// Open creates a window with an OpenGL 4.1 core context and makes it
// current.
func (d *Display) Open(cfg window.Config) (window.Host, error) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.DoubleBuffer, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.CocoaRetinaFramebuffer, glfw.True)

	var monitor *glfw.Monitor
	if cfg.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	gw, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, monitor, nil)
	if err != nil {
		return nil, fmt.Errorf("glfw create window failed: %w", err)
	}
	gw.MakeContextCurrent()

	dev, err := gl41.New()
	if err != nil {
		gw.Destroy()
		return nil, err
	}

	d.nextID++
	// Swap interval applies to the current context.
	glfw.SwapInterval(d.vsync.Claim(d.nextID, cfg.VSync))
	w := &Window{
		display: d,
		id:      d.nextID,
		name:    cfg.Label(),
		glfw:    gw,
		device:  dev,
	}
	d.windows[gw] = w

	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		d.events.Resized(w.id, width, height)
	})
	gw.SetCloseCallback(func(cw *glfw.Window) {
		// The app decides when to destroy the window.
		cw.SetShouldClose(false)
		d.events.Closed(w.id)
	})
	gw.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			d.quit = true
		}
	})

	fw, fh := gw.GetFramebufferSize()
	logger.Info("window created",
		zap.Uint32("id", w.id),
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("drawable_width", fw),
		zap.Int("drawable_height", fh),
		zap.Bool("fullscreen", cfg.Fullscreen),
		zap.Bool("vsync", cfg.VSync),
	)
	return w, nil
}

// Next polls events, waits for the frame-rate cap and returns the time
// since the display was created.
func (d *Display) Next(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	glfw.PollEvents()
	if d.quit {
		return 0, window.ErrQuit
	}
	if err := d.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	return time.Since(d.start), nil
}

// Close destroys every open window and terminates GLFW.
func (d *Display) Close() {
	for _, w := range d.windows {
		w.Close()
	}
	logger.Info("terminating GLFW")
	glfw.Terminate()
}

// Window is a GLFW window and its context.
type Window struct {
	display *Display
	id      uint32
	name    string
	glfw    *glfw.Window
	device  gpu.Device
}

func (w *Window) ID() uint32         { return w.id }
func (w *Window) Name() string       { return w.name }
func (w *Window) Device() gpu.Device { return w.device }

// MakeCurrent makes the window's context current on this thread.
func (w *Window) MakeCurrent() error {
	if w.glfw == nil {
		return fmt.Errorf("window %d is closed", w.id)
	}
	w.glfw.MakeContextCurrent()
	return nil
}

// Present swaps the buffers.
func (w *Window) Present() {
	if w.glfw != nil {
		w.glfw.SwapBuffers()
	}
}

// Size returns the framebuffer size in device pixels.
func (w *Window) Size() (int, int) {
	if w.glfw == nil {
		return 0, 0
	}
	return w.glfw.GetFramebufferSize()
}

// Close destroys the window. Calling it twice is a no-op.
func (w *Window) Close() {
	if w.glfw == nil {
		return
	}
	logger.Info("closing window", zap.Uint32("id", w.id), zap.String("title", w.name))
	delete(w.display.windows, w.glfw)
	w.glfw.Destroy()
	w.glfw = nil

	if next, ok := w.display.vsync.Release(w.id); ok {
		for gw, nw := range w.display.windows {
			if nw.id == next {
				gw.MakeContextCurrent()
				glfw.SwapInterval(1)
			}
		}
	}
}
