// Package render drives the per-frame update and draw of one surface.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/shader"
)

// State is the loop lifecycle: Idle -> Running -> Cancelled.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotIdle is returned by Start on a loop that already started.
var ErrNotIdle = errors.New("render loop already started")

// DrawFault reports a device error surfaced while drawing a frame.
// The loop that returned it is Cancelled.
type DrawFault struct {
	Frame uint64
	Err   error
}

func (e *DrawFault) Error() string {
	return fmt.Sprintf("draw fault at frame %d: %v", e.Frame, e.Err)
}

func (e *DrawFault) Unwrap() error {
	return e.Err
}

// FrameSource delivers display-refresh timestamps. Next blocks until the
// next frame boundary.
type FrameSource interface {
	Next(ctx context.Context) (time.Duration, error)
}

// Uniforms are the per-frame inputs written before each draw.
type Uniforms struct {
	Time       shader.Uniform
	Resolution shader.Uniform
}

// Config holds everything a loop needs. The loop does not own Program or
// Geometry; Release is how the owner frees them, and it runs exactly once
// when the loop is cancelled.
type Config struct {
	Device     gpu.Device
	Binding    *gpu.CurrentProgram
	Geometry   *geometry.Buffer
	Uniforms   Uniforms
	Viewport   Viewport
	ClearColor [4]float32
	Release    func()
	Logger     *zap.Logger
	ShowFPS    bool
}

// Loop renders one program over one quad, once per frame callback.
// Step, Start and Cancel must be called on the thread that owns the
// context. A FrameSource drives Step; Resize may be called from any
// goroutine.
type Loop struct {
	dev        gpu.Device
	binding    *gpu.CurrentProgram
	geom       *geometry.Buffer
	uniforms   Uniforms
	clearColor [4]float32
	log        *zap.Logger
	showFPS    bool

	clock    Clock
	viewport sharedViewport
	state    atomic.Int32
	frames   atomic.Uint64

	release     func()
	releaseOnce sync.Once

	fpsMark   float32
	fpsFrames int
}

// NewLoop returns an Idle loop.
func NewLoop(cfg Config) *Loop {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		dev:        cfg.Device,
		binding:    cfg.Binding,
		geom:       cfg.Geometry,
		uniforms:   cfg.Uniforms,
		clearColor: cfg.ClearColor,
		log:        log,
		showFPS:    cfg.ShowFPS,
		release:    cfg.Release,
	}
	l.viewport.Store(cfg.Viewport)
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Frames returns the number of frames drawn.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Viewport returns the size the next frame will use.
func (l *Loop) Viewport() Viewport {
	return l.viewport.Load()
}

// Resize sets the size used from the next frame on.
func (l *Loop) Resize(vp Viewport) {
	l.viewport.Store(vp)
}

// Start moves the loop from Idle to Running.
func (l *Loop) Start() error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	l.dev.ClearColor(l.clearColor[0], l.clearColor[1], l.clearColor[2], l.clearColor[3])
	l.log.Debug("render loop started")
	return nil
}

// Cancel moves the loop to Cancelled and releases the owner's resources.
// Calling it again has no effect.
func (l *Loop) Cancel() {
	for {
		s := l.state.Load()
		if State(s) == StateCancelled {
			return
		}
		if l.state.CompareAndSwap(s, int32(StateCancelled)) {
			break
		}
	}
	l.log.Debug("render loop cancelled", zap.Uint64("frames", l.frames.Load()))
	l.releaseResources()
}

func (l *Loop) releaseResources() {
	l.releaseOnce.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}

// Step is the frame callback for timestamp t. It does nothing unless the
// loop is Running. A device error after the draw cancels the loop and is
// returned as a *DrawFault.
func (l *Loop) Step(t time.Duration) error {
	if l.State() != StateRunning {
		return nil
	}

	secs := l.clock.Advance(t)
	vp := l.viewport.Load()

	l.binding.Assert()

	if u := l.uniforms.Time; u.Bound {
		l.dev.Uniform1f(u.Location, secs)
	}
	if u := l.uniforms.Resolution; u.Bound {
		l.dev.Uniform2f(u.Location, float32(vp.Width), float32(vp.Height))
	}

	l.dev.ClearColor(l.clearColor[0], l.clearColor[1], l.clearColor[2], l.clearColor[3])
	l.dev.Clear()
	l.dev.Viewport(0, 0, int32(vp.Width), int32(vp.Height))
	l.geom.Draw()

	frame := l.frames.Add(1)
	if err := l.dev.Err(); err != nil {
		fault := &DrawFault{Frame: frame, Err: err}
		l.log.Error("draw fault, stopping render loop", zap.Error(fault))
		l.Cancel()
		return fault
	}

	if l.showFPS {
		l.reportFPS(secs)
	}
	return nil
}

func (l *Loop) reportFPS(secs float32) {
	l.fpsFrames++
	if secs-l.fpsMark < 1 {
		return
	}
	l.log.Debug("fps",
		zap.Int("count", l.fpsFrames),
		zap.Float32("elapsed", secs),
	)
	l.fpsMark = secs
	l.fpsFrames = 0
}
