// Package surface owns the lifecycle of rendering surfaces: building a
// program and quad when a host surface is mounted, resizing it, and tearing
// everything down on unmount.
package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/render"
	"github.com/Faultbox/shaderwall/internal/engine/shader"
	"github.com/Faultbox/shaderwall/internal/logger"
)

// Host is a drawable surface with its own GPU context.
type Host interface {
	Name() string
	Device() gpu.Device
	// MakeCurrent makes the host's context current on the calling thread.
	MakeCurrent() error
	// Present shows the frame just drawn.
	Present()
	// Size returns the drawable size in device pixels.
	Size() (width, height int)
}

// Handle identifies a mounted surface. Zero is never a valid handle.
type Handle uint64

// ErrUnknownHandle is returned for handles that are not mounted.
var ErrUnknownHandle = errors.New("unknown surface handle")

// Options configure how surfaces are built.
type Options struct {
	Dialect           shader.Dialect
	Shape             geometry.Shape
	PositionAttribute string
	TimeUniform       string
	ResolutionUniform string
	ClearColor        [4]float32
	ShowFPS           bool

	// OnStop is called when a surface stops on its own (draw fault or lost
	// context), after it has been unmounted.
	OnStop func(h Handle, err error)

	// BeforePresent runs after a frame is drawn and before it is shown,
	// with the host's context current.
	BeforePresent func(h Handle, host Host)
}

// DefaultOptions returns the options used by the built-in shaders.
func DefaultOptions() Options {
	return Options{
		Dialect:           shader.DialectES100,
		Shape:             geometry.ShapeTriangles,
		PositionAttribute: "aPosition",
		TimeUniform:       "uTime",
		ResolutionUniform: "uResolution",
		ClearColor:        [4]float32{0, 0, 0, 1},
	}
}

// MountOption overrides Options for a single surface.
type MountOption func(*Options)

// WithAttribute sets the position attribute name.
func WithAttribute(name string) MountOption {
	return func(o *Options) {
		if name != "" {
			o.PositionAttribute = name
		}
	}
}

// WithShape sets the quad layout.
func WithShape(s geometry.Shape) MountOption {
	return func(o *Options) { o.Shape = s }
}

// WithDialect sets the source dialect.
func WithDialect(d shader.Dialect) MountOption {
	return func(o *Options) { o.Dialect = d }
}

// Info is a snapshot of a mounted surface.
type Info struct {
	Name     string
	Program  gpu.Program
	State    render.State
	Frames   uint64
	Viewport render.Viewport

	Primitive gpu.Primitive
	Vertices  int32
}

// Manager mounts surfaces and steps their render loops.
type Manager struct {
	opts Options

	mu       sync.Mutex
	next     Handle
	surfaces map[Handle]*surface
	order    []Handle
}

// NewManager returns an empty manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		surfaces: make(map[Handle]*surface),
	}
}

// Mount builds a program from the two sources on host and starts its render
// loop. Any GPU object created before a failure is released before
// returning; the failure leaves other surfaces untouched.
func (m *Manager) Mount(host Host, vertexSrc, fragmentSrc string, opts ...MountOption) (Handle, error) {
	o := m.opts
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Named(host.Name())

	if err := host.MakeCurrent(); err != nil {
		return 0, fmt.Errorf("making context current: %w", err)
	}

	s, err := build(host, vertexSrc, fragmentSrc, o, log)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.next++
	s.handle = m.next
	m.surfaces[s.handle] = s
	m.order = append(m.order, s.handle)
	m.mu.Unlock()

	if err := s.loop.Start(); err != nil {
		_ = m.Unmount(s.handle)
		return 0, err
	}

	vp := s.loop.Viewport()
	log.Info("surface mounted",
		zap.Uint64("handle", uint64(s.handle)),
		zap.Uint32("program", uint32(s.binding.Program())),
		zap.Int("width", vp.Width),
		zap.Int("height", vp.Height),
	)
	return s.handle, nil
}

// Resize updates the viewport of h. The program is not rebuilt; the next
// frame uses the new size.
func (m *Manager) Resize(h Handle, width, height int) error {
	s := m.lookup(h)
	if s == nil {
		return fmt.Errorf("resize %d: %w", h, ErrUnknownHandle)
	}
	s.loop.Resize(render.Viewport{Width: width, Height: height})
	s.log.Debug("surface resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return nil
}

// Unmount cancels the render loop of h and releases its GPU objects.
// Unmounting an unknown or already unmounted handle does nothing.
func (m *Manager) Unmount(h Handle) error {
	s := m.remove(h)
	if s == nil {
		return nil
	}

	var err error
	if cerr := s.host.MakeCurrent(); cerr != nil {
		// The context is gone and took its objects with it.
		s.contextGone = true
		err = fmt.Errorf("unmount %d: making context current: %w", h, cerr)
	}
	s.loop.Cancel()
	s.log.Info("surface unmounted",
		zap.Uint64("handle", uint64(h)),
		zap.Uint64("frames", s.loop.Frames()),
	)
	return err
}

// Close unmounts every surface.
func (m *Manager) Close() error {
	var err error
	for _, h := range m.Handles() {
		err = multierr.Append(err, m.Unmount(h))
	}
	return err
}

// Handles returns the mounted handles in mount order.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Handle(nil), m.order...)
}

// Len returns the number of mounted surfaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Info returns a snapshot of h.
func (m *Manager) Info(h Handle) (Info, bool) {
	s := m.lookup(h)
	if s == nil {
		return Info{}, false
	}
	return Info{
		Name:     s.host.Name(),
		Program:  s.prog.Handle(),
		State:    s.loop.State(),
		Frames:   s.loop.Frames(),
		Viewport: s.loop.Viewport(),

		Primitive: s.geom.Primitive(),
		Vertices:  s.geom.VertexCount(),
	}, true
}

// Step runs one frame callback on every mounted surface, in mount order.
// A surface that fails is unmounted and reported through OnStop; the others
// keep running.
func (m *Manager) Step(t time.Duration) {
	for _, h := range m.Handles() {
		s := m.lookup(h)
		if s == nil {
			continue
		}
		if err := s.host.MakeCurrent(); err != nil {
			m.stop(s, fmt.Errorf("making context current: %w", err))
			continue
		}
		if err := s.loop.Step(t); err != nil {
			m.stop(s, err)
			continue
		}
		if m.opts.BeforePresent != nil {
			m.opts.BeforePresent(s.handle, s.host)
		}
		s.host.Present()
	}
}

func (m *Manager) stop(s *surface, err error) {
	s.log.Error("surface stopped", zap.Error(err))
	if uerr := m.Unmount(s.handle); uerr != nil {
		s.log.Warn("unmount after stop", zap.Error(uerr))
	}
	if m.opts.OnStop != nil {
		m.opts.OnStop(s.handle, err)
	}
}

// Run steps every surface once per frame from src until ctx is done, src
// fails, or no surfaces remain.
func (m *Manager) Run(ctx context.Context, src render.FrameSource) error {
	for m.Len() > 0 {
		t, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting for frame: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		m.Step(t)
	}
	return nil
}

func (m *Manager) lookup(h Handle) *surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surfaces[h]
}

func (m *Manager) remove(h Handle) *surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[h]
	if !ok {
		return nil
	}
	delete(m.surfaces, h)
	for i, o := range m.order {
		if o == h {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return s
}
