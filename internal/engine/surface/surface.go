package surface

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/render"
	"github.com/Faultbox/shaderwall/internal/engine/shader"
)

// surface is one mounted host and the GPU objects built for it.
type surface struct {
	handle  Handle
	host    Host
	log     *zap.Logger
	dev     gpu.Device
	prog    *shader.Program
	geom    *geometry.Buffer
	binding *gpu.CurrentProgram
	loop    *render.Loop

	// contextGone skips GPU deletes when the context can no longer be
	// made current.
	contextGone bool
}

// build runs compile, link, bind and upload against the host's current
// context.
func build(host Host, vertexSrc, fragmentSrc string, o Options, log *zap.Logger) (*surface, error) {
	dev := host.Device()
	s := &surface{host: host, log: log, dev: dev}

	prog, err := shader.Build(dev,
		shader.Prepare(shader.Vertex(vertexSrc), o.Dialect),
		shader.Prepare(shader.Fragment(fragmentSrc), o.Dialect),
	)
	if err != nil {
		return nil, fmt.Errorf("building program: %w", err)
	}
	s.prog = prog
	s.binding = gpu.NewCurrentProgram(dev, prog.Handle())
	s.binding.Assert()

	slot, err := prog.Attribute(o.PositionAttribute)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("binding vertex layout: %w", err)
	}

	uniforms := render.Uniforms{
		Time:       prog.Uniform(o.TimeUniform),
		Resolution: prog.Uniform(o.ResolutionUniform),
	}
	if !uniforms.Time.Bound {
		log.Debug("time uniform not active, writes skipped", zap.String("uniform", o.TimeUniform))
	}
	if !uniforms.Resolution.Bound {
		log.Debug("resolution uniform not active, writes skipped", zap.String("uniform", o.ResolutionUniform))
	}

	s.geom, err = geometry.UploadQuad(dev, o.Shape, slot)
	if err != nil {
		s.release()
		return nil, err
	}

	width, height := host.Size()
	s.loop = render.NewLoop(render.Config{
		Device:     dev,
		Binding:    s.binding,
		Geometry:   s.geom,
		Uniforms:   uniforms,
		Viewport:   render.Viewport{Width: width, Height: height},
		ClearColor: o.ClearColor,
		Release:    s.release,
		Logger:     log,
		ShowFPS:    o.ShowFPS,
	})

	log.Debug("program built",
		zap.Uint32("program", uint32(prog.Handle())),
		zap.Uint32("attribute_slot", slot),
		zap.Stringer("geometry", o.Shape),
		zap.Stringer("dialect", o.Dialect),
	)
	return s, nil
}

// release frees whatever build created. The loop calls it exactly once on
// cancel; build calls it on its own failure paths.
func (s *surface) release() {
	if s.contextGone {
		return
	}
	if s.binding != nil {
		s.binding.Clear()
	}
	s.geom.Release()
	s.prog.Release()
}
