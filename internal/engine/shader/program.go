package shader

import (
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Program is a linked GPU program and the bindings resolved against it.
type Program struct {
	dev        gpu.Device
	handle     gpu.Program
	linked     bool
	attributes map[string]uint32
	uniforms   map[string]Uniform
}

// Link attaches vs and fs to a new program and links it. Both shaders are
// detached and deleted whatever the outcome, so each program needs fresh
// compiles. On failure the program object is deleted too.
func Link(dev gpu.Device, vs, fs *Compiled) (*Program, error) {
	if err := checkLinkInput(vs, gpu.StageVertex); err != nil {
		vs.Release(dev)
		fs.Release(dev)
		return nil, err
	}
	if err := checkLinkInput(fs, gpu.StageFragment); err != nil {
		vs.Release(dev)
		fs.Release(dev)
		return nil, err
	}

	program := dev.CreateProgram()
	dev.AttachShader(program, vs.handle)
	dev.AttachShader(program, fs.handle)
	dev.LinkProgram(program)

	linked := dev.ProgramLinked(program)
	var log string
	if !linked {
		log = dev.ProgramInfoLog(program)
	}

	dev.DetachShader(program, vs.handle)
	dev.DetachShader(program, fs.handle)
	vs.Release(dev)
	fs.Release(dev)

	if !linked {
		dev.DeleteProgram(program)
		return nil, &LinkError{Log: log}
	}

	return &Program{
		dev:        dev,
		handle:     program,
		linked:     true,
		attributes: make(map[string]uint32),
		uniforms:   make(map[string]Uniform),
	}, nil
}

func checkLinkInput(c *Compiled, want gpu.Stage) error {
	if c == nil || !c.compiled || c.handle == 0 {
		return ErrNotCompiled
	}
	if c.stage != want {
		return &StageMismatchError{Want: want, Got: c.stage}
	}
	return nil
}

// Build compiles both stages and links them. A shader compiled before a
// failure is released before returning.
func Build(dev gpu.Device, vertex, fragment Source) (*Program, error) {
	vs, err := Compile(dev, vertex)
	if err != nil {
		return nil, err
	}
	fs, err := Compile(dev, fragment)
	if err != nil {
		vs.Release(dev)
		return nil, err
	}
	return Link(dev, vs, fs)
}

// Handle returns the GPU program object, or 0 after Release.
func (p *Program) Handle() gpu.Program {
	return p.handle
}

// Linked reports whether the program is linked and not yet released.
func (p *Program) Linked() bool {
	return p.linked
}

// Release deletes the program. Safe to call more than once.
func (p *Program) Release() {
	if p == nil || p.handle == 0 {
		return
	}
	p.dev.DeleteProgram(p.handle)
	p.handle = 0
	p.linked = false
	p.attributes = nil
	p.uniforms = nil
}
