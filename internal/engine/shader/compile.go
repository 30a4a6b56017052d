// Package shader compiles and links GLSL programs and resolves their
// attribute and uniform bindings.
package shader

import (
	"strings"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Source is one stage's GLSL text.
type Source struct {
	Stage gpu.Stage
	Text  string
}

// Vertex returns a vertex-stage source.
func Vertex(text string) Source {
	return Source{Stage: gpu.StageVertex, Text: text}
}

// Fragment returns a fragment-stage source.
func Fragment(text string) Source {
	return Source{Stage: gpu.StageFragment, Text: text}
}

// Compiled is a successfully compiled stage waiting to be linked.
// Link consumes it; it cannot be reused afterwards.
type Compiled struct {
	stage    gpu.Stage
	handle   gpu.Shader
	compiled bool
}

// Stage returns the pipeline stage the shader was compiled for.
func (c *Compiled) Stage() gpu.Stage {
	return c.stage
}

// Handle returns the GPU shader object.
func (c *Compiled) Handle() gpu.Shader {
	return c.handle
}

// Release deletes the shader object. Safe to call more than once.
func (c *Compiled) Release(dev gpu.Device) {
	if c == nil || c.handle == 0 {
		return
	}
	dev.DeleteShader(c.handle)
	c.handle = 0
	c.compiled = false
}

// Compile compiles a single stage. On failure the shader object is deleted
// and a *CompileError carrying the driver log is returned.
func Compile(dev gpu.Device, src Source) (*Compiled, error) {
	if strings.TrimSpace(src.Text) == "" {
		return nil, &CompileError{Stage: src.Stage, Log: "empty source"}
	}

	sh := dev.CreateShader(src.Stage)
	if sh == 0 {
		return nil, &CompileError{Stage: src.Stage, Log: "could not create shader object"}
	}
	dev.ShaderSource(sh, src.Text)
	dev.CompileShader(sh)

	if !dev.ShaderCompiled(sh) {
		log := dev.ShaderInfoLog(sh)
		dev.DeleteShader(sh)
		return nil, &CompileError{Stage: src.Stage, Log: log}
	}

	return &Compiled{stage: src.Stage, handle: sh, compiled: true}, nil
}
