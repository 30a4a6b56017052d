// Package gpu defines the minimal GPU feature set needed to draw a shaded
// full-screen quad: two shader stages, one program, one vertex array and
// float uniforms.
package gpu

import "fmt"

// Typed object handles. Zero is never a valid object.
type (
	Shader      uint32
	Program     uint32
	Buffer      uint32
	VertexArray uint32
)

// Stage identifies a programmable pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Primitive is the topology used by a non-indexed draw.
type Primitive int

const (
	Triangles Primitive = iota
	TriangleStrip
)

func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case TriangleStrip:
		return "triangle-strip"
	default:
		return fmt.Sprintf("primitive(%d)", int(p))
	}
}

// Device is a GPU context. All methods must be called on the thread that owns
// the context, with the context current.
type Device interface {
	CreateShader(stage Stage) Shader
	ShaderSource(s Shader, src string)
	CompileShader(s Shader)
	ShaderCompiled(s Shader) bool
	ShaderInfoLog(s Shader) string
	DeleteShader(s Shader)

	CreateProgram() Program
	AttachShader(p Program, s Shader)
	DetachShader(p Program, s Shader)
	LinkProgram(p Program)
	ProgramLinked(p Program) bool
	ProgramInfoLog(p Program) string
	DeleteProgram(p Program)
	UseProgram(p Program)

	// AttribLocation and UniformLocation return -1 when the name is not
	// an active input of the program.
	AttribLocation(p Program, name string) int32
	UniformLocation(p Program, name string) int32
	Uniform1f(loc int32, v float32)
	Uniform2f(loc int32, x, y float32)

	CreateVertexArray() VertexArray
	BindVertexArray(v VertexArray)
	DeleteVertexArray(v VertexArray)
	CreateBuffer() Buffer
	BindBuffer(b Buffer)
	BufferData(data []float32)
	DeleteBuffer(b Buffer)
	EnableVertexAttribArray(slot uint32)
	VertexAttribPointer(slot uint32, components int32, stride int32, offset int)

	ClearColor(r, g, b, a float32)
	Clear()
	Viewport(x, y, width, height int32)
	DrawArrays(mode Primitive, first, count int32)
	// ReadPixels returns the RGBA bytes of the draw buffer, bottom row
	// first.
	ReadPixels(x, y, width, height int32) []byte

	// Err returns the oldest pending device error, or nil.
	Err() error
}
