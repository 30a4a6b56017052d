// Package gl41 implements gpu.Device on an OpenGL 4.1 core context.
package gl41

import (
	"fmt"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/logger"
)

var (
	initOnce sync.Once
	initErr  error
)

// Device issues GL calls against whatever context is current.
type Device struct{}

var _ gpu.Device = (*Device)(nil)

// New loads the GL function pointers on first use.
// IMPORTANT: must be called AFTER an OpenGL context is current!
func New() (*Device, error) {
	initOnce.Do(func() {
		if err := gl.Init(); err != nil {
			initErr = fmt.Errorf("failed to initialize OpenGL: %w", err)
			return
		}
		logger.Info("OpenGL initialized",
			zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
			zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
			zap.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))),
		)
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Device{}, nil
}

func stageEnum(s gpu.Stage) uint32 {
	if s == gpu.StageFragment {
		return gl.FRAGMENT_SHADER
	}
	return gl.VERTEX_SHADER
}

func primitiveEnum(p gpu.Primitive) uint32 {
	if p == gpu.TriangleStrip {
		return gl.TRIANGLE_STRIP
	}
	return gl.TRIANGLES
}

func (d *Device) CreateShader(stage gpu.Stage) gpu.Shader {
	return gpu.Shader(gl.CreateShader(stageEnum(stage)))
}

func (d *Device) ShaderSource(s gpu.Shader, src string) {
	csource, free := gl.Strs(src + "\x00")
	gl.ShaderSource(uint32(s), 1, csource, nil)
	free()
}

func (d *Device) CompileShader(s gpu.Shader) {
	gl.CompileShader(uint32(s))
}

func (d *Device) ShaderCompiled(s gpu.Shader) bool {
	var status int32
	gl.GetShaderiv(uint32(s), gl.COMPILE_STATUS, &status)
	return status != gl.FALSE
}

func (d *Device) ShaderInfoLog(s gpu.Shader) string {
	var logLen int32
	gl.GetShaderiv(uint32(s), gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 0 {
		return ""
	}
	log := make([]byte, logLen)
	gl.GetShaderInfoLog(uint32(s), logLen, nil, &log[0])
	return trimLog(log)
}

func (d *Device) DeleteShader(s gpu.Shader) {
	gl.DeleteShader(uint32(s))
}

func (d *Device) CreateProgram() gpu.Program {
	return gpu.Program(gl.CreateProgram())
}

func (d *Device) AttachShader(p gpu.Program, s gpu.Shader) {
	gl.AttachShader(uint32(p), uint32(s))
}

func (d *Device) DetachShader(p gpu.Program, s gpu.Shader) {
	gl.DetachShader(uint32(p), uint32(s))
}

func (d *Device) LinkProgram(p gpu.Program) {
	gl.LinkProgram(uint32(p))
}

func (d *Device) ProgramLinked(p gpu.Program) bool {
	var status int32
	gl.GetProgramiv(uint32(p), gl.LINK_STATUS, &status)
	return status != gl.FALSE
}

func (d *Device) ProgramInfoLog(p gpu.Program) string {
	var logLen int32
	gl.GetProgramiv(uint32(p), gl.INFO_LOG_LENGTH, &logLen)
	if logLen <= 0 {
		return ""
	}
	log := make([]byte, logLen)
	gl.GetProgramInfoLog(uint32(p), logLen, nil, &log[0])
	return trimLog(log)
}

func (d *Device) DeleteProgram(p gpu.Program) {
	gl.DeleteProgram(uint32(p))
}

func (d *Device) UseProgram(p gpu.Program) {
	gl.UseProgram(uint32(p))
}

func (d *Device) AttribLocation(p gpu.Program, name string) int32 {
	return gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) Uniform1f(loc int32, v float32) {
	gl.Uniform1f(loc, v)
}

func (d *Device) Uniform2f(loc int32, x, y float32) {
	gl.Uniform2f(loc, x, y)
}

func (d *Device) CreateVertexArray() gpu.VertexArray {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return gpu.VertexArray(vao)
}

func (d *Device) BindVertexArray(v gpu.VertexArray) {
	gl.BindVertexArray(uint32(v))
}

func (d *Device) DeleteVertexArray(v gpu.VertexArray) {
	vao := uint32(v)
	gl.DeleteVertexArrays(1, &vao)
}

func (d *Device) CreateBuffer() gpu.Buffer {
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	return gpu.Buffer(vbo)
}

func (d *Device) BindBuffer(b gpu.Buffer) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
}

func (d *Device) BufferData(data []float32) {
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.STATIC_DRAW)
		return
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	vbo := uint32(b)
	gl.DeleteBuffers(1, &vbo)
}

func (d *Device) EnableVertexAttribArray(slot uint32) {
	gl.EnableVertexAttribArray(slot)
}

func (d *Device) VertexAttribPointer(slot uint32, components int32, stride int32, offset int) {
	gl.VertexAttribPointer(slot, components, gl.FLOAT, false, stride, gl.PtrOffset(offset))
}

func (d *Device) ClearColor(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
}

func (d *Device) Clear() {
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *Device) Viewport(x, y, width, height int32) {
	gl.Viewport(x, y, width, height)
}

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int32) {
	gl.DrawArrays(primitiveEnum(mode), first, count)
}

func (d *Device) ReadPixels(x, y, width, height int32) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	pixels := make([]byte, int(width)*int(height)*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(x, y, width, height, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}

func (d *Device) Err() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return &gpu.Error{Code: code}
	}
	return nil
}

// trimLog drops the trailing NUL the driver writes into info logs.
func trimLog(log []byte) string {
	for len(log) > 0 && (log[len(log)-1] == 0 || log[len(log)-1] == '\n') {
		log = log[:len(log)-1]
	}
	return string(log)
}
