// Package gputest provides an in-memory gpu.Device for tests.
//
// The device understands just enough GLSL to behave like a driver for the
// cases the engine cares about: it rejects sources without a main function or
// with unbalanced braces, links only when every fragment input is written by
// the vertex stage, and drops attributes and uniforms that are declared but
// never used.
package gputest

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Draw records one DrawArrays call.
type Draw struct {
	Program  gpu.Program
	VAO      gpu.VertexArray
	Mode     gpu.Primitive
	First    int32
	Count    int32
	Viewport [4]int32
	Clear    [4]float32
}

// UniformWrite records one Uniform1f/Uniform2f call.
type UniformWrite struct {
	Program  gpu.Program
	Location int32
	Name     string
	Values   []float32
}

type shaderObj struct {
	stage    gpu.Stage
	src      string
	compiled bool
	log      string
}

type programObj struct {
	attached []gpu.Shader
	sources  map[gpu.Stage]string
	linked   bool
	log      string
	attribs  map[string]int32
	uniforms map[string]int32
}

// Device is a recording gpu.Device. The zero value is not usable; call New.
type Device struct {
	// FailLink forces every link to fail with LinkLog.
	FailLink bool
	LinkLog  string

	mu sync.Mutex

	nextID   uint32
	shaders  map[gpu.Shader]*shaderObj
	programs map[gpu.Program]*programObj
	buffers  map[gpu.Buffer][]float32
	vaos     map[gpu.VertexArray]map[uint32]int32

	current    gpu.Program
	vao        gpu.VertexArray
	buffer     gpu.Buffer
	viewport   [4]int32
	clearColor [4]float32
	lost       bool
	pending    []uint32

	calls         []string
	draws         []Draw
	writes        []UniformWrite
	doubleFrees   int
	invalidWrites int
}

var _ gpu.Device = (*Device)(nil)

// New returns an empty device.
func New() *Device {
	return &Device{
		shaders:  make(map[gpu.Shader]*shaderObj),
		programs: make(map[gpu.Program]*programObj),
		buffers:  make(map[gpu.Buffer][]float32),
		vaos:     make(map[gpu.VertexArray]map[uint32]int32),
	}
}

func (d *Device) record(name string) {
	d.calls = append(d.calls, name)
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) raise(code uint32) {
	d.pending = append(d.pending, code)
}

// LoseContext makes every following Err report a lost context.
func (d *Device) LoseContext() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

// SetCurrent simulates another consumer of the same context binding p.
func (d *Device) SetCurrent(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = p
}

func (d *Device) CreateShader(stage gpu.Stage) gpu.Shader {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateShader")
	s := gpu.Shader(d.id())
	d.shaders[s] = &shaderObj{stage: stage}
	return s
}

func (d *Device) ShaderSource(s gpu.Shader, src string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ShaderSource")
	if obj, ok := d.shaders[s]; ok {
		obj.src = src
		return
	}
	d.raise(gpu.CodeInvalidValue)
}

func (d *Device) CompileShader(s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CompileShader")
	obj, ok := d.shaders[s]
	if !ok {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	obj.log, obj.compiled = checkSource(obj.src)
}

func (d *Device) ShaderCompiled(s gpu.Shader) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ShaderCompiled")
	obj, ok := d.shaders[s]
	return ok && obj.compiled
}

func (d *Device) ShaderInfoLog(s gpu.Shader) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ShaderInfoLog")
	if obj, ok := d.shaders[s]; ok {
		return obj.log
	}
	return ""
}

func (d *Device) DeleteShader(s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteShader")
	if s == 0 {
		return
	}
	if _, ok := d.shaders[s]; !ok {
		d.doubleFrees++
		return
	}
	delete(d.shaders, s)
}

func (d *Device) CreateProgram() gpu.Program {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateProgram")
	p := gpu.Program(d.id())
	d.programs[p] = &programObj{sources: make(map[gpu.Stage]string)}
	return p
}

func (d *Device) AttachShader(p gpu.Program, s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AttachShader")
	prog, pok := d.programs[p]
	_, sok := d.shaders[s]
	if !pok || !sok {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	prog.attached = append(prog.attached, s)
}

func (d *Device) DetachShader(p gpu.Program, s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DetachShader")
	prog, ok := d.programs[p]
	if !ok {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	for i, a := range prog.attached {
		if a == s {
			prog.attached = append(prog.attached[:i], prog.attached[i+1:]...)
			return
		}
	}
	d.raise(gpu.CodeInvalidOperation)
}

func (d *Device) LinkProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("LinkProgram")
	prog, ok := d.programs[p]
	if !ok {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	prog.linked = false
	prog.attribs = make(map[string]int32)
	prog.uniforms = make(map[string]int32)

	for _, s := range prog.attached {
		obj := d.shaders[s]
		if obj == nil || !obj.compiled {
			prog.log = "error: attached shader is not compiled"
			return
		}
		prog.sources[obj.stage] = obj.src
	}
	vs, hasVS := prog.sources[gpu.StageVertex]
	fs, hasFS := prog.sources[gpu.StageFragment]
	if !hasVS || !hasFS {
		prog.log = "error: program needs a vertex and a fragment shader"
		return
	}
	if d.FailLink {
		prog.log = d.LinkLog
		return
	}
	outputs := declared(vertexOutputRe, vs)
	for _, in := range declared(fragmentInputRe, fs) {
		if !contains(outputs, in) {
			prog.log = fmt.Sprintf("error: fragment shader input %q has no matching vertex shader output", in)
			return
		}
	}

	var slot int32
	for _, name := range declared(attributeRe, vs) {
		if used(vs, name) {
			prog.attribs[name] = slot
			slot++
		}
	}
	var loc int32
	for _, src := range []string{vs, fs} {
		for _, name := range declared(uniformRe, src) {
			if _, seen := prog.uniforms[name]; seen {
				continue
			}
			if used(vs, name) || used(fs, name) {
				prog.uniforms[name] = loc
				loc++
			}
		}
	}
	prog.log = ""
	prog.linked = true
}

func (d *Device) ProgramLinked(p gpu.Program) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ProgramLinked")
	prog, ok := d.programs[p]
	return ok && prog.linked
}

func (d *Device) ProgramInfoLog(p gpu.Program) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ProgramInfoLog")
	if prog, ok := d.programs[p]; ok {
		return prog.log
	}
	return ""
}

func (d *Device) DeleteProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteProgram")
	if p == 0 {
		return
	}
	if _, ok := d.programs[p]; !ok {
		d.doubleFrees++
		return
	}
	delete(d.programs, p)
	if d.current == p {
		d.current = 0
	}
}

func (d *Device) UseProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UseProgram")
	if p != 0 {
		prog, ok := d.programs[p]
		if !ok || !prog.linked {
			d.raise(gpu.CodeInvalidOperation)
			return
		}
	}
	d.current = p
}

func (d *Device) AttribLocation(p gpu.Program, name string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AttribLocation")
	prog, ok := d.programs[p]
	if !ok || !prog.linked {
		d.raise(gpu.CodeInvalidOperation)
		return -1
	}
	if slot, ok := prog.attribs[name]; ok {
		return slot
	}
	return -1
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UniformLocation")
	prog, ok := d.programs[p]
	if !ok || !prog.linked {
		d.raise(gpu.CodeInvalidOperation)
		return -1
	}
	if loc, ok := prog.uniforms[name]; ok {
		return loc
	}
	return -1
}

func (d *Device) Uniform1f(loc int32, v float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Uniform1f")
	d.writeUniform(loc, v)
}

func (d *Device) Uniform2f(loc int32, x, y float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Uniform2f")
	d.writeUniform(loc, x, y)
}

func (d *Device) writeUniform(loc int32, values ...float32) {
	if loc < 0 {
		d.invalidWrites++
		return
	}
	prog, ok := d.programs[d.current]
	if !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	name := ""
	for n, l := range prog.uniforms {
		if l == loc {
			name = n
		}
	}
	if name == "" {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	d.writes = append(d.writes, UniformWrite{
		Program:  d.current,
		Location: loc,
		Name:     name,
		Values:   values,
	})
}

func (d *Device) CreateVertexArray() gpu.VertexArray {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateVertexArray")
	v := gpu.VertexArray(d.id())
	d.vaos[v] = make(map[uint32]int32)
	return v
}

func (d *Device) BindVertexArray(v gpu.VertexArray) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindVertexArray")
	if _, ok := d.vaos[v]; v != 0 && !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	d.vao = v
}

func (d *Device) DeleteVertexArray(v gpu.VertexArray) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteVertexArray")
	if v == 0 {
		return
	}
	if _, ok := d.vaos[v]; !ok {
		d.doubleFrees++
		return
	}
	delete(d.vaos, v)
	if d.vao == v {
		d.vao = 0
	}
}

func (d *Device) CreateBuffer() gpu.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateBuffer")
	b := gpu.Buffer(d.id())
	d.buffers[b] = nil
	return b
}

func (d *Device) BindBuffer(b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindBuffer")
	if _, ok := d.buffers[b]; b != 0 && !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	d.buffer = b
}

func (d *Device) BufferData(data []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BufferData")
	if d.buffer == 0 {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	d.buffers[d.buffer] = append([]float32(nil), data...)
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DeleteBuffer")
	if b == 0 {
		return
	}
	if _, ok := d.buffers[b]; !ok {
		d.doubleFrees++
		return
	}
	delete(d.buffers, b)
	if d.buffer == b {
		d.buffer = 0
	}
}

func (d *Device) EnableVertexAttribArray(slot uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EnableVertexAttribArray")
	attrs, ok := d.vaos[d.vao]
	if !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	if _, set := attrs[slot]; !set {
		attrs[slot] = 0
	}
}

func (d *Device) VertexAttribPointer(slot uint32, components int32, stride int32, offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("VertexAttribPointer")
	attrs, ok := d.vaos[d.vao]
	if !ok || d.buffer == 0 {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	if components < 1 || components > 4 {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	attrs[slot] = components
}

func (d *Device) ClearColor(r, g, b, a float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ClearColor")
	d.clearColor = [4]float32{r, g, b, a}
}

func (d *Device) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Clear")
}

func (d *Device) Viewport(x, y, width, height int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Viewport")
	if width < 0 || height < 0 {
		d.raise(gpu.CodeInvalidValue)
		return
	}
	d.viewport = [4]int32{x, y, width, height}
}

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DrawArrays")
	if _, ok := d.programs[d.current]; !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	if _, ok := d.vaos[d.vao]; !ok {
		d.raise(gpu.CodeInvalidOperation)
		return
	}
	d.draws = append(d.draws, Draw{
		Program:  d.current,
		VAO:      d.vao,
		Mode:     mode,
		First:    first,
		Count:    count,
		Viewport: d.viewport,
		Clear:    d.clearColor,
	})
}

// ReadPixels returns the clear colour for every pixel; the fake does not
// rasterize.
func (d *Device) ReadPixels(x, y, width, height int32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReadPixels")
	if width < 0 || height < 0 {
		d.raise(gpu.CodeInvalidValue)
		return nil
	}
	var px [4]byte
	for i, c := range d.clearColor {
		px[i] = byte(c*255 + 0.5)
	}
	out := make([]byte, int(width)*int(height)*4)
	for i := 0; i < len(out); i += 4 {
		copy(out[i:], px[:])
	}
	return out
}

func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Err")
	if d.lost {
		return &gpu.Error{Code: gpu.CodeContextLost}
	}
	if len(d.pending) == 0 {
		return nil
	}
	code := d.pending[0]
	d.pending = d.pending[1:]
	return &gpu.Error{Code: code}
}

// Calls returns a copy of the call log.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount returns the number of calls made so far.
func (d *Device) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// Draws returns a copy of the recorded draws.
func (d *Device) Draws() []Draw {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Draw(nil), d.draws...)
}

// Writes returns every recorded write to the named uniform.
func (d *Device) Writes(name string) []UniformWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []UniformWrite
	for _, w := range d.writes {
		if w.Name == name {
			out = append(out, w)
		}
	}
	return out
}

// Current returns the program bound for drawing.
func (d *Device) Current() gpu.Program {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// BufferContents returns the data uploaded to b.
func (d *Device) BufferContents(b gpu.Buffer) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float32(nil), d.buffers[b]...)
}

// AttribComponents returns the component count set for slot on v, or 0
// when the slot is enabled without a pointer, or -1 when it is not enabled.
func (d *Device) AttribComponents(v gpu.VertexArray, slot uint32) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.vaos[v][slot]
	if !ok {
		return -1
	}
	return c
}

// Live reports how many objects of each kind are still allocated.
func (d *Device) Live() (shaders, programs, buffers, vertexArrays int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shaders), len(d.programs), len(d.buffers), len(d.vaos)
}

// DoubleFrees counts deletes of objects that no longer exist.
func (d *Device) DoubleFrees() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doubleFrees
}

// InvalidUniformWrites counts writes to location -1.
func (d *Device) InvalidUniformWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidWrites
}

const precision = `(?:(?:lowp|mediump|highp)\s+)?`

var (
	attributeRe     = regexp.MustCompile(`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?(?:attribute|in)\s+` + precision + `\w+\s+(\w+)\s*;`)
	uniformRe       = regexp.MustCompile(`(?m)^\s*uniform\s+` + precision + `\w+\s+(\w+)\s*;`)
	vertexOutputRe  = regexp.MustCompile(`(?m)^\s*(?:varying|out)\s+` + precision + `\w+\s+(\w+)\s*;`)
	fragmentInputRe = regexp.MustCompile(`(?m)^\s*(?:varying|in)\s+` + precision + `\w+\s+(\w+)\s*;`)
	mainRe          = regexp.MustCompile(`\bvoid\s+main\s*\(\s*(?:void)?\s*\)`)
)

func declared(re *regexp.Regexp, src string) []string {
	var names []string
	for _, m := range re.FindAllStringSubmatch(stripComments(src), -1) {
		names = append(names, m[1])
	}
	return names
}

// used reports whether name appears beyond its declaration.
func used(src, name string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	return len(re.FindAllStringIndex(stripComments(src), -1)) > 1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var commentRe = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)

func stripComments(src string) string {
	return commentRe.ReplaceAllString(src, "")
}

// checkSource returns the info log and compile status for src.
func checkSource(src string) (string, bool) {
	body := stripComments(src)
	if strings.TrimSpace(body) == "" {
		return "ERROR: 0:1: '' : syntax error: empty shader", false
	}
	if strings.Contains(body, "#error") {
		return "ERROR: 0:1: '#error' : preprocessor error", false
	}
	depth := 0
	for i, line := range strings.Split(body, "\n") {
		for _, r := range line {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					return fmt.Sprintf("ERROR: 0:%d: '}' : syntax error", i+1), false
				}
			}
		}
	}
	if depth != 0 {
		return "ERROR: 0:1: '' : syntax error: unexpected end of file", false
	}
	if !mainRe.MatchString(body) {
		return "ERROR: 0:1: 'main' : function not defined", false
	}
	return "", true
}
