// Package geometry owns the static full-screen quad drawn by every surface.
package geometry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Shape names a vertex layout for the full-screen quad.
type Shape int

const (
	// ShapeTriangles is six 2-component vertices drawn as two triangles.
	ShapeTriangles Shape = iota
	// ShapeStrip is four 3-component vertices drawn as a triangle strip.
	ShapeStrip
)

func (s Shape) String() string {
	switch s {
	case ShapeTriangles:
		return "triangles"
	case ShapeStrip:
		return "strip"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape parses a config value.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "triangles":
		return ShapeTriangles, nil
	case "strip", "triangle-strip":
		return ShapeStrip, nil
	default:
		return 0, fmt.Errorf("unknown quad geometry %q", s)
	}
}

// Clip-space square [-1,1]x[-1,1].
var (
	quadTriangles = []float32{
		-1, -1,
		1, -1,
		-1, 1,
		-1, 1,
		1, -1,
		1, 1,
	}
	quadStrip = []float32{
		-1, -1, 0,
		1, -1, 0,
		-1, 1, 0,
		1, 1, 0,
	}
)

// Quad returns the vertex data, component count and primitive for s.
func Quad(s Shape) ([]float32, int32, gpu.Primitive) {
	if s == ShapeStrip {
		return quadStrip, 3, gpu.TriangleStrip
	}
	return quadTriangles, 2, gpu.Triangles
}

// Layout describes how vertex data feeds one attribute.
type Layout struct {
	ComponentsPerVertex int32
	AttributeSlot       uint32
	Primitive           gpu.Primitive
}

// ErrBadLayout is returned by Upload when the data does not fit the layout.
var ErrBadLayout = errors.New("vertex data does not match layout")

// Buffer is an uploaded vertex array. Immutable after Upload.
type Buffer struct {
	dev       gpu.Device
	vao       gpu.VertexArray
	vbo       gpu.Buffer
	count     int32
	primitive gpu.Primitive
}

// Upload creates a vertex array and buffer for vertices, enables the layout's
// attribute slot and points it at the data. Call once per program, after the
// program is current.
func Upload(dev gpu.Device, vertices []float32, layout Layout) (*Buffer, error) {
	n := layout.ComponentsPerVertex
	if n < 1 || n > 4 {
		return nil, fmt.Errorf("%w: %d components per vertex", ErrBadLayout, n)
	}
	if len(vertices) == 0 || len(vertices)%int(n) != 0 {
		return nil, fmt.Errorf("%w: %d floats for %d components", ErrBadLayout, len(vertices), n)
	}

	b := &Buffer{
		dev:       dev,
		count:     int32(len(vertices)) / n,
		primitive: layout.Primitive,
	}

	b.vao = dev.CreateVertexArray()
	dev.BindVertexArray(b.vao)

	b.vbo = dev.CreateBuffer()
	dev.BindBuffer(b.vbo)
	dev.BufferData(vertices)

	dev.EnableVertexAttribArray(layout.AttributeSlot)
	dev.VertexAttribPointer(layout.AttributeSlot, n, n*4, 0)

	dev.BindBuffer(0)

	if err := dev.Err(); err != nil {
		b.Release()
		return nil, fmt.Errorf("uploading quad: %w", err)
	}
	return b, nil
}

// UploadQuad uploads the full-screen quad for shape at slot.
func UploadQuad(dev gpu.Device, shape Shape, slot uint32) (*Buffer, error) {
	vertices, n, prim := Quad(shape)
	return Upload(dev, vertices, Layout{
		ComponentsPerVertex: n,
		AttributeSlot:       slot,
		Primitive:           prim,
	})
}

// VertexCount returns the number of vertices drawn.
func (b *Buffer) VertexCount() int32 {
	return b.count
}

// Primitive returns the draw topology.
func (b *Buffer) Primitive() gpu.Primitive {
	return b.primitive
}

// Draw binds the vertex array and issues one non-indexed draw.
func (b *Buffer) Draw() {
	b.dev.BindVertexArray(b.vao)
	b.dev.DrawArrays(b.primitive, 0, b.count)
}

// Release deletes the vertex array and buffer. Safe to call more than once.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	if b.vao != 0 {
		b.dev.DeleteVertexArray(b.vao)
		b.vao = 0
	}
	if b.vbo != 0 {
		b.dev.DeleteBuffer(b.vbo)
		b.vbo = 0
	}
}
