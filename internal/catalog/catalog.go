// Package catalog holds the built-in shader demos.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/Faultbox/shaderwall/internal/engine/geometry"
)

// PassthroughVertexShader maps a 2D clip-space quad and hands texture
// coordinates to the fragment stage.
//
//go:embed shaders/passthrough.vert
var PassthroughVertexShader string

// StripVertexShader forwards a vec4 position unchanged.
//
//go:embed shaders/strip.vert
var StripVertexShader string

//go:embed shaders/bands.frag
var bandsFragmentShader string

//go:embed shaders/rings.frag
var ringsFragmentShader string

//go:embed shaders/zoomey.frag
var zoomeyFragmentShader string

//go:embed shaders/zoomey_distance.frag
var zoomeyDistanceFragmentShader string

//go:embed shaders/pulse.frag
var pulseFragmentShader string

//go:embed shaders/fractal.frag
var fractalFragmentShader string

//go:embed shaders/red.frag
var redFragmentShader string

// Entry is one built-in shader program and the surface it is drawn on.
type Entry struct {
	Name        string
	Description string
	Vertex      string
	Fragment    string
	// Attribute is the position attribute; empty means the default.
	Attribute string
	Shape     geometry.Shape
	Width     int
	Height    int
}

var builtin = []Entry{
	{
		Name:        "fractal",
		Description: "five layered palette rings, each octave scrolling at its own speed",
		Vertex:      PassthroughVertexShader,
		Fragment:    fractalFragmentShader,
		Width:       1600,
		Height:      1200,
	},
	{
		Name:        "pulse",
		Description: "repeating palette cells pulsing outward",
		Vertex:      PassthroughVertexShader,
		Fragment:    pulseFragmentShader,
		Width:       1600,
		Height:      1200,
	},
	{
		Name:        "zoomey-distance",
		Description: "glowing rings coloured by distance from the centre",
		Vertex:      PassthroughVertexShader,
		Fragment:    zoomeyDistanceFragmentShader,
		Width:       1600,
		Height:      1200,
	},
	{
		Name:        "zoomey",
		Description: "glowing rings zooming out, one colour per frame",
		Vertex:      PassthroughVertexShader,
		Fragment:    zoomeyFragmentShader,
		Width:       1600,
		Height:      1200,
	},
	{
		Name:        "rings",
		Description: "splitting concentric rings",
		Vertex:      PassthroughVertexShader,
		Fragment:    ringsFragmentShader,
		Width:       1600,
		Height:      1200,
	},
	{
		Name:        "bands",
		Description: "grey vertical bands scrolling sideways",
		Vertex:      PassthroughVertexShader,
		Fragment:    bandsFragmentShader,
		Width:       800,
		Height:      600,
	},
	{
		Name:        "red",
		Description: "solid red fill drawn as a triangle strip",
		Vertex:      StripVertexShader,
		Fragment:    redFragmentShader,
		Attribute:   "a_position",
		Shape:       geometry.ShapeStrip,
		Width:       800,
		Height:      600,
	},
}

// Builtin returns the built-in entries in display order.
func Builtin() []Entry {
	return append([]Entry(nil), builtin...)
}

// Lookup finds a built-in entry by name, ignoring case.
func Lookup(name string) (Entry, error) {
	for _, e := range builtin {
		if strings.EqualFold(e.Name, name) {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("unknown shader %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the built-in names in display order.
func Names() []string {
	names := make([]string, len(builtin))
	for i, e := range builtin {
		names[i] = e.Name
	}
	return names
}
