package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/gpu/gputest"
	"github.com/Faultbox/shaderwall/internal/engine/surface"
)

type testHost struct {
	name string
	dev  *gputest.Device
	w, h int
}

func (h *testHost) Name() string       { return h.name }
func (h *testHost) Device() gpu.Device { return h.dev }
func (h *testHost) MakeCurrent() error { return nil }
func (h *testHost) Present()           {}
func (h *testHost) Size() (int, int)   { return h.w, h.h }

func TestBuiltinEntriesDraw(t *testing.T) {
	tests := []struct {
		name       string
		time       bool
		resolution bool
		mode       gpu.Primitive
		count      int32
	}{
		{"fractal", true, true, gpu.Triangles, 6},
		{"pulse", true, true, gpu.Triangles, 6},
		{"zoomey-distance", true, true, gpu.Triangles, 6},
		{"zoomey", true, true, gpu.Triangles, 6},
		{"rings", true, true, gpu.Triangles, 6},
		{"bands", true, false, gpu.Triangles, 6},
		{"red", false, false, gpu.TriangleStrip, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Lookup(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			host := &testHost{name: e.Name, dev: gputest.New(), w: e.Width, h: e.Height}
			m := surface.NewManager(surface.DefaultOptions())

			h, err := m.Mount(host, e.Vertex, e.Fragment,
				surface.WithAttribute(e.Attribute),
				surface.WithShape(e.Shape),
			)
			if err != nil {
				t.Fatalf("Mount: %v", err)
			}
			m.Step(0)
			m.Step(16 * time.Millisecond)

			draws := host.dev.Draws()
			if len(draws) != 2 {
				t.Fatalf("draws = %d, want 2", len(draws))
			}
			if draws[0].Mode != tt.mode || draws[0].Count != tt.count {
				t.Errorf("draw = %s x%d, want %s x%d", draws[0].Mode, draws[0].Count, tt.mode, tt.count)
			}
			if got := len(host.dev.Writes("uTime")) > 0; got != tt.time {
				t.Errorf("uTime written = %v, want %v", got, tt.time)
			}
			if got := len(host.dev.Writes("uResolution")) > 0; got != tt.resolution {
				t.Errorf("uResolution written = %v, want %v", got, tt.resolution)
			}

			if err := m.Unmount(h); err != nil {
				t.Fatal(err)
			}
			if s, p, b, v := host.dev.Live(); s+p+b+v != 0 {
				t.Errorf("leaked objects: shaders=%d programs=%d buffers=%d vaos=%d", s, p, b, v)
			}
		})
	}
}

func TestCanvasSizes(t *testing.T) {
	for _, e := range Builtin() {
		want := [2]int{1600, 1200}
		if e.Name == "bands" || e.Name == "red" {
			want = [2]int{800, 600}
		}
		if got := [2]int{e.Width, e.Height}; got != want {
			t.Errorf("%s: size = %v, want %v", e.Name, got, want)
		}
		if e.Name != "red" && e.Shape != geometry.ShapeTriangles {
			t.Errorf("%s: shape = %s", e.Name, e.Shape)
		}
	}
}

func TestLookup(t *testing.T) {
	if e, err := Lookup("RINGS"); err != nil || e.Name != "rings" {
		t.Errorf("Lookup(RINGS) = %q, %v", e.Name, err)
	}
	_, err := Lookup("nope")
	if err == nil {
		t.Fatal("expected error for unknown shader")
	}
	if !strings.Contains(err.Error(), "fractal") {
		t.Errorf("error should list available shaders: %v", err)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 7 {
		t.Fatalf("len = %d, want 7", len(names))
	}
	for i, e := range Builtin() {
		if names[i] != e.Name {
			t.Errorf("names[%d] = %q, want display order %q", i, names[i], e.Name)
		}
	}
	if names[0] != "fractal" {
		t.Errorf("first name = %q, want fractal", names[0])
	}
}

func TestBuiltinIsCopy(t *testing.T) {
	b := Builtin()
	b[0].Name = "changed"
	if Builtin()[0].Name == "changed" {
		t.Error("Builtin exposes internal slice")
	}
}
