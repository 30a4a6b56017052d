package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/shaderwall/internal/config"
	"github.com/Faultbox/shaderwall/internal/engine/geometry"
	"github.com/Faultbox/shaderwall/internal/engine/gpu"
	"github.com/Faultbox/shaderwall/internal/engine/gpu/gputest"
	"github.com/Faultbox/shaderwall/internal/engine/shader"
	"github.com/Faultbox/shaderwall/internal/engine/window"
	"github.com/Faultbox/shaderwall/internal/logger"
)

type fakeWindow struct {
	id     uint32
	cfg    window.Config
	dev    *gputest.Device
	width  int
	height int
	closed bool
}

func (w *fakeWindow) ID() uint32         { return w.id }
func (w *fakeWindow) Name() string       { return w.cfg.Label() }
func (w *fakeWindow) Device() gpu.Device { return w.dev }
func (w *fakeWindow) Present()           {}
func (w *fakeWindow) Size() (int, int)   { return w.width, w.height }
func (w *fakeWindow) Close()             { w.closed = true }

func (w *fakeWindow) MakeCurrent() error {
	if w.closed {
		return errors.New("window closed")
	}
	return nil
}

// fakeDisplay hands out gputest-backed windows and a fixed number of frames.
type fakeDisplay struct {
	events  window.Events
	fps     int
	windows []*fakeWindow
	frames  int
	served  int
	closed  bool
	// onFrame runs before frame n is returned.
	onFrame func(n int)
}

func (d *fakeDisplay) Open(cfg window.Config) (window.Host, error) {
	w := &fakeWindow{
		id:     uint32(len(d.windows) + 1),
		cfg:    cfg,
		dev:    gputest.New(),
		width:  cfg.Width,
		height: cfg.Height,
	}
	d.windows = append(d.windows, w)
	return w, nil
}

func (d *fakeDisplay) Next(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if d.served >= d.frames {
		return 0, window.ErrQuit
	}
	if d.onFrame != nil {
		d.onFrame(d.served)
	}
	d.served++
	return time.Duration(d.served) * 16 * time.Millisecond, nil
}

func (d *fakeDisplay) Close() { d.closed = true }

func (d *fakeDisplay) window(name string) *fakeWindow {
	for _, w := range d.windows {
		if w.cfg.Name == name {
			return w
		}
	}
	return nil
}

func newApp(t *testing.T, cfg *config.Config, frames int) (*App, *fakeDisplay) {
	t.Helper()
	d := &fakeDisplay{frames: frames}
	a, err := New(cfg, func(ev window.Events, fps int) (window.Display, error) {
		d.events = ev
		d.fps = fps
		return d, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, d
}

func liveObjects(dev *gputest.Device) int {
	s, p, b, v := dev.Live()
	return s + p + b + v
}

func TestRunDrawsUntilQuit(t *testing.T) {
	cfg := config.Default()
	cfg.Window.FPSLimit = 30
	cfg.Surfaces = []config.SurfaceConfig{{Shader: "rings"}, {Shader: "red"}}

	a, d := newApp(t, cfg, 5)
	if d.fps != 30 {
		t.Errorf("fps limit = %d, want 30", d.fps)
	}
	if a.Mounted() != 2 {
		t.Fatalf("mounted = %d, want 2", a.Mounted())
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rings, red := d.window("rings"), d.window("red")
	if n := len(rings.dev.Draws()); n != 5 {
		t.Errorf("rings draws = %d, want 5", n)
	}
	if draws := red.dev.Draws(); len(draws) != 5 || draws[0].Mode != gpu.TriangleStrip {
		t.Errorf("red draws = %+v", draws)
	}
	if rings.cfg.Width != 1600 || rings.cfg.Height != 1200 {
		t.Errorf("rings size = %dx%d", rings.cfg.Width, rings.cfg.Height)
	}
	if rings.cfg.Title != "shaderwall - rings" {
		t.Errorf("title = %q", rings.cfg.Title)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, w := range d.windows {
		if n := liveObjects(w.dev); n != 0 {
			t.Errorf("%s leaked %d objects", w.cfg.Name, n)
		}
		if !w.closed {
			t.Errorf("%s not closed", w.cfg.Name)
		}
	}
	if !d.closed {
		t.Error("display not closed")
	}
}

func TestBrokenSurfaceSkipped(t *testing.T) {
	dir := t.TempDir()
	vs := filepath.Join(dir, "quad.vert")
	fs := filepath.Join(dir, "broken.frag")
	if err := os.WriteFile(vs, []byte("attribute vec2 aPosition;\nvoid main() { gl_Position = vec4(aPosition, 0.0, 1.0); }\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fs, []byte("void main() { gl_FragColor = vec4(1.0);\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{
		{Shader: "bands"},
		{Name: "broken", VertexFile: vs, FragmentFile: fs},
		{Name: "missing", VertexFile: vs, FragmentFile: filepath.Join(dir, "nope.frag")},
		{Shader: "no-such-shader"},
	}

	a, d := newApp(t, cfg, 1)
	defer a.Close()

	if a.Mounted() != 1 {
		t.Fatalf("mounted = %d, want 1", a.Mounted())
	}
	broken := d.window("broken")
	if broken == nil || !broken.closed {
		t.Error("window of failed surface not closed")
	} else if n := liveObjects(broken.dev); n != 0 {
		t.Errorf("failed surface leaked %d objects", n)
	}

	err := a.Check("")
	if err == nil {
		t.Fatal("Check should report the failed surfaces")
	}
	for _, want := range []string{"broken", "fragment shader", "missing", "no-such-shader"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Check error %q does not mention %q", err, want)
		}
	}
	if n := len(d.window("bands").dev.Draws()); n != 1 {
		t.Errorf("bands draws after Check = %d, want 1", n)
	}
}

func TestNoSurfaceMounted(t *testing.T) {
	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{{Shader: "nope"}}

	d := &fakeDisplay{}
	_, err := New(cfg, func(window.Events, int) (window.Display, error) { return d, nil })
	if err == nil {
		t.Fatal("expected error")
	}
	if !d.closed {
		t.Error("display left open")
	}
}

func TestCheckPasses(t *testing.T) {
	cfg := config.Default()
	cfg.Surfaces = nil
	for _, name := range []string{"fractal", "pulse", "zoomey", "zoomey-distance", "rings", "bands", "red"} {
		cfg.Surfaces = append(cfg.Surfaces, config.SurfaceConfig{Shader: name})
	}

	a, _ := newApp(t, cfg, 0)
	if err := a.Check(""); err != nil {
		t.Errorf("Check: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCloseAndResizeEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{{Shader: "rings"}, {Shader: "zoomey"}}

	a, d := newApp(t, cfg, 10)
	d.onFrame = func(n int) {
		switch n {
		case 1:
			d.events.Resized(d.window("rings").id, 640, 480)
		case 2:
			d.events.Closed(d.window("zoomey").id)
		case 4:
			d.events.Closed(d.window("rings").id)
		}
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Run ends once the last window is gone, before the display quits.
	if d.served != 5 {
		t.Errorf("frames served = %d, want 5", d.served)
	}

	rings := d.window("rings")
	writes := rings.dev.Writes("uResolution")
	if last := writes[len(writes)-1].Values; last[0] != 640 || last[1] != 480 {
		t.Errorf("uResolution after resize = %v", last)
	}
	zoomey := d.window("zoomey")
	if n := len(zoomey.dev.Draws()); n != 2 {
		t.Errorf("zoomey draws = %d, want 2", n)
	}
	for _, w := range []*fakeWindow{rings, zoomey} {
		if !w.closed || liveObjects(w.dev) != 0 {
			t.Errorf("%s: closed=%v live=%d", w.cfg.Name, w.closed, liveObjects(w.dev))
		}
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLostContextClosesWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{{Shader: "rings"}, {Shader: "bands"}}

	a, d := newApp(t, cfg, 3)
	defer a.Close()
	d.onFrame = func(n int) {
		if n == 1 {
			d.window("rings").dev.LoseContext()
		}
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !d.window("rings").closed {
		t.Error("faulted window still open")
	}
	if a.Mounted() != 1 {
		t.Errorf("mounted = %d, want 1", a.Mounted())
	}
	if n := len(d.window("bands").dev.Draws()); n != 3 {
		t.Errorf("bands draws = %d, want 3", n)
	}

	err := a.Check("")
	if !gpu.IsContextLost(err) {
		t.Errorf("Check = %v, want lost context", err)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	cfg := config.Default()
	a, _ := newApp(t, cfg, 1000)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	vs := filepath.Join(dir, "a.vert")
	fs := filepath.Join(dir, "a.frag")
	os.WriteFile(vs, []byte("vertex"), 0644)
	os.WriteFile(fs, []byte("fragment"), 0644)

	render := config.Default().Render
	tests := []struct {
		name  string
		sc    config.SurfaceConfig
		win   config.WindowConfig
		w, h  int
		shape geometry.Shape
		attr  string
	}{
		{"catalog size", config.SurfaceConfig{Shader: "fractal"}, config.WindowConfig{}, 1600, 1200, geometry.ShapeTriangles, ""},
		{"catalog strip", config.SurfaceConfig{Shader: "red"}, config.WindowConfig{}, 800, 600, geometry.ShapeStrip, "a_position"},
		{"window size wins over catalog", config.SurfaceConfig{Shader: "fractal"}, config.WindowConfig{Width: 1024, Height: 768}, 1024, 768, geometry.ShapeTriangles, ""},
		{"surface size wins", config.SurfaceConfig{Shader: "fractal", Width: 320, Height: 200}, config.WindowConfig{Width: 1024, Height: 768}, 320, 200, geometry.ShapeTriangles, ""},
		{"files fallback size", config.SurfaceConfig{VertexFile: vs, FragmentFile: fs, Geometry: "strip", PositionAttribute: "pos"}, config.WindowConfig{}, 800, 600, geometry.ShapeStrip, "pos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := resolve(tt.sc, tt.win, render)
			if err != nil {
				t.Fatal(err)
			}
			if p.width != tt.w || p.height != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", p.width, p.height, tt.w, tt.h)
			}
			if p.shape != tt.shape {
				t.Errorf("shape = %s, want %s", p.shape, tt.shape)
			}
			if p.attribute != tt.attr {
				t.Errorf("attribute = %q, want %q", p.attribute, tt.attr)
			}
		})
	}

	p, err := resolve(config.SurfaceConfig{VertexFile: vs, FragmentFile: fs}, config.WindowConfig{}, render)
	if err != nil {
		t.Fatal(err)
	}
	if p.vertex != "vertex" || p.fragment != "fragment" {
		t.Errorf("sources = %q/%q", p.vertex, p.fragment)
	}
	if p.dialect != shader.DialectES100 {
		t.Errorf("dialect = %s, want render default es100", p.dialect)
	}
	if _, err := resolve(config.SurfaceConfig{Shader: "fractal", Geometry: "hexagon"}, config.WindowConfig{}, render); err == nil {
		t.Error("expected geometry error")
	}

	p, err = resolve(config.SurfaceConfig{VertexFile: vs, FragmentFile: fs, Dialect: "native"}, config.WindowConfig{}, render)
	if err != nil {
		t.Fatal(err)
	}
	if p.dialect != shader.DialectNative {
		t.Errorf("dialect = %s, want native override", p.dialect)
	}
	if _, err := resolve(config.SurfaceConfig{Shader: "fractal", Dialect: "hlsl"}, config.WindowConfig{}, render); err == nil {
		t.Error("expected dialect error")
	}
}

func TestBackend(t *testing.T) {
	for _, name := range []string{"", "sdl", "SDL", "glfw"} {
		if _, err := Backend(name); err != nil {
			t.Errorf("Backend(%q): %v", name, err)
		}
	}
	if _, err := Backend("wayland"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBadRenderConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Dialect = "hlsl"
	opened := false
	if _, err := New(cfg, func(window.Events, int) (window.Display, error) {
		opened = true
		return &fakeDisplay{}, nil
	}); err == nil {
		t.Error("expected dialect error")
	}
	if opened {
		t.Error("display opened for an invalid config")
	}
}

func TestCheckSnapshots(t *testing.T) {
	cfg := config.Default()
	cfg.Render.ClearColor = [4]float32{0, 0, 1, 1}
	cfg.Surfaces = []config.SurfaceConfig{
		{Shader: "red", Width: 8, Height: 6},
		{Shader: "bands", Width: 8, Height: 6},
	}
	dir := filepath.Join(t.TempDir(), "shots")

	a, d := newApp(t, cfg, 0)
	defer a.Close()
	if err := a.Check(dir); err != nil {
		t.Fatalf("Check: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("snapshots = %v, want 2 files", files)
	}
	for _, w := range d.windows {
		calls := w.dev.Calls()
		if calls[len(calls)-1] != "Err" || calls[len(calls)-2] != "ReadPixels" {
			t.Errorf("%s: snapshot not read after the draw: %v", w.cfg.Name, calls[len(calls)-4:])
		}
	}

	// Later frames are not captured.
	a.manager.Step(time.Second)
	files, _ = filepath.Glob(filepath.Join(dir, "*.png"))
	if len(files) != 2 {
		t.Errorf("snapshots after Check = %d, want 2", len(files))
	}
}

func TestCheckSnapshotsSameShaderTwice(t *testing.T) {
	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{
		{Shader: "fractal", Width: 4, Height: 4},
		{Shader: "fractal", Width: 4, Height: 4},
	}
	dir := t.TempDir()

	a, _ := newApp(t, cfg, 0)
	defer a.Close()
	if err := a.Check(dir); err != nil {
		t.Fatalf("Check: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "fractal_*.png"))
	if len(files) != 2 {
		t.Errorf("snapshots = %v, want one file per surface", files)
	}
}

func TestMountFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	dir := t.TempDir()
	fs := filepath.Join(dir, "broken.frag")
	if err := os.WriteFile(fs, []byte("void main() {\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Surfaces = []config.SurfaceConfig{
		{Shader: "bands"},
		{Name: "broken", VertexFile: fs, FragmentFile: fs},
	}

	a, _ := newApp(t, cfg, 0)
	defer a.Close()

	if n := logs.Len(); n != 1 {
		for _, e := range logs.All() {
			t.Logf("%s: %s", e.LoggerName, e.Message)
		}
		t.Fatalf("error entries = %d, want 1", n)
	}
	if msg := logs.All()[0].Message; msg != "surface skipped" {
		t.Errorf("message = %q", msg)
	}
}
