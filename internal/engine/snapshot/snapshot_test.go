package snapshot

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/shaderwall/internal/engine/gpu/gputest"
)

func fixedWriter(dir string) *Writer {
	w := NewWriter(dir)
	w.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return w
}

func TestSaveFlipsRows(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(dir)

	// 1x2 image: bottom row red, top row blue.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	path, err := w.Save(pixels, "rings", 1, 2)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "rings_2024-05-01_12-30-00.png"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	r, _, b, _ := img.At(0, 0).RGBA()
	if b>>8 != 255 || r != 0 {
		t.Errorf("top pixel should be blue, got r=%d b=%d", r>>8, b>>8)
	}
	r, _, b, _ = img.At(0, 1).RGBA()
	if r>>8 != 255 || b != 0 {
		t.Errorf("bottom pixel should be red, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestSaveSizeMismatch(t *testing.T) {
	w := fixedWriter(t.TempDir())
	if _, err := w.Save(make([]byte, 10), "x", 2, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestCaptureFromDevice(t *testing.T) {
	dev := gputest.New()
	dev.ClearColor(1, 0, 0, 1)

	dir := filepath.Join(t.TempDir(), "shots")
	w := fixedWriter(dir)
	path, err := w.Capture(dev, "red", 4, 3)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bounds = %v", b)
	}
	r, g, _, a := img.At(2, 1).RGBA()
	if r>>8 != 255 || g != 0 || a>>8 != 255 {
		t.Errorf("pixel = %d,%d,%d", r>>8, g>>8, a>>8)
	}
}

func TestCaptureLostContext(t *testing.T) {
	dev := gputest.New()
	dev.LoseContext()
	if _, err := fixedWriter(t.TempDir()).Capture(dev, "gone", 2, 2); err == nil {
		t.Error("expected error from lost context")
	}
}

func TestFilenameSanitized(t *testing.T) {
	w := fixedWriter("")
	tests := map[string]string{
		"zoomey-distance": "zoomey-distance_2024-05-01_12-30-00.png",
		"my shader/v2":    "my_shader_v2_2024-05-01_12-30-00.png",
		"":                "surface_2024-05-01_12-30-00.png",
	}
	for name, want := range tests {
		if got := w.Filename(name); got != want {
			t.Errorf("Filename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSaveKeepsEarlierSnapshot(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(dir)
	pixels := []byte{0, 0, 0, 255}

	var paths []string
	for i := 0; i < 3; i++ {
		path, err := w.Save(pixels, "fractal", 1, 1)
		if err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
		paths = append(paths, path)
	}

	want := []string{
		filepath.Join(dir, "fractal_2024-05-01_12-30-00.png"),
		filepath.Join(dir, "fractal_2024-05-01_12-30-00_2.png"),
		filepath.Join(dir, "fractal_2024-05-01_12-30-00_3.png"),
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %s, want %s", i, paths[i], want[i])
		}
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	if len(files) != 3 {
		t.Errorf("files = %v, want 3", files)
	}
}
