// Package snapshot saves the contents of a surface's draw buffer as PNG.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Writer writes PNG snapshots into one directory.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter returns a writer for dir. An empty dir means the working
// directory.
func NewWriter(dir string) *Writer {
	return &Writer{outputDir: dir, now: time.Now}
}

// Capture reads the width x height draw buffer of dev and saves it as
// <name>_<timestamp>.png. The context owning dev must be current.
func (w *Writer) Capture(dev gpu.Device, name string, width, height int) (string, error) {
	pixels := dev.ReadPixels(0, 0, int32(width), int32(height))
	if err := dev.Err(); err != nil {
		return "", fmt.Errorf("reading pixels: %w", err)
	}
	return w.Save(pixels, name, width, height)
}

// Save writes raw RGBA pixels, bottom row first, as a PNG.
// The image is flipped vertically since OpenGL has origin at bottom-left.
func (w *Writer) Save(pixels []byte, name string, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	if w.outputDir != "" {
		if err := os.MkdirAll(w.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	filename := w.Filename(name)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		srcOffset := (height - 1 - y) * rowSize
		dstOffset := y * img.Stride
		copy(img.Pix[dstOffset:dstOffset+rowSize], pixels[srcOffset:srcOffset+rowSize])
	}

	file, filename, err := create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	return filename, nil
}

// Filename returns the path a snapshot of name taken now would get.
func (w *Writer) Filename(name string) string {
	timestamp := w.now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s.png", sanitize(name), timestamp)
	if w.outputDir != "" {
		filename = filepath.Join(w.outputDir, filename)
	}
	return filename
}

// create opens path for writing without replacing an existing file. Two
// surfaces with the same name in the same second get path, path_2, path_3...
func create(path string) (*os.File, string, error) {
	base := strings.TrimSuffix(path, ".png")
	for i := 1; ; i++ {
		candidate := path
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d.png", base, i)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, candidate, err
	}
}

func sanitize(name string) string {
	if name == "" {
		return "surface"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
