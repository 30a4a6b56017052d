package render

import "sync/atomic"

// Viewport is a surface size in device pixels.
type Viewport struct {
	Width  int
	Height int
}

// sharedViewport lets a resize on any goroutine be seen by the next frame.
type sharedViewport struct {
	v atomic.Uint64
}

func (s *sharedViewport) Store(vp Viewport) {
	w := uint64(uint32(clampDim(vp.Width)))
	h := uint64(uint32(clampDim(vp.Height)))
	s.v.Store(w<<32 | h)
}

func (s *sharedViewport) Load() Viewport {
	packed := s.v.Load()
	return Viewport{
		Width:  int(uint32(packed >> 32)),
		Height: int(uint32(packed)),
	}
}

func clampDim(n int) int {
	if n < 0 {
		return 0
	}
	if n > 1<<31-1 {
		return 1<<31 - 1
	}
	return n
}
