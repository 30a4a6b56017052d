package window

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Faultbox/shaderwall/internal/engine/render"
	"github.com/Faultbox/shaderwall/internal/engine/surface"
)

// ErrQuit is returned by Display.Next once the user asked to quit.
var ErrQuit = errors.New("quit requested")

// Config holds window configuration.
type Config struct {
	// Name identifies the window in logs; Title is used when empty.
	Name       string
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool
}

// Label returns Name, or Title when Name is empty.
func (c Config) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Title
}

// Host is an OS window with its own OpenGL context.
type Host interface {
	surface.Host
	ID() uint32
	Close()
}

// Events receives window lifecycle notifications. Callbacks run on the
// thread calling Display.Next.
type Events struct {
	// OnResize reports a new drawable size in device pixels.
	OnResize func(id uint32, width, height int)
	// OnClose reports that the user closed one window.
	OnClose func(id uint32)
}

// Resized calls OnResize if set.
func (e Events) Resized(id uint32, width, height int) {
	if e.OnResize != nil {
		e.OnResize(id, width, height)
	}
}

// Closed calls OnClose if set.
func (e Events) Closed(id uint32) {
	if e.OnClose != nil {
		e.OnClose(id)
	}
}

// Display opens windows and paces frames for all of them.
type Display interface {
	render.FrameSource
	Open(cfg Config) (Host, error)
	Close()
}

// VSync hands swap interval 1 to a single context. Every surface is
// presented in the same frame, so one blocking swap paces them all.
type VSync struct {
	owner  uint32
	owned  bool
	wanted map[uint32]bool
}

// NewVSync returns a tracker with no contexts.
func NewVSync() *VSync {
	return &VSync{wanted: make(map[uint32]bool)}
}

// Claim registers window id and returns the swap interval for its context.
func (v *VSync) Claim(id uint32, vsync bool) int {
	if !vsync {
		return 0
	}
	v.wanted[id] = true
	if v.owned {
		return 0
	}
	v.owner, v.owned = id, true
	return 1
}

// Owner returns the window whose context carries interval 1.
func (v *VSync) Owner() (uint32, bool) {
	return v.owner, v.owned
}

// Release forgets window id. When id was the owner, the window with the
// lowest id still wanting vsync takes over; promote reports whether the
// caller must set interval 1 on next's context.
func (v *VSync) Release(id uint32) (next uint32, promote bool) {
	delete(v.wanted, id)
	if !v.owned || v.owner != id {
		return 0, false
	}
	v.owned = false
	if len(v.wanted) == 0 {
		return 0, false
	}
	ids := make([]uint32, 0, len(v.wanted))
	for w := range v.wanted {
		ids = append(ids, w)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	v.owner, v.owned = ids[0], true
	return v.owner, true
}

// Pacer caps the frame rate. A zero limit never waits.
type Pacer struct {
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

// NewPacer returns a pacer allowing at most fps frames per second.
func NewPacer(fps int) *Pacer {
	p := &Pacer{now: time.Now}
	if fps > 0 {
		p.interval = time.Second / time.Duration(fps)
	}
	return p
}

// Delay returns how long to wait before the next frame. A caller that fell
// behind is not made to catch up.
func (p *Pacer) Delay() time.Duration {
	if p.interval == 0 {
		return 0
	}
	now := p.now()
	if p.next.IsZero() || !now.Before(p.next) {
		p.next = now.Add(p.interval)
		return 0
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	return wait
}

// Wait sleeps for Delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
