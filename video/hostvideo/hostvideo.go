// Package hostvideo implements video.Services over a fixed list of
// modes and a memsvc-backed framebuffer allocation, standing in for a
// real VideoServices firmware capability the way memsvc/hostsim stands
// in for BIOS/UEFI memory services. cmd/hyper uses it so a hosted run
// can exercise video.Pick and the handover builder's framebuffer record
// without any actual display hardware.
package hostvideo

import (
	"github.com/hyperboot/hyper/memsvc"
	"github.com/hyperboot/hyper/video"
)

// Backend is a video.Services over Modes/Native, allocating a backing
// framebuffer region from memsvc on SetMode.
type Backend struct {
	Native video.Resolution
	Modes  []video.Mode
}

// Default returns a Backend advertising the same three resolutions
// spec §8's video-picker examples enumerate against, native 1920x1080.
func Default() *Backend {
	return &Backend{
		Native: video.Resolution{Width: 1920, Height: 1080},
		Modes: []video.Mode{
			{ID: 1, Width: 800, Height: 600, Bpp: 32},
			{ID: 2, Width: 1024, Height: 768, Bpp: 32},
			{ID: 3, Width: 1920, Height: 1080, Bpp: 32},
		},
	}
}

func (b *Backend) QueryResolution() (video.Resolution, bool) { return b.Native, true }
func (b *Backend) ListModes() []video.Mode                   { return b.Modes }

// SetMode allocates a framebuffer-sized region tagged LoaderReclaimable and
// returns its descriptor. A real VideoServices implementation would
// instead return whatever physical address the display controller
// already decoded its framebuffer BAR to; hostvideo must allocate one
// because there's no real hardware behind it.
func (b *Backend) SetMode(id uint64) (video.Framebuffer, bool) {
	for _, m := range b.Modes {
		if m.ID != id {
			continue
		}
		pitch := m.Width * (m.Bpp / 8)
		size := uint64(pitch) * uint64(m.Height)
		addr := memsvc.AllocateCriticalBytes(size)
		return video.Framebuffer{
			Width: m.Width, Height: m.Height, Pitch: pitch, Bpp: m.Bpp,
			Format: video.FormatRGBA, PhysicalAddress: addr,
		}, true
	}
	return video.Framebuffer{}, false
}
