//go:build !sdl2

// Package sdl2 provides an SDL2-backed video and audio Sink. The real
// implementation requires SDL2 development libraries and the "sdl2"
// build tag; without it this stub's New returns an error so a default
// build still links.
package sdl2

import (
	"fmt"

	"github.com/nbarrow/pocketdmg/internal/backend"
	"github.com/nbarrow/pocketdmg/internal/memory"
)

// Backend is the stub used when built without -tags sdl2.
type Backend struct{}

// New always returns a nil backend and an error. The stub's methods are no-ops.
func New(cfg backend.Config) (*Backend, error) {
	return nil, fmt.Errorf("sdl2 backend not available: rebuild with -tags sdl2 and SDL2 development libraries installed")
}

func (b *Backend) DrawLineDMG(ly int, line [160]uint8)   {}
func (b *Backend) DrawLineGBC(ly int, line [160]uint16)  {}
func (b *Backend) Flip()                                 {}
func (b *Backend) RefreshInput() (map[memory.Key]bool, []backend.Action) {
	return nil, nil
}
func (b *Backend) Destroy() error { return nil }
