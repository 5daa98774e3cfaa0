// Package backend defines the host-facing surface a frontend implements
// to receive video frames and report input: a terminal renderer, an
// SDL2 window, or a headless test harness.
package backend

import "github.com/nbarrow/pocketdmg/internal/memory"

// Sink is what the PPU draws into and the run loop flips once per
// frame. It structurally satisfies video.DisplaySink.
type Sink interface {
	// DrawLineDMG delivers one scanline of 2-bit DMG shades, called once
	// per visible line at the Mode3->Mode0 boundary.
	DrawLineDMG(ly int, line [160]uint8)
	// DrawLineGBC delivers one scanline of 15-bit BGR555 colors.
	DrawLineGBC(ly int, line [160]uint16)
	// Flip presents the completed frame and is called once per VBlank.
	Flip()
	// RefreshInput polls the host for input and reports currently-down
	// joypad keys plus any pending emulator-level actions.
	RefreshInput() (down map[memory.Key]bool, actions []Action)
	// Destroy releases any host resources (window, terminal screen,
	// audio device) the backend acquired in its constructor.
	Destroy() error
}

// Action is a host-level action the frontend can report alongside
// joypad state (quit, reset, speed toggle). Mirrors input.Action so
// backends don't need to import internal/input just for the enum.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionToggleSpeed
	ActionReset
)

// Config configures a Sink at construction time.
type Config struct {
	Title string
	Scale int
	VSync bool
	Mute  bool
	GBC   bool
}

// NullSink discards frames and reports no input. It backs --headless
// runs, where only the frame count (and --trace output) matters.
type NullSink struct {
	Frames int
}

func (n *NullSink) DrawLineDMG(ly int, line [160]uint8)  {}
func (n *NullSink) DrawLineGBC(ly int, line [160]uint16) {}

func (n *NullSink) Flip() {
	n.Frames++
}

func (n *NullSink) RefreshInput() (map[memory.Key]bool, []Action) {
	return nil, nil
}

func (n *NullSink) Destroy() error { return nil }
