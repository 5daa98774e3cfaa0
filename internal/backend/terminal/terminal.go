// Package terminal renders a frame as half-block Unicode characters
// over tcell, two pixel rows packed into one character cell by using
// its foreground and background colors independently.
package terminal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/nbarrow/pocketdmg/internal/input"
	"github.com/nbarrow/pocketdmg/internal/memory"
	"github.com/nbarrow/pocketdmg/internal/video"

	ourbackend "github.com/nbarrow/pocketdmg/internal/backend"
)

const (
	width  = video.Width
	height = video.Height

	// keyTimeout bridges terminals not reporting key-up events: a key
	// counts as held until this long passes without seeing it repeat.
	keyTimeout = 100 * time.Millisecond
)

// Backend renders to a tcell.Screen. It satisfies backend.Sink.
type Backend struct {
	screen    tcell.Screen
	fb        *video.FrameBuffer
	lastSeen  map[memory.Key]time.Time
	log       *slog.Logger
}

// New opens a tcell screen sized to fit one half-block row per two
// Game Boy scanlines.
func New() (*Backend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal: init screen: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	return &Backend{
		screen:   screen,
		fb:       video.NewFrameBuffer(),
		lastSeen: make(map[memory.Key]time.Time),
		log:      slog.Default(),
	}, nil
}

func (b *Backend) DrawLineDMG(ly int, line [160]uint8) {
	b.fb.SetLineDMG(ly, line)
}

func (b *Backend) DrawLineGBC(ly int, line [160]uint16) {
	b.fb.SetLineGBC(ly, line)
}

func (b *Backend) Flip() {
	pixels := b.fb.Pixels()
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top := pixels[y*width+x]
			bottom := uint32(0xFFFFFFFF)
			if y+1 < height {
				bottom = pixels[(y+1)*width+x]
			}
			char, fg, bg := halfBlockCell(shadeOf(top), shadeOf(bottom))
			style := tcell.StyleDefault.Foreground(fg).Background(bg)
			b.screen.SetContent(x, y/2, char, nil, style)
		}
	}
	b.screen.Show()
}

func (b *Backend) RefreshInput() (map[memory.Key]bool, []ourbackend.Action) {
	var actions []ourbackend.Action
	now := time.Now()

	for b.screen.HasPendingEvent() {
		ev := b.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			name := keyName(ev)
			binding, ok := input.Lookup(name)
			if !ok {
				continue
			}
			if binding.IsJoypad {
				b.lastSeen[binding.Key] = now
			} else {
				actions = append(actions, ourbackend.Action(binding.Action))
			}
		case *tcell.EventResize:
			b.screen.Sync()
		}
	}

	down := make(map[memory.Key]bool)
	for key, seen := range b.lastSeen {
		if now.Sub(seen) < keyTimeout {
			down[key] = true
		} else {
			delete(b.lastSeen, key)
		}
	}
	return down, actions
}

func (b *Backend) Destroy() error {
	b.screen.Fini()
	return nil
}

func keyName(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyUp:
		return "Up"
	case tcell.KeyDown:
		return "Down"
	case tcell.KeyLeft:
		return "Left"
	case tcell.KeyRight:
		return "Right"
	case tcell.KeyEnter:
		return "Enter"
	case tcell.KeyEsc:
		return "Escape"
	case tcell.KeyTab:
		return "Tab"
	case tcell.KeyRune:
		return string(ev.Rune())
	default:
		return ""
	}
}

// shadeOf maps an RGBA8888 pixel back to a 2-bit brightness level
// (0 = black, 3 = white; the reverse of DMG shade numbering) for picking a half-block foreground/background color pair. GBC
// output is quantized the same way; there are only four cell colors.
func shadeOf(rgba uint32) int {
	switch rgba {
	case 0x000000FF:
		return 0
	case 0x4C4C4CFF:
		return 1
	case 0x989898FF:
		return 2
	case 0xFFFFFFFF:
		return 3
	default:
		// GBC color: bucket by luminance of the red channel.
		r := (rgba >> 24) & 0xFF
		switch {
		case r < 64:
			return 0
		case r < 128:
			return 1
		case r < 192:
			return 2
		default:
			return 3
		}
	}
}

var shadeColors = [4]tcell.Color{tcell.ColorBlack, tcell.ColorGray, tcell.ColorSilver, tcell.ColorWhite}

func halfBlockCell(topShade, bottomShade int) (rune, tcell.Color, tcell.Color) {
	top := shadeColors[topShade]
	bottom := shadeColors[bottomShade]
	if topShade == bottomShade {
		return '█', top, tcell.ColorDefault
	}
	return '▀', top, bottom
}
