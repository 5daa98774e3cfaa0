//go:build sdl2

package sdl2

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/nbarrow/pocketdmg/internal/backend"
	"github.com/nbarrow/pocketdmg/internal/input"
	"github.com/nbarrow/pocketdmg/internal/memory"
	"github.com/nbarrow/pocketdmg/internal/video"
	"github.com/veandco/go-sdl2/sdl"
)

const bytesPerPixel = 4

// Backend drives an SDL2 window and audio device. Building it requires
// SDL2 development libraries; see sdl2_stub.go for the default build.
type Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	audioDev sdl.AudioDeviceID

	fb     *video.FrameBuffer
	pixels []byte
	scale  int
	held   map[memory.Key]bool
	log    *slog.Logger
}

// New opens a window sized to cfg.Scale times the Game Boy resolution
// and, unless cfg.Mute, an SDL2 audio device for the SPU's sample rate.
func New(cfg backend.Config) (*Backend, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("sdl2: init: %w", err)
	}

	scale := cfg.Scale
	if scale < 1 {
		scale = 1
	}

	window, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(video.Width*scale), int32(video.Height*scale),
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("sdl2: create window: %w", err)
	}

	flags := uint32(sdl.RENDERER_ACCELERATED)
	if cfg.VSync {
		flags |= sdl.RENDERER_PRESENTVSYNC
	}
	renderer, err := sdl.CreateRenderer(window, -1, flags)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("sdl2: create renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGBA8888, sdl.TEXTUREACCESS_STREAMING, video.Width, video.Height)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("sdl2: create texture: %w", err)
	}

	b := &Backend{
		window:   window,
		renderer: renderer,
		texture:  texture,
		fb:       video.NewFrameBuffer(),
		pixels:   make([]byte, video.Width*video.Height*bytesPerPixel),
		scale:    scale,
		held:     make(map[memory.Key]bool),
		log:      slog.Default(),
	}

	if !cfg.Mute {
		if err := b.openAudio(); err != nil {
			b.log.Warn("sdl2: audio unavailable, continuing muted", "error", err)
		}
	}

	return b, nil
}

func (b *Backend) openAudio() error {
	// SPU sample rate: the 4194304 Hz CPU clock over its 64-cycle sample period.
	spec := &sdl.AudioSpec{Freq: 4194304 / 64, Format: sdl.AUDIO_S16LSB, Channels: 2, Samples: 1024}
	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	b.audioDev = dev
	sdl.PauseAudioDevice(dev, false)
	return nil
}

// QueueAudio submits interleaved stereo S16LE samples for playback.
// Callers pull frames from the SPU's double buffer and forward them
// here; Backend does not reach into the SPU itself.
func (b *Backend) QueueAudio(samples []int16) error {
	if b.audioDev == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*2)
	return sdl.QueueAudio(b.audioDev, buf)
}

func (b *Backend) DrawLineDMG(ly int, line [160]uint8) {
	b.fb.SetLineDMG(ly, line)
}

func (b *Backend) DrawLineGBC(ly int, line [160]uint16) {
	b.fb.SetLineGBC(ly, line)
}

func (b *Backend) Flip() {
	src := b.fb.Pixels()
	for i, rgba := range src {
		off := i * bytesPerPixel
		b.pixels[off] = byte(rgba >> 24)   // R
		b.pixels[off+1] = byte(rgba >> 16) // G
		b.pixels[off+2] = byte(rgba >> 8)  // B
		b.pixels[off+3] = byte(rgba)       // A
	}

	if err := b.texture.Update(nil, unsafe.Pointer(&b.pixels[0]), video.Width*bytesPerPixel); err != nil {
		b.log.Warn("sdl2: texture update failed", "error", err)
		return
	}
	b.renderer.Clear()
	b.renderer.Copy(b.texture, nil, nil)
	b.renderer.Present()
}

func (b *Backend) RefreshInput() (map[memory.Key]bool, []backend.Action) {
	var actions []backend.Action

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			actions = append(actions, backend.ActionQuit)
		case *sdl.KeyboardEvent:
			name := keyName(e.Keysym.Sym)
			binding, ok := input.Lookup(name)
			if !ok {
				continue
			}
			if binding.IsJoypad {
				b.held[binding.Key] = e.Type == sdl.KEYDOWN
			} else if e.Type == sdl.KEYDOWN {
				actions = append(actions, backend.Action(binding.Action))
			}
		}
	}

	down := make(map[memory.Key]bool, len(b.held))
	for k, v := range b.held {
		if v {
			down[k] = true
		}
	}
	return down, actions
}

func (b *Backend) Destroy() error {
	if b.audioDev != 0 {
		sdl.CloseAudioDevice(b.audioDev)
	}
	b.texture.Destroy()
	b.renderer.Destroy()
	b.window.Destroy()
	sdl.Quit()
	return nil
}

func keyName(key sdl.Keycode) string {
	switch key {
	case sdl.K_UP:
		return "Up"
	case sdl.K_DOWN:
		return "Down"
	case sdl.K_LEFT:
		return "Left"
	case sdl.K_RIGHT:
		return "Right"
	case sdl.K_RETURN:
		return "Enter"
	case sdl.K_ESCAPE:
		return "Escape"
	case sdl.K_TAB:
		return "Tab"
	case sdl.K_z:
		return "z"
	case sdl.K_x:
		return "x"
	case sdl.K_LSHIFT, sdl.K_RSHIFT:
		return "Shift"
	case sdl.K_r:
		return "r"
	default:
		return ""
	}
}
