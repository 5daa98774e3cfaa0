// Package pocketdmg wires the CPU, bus, and scheduled devices into a
// runnable Game Boy / Game Boy Color emulator and drives it one frame
// at a time for a host backend.
package pocketdmg

import (
	"fmt"
	"log/slog"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/nbarrow/pocketdmg/internal/backend"
	"github.com/nbarrow/pocketdmg/internal/cpu"
	"github.com/nbarrow/pocketdmg/internal/input"
	"github.com/nbarrow/pocketdmg/internal/interrupt"
	"github.com/nbarrow/pocketdmg/internal/memory"
	"github.com/nbarrow/pocketdmg/internal/scheduler"
	"github.com/nbarrow/pocketdmg/internal/serial"
	"github.com/nbarrow/pocketdmg/internal/video"

	"github.com/nbarrow/pocketdmg/internal/audio"
)

// CyclesPerFrame is the fixed T-cycle length of one 154-line frame:
// 456 cycles/line * 154 lines.
const CyclesPerFrame = 456 * 154

// Emulator owns every component of one running cartridge and steps
// them in lockstep with the CPU.
type Emulator struct {
	cpu   *cpu.CPU
	bus   *memory.Bus
	sched *scheduler.Scheduler
	irq   *interrupt.Controller

	ppu *video.PPU
	spu *audio.SPU

	joypad *memory.Joypad
	input  *input.Manager
	cart   *memory.Cartridge

	sink backend.Sink
	gbc  bool

	audioBuf   [4096 * 2]int16
	frameCount uint64
	log        *slog.Logger
}

// New constructs an emulator for rom, optionally seeded with savedRAM
// from a prior battery-backed save. gbc selects CGB register behavior
// (VRAM/WRAM banking, 15-bit palettes; KEY1 double-speed is not emulated);
// it is forced on automatically if the cartridge header declares CGB support.
func New(rom, savedRAM []byte, gbc bool, sink backend.Sink) (*Emulator, error) {
	cart, err := memory.Load(rom, savedRAM)
	if err != nil {
		return nil, fmt.Errorf("pocketdmg: load cartridge: %w", err)
	}
	if cart.HasChecksumMismatch() {
		slog.Warn("cartridge header checksum mismatch, continuing anyway")
	}
	gbc = gbc || cart.CGB != memory.CGBUnsupported

	e := &Emulator{
		sched: scheduler.New(),
		irq:   interrupt.New(),
		cart:  cart,
		sink:  sink,
		gbc:   gbc,
		log:   slog.Default(),
	}

	e.ppu = video.New(gbc)
	e.ppu.SetInterruptController(e.irq)
	e.ppu.SetSink(e.sink)

	e.spu = audio.New(4096)

	e.bus = memory.New(e.sched, e.irq, gbc)
	e.bus.Cart = cart
	e.bus.Video = e.ppu
	e.bus.Audio = e.spu

	e.joypad = memory.NewJoypad(func() { e.irq.Request(addr.JoypadInterrupt) }, func() { e.cpu.ResumeFromStop() })
	e.bus.Joypad = e.joypad
	e.input = input.NewManager(e.joypad)

	e.bus.Timer = memory.NewTimer(func() { e.irq.Request(addr.TimerInterrupt) })

	e.bus.DMA = memory.NewDMA(gbc, e.bus.ReadByte, func(a uint16, v uint8) { e.ppu.WriteOAM(a, v) })
	e.bus.HDMA = memory.NewHDMA(e.bus.ReadByte, func(a uint16, v uint8) { e.ppu.WriteVRAM(a, v) })
	e.ppu.SetHBlankHook(e.bus.HDMA.OnHBlank)

	e.bus.Serial = serial.New(func() { e.irq.Request(addr.SerialInterrupt) })

	e.sched.Register(scheduler.PPU, e.ppu.Sync)
	e.sched.Register(scheduler.DMA, e.bus.DMA.Sync)
	e.sched.Register(scheduler.Timer, e.bus.Timer.Sync)
	e.sched.Register(scheduler.SPU, e.spu.Sync)
	e.sched.Register(scheduler.Cart, cart.Tick)

	e.cpu = cpu.New(e.bus, e.irq)

	return e, nil
}

// RunFrame executes CPU instructions until one full frame's worth of
// T-cycles has elapsed, polls the sink for input, and applies it to
// the joypad before returning.
func (e *Emulator) RunFrame() {
	e.sched.MaybeRebase()
	target := e.sched.T() + CyclesPerFrame
	for e.sched.T() < target {
		cycles := e.cpu.Step()
		e.sched.Advance(int32(cycles))
	}
	e.frameCount++

	if e.sink == nil {
		return
	}
	down, actions := e.sink.RefreshInput()
	e.input.Sync(down)
	for _, act := range actions {
		e.handleAction(act)
	}
}

func (e *Emulator) handleAction(act backend.Action) {
	switch act {
	case backend.ActionQuit:
		e.log.Info("quit requested by backend")
	case backend.ActionReset:
		e.log.Info("reset requested by backend")
	case backend.ActionToggleSpeed:
		e.log.Debug("speed toggle requested by backend")
	}
}

// FrameCount returns the number of frames executed so far.
func (e *Emulator) FrameCount() uint64 { return e.frameCount }

// SaveRAM returns the cartridge's battery-backed RAM contents, or nil
// if the cartridge has no battery.
func (e *Emulator) SaveRAM() []byte {
	if !e.cart.HasBattery() {
		return nil
	}
	return e.cart.SaveRAM()
}

// SetSaveFlusher installs the disk-I/O callback the cartridge calls into
// three seconds after its last battery-backed RAM write. Only takes effect
// for battery-backed cartridges; a no-op otherwise.
func (e *Emulator) SetSaveFlusher(flush memory.SaveFlusher) {
	e.cart.SetSaveFlusher(flush)
}

// AudioSamples drains one buffer's worth of rendered stereo frames
// without blocking, returning nil if the SPU hasn't filled a buffer
// yet. The CLI run loop polls this each frame and forwards whatever is
// returned to the backend's audio device, if it has one.
func (e *Emulator) AudioSamples() []int16 {
	if !e.spu.TryConsume(e.audioBuf[:]) {
		return nil
	}
	return e.audioBuf[:]
}
