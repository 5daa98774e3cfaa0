// Package memory implements the 16-bit address bus: cartridge/MBC banking,
// work and video RAM, the timer, OAM/HDMA transfer controllers, the
// joypad, and dispatch of every other memory-mapped register onto the
// device that owns it. Devices that the scheduler tracks (PPU, DMA, Timer,
// SPU, Cart) are resynchronized before any bus access that could observe or
// change their visible state, so a read always sees a device as caught up
// to the current cycle even though it may not have been ticked eagerly.
package memory

import (
	"log/slog"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/nbarrow/pocketdmg/internal/interrupt"
	"github.com/nbarrow/pocketdmg/internal/scheduler"
)

// VideoDevice is the surface the bus needs from the PPU: register and
// VRAM/OAM access, a VRAM bank switch for CGB, and the scheduler hook.
type VideoDevice interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
	ReadVRAM(address uint16) uint8
	WriteVRAM(address uint16, value uint8)
	ReadOAM(address uint16) uint8
	WriteOAM(address uint16, value uint8)
	SetVRAMBank(bank uint8)
	VRAMBank() uint8
	Sync(elapsed int32) int32
}

// AudioDevice is the surface the bus needs from the SPU.
type AudioDevice interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
	Sync(elapsed int32) int32
}

// SerialDevice is the surface the bus needs from the serial port stub.
type SerialDevice interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Bus wires every addressable device together behind ReadByte/WriteByte.
type Bus struct {
	Cart   *Cartridge
	Timer  *Timer
	Joypad *Joypad
	DMA    *DMA
	HDMA   *HDMA
	IRQ    *interrupt.Controller
	Sched  *scheduler.Scheduler

	Video  VideoDevice
	Audio  AudioDevice
	Serial SerialDevice

	wram     [8][0x1000]uint8 // bank 0 fixed, 1-7 switchable by SVBK on CGB
	wramBank uint8
	hram     [0x80]uint8
	bootROMDisabled bool

	gbc bool // whether this is running in CGB mode (enables WRAM/VRAM banking)

	log *slog.Logger
}

// New constructs a bus. Devices must still be assigned to the exported
// fields and registered with Sched before use; this split exists because
// the scheduler's sync callbacks close over the very devices being built.
func New(sched *scheduler.Scheduler, irq *interrupt.Controller, gbc bool) *Bus {
	b := &Bus{Sched: sched, IRQ: irq, gbc: gbc, wramBank: 1, log: slog.Default()}
	return b
}

func (b *Bus) ReadByte(address uint16) uint8 {
	switch {
	case address <= 0x7FFF:
		return b.Cart.Read(address)
	case address <= 0x9FFF:
		b.Sched.Resync(scheduler.PPU)
		return b.Video.ReadVRAM(address)
	case address <= 0xBFFF:
		b.Sched.Resync(scheduler.Cart)
		return b.Cart.Read(address)
	case address <= 0xCFFF:
		return b.wram[0][address-0xC000]
	case address <= 0xDFFF:
		return b.wram[b.wramBank][address-0xD000]
	case address <= 0xEFFF: // echo of C000-DDFF
		return b.wram[0][address-0xE000]
	case address <= 0xFDFF:
		bank := b.wramBank
		return b.wram[bank][address-0xF000]
	case address <= 0xFE9F:
		b.Sched.Resync(scheduler.PPU)
		b.Sched.Resync(scheduler.DMA)
		return b.Video.ReadOAM(address)
	case address <= 0xFEFF:
		return 0x00 // unusable region
	case address <= 0xFF7F:
		return b.readIO(address)
	case address <= 0xFFFE:
		return b.hram[address-0xFF80]
	default:
		return b.IRQ.ReadIE()
	}
}

func (b *Bus) WriteByte(address uint16, value uint8) {
	switch {
	case address <= 0x7FFF:
		b.Sched.Resync(scheduler.Cart)
		b.Cart.Write(address, value)
	case address <= 0x9FFF:
		b.Sched.Resync(scheduler.PPU)
		b.Video.WriteVRAM(address, value)
	case address <= 0xBFFF:
		b.Sched.Resync(scheduler.Cart)
		b.Cart.Write(address, value)
		if b.Cart.Dirty() {
			b.Sched.Schedule(scheduler.Cart, b.Cart.ArmFlush())
		}
	case address <= 0xCFFF:
		b.wram[0][address-0xC000] = value
	case address <= 0xDFFF:
		b.wram[b.wramBank][address-0xD000] = value
	case address <= 0xEFFF:
		b.wram[0][address-0xE000] = value
	case address <= 0xFDFF:
		b.wram[b.wramBank][address-0xF000] = value
	case address <= 0xFE9F:
		b.Sched.Resync(scheduler.PPU)
		b.Sched.Resync(scheduler.DMA)
		b.Video.WriteOAM(address, value)
	case address <= 0xFEFF:
		// unusable region, writes are dropped
	case address <= 0xFF7F:
		b.writeIO(address, value)
	case address <= 0xFFFE:
		b.hram[address-0xFF80] = value
	default:
		b.IRQ.WriteIE(value)
	}
}

func (b *Bus) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return b.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return b.Serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		b.Sched.Resync(scheduler.Timer)
		return b.Timer.Read(address)
	case address == addr.IF:
		return b.IRQ.ReadIF()
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.Sched.Resync(scheduler.SPU)
		return b.Audio.ReadRegister(address)
	case address == addr.LCDC || address == addr.STAT || address == addr.SCY || address == addr.SCX ||
		address == addr.LY || address == addr.LYC || address == addr.BGP || address == addr.OBP0 ||
		address == addr.OBP1 || address == addr.WY || address == addr.WX || address == addr.VBK ||
		address == addr.BCPS || address == addr.BCPD || address == addr.OCPS || address == addr.OCPD:
		b.Sched.Resync(scheduler.PPU)
		return b.Video.ReadRegister(address)
	case address == addr.DMA:
		return 0xFF
	case address == addr.HDMA5:
		return b.HDMA.ReadControl()
	case address == addr.SVBK:
		return b.wramBank
	case address == addr.BOOT:
		return boolToByte(b.bootROMDisabled)
	default:
		return 0xFF
	}
}

func (b *Bus) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		b.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		b.Serial.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		b.Sched.Resync(scheduler.Timer)
		b.Timer.Write(address, value)
		b.Sched.Schedule(scheduler.Timer, 4)
	case address == addr.IF:
		b.IRQ.WriteIF(value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.Sched.Resync(scheduler.SPU)
		b.Audio.WriteRegister(address, value)
	case address == addr.LCDC || address == addr.STAT || address == addr.SCY || address == addr.SCX ||
		address == addr.LYC || address == addr.BGP || address == addr.OBP0 || address == addr.OBP1 ||
		address == addr.WY || address == addr.WX || address == addr.BCPS || address == addr.BCPD ||
		address == addr.OCPS || address == addr.OCPD:
		b.Sched.Resync(scheduler.PPU)
		b.Video.WriteRegister(address, value)
	case address == addr.VBK:
		if b.gbc {
			b.Video.SetVRAMBank(value & 0x01)
		}
	case address == addr.DMA:
		b.Sched.Resync(scheduler.DMA)
		b.DMA.Start(value)
		b.Sched.Schedule(scheduler.DMA, bytesPerDMACycle)
	case address == addr.HDMA1:
		b.HDMA.WriteSourceHigh(value)
	case address == addr.HDMA2:
		b.HDMA.WriteSourceLow(value)
	case address == addr.HDMA3:
		b.HDMA.WriteDestHigh(value)
	case address == addr.HDMA4:
		b.HDMA.WriteDestLow(value)
	case address == addr.HDMA5:
		_, extraCycles := b.HDMA.WriteControl(value)
		if extraCycles > 0 {
			b.Sched.Advance(extraCycles)
		}
	case address == addr.SVBK:
		if b.gbc {
			bank := value & 0x07
			if bank == 0 {
				bank = 1
			}
			b.wramBank = bank
		}
	case address == addr.BOOT:
		b.bootROMDisabled = true
	default:
		b.log.Debug("write to unmapped I/O register", "address", address, "value", value)
	}
}

func boolToByte(v bool) uint8 {
	if v {
		return 0x01
	}
	return 0x00
}
