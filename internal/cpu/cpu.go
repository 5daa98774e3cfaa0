// Package cpu implements the Sharp LR35902 instruction set: register file,
// opcode decode/dispatch, and interrupt servicing. The decoder is
// algorithmic (opcode bits split into x/y/z/p/q fields) rather than a
// literal 256+256 entry table, since the GB opcode map is regular enough
// that the field decomposition reproduces the exact encoding used by the
// hardware while keeping the source a fraction of the size of a fully
// unrolled table.
package cpu

import "github.com/nbarrow/pocketdmg/internal/addr"

// Bus is the CPU's view of the address space: every load/store instruction
// goes through it, so that MMIO side effects (device resyncs) happen
// exactly where real hardware would see them.
type Bus interface {
	ReadByte(address uint16) uint8
	WriteByte(address uint16, value uint8)
}

// InterruptSource lets the CPU inspect and service interrupts without
// depending on the memory bus's own IF/IE-register bookkeeping.
type InterruptSource interface {
	Pending() uint8
	Clear(i addr.Interrupt)
}

// CPU holds LR35902 register state and drives fetch/decode/execute.
type CPU struct {
	r   Registers
	bus Bus
	irq InterruptSource

	ime          bool
	imeScheduled bool

	halted  bool
	haltBug bool
	stopped bool
}

// New returns a CPU wired to the given bus and interrupt controller, with
// registers set to the documented DMG post-bootrom state.
func New(bus Bus, irq InterruptSource) *CPU {
	c := &CPU{bus: bus, irq: irq}
	c.r.af.set(0x01B0)
	c.r.bc.set(0x0013)
	c.r.de.set(0x00D8)
	c.r.hl.set(0x014D)
	c.r.sp.set(0xFFFE)
	c.r.pc.set(0x0100)
	return c
}

// PC returns the program counter.
func (c *CPU) PC() uint16 { return c.r.pc.get() }

// Halted reports whether the CPU is parked in HALT waiting for an
// interrupt.
func (c *CPU) Halted() bool { return c.halted }

// Stopped reports whether the CPU is parked in the STOP low-power state.
// Implementers targeting broader compatibility implement STOP as a genuine
// low-power halt exited by a joypad transition rather than treating it as a
// fatal condition; this core takes that path (see DESIGN.md).
func (c *CPU) Stopped() bool { return c.stopped }

// ResumeFromStop exits the STOP state. Called by the input subsystem when a
// joypad line transitions high-to-low while stopped.
func (c *CPU) ResumeFromStop() { c.stopped = false }

func (c *CPU) fetch8() uint8 {
	v := c.bus.ReadByte(c.r.pc.get())
	c.r.pc.incr()
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push16(v uint16) {
	c.r.sp.decr()
	c.bus.WriteByte(c.r.sp.get(), uint8(v>>8))
	c.r.sp.decr()
	c.bus.WriteByte(c.r.sp.get(), uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := c.bus.ReadByte(c.r.sp.get())
	c.r.sp.incr()
	hi := c.bus.ReadByte(c.r.sp.get())
	c.r.sp.incr()
	return uint16(hi)<<8 | uint16(lo)
}

// Step executes exactly one instruction (servicing a pending interrupt
// first if one is due) and returns the number of T-cycles it consumed.
func (c *CPU) Step() int {
	if n, serviced := c.serviceInterrupt(); serviced {
		return n
	}

	if c.stopped {
		return 4
	}

	if c.halted {
		if c.irq.Pending() != 0 {
			c.halted = false
		} else {
			return 4
		}
	}

	if c.imeScheduled {
		c.imeScheduled = false
		c.ime = true
	}

	opcode := c.fetch8()
	if c.haltBug {
		// The halt bug replays the byte after HALT instead of advancing PC,
		// when HALT was entered with IME=0 and an interrupt was pending.
		c.r.pc.decr()
		c.haltBug = false
	}

	return c.execute(opcode)
}

func (c *CPU) serviceInterrupt() (int, bool) {
	if !c.ime {
		return 0, false
	}
	pending := c.irq.Pending()
	if pending == 0 {
		return 0, false
	}

	var which addr.Interrupt
	var vector uint16
	switch {
	case pending&uint8(addr.VBlankInterrupt) != 0:
		which, vector = addr.VBlankInterrupt, 0x0040
	case pending&uint8(addr.LCDSTATInterrupt) != 0:
		which, vector = addr.LCDSTATInterrupt, 0x0048
	case pending&uint8(addr.TimerInterrupt) != 0:
		which, vector = addr.TimerInterrupt, 0x0050
	case pending&uint8(addr.SerialInterrupt) != 0:
		which, vector = addr.SerialInterrupt, 0x0058
	case pending&uint8(addr.JoypadInterrupt) != 0:
		which, vector = addr.JoypadInterrupt, 0x0060
	default:
		return 0, false
	}

	c.ime = false
	c.halted = false
	c.irq.Clear(which)
	c.push16(c.r.pc.get())
	c.r.pc.set(vector)
	return 20, true
}
