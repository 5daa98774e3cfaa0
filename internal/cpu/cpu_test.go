package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbarrow/pocketdmg/internal/addr"
)

type fakeBus struct {
	mem [0x10000]uint8
}

func (b *fakeBus) ReadByte(address uint16) uint8          { return b.mem[address] }
func (b *fakeBus) WriteByte(address uint16, value uint8) { b.mem[address] = value }

type fakeIRQ struct {
	pending uint8
}

func (f *fakeIRQ) Pending() uint8           { return f.pending }
func (f *fakeIRQ) Clear(i addr.Interrupt)   { f.pending &^= uint8(i) }

func newTestCPU() (*CPU, *fakeBus) {
	bus := &fakeBus{}
	c := New(bus, &fakeIRQ{})
	c.r.pc.set(0x0000)
	return c, bus
}

func loadProgram(bus *fakeBus, at uint16, bytes ...uint8) {
	for i, b := range bytes {
		bus.mem[at+uint16(i)] = b
	}
}

func TestLDRegisterToRegister(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0, 0x3E, 0x42, 0x47) // LD A,0x42 ; LD B,A
	cycles := c.Step()
	require.Equal(t, 8, cycles)
	cycles = c.Step()
	require.Equal(t, 4, cycles)
	require.Equal(t, uint8(0x42), c.r.bc.high())
}

func TestAddSetsFlags(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0, 0x3E, 0x0F, 0x06, 0x01, 0x80) // LD A,0x0F; LD B,1; ADD A,B
	c.Step()
	c.Step()
	c.Step()
	require.Equal(t, uint8(0x10), c.r.a())
	require.True(t, c.r.flagH())
	require.False(t, c.r.flagCY())
	require.False(t, c.r.flagZ())
}

func TestIncDecHalfCarry(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0, 0x3E, 0xFF, 0x3C) // LD A,0xFF; INC A
	c.Step()
	c.Step()
	require.Equal(t, uint8(0x00), c.r.a())
	require.True(t, c.r.flagZ())
	require.True(t, c.r.flagH())
}

func TestDAAAfterBCDAddition(t *testing.T) {
	c, bus := newTestCPU()
	// 0x45 + 0x38 in BCD should give 0x83 after DAA.
	loadProgram(bus, 0, 0x3E, 0x45, 0x06, 0x38, 0x80, 0x27)
	for i := 0; i < 4; i++ {
		c.Step()
	}
	require.Equal(t, uint8(0x83), c.r.a())
	require.False(t, c.r.flagCY())
}

func TestJRRelativeJump(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0, 0x18, 0x02, 0x00, 0x00, 0x3E, 0x99) // JR +2 ; (skip 2 NOPs) LD A,0x99
	c.Step()
	require.Equal(t, uint16(4), c.r.pc.get())
	c.Step()
	require.Equal(t, uint8(0x99), c.r.a())
}

func TestCallAndRet(t *testing.T) {
	c, bus := newTestCPU()
	c.r.sp.set(0xFFFE)
	loadProgram(bus, 0, 0xCD, 0x05, 0x00, 0x00, 0x00, 0x3E, 0x7, 0xC9) // CALL 0x0005; .. ; LD A,7; RET
	c.Step() // CALL
	require.Equal(t, uint16(0x0005), c.r.pc.get())
	c.Step() // LD A,7
	c.Step() // RET
	require.Equal(t, uint16(0x0003), c.r.pc.get())
	require.Equal(t, uint8(7), c.r.a())
}

func TestPushPopRoundtrips(t *testing.T) {
	c, bus := newTestCPU()
	c.r.sp.set(0xFFFE)
	c.r.bc.set(0x1234)
	loadProgram(bus, 0, 0xC5, 0xD1) // PUSH BC ; POP DE
	c.Step()
	c.Step()
	require.Equal(t, uint16(0x1234), c.r.de.get())
}

func TestCBBitOpcode(t *testing.T) {
	c, bus := newTestCPU()
	loadProgram(bus, 0, 0x3E, 0x00, 0xCB, 0x47) // LD A,0 ; BIT 0,A
	c.Step()
	c.Step()
	require.True(t, c.r.flagZ())
	require.True(t, c.r.flagH())
}

func TestHaltWaitsForInterrupt(t *testing.T) {
	bus := &fakeBus{}
	irq := &fakeIRQ{}
	c := New(bus, irq)
	c.r.pc.set(0)
	loadProgram(bus, 0, 0x76) // HALT
	c.Step()
	require.True(t, c.Halted())
	cycles := c.Step()
	require.Equal(t, 4, cycles)
	require.True(t, c.Halted())
}
