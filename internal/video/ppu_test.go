package video

import (
	"testing"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/nbarrow/pocketdmg/internal/interrupt"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	dmgLines int
	flips    int
}

func (r *recordingSink) DrawLineDMG(ly int, line [160]uint8)  { r.dmgLines++ }
func (r *recordingSink) DrawLineGBC(ly int, line [160]uint16) {}
func (r *recordingSink) Flip()                                { r.flips++ }

func newTestPPU() (*PPU, *recordingSink, *interrupt.Controller) {
	p := New(false)
	irq := interrupt.New()
	p.SetInterruptController(irq)
	sink := &recordingSink{}
	p.SetSink(sink)
	p.WriteRegister(addr.LCDC, 0x91)
	return p, sink, irq
}

func TestModeSequenceWithinOneLine(t *testing.T) {
	p, _, _ := newTestPPU()

	require.EqualValues(t, 2, p.currentMode())
	p.Sync(oamCycles)
	require.EqualValues(t, 3, p.currentMode())
	p.Sync(drawEndPos - oamCycles)
	require.EqualValues(t, 0, p.currentMode())
	p.Sync(lineTotal - drawEndPos)
	require.EqualValues(t, 1, p.LY())
}

func TestVBlankEntryRequestsInterruptAndFlips(t *testing.T) {
	p, sink, irq := newTestPPU()

	p.Sync(int32(lineTotal) * firstVBlank)

	require.EqualValues(t, firstVBlank, p.LY())
	require.NotZero(t, irq.ReadIF()&uint8(addr.VBlankInterrupt))
	require.Equal(t, 1, sink.flips)
	require.Equal(t, firstVBlank, sink.dmgLines)
}

func TestFrameWrapsAfterLine153(t *testing.T) {
	p, _, _ := newTestPPU()

	totalLines := lastLine + 1
	p.Sync(int32(lineTotal) * int32(totalLines))

	require.EqualValues(t, 0, p.LY())
}

func TestLCDCDisableBlanksAndResetsLY(t *testing.T) {
	p, _, _ := newTestPPU()

	p.Sync(int32(lineTotal) * 5)
	require.NotZero(t, p.LY())

	p.WriteRegister(addr.LCDC, 0x00)
	require.EqualValues(t, 0, p.LY())
}

func TestVRAMReadWriteRoundTrip(t *testing.T) {
	p := New(false)
	p.WriteVRAM(0x8000, 0x42)
	require.EqualValues(t, 0x42, p.ReadVRAM(0x8000))
}

func TestOAMReadWriteRoundTrip(t *testing.T) {
	p := New(false)
	p.WriteOAM(0xFE00, 0x10)
	p.WriteOAM(0xFE01, 0x20)
	require.EqualValues(t, 0x10, p.ReadOAM(0xFE00))
	require.EqualValues(t, 0x20, p.ReadOAM(0xFE01))
}
