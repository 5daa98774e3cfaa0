// Package video implements the PPU: the scanline-timed state machine that
// drives LCDC/STAT mode transitions, the background/window/sprite renderer,
// DMG and GBC palette resolution, and the 40-entry OAM table. Per DESIGN.md's
// Open Question decision, rendering happens once per scanline at the
// Mode 3 -> Mode 0 boundary rather than per dot.
package video

import (
	"sort"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/nbarrow/pocketdmg/internal/bit"
	"github.com/nbarrow/pocketdmg/internal/interrupt"
)

// Scanline timing, in T-cycles (spec.md §4.8).
const (
	oamCycles   = 80  // Mode 2: 0..79
	drawEndPos  = 252 // Mode 3 ends, Mode 0 begins: 80..251
	lineTotal   = 456 // full scanline
	firstVBlank = 144
	lastLine    = 153
)

// DisplaySink is the subset of backend.Sink the PPU pushes frames through.
// Defined locally (rather than importing internal/backend) so the video
// package has no outward dependency; any backend.Sink satisfies it
// structurally.
type DisplaySink interface {
	DrawLineDMG(ly int, line [160]uint8)
	DrawLineGBC(ly int, line [160]uint16)
	Flip()
}

type objAttr struct {
	y, x, tile, flags uint8
}

// PPU holds all display state: VRAM (1 or 2 banks), OAM, LCDC/STAT decoded
// fields, scroll/window positions, DMG and GBC palettes, and the scanline
// position counter.
type PPU struct {
	gbc bool

	vram     [2][0x2000]uint8
	vramBank uint8
	oam      [40]objAttr

	lcdc uint8
	statEnables uint8 // bits 3-6 only; mode (0-1) and LYC flag (2) are derived

	scy, scx   uint8
	ly, lyc    uint8
	wy, wx     uint8
	bgp, obp0, obp1 uint8

	bgPalette  [8][4]uint16 // GBC background palettes, raw BGR555
	objPalette [8][4]uint16 // GBC sprite palettes, raw BGR555
	bgPaletteIndex, objPaletteIndex uint8
	bgPaletteAutoInc, objPaletteAutoInc bool

	linePos    int32 // 0..455 within the current scanline
	windowLine int   // internal window line counter, independent of LY

	irq        *interrupt.Controller
	hblankHook func()
	sink       DisplaySink

	lineDMG [160]uint8
	lineGBC [160]uint16
}

// New returns a PPU reset to the documented DMG/GBC post-bootrom state.
func New(gbc bool) *PPU {
	p := &PPU{gbc: gbc}
	p.lcdc = 0x91
	p.bgp = 0xFC
	p.obp0 = 0xFF
	p.obp1 = 0xFF
	p.ly = 0
	for i := range p.bgPalette {
		for j := range p.bgPalette[i] {
			p.bgPalette[i][j] = 0x7FFF
			p.objPalette[i][j] = 0x7FFF
		}
	}
	return p
}

// SetInterruptController wires the controller the PPU requests VBLANK and
// LCD_STAT interrupts through.
func (p *PPU) SetInterruptController(irq *interrupt.Controller) { p.irq = irq }

// SetHBlankHook wires the callback fired once per HBlank entry, used by the
// HDMA controller to copy its next 16-byte burst.
func (p *PPU) SetHBlankHook(fn func()) { p.hblankHook = fn }

// SetSink wires the host display sink that scanlines and frame-complete
// notifications are pushed through.
func (p *PPU) SetSink(sink DisplaySink) { p.sink = sink }

// LY exposes the current scanline for debug tooling.
func (p *PPU) LY() uint8 { return p.ly }

func (p *PPU) lcdEnabled() bool          { return p.lcdc&0x80 != 0 }
func (p *PPU) windowTileMapHigh() bool   { return p.lcdc&0x40 != 0 }
func (p *PPU) windowEnabled() bool       { return p.lcdc&0x20 != 0 }
func (p *PPU) bgWindowTileDataLow() bool { return p.lcdc&0x10 != 0 }
func (p *PPU) bgTileMapHigh() bool       { return p.lcdc&0x08 != 0 }
func (p *PPU) tallSprites() bool         { return p.lcdc&0x04 != 0 }
func (p *PPU) spritesEnabled() bool      { return p.lcdc&0x02 != 0 }
func (p *PPU) bgEnabled() bool           { return p.lcdc&0x01 != 0 }

// currentMode derives the STAT mode (0-3) from LY and line position rather
// than storing it separately, since it is always a pure function of the two.
func (p *PPU) currentMode() uint8 {
	if p.ly >= firstVBlank {
		return 1
	}
	switch {
	case p.linePos < oamCycles:
		return 2
	case p.linePos < drawEndPos:
		return 3
	default:
		return 0
	}
}

// Sync is the scheduler.SyncFunc registered for the PPU token.
func (p *PPU) Sync(elapsed int32) int32 {
	if !p.lcdEnabled() {
		return 1 << 30
	}

	remaining := elapsed
	for remaining > 0 {
		lineRemaining := int32(lineTotal) - p.linePos
		if remaining < lineRemaining {
			prevMode := p.currentMode()
			p.linePos += remaining
			remaining = 0
			if prevMode == 3 && p.currentMode() == 0 {
				p.renderScanline()
				if p.statEnables&0x08 != 0 {
					p.irq.Request(addr.LCDSTATInterrupt)
				}
				if p.hblankHook != nil {
					p.hblankHook()
				}
			}
		} else {
			prevMode := p.currentMode()
			remaining -= lineRemaining
			if prevMode == 2 || prevMode == 3 {
				p.renderScanline()
				if p.statEnables&0x08 != 0 {
					p.irq.Request(addr.LCDSTATInterrupt)
				}
				if p.hblankHook != nil {
					p.hblankHook()
				}
			}
			p.linePos = 0
			p.advanceLine()
		}
	}
	return int32(lineTotal) - p.linePos
}

func (p *PPU) advanceLine() {
	p.ly++
	if p.ly == firstVBlank {
		p.irq.Request(addr.VBlankInterrupt)
		if p.statEnables&0x10 != 0 {
			p.irq.Request(addr.LCDSTATInterrupt)
		}
		if p.sink != nil {
			p.sink.Flip()
		}
		p.windowLine = 0
	} else if p.ly > lastLine {
		p.ly = 0
	}

	if p.ly == p.lyc && p.statEnables&0x40 != 0 {
		p.irq.Request(addr.LCDSTATInterrupt)
	}

	if p.ly < firstVBlank && p.currentMode() == 2 && p.statEnables&0x20 != 0 {
		p.irq.Request(addr.LCDSTATInterrupt)
	}
}

// renderScanline draws the current LY into the pixel buffer and pushes it to
// the sink: background, then window (on top where visible), then sprites.
func (p *PPU) renderScanline() {
	ly := int(p.ly)
	if ly >= firstVBlank {
		return
	}

	var bgColorIdx [160]uint8
	var bgOpaque [160]bool
	var bgPriority [160]bool
	windowDrawn := false

	for x := 0; x < 160; x++ {
		var colorIdx, palette uint8
		var priority bool
		switch {
		case p.windowEnabled() && x+7 >= int(p.wx) && ly >= int(p.wy):
			colorIdx, palette, priority = p.fetchWindowPixel(x)
			windowDrawn = true
		case p.bgEnabled() || p.gbc:
			colorIdx, palette, priority = p.fetchBackgroundPixel(x)
		default:
			colorIdx, palette, priority = 0, 0, false
		}

		bgColorIdx[x] = colorIdx
		bgOpaque[x] = colorIdx != 0
		bgPriority[x] = priority

		if p.gbc {
			p.lineGBC[x] = p.bgPalette[palette][colorIdx]
		} else {
			p.lineDMG[x] = applyDMGPalette(p.bgp, colorIdx)
		}
	}

	if windowDrawn {
		p.windowLine++
	}

	if p.spritesEnabled() {
		p.overlaySprites(bgColorIdx[:], bgOpaque[:], bgPriority[:])
	}

	if p.sink == nil {
		return
	}
	if p.gbc {
		p.sink.DrawLineGBC(ly, p.lineGBC)
	} else {
		p.sink.DrawLineDMG(ly, p.lineDMG)
	}
}

func applyDMGPalette(palette, colorIdx uint8) uint8 {
	return (palette >> (colorIdx * 2)) & 0x03
}

func (p *PPU) fetchBackgroundPixel(x int) (colorIdx, palette uint8, priority bool) {
	mapX := (x + int(p.scx)) & 0xFF
	mapY := (int(p.ly) + int(p.scy)) & 0xFF
	return p.fetchMapPixel(mapX, mapY, p.bgTileMapHigh())
}

func (p *PPU) fetchWindowPixel(x int) (colorIdx, palette uint8, priority bool) {
	winX := x - (int(p.wx) - 7)
	return p.fetchMapPixel(winX&0xFF, p.windowLine&0xFF, p.windowTileMapHigh())
}

func (p *PPU) fetchMapPixel(mapX, mapY int, highMap bool) (colorIdx, palette uint8, priority bool) {
	tileCol := mapX / 8
	tileRow := mapY / 8
	mapBase := uint16(0x1800)
	if highMap {
		mapBase = 0x1C00
	}
	mapOffset := mapBase + uint16(tileRow*32+tileCol)
	tileNum := p.vram[0][mapOffset]

	var attr uint8
	if p.gbc {
		attr = p.vram[1][mapOffset]
	}
	flipX := attr&0x20 != 0
	flipY := attr&0x40 != 0
	bank := (attr >> 3) & 1
	palette = attr & 0x07
	priority = attr&0x80 != 0

	row := mapY % 8
	if flipY {
		row = 7 - row
	}
	col := mapX % 8
	if flipX {
		col = 7 - col
	}

	tileAddr := p.tileDataAddr(tileNum)
	lo := p.vram[bank][tileAddr+uint16(row*2)]
	hi := p.vram[bank][tileAddr+uint16(row*2)+1]
	bitIdx := uint8(7 - col)
	if bit.IsSet(bitIdx, lo) {
		colorIdx |= 1
	}
	if bit.IsSet(bitIdx, hi) {
		colorIdx |= 2
	}
	return
}

func (p *PPU) tileDataAddr(tileNum uint8) uint16 {
	if p.bgWindowTileDataLow() {
		return uint16(tileNum) * 16
	}
	return uint16(0x1000 + int(int8(tileNum))*16)
}

// visibleSprite is a scanline-scoped copy of an OAM entry used for the
// sprite overlay pass.
type visibleSprite struct {
	y, x     int
	tile     uint8
	flags    uint8
	oamIndex int
}

func (p *PPU) visibleSprites() []visibleSprite {
	height := 8
	if p.tallSprites() {
		height = 16
	}
	var out []visibleSprite
	ly := int(p.ly)
	for i := 0; i < 40; i++ {
		o := p.oam[i]
		y := int(o.y) - 16
		if ly < y || ly >= y+height {
			continue
		}
		out = append(out, visibleSprite{y: y, x: int(o.x) - 8, tile: o.tile, flags: o.flags, oamIndex: i})
		if len(out) == 10 {
			break
		}
	}
	if !p.gbc {
		sort.SliceStable(out, func(a, b int) bool { return out[a].x < out[b].x })
	}
	return out
}

func (p *PPU) overlaySprites(bgColorIdx []uint8, bgOpaque []bool, bgPriorityAttr []bool) {
	height := 8
	if p.tallSprites() {
		height = 16
	}
	sprites := p.visibleSprites()

	for x := 0; x < 160; x++ {
		for _, s := range sprites {
			if x < s.x || x >= s.x+8 {
				continue
			}
			behindBG := s.flags&0x80 != 0
			if !(p.gbc && !p.bgEnabled()) {
				if (behindBG || bgPriorityAttr[x]) && bgOpaque[x] {
					continue
				}
			}

			flipX := s.flags&0x20 != 0
			flipY := s.flags&0x40 != 0
			tileIdx := s.tile
			row := int(p.ly) - s.y
			if flipY {
				row = height - 1 - row
			}
			if height == 16 {
				tileIdx &^= 0x01
				if row >= 8 {
					tileIdx |= 0x01
					row -= 8
				}
			}
			col := x - s.x
			if flipX {
				col = 7 - col
			}

			var bank, palette uint8
			if p.gbc {
				bank = (s.flags >> 3) & 1
				palette = s.flags & 0x07
			} else {
				palette = (s.flags >> 4) & 1
			}

			tileAddr := uint16(tileIdx) * 16
			lo := p.vram[bank][tileAddr+uint16(row*2)]
			hi := p.vram[bank][tileAddr+uint16(row*2)+1]
			bitIdx := uint8(7 - col)
			var colorIdx uint8
			if bit.IsSet(bitIdx, lo) {
				colorIdx |= 1
			}
			if bit.IsSet(bitIdx, hi) {
				colorIdx |= 2
			}
			if colorIdx == 0 {
				continue
			}

			if p.gbc {
				p.lineGBC[x] = p.objPalette[palette][colorIdx]
			} else {
				obp := p.obp0
				if palette == 1 {
					obp = p.obp1
				}
				p.lineDMG[x] = applyDMGPalette(obp, colorIdx)
			}
			break
		}
	}
}

// ReadVRAM/WriteVRAM/ReadOAM/WriteOAM/SetVRAMBank/VRAMBank implement the
// memory.VideoDevice surface the bus dispatches VRAM/OAM accesses through.

func (p *PPU) ReadVRAM(address uint16) uint8 {
	return p.vram[p.vramBank][address-addr.VRAMStart]
}

func (p *PPU) WriteVRAM(address uint16, value uint8) {
	p.vram[p.vramBank][address-addr.VRAMStart] = value
}

func (p *PPU) ReadOAM(address uint16) uint8 {
	idx := address - addr.OAMStart
	o := p.oam[idx/4]
	switch idx % 4 {
	case 0:
		return o.y
	case 1:
		return o.x
	case 2:
		return o.tile
	default:
		return o.flags
	}
}

func (p *PPU) WriteOAM(address uint16, value uint8) {
	idx := address - addr.OAMStart
	o := &p.oam[idx/4]
	switch idx % 4 {
	case 0:
		o.y = value
	case 1:
		o.x = value
	case 2:
		o.tile = value
	default:
		o.flags = value
	}
}

func (p *PPU) SetVRAMBank(bank uint8) {
	if p.gbc {
		p.vramBank = bank & 1
	}
}

func (p *PPU) VRAMBank() uint8 { return p.vramBank }

// ReadRegister/WriteRegister implement the bus-visible register file.

func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		flag := uint8(0)
		if p.ly == p.lyc {
			flag = 0x04
		}
		return 0x80 | p.statEnables | flag | p.currentMode()
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	case addr.VBK:
		return 0xFE | p.vramBank
	case addr.BCPS:
		return p.bgPaletteIndex | boolBit(p.bgPaletteAutoInc, 0x80) | 0x40
	case addr.BCPD:
		return readPaletteByte(&p.bgPalette, p.bgPaletteIndex)
	case addr.OCPS:
		return p.objPaletteIndex | boolBit(p.objPaletteAutoInc, 0x80) | 0x40
	case addr.OCPD:
		return readPaletteByte(&p.objPalette, p.objPaletteIndex)
	default:
		return 0xFF
	}
}

func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case addr.LCDC:
		wasOn := p.lcdEnabled()
		p.lcdc = value
		if wasOn && !p.lcdEnabled() {
			p.blankScreen()
		}
	case addr.STAT:
		p.statEnables = value & 0x78
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read-only on hardware
	case addr.LYC:
		p.lyc = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	case addr.BCPS:
		p.bgPaletteIndex = value & 0x3F
		p.bgPaletteAutoInc = value&0x80 != 0
	case addr.BCPD:
		writePaletteByte(&p.bgPalette, p.bgPaletteIndex, value)
		if p.bgPaletteAutoInc {
			p.bgPaletteIndex = (p.bgPaletteIndex + 1) & 0x3F
		}
	case addr.OCPS:
		p.objPaletteIndex = value & 0x3F
		p.objPaletteAutoInc = value&0x80 != 0
	case addr.OCPD:
		writePaletteByte(&p.objPalette, p.objPaletteIndex, value)
		if p.objPaletteAutoInc {
			p.objPaletteIndex = (p.objPaletteIndex + 1) & 0x3F
		}
	}
}

// blankScreen implements the "LCDC enable bit 1->0" edge: the display goes
// white immediately rather than waiting for the next frame, per spec.md §4.3.
func (p *PPU) blankScreen() {
	p.ly = 0
	p.linePos = 0
	p.windowLine = 0
	if p.sink == nil {
		return
	}
	var whiteDMG [160]uint8
	var whiteGBC [160]uint16
	for i := range whiteGBC {
		whiteGBC[i] = 0x7FFF
	}
	for y := 0; y < firstVBlank; y++ {
		if p.gbc {
			p.sink.DrawLineGBC(y, whiteGBC)
		} else {
			p.sink.DrawLineDMG(y, whiteDMG)
		}
	}
	p.sink.Flip()
}

func boolBit(v bool, mask uint8) uint8 {
	if v {
		return mask
	}
	return 0
}

func readPaletteByte(table *[8][4]uint16, idx uint8) uint8 {
	color := idx / 2
	v := table[color/4][color%4]
	if idx%2 == 0 {
		return uint8(v)
	}
	return uint8(v >> 8)
}

func writePaletteByte(table *[8][4]uint16, idx uint8, value uint8) {
	color := idx / 2
	pal, slot := color/4, color%4
	v := table[pal][slot]
	if idx%2 == 0 {
		v = (v &^ 0x00FF) | uint16(value)
	} else {
		v = (v &^ 0x7F00) | (uint16(value&0x7F) << 8)
	}
	table[pal][slot] = v
}
