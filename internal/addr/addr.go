// Package addr names the memory-mapped I/O addresses and interrupt bit
// positions used to dispatch bus accesses onto devices.
package addr

// PPU registers.
const (
	LCDC uint16 = 0xFF40 // LCD Control
	STAT uint16 = 0xFF41 // LCDC Status
	SCY  uint16 = 0xFF42 // Scroll Y
	SCX  uint16 = 0xFF43 // Scroll X
	LY   uint16 = 0xFF44 // LCDC Y-Coordinate (read-only)
	LYC  uint16 = 0xFF45 // LY Compare
	DMA  uint16 = 0xFF46 // OAM DMA Transfer and Start
	BGP  uint16 = 0xFF47 // BG Palette (DMG)
	OBP0 uint16 = 0xFF48 // Object Palette 0 (DMG)
	OBP1 uint16 = 0xFF49 // Object Palette 1 (DMG)
	WY   uint16 = 0xFF4A // Window Y Position
	WX   uint16 = 0xFF4B // Window X Position
)

// GBC-only registers.
const (
	VBK   uint16 = 0xFF4F // VRAM Bank select
	KEY1  uint16 = 0xFF4D // Prepare Speed Switch
	HDMA1 uint16 = 0xFF51 // HDMA source high
	HDMA2 uint16 = 0xFF52 // HDMA source low
	HDMA3 uint16 = 0xFF53 // HDMA dest high
	HDMA4 uint16 = 0xFF54 // HDMA dest low
	HDMA5 uint16 = 0xFF55 // HDMA length/mode/start
	BCPS  uint16 = 0xFF68 // Background Color Palette Specification
	BCPD  uint16 = 0xFF69 // Background Color Palette Data
	OCPS  uint16 = 0xFF6A // Object Color Palette Specification
	OCPD  uint16 = 0xFF6B // Object Color Palette Data
	SVBK  uint16 = 0xFF70 // WRAM Bank select (CGB)
)

// Audio registers. Reference: https://gbdev.io/pandocs/Audio_Registers.html
const (
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F

	NR10 uint16 = 0xFF10 // Channel 1 sweep
	NR11 uint16 = 0xFF11 // Channel 1 length timer & duty cycle
	NR12 uint16 = 0xFF12 // Channel 1 volume & envelope
	NR13 uint16 = 0xFF13 // Channel 1 period low
	NR14 uint16 = 0xFF14 // Channel 1 period high & control

	NR21 uint16 = 0xFF16 // Channel 2 length timer & duty cycle
	NR22 uint16 = 0xFF17 // Channel 2 volume & envelope
	NR23 uint16 = 0xFF18 // Channel 2 period low
	NR24 uint16 = 0xFF19 // Channel 2 period high & control

	NR30 uint16 = 0xFF1A // Channel 3 DAC enable
	NR31 uint16 = 0xFF1B // Channel 3 length timer
	NR32 uint16 = 0xFF1C // Channel 3 output level
	NR33 uint16 = 0xFF1D // Channel 3 period low
	NR34 uint16 = 0xFF1E // Channel 3 period high & control

	NR41 uint16 = 0xFF20 // Channel 4 length timer
	NR42 uint16 = 0xFF21 // Channel 4 volume & envelope
	NR43 uint16 = 0xFF22 // Channel 4 frequency & randomness
	NR44 uint16 = 0xFF23 // Channel 4 control

	NR50 uint16 = 0xFF24 // Master volume & VIN panning
	NR51 uint16 = 0xFF25 // Sound panning
	NR52 uint16 = 0xFF26 // Sound on/off and channel status

	WaveRAMStart uint16 = 0xFF30
	WaveRAMEnd   uint16 = 0xFF3F
)

// OAM.
const (
	OAMStart uint16 = 0xFE00
	OAMEnd   uint16 = 0xFE9F
)

// Tile data and tile maps.
const (
	TileData0 uint16 = 0x8000
	TileData1 uint16 = 0x8800
	TileData2 uint16 = 0x9000

	TileMap0 uint16 = 0x9800
	TileMap1 uint16 = 0x9C00

	VRAMStart uint16 = 0x8000
	VRAMEnd   uint16 = 0x9FFF
)

// Interrupts.
const (
	IF uint16 = 0xFF0F
	IE uint16 = 0xFFFF
)

// Joypad.
const (
	P1 uint16 = 0xFF00
)

// Serial I/O.
const (
	SB uint16 = 0xFF01
	SC uint16 = 0xFF02
)

// Timer.
const (
	DIV  uint16 = 0xFF04
	TIMA uint16 = 0xFF05
	TMA  uint16 = 0xFF06
	TAC  uint16 = 0xFF07
)

// Boot ROM disable latch.
const (
	BOOT uint16 = 0xFF50
)

// Interrupt bit positions, shared by IF/IE.
type Interrupt uint8

const (
	VBlankInterrupt  Interrupt = 1 << 0
	LCDSTATInterrupt Interrupt = 1 << 1
	TimerInterrupt   Interrupt = 1 << 2
	SerialInterrupt  Interrupt = 1 << 3
	JoypadInterrupt  Interrupt = 1 << 4
)
