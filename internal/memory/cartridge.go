package memory

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

const (
	titleAddress          = 0x0134
	titleLength           = 16
	cgbFlagAddress        = 0x0143
	newLicenseeAddress    = 0x0144
	cartridgeTypeAddress  = 0x0147
	romSizeAddress        = 0x0148
	ramSizeAddress        = 0x0149
	headerChecksumAddress = 0x014D
	headerChecksumEnd     = 0x014C
)

// CGBSupport describes the CGB-compatibility flag read from the cartridge
// header.
type CGBSupport uint8

const (
	CGBUnsupported CGBSupport = iota
	CGBEnhanced               // works on DMG and GBC, uses GBC features when available
	CGBOnly
)

// Cartridge holds the raw ROM image plus the parsed header fields needed to
// pick a Memory Bank Controller and to report startup diagnostics.
type Cartridge struct {
	rom  []uint8
	mbc  MBC
	Title            string
	CGB              CGBSupport
	Type             uint8
	HeaderChecksum   uint8
	computedChecksum uint8
	checksumMismatch bool

	dirty          bool
	flushArmed     bool
	flushRemaining int32
	saveFlush      SaveFlusher
}

// SaveFlusher is the disk-I/O collaborator a cartridge calls into once a
// battery-backed RAM write has gone unflushed for flushQuietPeriod cycles.
// Kept as a narrow callback, set with SetSaveFlusher, rather than a file
// path owned by the cartridge itself, so the core never touches the
// filesystem directly.
type SaveFlusher func(data []byte) error

// flushQuietPeriod is how long battery-backed RAM must go unwritten before
// ArmFlush's delta brings the Cart token's sync callback back around to
// flush it: a 3-second quiet period, expressed in T-cycles.
const flushQuietPeriod int32 = 3 * cyclesPerSecond

// Load parses a ROM image, validates its header, and constructs the
// appropriate MBC. A returned error is always fatal to startup: unsupported
// mapper types and implausible ROM/RAM sizes are rejected here rather than
// discovered later as an out-of-bounds bank access.
func Load(rom []uint8, savedRAM []uint8) (*Cartridge, error) {
	if len(rom) < 0x150 {
		return nil, fmt.Errorf("cartridge: ROM too small to contain a header (%d bytes)", len(rom))
	}

	c := &Cartridge{
		rom:            rom,
		Title:          cleanTitle(rom[titleAddress : titleAddress+titleLength]),
		Type:           rom[cartridgeTypeAddress],
		HeaderChecksum: rom[headerChecksumAddress],
	}

	switch rom[cgbFlagAddress] {
	case 0x80:
		c.CGB = CGBEnhanced
	case 0xC0:
		c.CGB = CGBOnly
	default:
		c.CGB = CGBUnsupported
	}

	var sum uint8
	for i := 0x0134; i <= headerChecksumEnd; i++ {
		sum = sum - rom[i] - 1
	}
	c.computedChecksum = sum
	if sum != c.HeaderChecksum {
		// Many real-world ROMs ship with a stale header checksum; this is a
		// diagnostic, not a load failure.
		c.checksumMismatch = true
	}

	expectedBanks, err := romBanks(rom[romSizeAddress])
	if err != nil {
		return nil, fmt.Errorf("cartridge: %w", err)
	}
	expectedSize := expectedBanks * 0x4000
	switch {
	case len(rom) < expectedSize:
		return nil, fmt.Errorf("cartridge: ROM too small for header size code 0x%02X: want %d bytes, got %d", rom[romSizeAddress], expectedSize, len(rom))
	case len(rom) > expectedSize:
		return nil, fmt.Errorf("cartridge: ROM too large for header size code 0x%02X: want %d bytes, got %d", rom[romSizeAddress], expectedSize, len(rom))
	}

	ramSize, err := ramSizeBytes(rom[ramSizeAddress])
	if err != nil {
		return nil, fmt.Errorf("cartridge: %w", err)
	}

	mbc, err := newMBC(c.Type, rom, ramSize, savedRAM)
	if err != nil {
		return nil, fmt.Errorf("cartridge: %w", err)
	}
	c.mbc = mbc

	return c, nil
}

// HasChecksumMismatch reports whether the header checksum failed
// validation; pocketdmg.New logs this as a warning rather than refusing to load.
func (c *Cartridge) HasChecksumMismatch() bool { return c.checksumMismatch }

// HasBattery reports whether the installed MBC persists RAM across runs.
func (c *Cartridge) HasBattery() bool {
	b, ok := c.mbc.(batteryBacked)
	return ok && b.Battery()
}

// SaveRAM returns a snapshot of battery-backed RAM plus RTC state (if any)
// suitable for writing to a save file, or nil if the cartridge has no
// persistent state.
func (c *Cartridge) SaveRAM() []byte {
	b, ok := c.mbc.(batteryBacked)
	if !ok || !b.Battery() {
		return nil
	}
	return b.SaveState()
}

func (c *Cartridge) Read(address uint16) uint8 { return c.mbc.Read(address) }

// Write forwards to the installed MBC and, for battery-backed cartridges,
// marks the save image dirty whenever the write lands in the cart RAM/RTC
// register window (0xA000-0xBFFF). The bus re-arms the flush timer via
// ArmFlush after every such write that leaves the cartridge dirty.
func (c *Cartridge) Write(address uint16, v uint8) {
	c.mbc.Write(address, v)
	if address >= 0xA000 && address <= 0xBFFF && c.HasBattery() {
		c.dirty = true
	}
}

// Dirty reports whether battery-backed RAM has unflushed changes.
func (c *Cartridge) Dirty() bool { return c.dirty }

// ArmFlush starts (or restarts) the quiet-period countdown to the next save
// flush and returns the delta the caller should pass to
// scheduler.Scheduler.Schedule for the Cart token.
func (c *Cartridge) ArmFlush() int32 {
	c.flushArmed = true
	c.flushRemaining = flushQuietPeriod
	return flushQuietPeriod
}

// SetSaveFlusher installs the callback used to persist SaveRAM to disk. A
// nil flusher (the default) disables flushing.
func (c *Cartridge) SetSaveFlusher(flush SaveFlusher) { c.saveFlush = flush }

func (c *Cartridge) flush() {
	if !c.dirty || c.saveFlush == nil {
		return
	}
	data := c.SaveRAM()
	if data == nil {
		return
	}
	if err := c.saveFlush(data); err != nil {
		slog.Warn("cartridge: save flush failed", "error", err)
		return
	}
	c.dirty = false
}

// Tick advances the cartridge's RTC (if present) by elapsed T-cycles and
// services a pending save flush once its quiet period has elapsed,
// returning the delta until it next needs attention. This is the function
// registered with the scheduler's Cart token.
func (c *Cartridge) Tick(elapsed int32) int32 {
	delta := int32(hugeDelta)
	if t, ok := c.mbc.(tickable); ok {
		delta = t.Tick(elapsed)
	}

	if c.flushArmed {
		c.flushRemaining -= elapsed
		if c.flushRemaining <= 0 {
			c.flush()
			c.flushArmed = false
		} else if c.flushRemaining < delta {
			delta = c.flushRemaining
		}
	}

	return delta
}

const hugeDelta int32 = 1 << 30

type batteryBacked interface {
	Battery() bool
	SaveState() []byte
}

type tickable interface {
	Tick(elapsed int32) int32
}

func cleanTitle(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		switch {
		case r == 0:
			continue
		case !unicode.IsPrint(r):
			r = '?'
		}
		runes = append(runes, r)
	}
	title := strings.TrimSpace(string(runes))
	if title == "" {
		return "(untitled)"
	}
	return title
}

func romBanks(code uint8) (int, error) {
	switch code {
	case 0x52:
		return 72, nil
	case 0x53:
		return 80, nil
	case 0x54:
		return 96, nil
	}
	if code <= 0x08 {
		return 2 << code, nil
	}
	return 0, fmt.Errorf("unsupported ROM size code 0x%02X", code)
}

// ramSizeBytes returns the actual backing-store size for a RAM size header
// code. Code 0x01 is the unofficial 2 KiB variant: real hardware only wires
// up 0x800 bytes and mirrors them four times across the 8 KiB 0xA000-0xBFFF
// window, so it gets a quarter-size allocation rather than a full bank --
// ramByte/setRAMByte's modulo-by-len already does the mirroring for free.
func ramSizeBytes(code uint8) (int, error) {
	switch code {
	case 0x00:
		return 0, nil
	case 0x01:
		return 0x800, nil
	case 0x02:
		return 1 * 0x2000, nil
	case 0x03:
		return 4 * 0x2000, nil
	case 0x04:
		return 16 * 0x2000, nil
	case 0x05:
		return 8 * 0x2000, nil
	default:
		return 0, fmt.Errorf("unsupported RAM size code 0x%02X", code)
	}
}
