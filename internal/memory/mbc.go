package memory

import "fmt"

// MBC is the interface every Memory Bank Controller implements. Bank
// switching, RAM gating, and (for MBC3) RTC register access all happen
// behind this one Read/Write surface so the bus doesn't need to know which
// mapper is installed.
type MBC interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

func newMBC(cartType uint8, rom []uint8, ramSize int, savedRAM []byte) (MBC, error) {
	switch cartType {
	case 0x00:
		return newNoMBC(rom), nil
	case 0x01, 0x02, 0x03:
		return newMBC1(rom, ramSize, cartType == 0x03, savedRAM), nil
	case 0x05, 0x06:
		return newMBC2(rom, cartType == 0x06, savedRAM), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		hasRTC := cartType == 0x0F || cartType == 0x10
		hasBattery := cartType != 0x11 && cartType != 0x12
		return newMBC3(rom, ramSize, hasRTC, hasBattery, savedRAM), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		hasRumble := cartType == 0x1C || cartType == 0x1D || cartType == 0x1E
		hasBattery := cartType == 0x1B || cartType == 0x1E
		return newMBC5(rom, ramSize, hasRumble, hasBattery, savedRAM), nil
	default:
		return nil, fmt.Errorf("unsupported cartridge type 0x%02X", cartType)
	}
}

// noMBC serves ROM-only cartridges with no banking and no RAM.
type noMBC struct {
	rom []uint8
}

func newNoMBC(rom []uint8) *noMBC { return &noMBC{rom: rom} }

func (m *noMBC) Read(address uint16) uint8 {
	if int(address) < len(m.rom) {
		return m.rom[address]
	}
	return 0xFF
}
func (m *noMBC) Write(address uint16, value uint8) {}

// mbc1 implements the classic 5-bit ROM bank / 2-bit RAM-or-extended-ROM
// bank controller, including its bank-0-aliasing quirk in mode 0.
type mbc1 struct {
	rom, ram           []uint8
	romBank, ramBank   uint8
	bankingMode        uint8
	ramEnabled         bool
	battery            bool
}

func newMBC1(rom []uint8, ramSize int, hasBattery bool, saved []byte) *mbc1 {
	m := &mbc1{rom: rom, ram: make([]uint8, ramSize), romBank: 1, battery: hasBattery}
	loadSavedRAM(m.ram, saved)
	return m
}

func (m *mbc1) Battery() bool    { return m.battery }
func (m *mbc1) SaveState() []byte { return append([]byte(nil), m.ram...) }

func (m *mbc1) effectiveROMBank() uint8 {
	bank := m.romBank
	if bank&0x1F == 0 {
		bank |= 1
	}
	return bank
}

func (m *mbc1) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		bank := uint8(0)
		if m.bankingMode == 1 {
			bank = (m.romBank & 0x60)
		}
		return romByte(m.rom, bank, address)
	case address <= 0x7FFF:
		return romByte(m.rom, m.effectiveROMBank(), address-0x4000)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		bank := uint8(0)
		if m.bankingMode == 1 {
			bank = m.ramBank
		}
		return ramByte(m.ram, bank, address-0xA000)
	}
	return 0xFF
}

func (m *mbc1) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		bank := value & 0x1F
		m.romBank = (m.romBank & 0x60) | bank
	case address <= 0x5FFF:
		bits := value & 0x03
		m.romBank = (m.romBank & 0x1F) | (bits << 5)
		m.ramBank = bits
	case address <= 0x7FFF:
		m.bankingMode = value & 0x01
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		bank := uint8(0)
		if m.bankingMode == 1 {
			bank = m.ramBank
		}
		setRAMByte(m.ram, bank, address-0xA000, value)
	}
}

// mbc2 has 512x4-bit RAM built into the cartridge itself, addressed with
// only the bottom 9 bits; every other bit of a read mirrors that range.
type mbc2 struct {
	rom        []uint8
	ram        [512]uint8
	romBank    uint8
	ramEnabled bool
	battery    bool
}

func newMBC2(rom []uint8, hasBattery bool, saved []byte) *mbc2 {
	m := &mbc2{rom: rom, romBank: 1, battery: hasBattery}
	if len(saved) == len(m.ram) {
		copy(m.ram[:], saved)
	}
	return m
}

func (m *mbc2) Battery() bool     { return m.battery }
func (m *mbc2) SaveState() []byte { return append([]byte(nil), m.ram[:]...) }

func (m *mbc2) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return romByte(m.rom, 0, address)
	case address <= 0x7FFF:
		return romByte(m.rom, m.romBank, address-0x4000)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.ram[address&0x1FF] | 0xF0
	}
	return 0xFF
}

func (m *mbc2) Write(address uint16, value uint8) {
	switch {
	case address <= 0x3FFF:
		if address&0x0100 != 0 {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		} else {
			m.ramEnabled = value&0x0F == 0x0A
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if m.ramEnabled {
			m.ram[address&0x1FF] = value & 0x0F
		}
	}
}

// rtc implements the MBC3 real-time clock: five latched registers (S, M, H,
// DL, DH) backed by a live counter that free-runs in CPU cycles and is only
// copied into the latched registers on a 0->1 write to the latch port.
type rtc struct {
	seconds, minutes, hours uint8
	days                    uint16 // 9-bit day counter, bit 8 latches into DH (latched[4]) bit 0
	halted                  bool
	dayCarry                bool // sticky day-counter overflow flag (DAYH bit 7)

	latched [5]uint8
	latchArmed bool // unused; the latch port's 0x00-then-0x01 sequence is tracked by mbc3.lastLatchWrite

	subSecondCycles int32 // accumulates towards the next one-second tick
}

const cyclesPerSecond = 4194304

func (r *rtc) tick(elapsed int32) int32 {
	if r.halted {
		return hugeDelta
	}
	r.subSecondCycles += elapsed
	for r.subSecondCycles >= cyclesPerSecond {
		r.subSecondCycles -= cyclesPerSecond
		r.advanceSecond()
	}
	return cyclesPerSecond - r.subSecondCycles
}

func (r *rtc) advanceSecond() {
	r.seconds++
	if r.seconds < 60 {
		return
	}
	r.seconds = 0
	r.minutes++
	if r.minutes < 60 {
		return
	}
	r.minutes = 0
	r.hours++
	if r.hours < 24 {
		return
	}
	r.hours = 0
	r.days++
	if r.days > 0x1FF {
		r.days = 0
		r.dayCarry = true
	}
}

func (r *rtc) latch() {
	r.latched[0] = r.seconds
	r.latched[1] = r.minutes
	r.latched[2] = r.hours
	r.latched[3] = uint8(r.days)
	dayHigh := uint8(r.days>>8) & 0x01
	if r.halted {
		dayHigh |= 0x40
	}
	if r.dayCarry {
		dayHigh |= 0x80
	}
	r.latched[4] = dayHigh
}

func (r *rtc) writeSelected(reg uint8, value uint8) {
	switch reg {
	case 0x08:
		r.seconds = value
		r.subSecondCycles = 0
	case 0x09:
		r.minutes = value
	case 0x0A:
		r.hours = value
	case 0x0B:
		r.days = (r.days & 0x100) | uint16(value)
	case 0x0C:
		r.days = (r.days & 0xFF) | (uint16(value&0x01) << 8)
		r.halted = value&0x40 != 0
		r.dayCarry = value&0x80 != 0
	}
}

func (r *rtc) readLatched(reg uint8) uint8 {
	return r.latched[reg-0x08]
}

func (r *rtc) snapshot() [5]byte {
	r.latch()
	return [5]byte{r.latched[0], r.latched[1], r.latched[2], r.latched[3], r.latched[4]}
}

// mbc3 adds RTC register banking (0x08-0x0C selected via the RAM-bank
// register) on top of MBC1-style ROM/RAM banking, minus MBC1's mode quirks.
type mbc3 struct {
	rom, ram         []uint8
	romBank, ramBank uint8
	ramEnabled       bool
	hasRTC           bool
	battery          bool
	rtc              rtc
	lastLatchWrite   uint8
}

func newMBC3(rom []uint8, ramSize int, hasRTC, hasBattery bool, saved []byte) *mbc3 {
	m := &mbc3{rom: rom, ram: make([]uint8, ramSize), romBank: 1, hasRTC: hasRTC, battery: hasBattery, lastLatchWrite: 0x01}
	n := len(m.ram)
	if hasRTC && len(saved) >= n+5 {
		copy(m.ram, saved[:n])
		loadRTC(&m.rtc, saved[n:n+5])
	} else {
		loadSavedRAM(m.ram, saved)
	}
	return m
}

func loadRTC(r *rtc, b []byte) {
	r.seconds, r.minutes, r.hours = b[0], b[1], b[2]
	r.days = uint16(b[3]) | (uint16(b[4]&0x01) << 8)
	r.halted = b[4]&0x40 != 0
	r.dayCarry = b[4]&0x80 != 0
}

func (m *mbc3) Battery() bool { return m.battery }
func (m *mbc3) SaveState() []byte {
	out := append([]byte(nil), m.ram...)
	if m.hasRTC {
		snap := m.rtc.snapshot()
		out = append(out, snap[:]...)
	}
	return out
}

func (m *mbc3) Tick(elapsed int32) int32 {
	if !m.hasRTC {
		return hugeDelta
	}
	return m.rtc.tick(elapsed)
}

func (m *mbc3) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return romByte(m.rom, 0, address)
	case address <= 0x7FFF:
		bank := m.romBank
		if bank == 0 {
			bank = 1
		}
		return romByte(m.rom, bank, address-0x4000)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.rtc.readLatched(m.ramBank)
		}
		return ramByte(m.ram, m.ramBank, address-0xA000)
	}
	return 0xFF
}

func (m *mbc3) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address <= 0x5FFF:
		m.ramBank = value
	case address <= 0x7FFF:
		if m.hasRTC && m.lastLatchWrite == 0x00 && value == 0x01 {
			m.rtc.latch()
		}
		m.lastLatchWrite = value
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.rtc.writeSelected(m.ramBank, value)
			return
		}
		setRAMByte(m.ram, m.ramBank, address-0xA000, value)
	}
}

// mbc5 drops MBC1's quirks: a full 9-bit ROM bank number and a plain 4-bit
// RAM bank number, with optional rumble-motor wiring on bit 3 of the
// RAM-bank-select write at 0x4000-0x5FFF (ignored here, there is no rumble
// actuator to drive, but on rumble carts the bit is masked off the RAM bank).
type mbc5 struct {
	rom, ram         []uint8
	romBank          uint16
	ramBank          uint8
	ramEnabled       bool
	hasRumble        bool
	battery          bool
}

func newMBC5(rom []uint8, ramSize int, hasRumble, hasBattery bool, saved []byte) *mbc5 {
	m := &mbc5{rom: rom, ram: make([]uint8, ramSize), romBank: 1, hasRumble: hasRumble, battery: hasBattery}
	loadSavedRAM(m.ram, saved)
	return m
}

func (m *mbc5) Battery() bool     { return m.battery }
func (m *mbc5) SaveState() []byte { return append([]byte(nil), m.ram...) }

func (m *mbc5) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return romByte(m.rom, 0, address)
	case address <= 0x7FFF:
		return romByte16(m.rom, m.romBank, address-0x4000)
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return ramByte(m.ram, m.ramBank, address-0xA000)
	}
	return 0xFF
}

func (m *mbc5) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x2FFF:
		m.romBank = (m.romBank & 0x100) | uint16(value)
	case address <= 0x3FFF:
		m.romBank = (m.romBank & 0xFF) | (uint16(value&0x01) << 8)
	case address <= 0x5FFF:
		ramBank := value & 0x0F
		if !m.hasRumble {
			m.ramBank = ramBank
		} else {
			m.ramBank = ramBank & 0x07
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if m.ramEnabled {
			setRAMByte(m.ram, m.ramBank, address-0xA000, value)
		}
	}
}

func romByte(rom []uint8, bank uint8, offset uint16) uint8 {
	return romByte16(rom, uint16(bank), offset)
}

func romByte16(rom []uint8, bank uint16, offset uint16) uint8 {
	idx := uint32(bank)*0x4000 + uint32(offset)
	if len(rom) == 0 {
		return 0xFF
	}
	idx %= uint32(len(rom))
	return rom[idx]
}

func ramByte(ram []uint8, bank uint8, offset uint16) uint8 {
	if len(ram) == 0 {
		return 0xFF
	}
	idx := (uint32(bank)*0x2000 + uint32(offset)) % uint32(len(ram))
	return ram[idx]
}

func setRAMByte(ram []uint8, bank uint8, offset uint16, value uint8) {
	if len(ram) == 0 {
		return
	}
	idx := (uint32(bank)*0x2000 + uint32(offset)) % uint32(len(ram))
	ram[idx] = value
}

func loadSavedRAM(dst []uint8, saved []byte) {
	if len(saved) == len(dst) {
		copy(dst, saved)
	}
}
