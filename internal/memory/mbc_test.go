package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func romSizeCodeFor(banks int) uint8 {
	code := uint8(0)
	for n := 2; n < banks; n <<= 1 {
		code++
	}
	return code
}

func makeROM(banks int, cartType uint8, ramSizeCode uint8) []byte {
	rom := make([]byte, banks*0x4000)
	rom[cartridgeTypeAddress] = cartType
	rom[romSizeAddress] = romSizeCodeFor(banks)
	rom[ramSizeAddress] = ramSizeCode
	rom[cgbFlagAddress] = 0x00
	copy(rom[titleAddress:], []byte("TESTROM"))
	var sum uint8
	for i := 0x0134; i <= headerChecksumEnd; i++ {
		sum = sum - rom[i] - 1
	}
	rom[headerChecksumAddress] = sum
	// Stamp each bank with its index at offset 0 of the switchable window
	// so bank-switch tests can assert on content rather than just offsets.
	for b := 1; b < banks; b++ {
		rom[b*0x4000] = uint8(b)
	}
	return rom
}

func TestLoadRejectsSizeMismatch(t *testing.T) {
	rom := makeROM(4, 0x00, 0x00)
	rom[romSizeAddress] = 0x00 // claims 2 banks, but the image is 4
	_, err := Load(rom, nil)
	require.Error(t, err)
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	rom := makeROM(2, 0xFE, 0x00)
	_, err := Load(rom, nil)
	require.Error(t, err)
}

func TestLoadDetectsChecksumMismatch(t *testing.T) {
	rom := makeROM(2, 0x00, 0x00)
	rom[headerChecksumAddress] ^= 0xFF
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	require.True(t, cart.HasChecksumMismatch())
}

func TestMBC1BankSwitching(t *testing.T) {
	rom := makeROM(4, 0x01, 0x00)
	cart, err := Load(rom, nil)
	require.NoError(t, err)

	cart.Write(0x2000, 0x03) // select ROM bank 3
	require.Equal(t, uint8(3), cart.Read(0x4000))
}

func TestMBC1Bank0SelectIsTreatedAsBank1(t *testing.T) {
	rom := makeROM(4, 0x01, 0x00)
	cart, err := Load(rom, nil)
	require.NoError(t, err)

	cart.Write(0x2000, 0x00)
	require.Equal(t, uint8(1), cart.Read(0x4000))
}

func TestMBC1RAMRequiresEnable(t *testing.T) {
	rom := makeROM(2, 0x03, 0x02) // MBC1+RAM+BATTERY, 8KB RAM
	cart, err := Load(rom, nil)
	require.NoError(t, err)

	cart.Write(0xA000, 0x42) // write while disabled: dropped
	require.Equal(t, uint8(0xFF), cart.Read(0xA000))

	cart.Write(0x0000, 0x0A) // enable RAM
	cart.Write(0xA000, 0x42)
	require.Equal(t, uint8(0x42), cart.Read(0xA000))
	require.True(t, cart.HasBattery())
}

func TestMBC1PlainRAMHasNoBattery(t *testing.T) {
	rom := makeROM(2, 0x02, 0x02) // MBC1+RAM, no battery
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	require.False(t, cart.HasBattery())
	require.Nil(t, cart.SaveRAM())
}

func TestMBC1UnofficialQuarterRAMMirrorsFourTimes(t *testing.T) {
	rom := makeROM(2, 0x03, 0x01) // MBC1+RAM+BATTERY, unofficial 2KB RAM code
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	cart.Write(0x0000, 0x0A) // enable RAM

	cart.Write(0xA000, 0x7A)
	require.Equal(t, uint8(0x7A), cart.Read(0xA000))
	require.Equal(t, uint8(0x7A), cart.Read(0xA800), "2KB RAM must mirror across the 8KB window")
	require.Equal(t, uint8(0x7A), cart.Read(0xB000))
	require.Equal(t, uint8(0x7A), cart.Read(0xB800))

	saved := cart.SaveRAM()
	require.Len(t, saved, 0x800, "saved RAM for the unofficial 2KB variant should not be padded to a full 8KB bank")
}

func TestCartridgeArmsFlushOnDirtyWriteAndFlushesAfterQuietPeriod(t *testing.T) {
	rom := makeROM(2, 0x03, 0x02) // MBC1+RAM+BATTERY, 8KB RAM
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	cart.Write(0x0000, 0x0A) // enable RAM

	require.False(t, cart.Dirty())
	cart.Write(0xA000, 0x42)
	require.True(t, cart.Dirty(), "a RAM write to a battery-backed cart must set the dirty flag")

	var flushed []byte
	cart.SetSaveFlusher(func(data []byte) error {
		flushed = append([]byte(nil), data...)
		return nil
	})

	delta := cart.ArmFlush()
	require.Equal(t, flushQuietPeriod, delta)

	// Before the quiet period elapses, nothing is flushed.
	next := cart.Tick(flushQuietPeriod - 1)
	require.Nil(t, flushed)
	require.Equal(t, int32(1), next)

	// The remaining cycle crosses the deadline and triggers the flush.
	cart.Tick(1)
	require.NotNil(t, flushed)
	require.False(t, cart.Dirty())
}

func TestCartridgeNoFlushWithoutFlusher(t *testing.T) {
	rom := makeROM(2, 0x03, 0x02) // MBC1+RAM+BATTERY
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	cart.Write(0x0000, 0x0A)
	cart.Write(0xA000, 0x99)
	require.True(t, cart.Dirty())

	cart.ArmFlush()
	cart.Tick(flushQuietPeriod)
	// No SetSaveFlusher call: flush is a no-op, dirty flag stays set so a
	// later-installed flusher can still catch up.
	require.True(t, cart.Dirty())
}

func TestMBC3RTCLatchAndAdvance(t *testing.T) {
	rom := makeROM(2, 0x10, 0x02) // MBC3+TIMER+RAM+BATTERY
	cart, err := Load(rom, nil)
	require.NoError(t, err)
	cart.Write(0x0000, 0x0A) // enable RAM/RTC

	cart.Tick(cyclesPerSecond * 65) // 1 minute 5 seconds

	cart.Write(0x4000, 0x08) // select seconds register
	cart.Write(0x6000, 0x00)
	cart.Write(0x6000, 0x01) // latch 0->1
	require.Equal(t, uint8(5), cart.Read(0xA000))

	cart.Write(0x4000, 0x09) // minutes
	require.Equal(t, uint8(1), cart.Read(0xA000))
}

func TestMBC5FullBankRange(t *testing.T) {
	rom := makeROM(512, 0x19, 0x00)
	cart, err := Load(rom, nil)
	require.NoError(t, err)

	cart.Write(0x2000, 0xFF) // low 8 bits
	cart.Write(0x3000, 0x01) // bit 8
	require.Equal(t, uint8(0xFF), cart.Read(0x4000))
}
