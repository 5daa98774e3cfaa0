package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDMACopiesFullOAMRegion(t *testing.T) {
	source := make([]byte, 0x10000)
	for i := range 160 {
		source[0xC100+i] = uint8(0x20 + i)
	}
	oam := make([]byte, 160)

	d := NewDMA(false, func(a uint16) uint8 { return source[a] }, func(a uint16, v uint8) { oam[a-0xFE00] = v })
	d.Start(0xC1)
	require.True(t, d.Active())

	for elapsed := 0; elapsed < 640; {
		delta := d.Sync(bytesPerDMACycle)
		elapsed += bytesPerDMACycle
		_ = delta
	}

	require.False(t, d.Active())
	for i := range 160 {
		require.Equal(t, source[0xC100+i], oam[i])
	}
}

func TestDMARejectsIllegalSourceOnDMG(t *testing.T) {
	d := NewDMA(false, func(uint16) uint8 { return 0 }, func(uint16, uint8) {})
	d.Start(0x80) // 0x8000: VRAM, illegal on both DMG and color
	require.False(t, d.Active())
}

func TestDMAAllowsCartRAMSourceOnlyOnColor(t *testing.T) {
	dmg := NewDMA(false, func(uint16) uint8 { return 0 }, func(uint16, uint8) {})
	dmg.Start(0xA0) // 0xA000: cartridge RAM
	require.False(t, dmg.Active())

	gbc := NewDMA(true, func(uint16) uint8 { return 0 }, func(uint16, uint8) {})
	gbc.Start(0xA0)
	require.True(t, gbc.Active())
}
