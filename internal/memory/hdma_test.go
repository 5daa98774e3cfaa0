package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHDMABulkTransferCopiesAndChargesCycles(t *testing.T) {
	source := make([]byte, 0x10000)
	for i := range 0x60 {
		source[0x7FF0+i] = uint8(i + 1)
	}
	vram := make([]byte, 0x2000)

	h := NewHDMA(func(a uint16) uint8 { return source[a] }, func(a uint16, v uint8) { vram[a-0x8000] = v })
	h.WriteSourceHigh(0x7F)
	h.WriteSourceLow(0xF0)
	h.WriteDestHigh(0x10)
	h.WriteDestLow(0x00)

	status, cycles := h.WriteControl(0x05) // (5+1)*16 = 96 bytes, general-purpose
	require.Equal(t, uint8(0xFF), status)
	require.Equal(t, int32(96*2), cycles)

	for i := range 0x60 {
		require.Equal(t, source[0x7FF0+i], vram[0x9000-0x8000+i])
	}
	require.False(t, h.Active())
}

func TestHDMAHBlankModeCopiesOneBlockPerHBlank(t *testing.T) {
	source := make([]byte, 0x10000)
	for i := range 0x20 {
		source[0x8000+i] = uint8(i)
	}
	vram := make([]byte, 0x2000)

	h := NewHDMA(func(a uint16) uint8 { return source[a] }, func(a uint16, v uint8) { vram[a-0x8000] = v })
	h.WriteSourceHigh(0x80)
	h.WriteSourceLow(0x00)
	h.WriteDestHigh(0x00)
	h.WriteDestLow(0x00)

	status, cycles := h.WriteControl(0x81) // hblank-mode, 2 blocks (32 bytes)
	require.Equal(t, uint8(0x01), status)
	require.Equal(t, int32(0), cycles)
	require.True(t, h.Active())

	h.OnHBlank()
	require.True(t, h.Active())
	h.OnHBlank()
	require.False(t, h.Active())

	for i := range 0x20 {
		require.Equal(t, source[0x8000+i], vram[i])
	}
}

func TestHDMACancelMidTransfer(t *testing.T) {
	h := NewHDMA(func(uint16) uint8 { return 0 }, func(uint16, uint8) {})
	h.WriteControl(0x8F) // arm 16 blocks hblank-mode
	require.True(t, h.Active())

	status, cycles := h.WriteControl(0x00) // cancel
	require.Equal(t, int32(0), cycles)
	require.True(t, status&0x80 != 0)
	require.False(t, h.Active())
	require.Equal(t, status, h.ReadControl(), "a cancelled transfer's latched status must survive in ReadControl")
}
