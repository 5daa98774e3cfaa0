package audio

import (
	"testing"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/stretchr/testify/require"
)

func TestNR52GatesRegisterWrites(t *testing.T) {
	s := New(64)

	s.WriteRegister(addr.NR10, 0x7F)
	require.EqualValues(t, 0x80, s.ReadRegister(addr.NR10), "sweep write should be ignored while SPU is off")

	s.WriteRegister(addr.NR52, 0x80)
	s.WriteRegister(addr.NR10, 0x2B)
	require.EqualValues(t, 0x2B&0x07, s.ReadRegister(addr.NR10)&0x07)
}

func TestNR52StatusReflectsChannelTriggers(t *testing.T) {
	s := New(64)
	s.WriteRegister(addr.NR52, 0x80)

	s.WriteRegister(addr.NR12, 0xF0) // max volume, DAC on
	s.WriteRegister(addr.NR14, 0x80) // trigger channel 1

	status := s.ReadRegister(addr.NR52)
	require.NotZero(t, status&0x80)
	require.NotZero(t, status&0x01)
}

func TestWaveRAMRoundTrip(t *testing.T) {
	s := New(64)
	s.WriteRegister(addr.NR52, 0x80)

	s.WriteRegister(addr.WaveRAMStart, 0xAB)
	require.EqualValues(t, 0xAB, s.ReadRegister(addr.WaveRAMStart))
}

func TestSyncProducesBufferedSamplesWhenEnabled(t *testing.T) {
	s := New(8) // tiny buffer so one Sync call fills it
	s.WriteRegister(addr.NR52, 0x80)
	s.WriteRegister(addr.NR12, 0xF0)
	s.WriteRegister(addr.NR14, 0x80)
	s.WriteRegister(addr.NR51, 0x11) // channel 1 to both L/R
	s.WriteRegister(addr.NR50, 0x77)

	s.Sync(sampleDivisor * 8)

	dst := make([]int16, 16)
	require.True(t, s.TryConsume(dst))
}

func TestSyncWhileDisabledDoesNotProduceSamples(t *testing.T) {
	s := New(8)
	s.Sync(sampleDivisor * 8)

	dst := make([]int16, 16)
	require.False(t, s.TryConsume(dst))
}
