package serial

import (
	"testing"

	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/stretchr/testify/require"
)

func TestTransferCompletesImmediatelyAndInterrupts(t *testing.T) {
	fired := false
	p := New(func() { fired = true })

	p.Write(addr.SB, 'A')
	p.Write(addr.SC, 0x81)

	require.True(t, fired)
	require.Equal(t, uint8(0xFF), p.Read(addr.SB))
	require.Equal(t, uint8(0), p.Read(addr.SC)&0x80)
}

func TestExternalClockDoesNotTransfer(t *testing.T) {
	fired := false
	p := New(func() { fired = true })

	p.Write(addr.SB, 'A')
	p.Write(addr.SC, 0x80)

	require.False(t, fired)
	require.Equal(t, uint8('A'), p.Read(addr.SB))
}

func TestUnusedSCBitsReadAsSet(t *testing.T) {
	p := New(nil)
	p.Write(addr.SC, 0x00)
	require.Equal(t, uint8(0x7E), p.Read(addr.SC))
}
