package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbarrow/pocketdmg/internal/scheduler"
)

func TestResyncInvokesOnlyOnDemand(t *testing.T) {
	s := scheduler.New()
	calls := 0
	s.Register(scheduler.PPU, func(elapsed int32) int32 {
		calls++
		return scheduler.Never
	})
	for tok := scheduler.Token(0); tok < 5; tok++ {
		if tok != scheduler.PPU {
			s.Register(tok, func(elapsed int32) int32 { return scheduler.Never })
		}
	}

	s.Advance(100)
	require.Equal(t, 0, calls, "PPU has no scheduled event, should not be resynced by Advance alone")

	s.Resync(scheduler.PPU)
	require.Equal(t, 1, calls)
	require.Equal(t, int32(100), s.T())
}

func TestCheckServicesInFixedOrder(t *testing.T) {
	s := scheduler.New()
	var order []scheduler.Token

	register := func(tok scheduler.Token, delta int32) {
		s.Register(tok, func(elapsed int32) int32 {
			order = append(order, tok)
			return scheduler.Never
		})
		s.Schedule(tok, delta)
	}

	// Register out of service order; Check must still visit PPU, DMA,
	// Timer, SPU, Cart in that fixed order when all fire simultaneously.
	register(scheduler.Cart, 10)
	register(scheduler.SPU, 10)
	register(scheduler.Timer, 10)
	register(scheduler.DMA, 10)
	register(scheduler.PPU, 10)

	s.Advance(10)

	require.Equal(t, []scheduler.Token{scheduler.PPU, scheduler.DMA, scheduler.Timer, scheduler.SPU, scheduler.Cart}, order)
}

func TestScheduleThenAdvanceFiresExactlyAtTarget(t *testing.T) {
	s := scheduler.New()
	fired := 0
	s.Register(scheduler.Timer, func(elapsed int32) int32 {
		fired++
		return scheduler.Never
	})
	for _, tok := range []scheduler.Token{scheduler.PPU, scheduler.DMA, scheduler.SPU, scheduler.Cart} {
		s.Register(tok, func(elapsed int32) int32 { return scheduler.Never })
	}

	s.Schedule(scheduler.Timer, 456)
	s.Advance(455)
	require.Equal(t, 0, fired)
	s.Advance(1)
	require.Equal(t, 1, fired)
}

func TestMaybeRebaseResetsClockPastThreshold(t *testing.T) {
	s := scheduler.New()
	s.Register(scheduler.PPU, func(elapsed int32) int32 { return scheduler.Never })
	for _, tok := range []scheduler.Token{scheduler.DMA, scheduler.Timer, scheduler.SPU, scheduler.Cart} {
		s.Register(tok, func(elapsed int32) int32 { return scheduler.Never })
	}

	s.Schedule(scheduler.DMA, 1000)
	s.Advance(1 << 29) // force past rebaseThreshold
	s.MaybeRebase()

	require.Less(t, s.T(), int32(1<<28))
}
