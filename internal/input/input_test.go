package input

import (
	"testing"

	"github.com/nbarrow/pocketdmg/internal/memory"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownKeys(t *testing.T) {
	b, ok := Lookup("z")
	require.True(t, ok)
	require.True(t, b.IsJoypad)
	require.Equal(t, memory.KeyA, b.Key)

	b, ok = Lookup("Escape")
	require.True(t, ok)
	require.False(t, b.IsJoypad)
	require.Equal(t, ActionQuit, b.Action)
}

func TestLookupUnknownKey(t *testing.T) {
	_, ok := Lookup("F13")
	require.False(t, ok)
}

func TestManagerPressesOnlyOnTransition(t *testing.T) {
	pressed := 0
	j := memory.NewJoypad(func() { pressed++ }, nil)
	m := NewManager(j)

	m.SetKeyDown(memory.KeyA, true)
	m.SetKeyDown(memory.KeyA, true) // no-op, already down
	require.Equal(t, 1, pressed)

	m.SetKeyDown(memory.KeyA, false)
	m.SetKeyDown(memory.KeyA, true)
	require.Equal(t, 2, pressed)
}

func TestManagerSyncReleasesMissingKeys(t *testing.T) {
	j := memory.NewJoypad(nil, nil)
	m := NewManager(j)

	m.Sync(map[memory.Key]bool{memory.KeyUp: true, memory.KeyA: true})
	require.True(t, m.held[memory.KeyUp])
	require.True(t, m.held[memory.KeyA])

	m.Sync(map[memory.Key]bool{memory.KeyA: true})
	require.False(t, m.held[memory.KeyUp])
	require.True(t, m.held[memory.KeyA])
}
