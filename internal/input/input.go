// Package input maps host key names onto Game Boy joypad keys and a
// small set of emulator-level actions (quit, speed toggles). It owns
// no event loop of its own: backends poll their native input source
// and call Lookup per key name.
package input

import "github.com/nbarrow/pocketdmg/internal/memory"

// Action names a host-level action that is not a joypad button.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionToggleSpeed
	ActionReset
)

// Binding is what a single host key name resolves to: either a joypad
// key, or an emulator Action. A binding is never both.
type Binding struct {
	Key      memory.Key
	IsJoypad bool
	Action   Action
}

// DefaultKeyMap mirrors the standard Game Boy control layout: arrow
// keys for the d-pad, z/x for A/B, Enter for Start, Shift for Select.
var DefaultKeyMap = map[string]Binding{
	"Right": {Key: memory.KeyRight, IsJoypad: true},
	"Left":  {Key: memory.KeyLeft, IsJoypad: true},
	"Up":    {Key: memory.KeyUp, IsJoypad: true},
	"Down":  {Key: memory.KeyDown, IsJoypad: true},
	"z":     {Key: memory.KeyA, IsJoypad: true},
	"x":     {Key: memory.KeyB, IsJoypad: true},
	"Enter": {Key: memory.KeyStart, IsJoypad: true},
	"Shift": {Key: memory.KeySelect, IsJoypad: true},

	"Escape": {Action: ActionQuit},
	"Tab":    {Action: ActionToggleSpeed},
	"r":      {Action: ActionReset},
}

// Lookup resolves a host key name to its binding, if any.
func Lookup(keyName string) (Binding, bool) {
	b, ok := DefaultKeyMap[keyName]
	return b, ok
}

// Manager tracks which joypad keys are currently held and forwards
// press/release edges to a joypad, so a backend only has to report
// "this key is down this frame" without tracking edges itself.
type Manager struct {
	joypad *memory.Joypad
	held   map[memory.Key]bool
}

// NewManager returns a manager driving j.
func NewManager(j *memory.Joypad) *Manager {
	return &Manager{joypad: j, held: make(map[memory.Key]bool)}
}

// SetKeyDown updates a single key's state and presses/releases the
// joypad on a genuine transition.
func (m *Manager) SetKeyDown(key memory.Key, down bool) {
	was := m.held[key]
	if down == was {
		return
	}
	m.held[key] = down
	if down {
		m.joypad.Press(key)
	} else {
		m.joypad.Release(key)
	}
}

// Sync reconciles the full set of currently-down joypad keys against
// the previous frame's set, pressing newly-down keys and releasing
// keys no longer present. Backends that report "all keys down this
// frame" rather than discrete edges should use this instead of
// SetKeyDown.
func (m *Manager) Sync(down map[memory.Key]bool) {
	for key := range m.held {
		if !down[key] {
			m.SetKeyDown(key, false)
		}
	}
	for key := range down {
		m.SetKeyDown(key, true)
	}
}
