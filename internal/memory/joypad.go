package memory

import "github.com/nbarrow/pocketdmg/internal/bit"

// Key names a physical button on the Game Boy.
type Key uint8

const (
	KeyRight Key = iota
	KeyLeft
	KeyUp
	KeyDown
	KeyA
	KeyB
	KeySelect
	KeyStart
)

// Joypad models the P1 register (0xFF00): two active-low 4-bit nibbles
// (d-pad and buttons) multiplexed onto the same 4 output lines by bits
// 4/5, plus an edge-triggered interrupt request on any key's 1->0
// transition (a press). The request does not depend on which rows bits
// 4/5 currently select.
type Joypad struct {
	buttons uint8 // active-low: bit set = released
	dpad    uint8
	selectLine uint8

	onEdge func() // requests the Joypad interrupt
	onResume func() // notifies the CPU to leave the STOP low-power state
}

// NewJoypad returns a joypad with all buttons released.
func NewJoypad(onEdge, onResume func()) *Joypad {
	return &Joypad{buttons: 0x0F, dpad: 0x0F, onEdge: onEdge, onResume: onResume}
}

func (j *Joypad) Read() uint8 {
	switch j.selectLine {
	case 0x10:
		return 0xC0 | j.selectLine | j.dpad
	case 0x20:
		return 0xC0 | j.selectLine | j.buttons
	default:
		return 0xCF | j.selectLine
	}
}

func (j *Joypad) Write(value uint8) {
	j.selectLine = value & 0x30
}

func (j *Joypad) Press(key Key) {
	before := j.selectedNibble(key)
	j.setBit(key, false)
	after := j.selectedNibble(key)
	if before != 0 && after == 0 {
		if j.onEdge != nil {
			j.onEdge()
		}
		if j.onResume != nil {
			j.onResume()
		}
	}
}

func (j *Joypad) Release(key Key) {
	j.setBit(key, true)
}

func (j *Joypad) selectedNibble(key Key) uint8 {
	if isDpad(key) {
		return j.dpad & (1 << dpadIndex(key))
	}
	return j.buttons & (1 << buttonIndex(key))
}

func (j *Joypad) setBit(key Key, released bool) {
	if isDpad(key) {
		idx := dpadIndex(key)
		if released {
			j.dpad = bit.Set(idx, j.dpad)
		} else {
			j.dpad = bit.Clear(idx, j.dpad)
		}
		return
	}
	idx := buttonIndex(key)
	if released {
		j.buttons = bit.Set(idx, j.buttons)
	} else {
		j.buttons = bit.Clear(idx, j.buttons)
	}
}

func isDpad(key Key) bool { return key <= KeyDown }

func dpadIndex(key Key) uint8 { return uint8(key) }

func buttonIndex(key Key) uint8 { return uint8(key) - uint8(KeyA) }
