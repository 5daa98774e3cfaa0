// Package interrupt implements the IF/IE interrupt controller shared by the
// CPU and every device capable of requesting an interrupt (PPU, timer,
// serial port, joypad).
package interrupt

import "github.com/nbarrow/pocketdmg/internal/addr"

// Controller holds the Interrupt Flag (IF) and Interrupt Enable (IE)
// registers and lets devices request interrupts without importing the CPU.
type Controller struct {
	flags  byte // IF, 0xFF0F. Top 3 bits always read as 1.
	enable byte // IE, 0xFFFF.
}

// New returns a controller with both registers cleared.
func New() *Controller {
	return &Controller{}
}

// Request sets the IF bit for the given interrupt.
func (c *Controller) Request(i addr.Interrupt) {
	c.flags |= byte(i)
}

// Clear clears the IF bit for the given interrupt, called by the CPU once it
// has dispatched to the interrupt's handler.
func (c *Controller) Clear(i addr.Interrupt) {
	c.flags &^= byte(i)
}

// Pending returns the bitmask of interrupts that are both requested and
// enabled, in priority order (bit 0 = VBlank highest).
func (c *Controller) Pending() byte {
	return c.flags & c.enable & 0x1F
}

// ReadIF returns the IF register as the CPU/bus would see it.
func (c *Controller) ReadIF() byte {
	return c.flags | 0xE0
}

// WriteIF writes the IF register.
func (c *Controller) WriteIF(value byte) {
	c.flags = value & 0x1F
}

// ReadIE returns the IE register.
func (c *Controller) ReadIE() byte {
	return c.enable
}

// WriteIE writes the IE register.
func (c *Controller) WriteIE(value byte) {
	c.enable = value
}
