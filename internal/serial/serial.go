// Package serial implements the SB/SC link cable registers. No link
// partner is ever attached, so a transfer always completes with 0xFF
// shifted in and is logged rather than delivered anywhere.
package serial

import (
	"log/slog"
	"strings"

	"github.com/nbarrow/pocketdmg/internal/addr"
)

// Port stands in for the link cable. It satisfies memory.SerialDevice.
type Port struct {
	sb uint8
	sc uint8

	requestInterrupt func()
	log              *slog.Logger

	line strings.Builder
}

// New returns a port with no transfer in progress. requestInterrupt is
// called synchronously when a requested transfer completes.
func New(requestInterrupt func()) *Port {
	return &Port{log: slog.Default(), requestInterrupt: requestInterrupt}
}

func (p *Port) Read(address uint16) uint8 {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		return p.sc | 0x7E
	default:
		return 0xFF
	}
}

func (p *Port) Write(address uint16, value uint8) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value
		if value&0x81 == 0x81 {
			p.transfer()
		}
	}
}

// transfer completes immediately: there is no link partner, so the
// incoming byte is always 0xFF and SC's start bit clears right away.
func (p *Port) transfer() {
	p.logByte(p.sb)
	p.sb = 0xFF
	p.sc &^= 0x80
	if p.requestInterrupt != nil {
		p.requestInterrupt()
	}
}

func (p *Port) logByte(b uint8) {
	if b == '\n' {
		p.log.Debug("serial line", "text", p.line.String())
		p.line.Reset()
		return
	}
	if b >= 0x20 && b < 0x7F {
		p.line.WriteByte(b)
	}
}
