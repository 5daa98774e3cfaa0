// Package audio implements the SPU: two pulse channels with envelope and
// (channel 1 only) sweep, one wave-RAM channel, one LFSR noise channel, a
// stereo mixer driven by NR50/NR51, and the double-buffered sample handoff
// to the host audio thread (spec.md §4.9, §5).
package audio

import (
	"github.com/nbarrow/pocketdmg/internal/addr"
	"github.com/nbarrow/pocketdmg/internal/bit"
)

// sampleDivisor is the fixed divisor of the CPU clock spec.md §4.9
// specifies for the output sample rate: one stereo frame every 64 T-cycles.
const sampleDivisor = 64

var dutyPatterns = [4][8]bool{
	{false, true, false, false, false, false, false, false},
	{false, true, true, false, false, false, false, false},
	{false, true, true, true, true, false, false, false},
	{true, false, false, true, true, true, true, true},
}

// envelope is the volume-ramp state shared by channels 1, 2 and 4.
type envelope struct {
	initial  uint8
	increase bool
	pace     uint8
	timer    int32
	volume   uint8
}

func (e *envelope) trigger() {
	e.volume = e.initial
	e.timer = e.periodCycles()
}

func (e *envelope) periodCycles() int32 {
	if e.pace == 0 {
		return 0
	}
	return 65536 * int32(e.pace)
}

func (e *envelope) step(elapsed int32) {
	if e.pace == 0 {
		return
	}
	e.timer -= elapsed
	for e.timer <= 0 {
		e.timer += e.periodCycles()
		if e.increase && e.volume < 15 {
			e.volume++
		} else if !e.increase && e.volume > 0 {
			e.volume--
		}
	}
}

// lengthCounter is shared by all four channels, counting down to silence.
type lengthCounter struct {
	enabled bool
	value   uint16
	max     uint16
}

func (l *lengthCounter) reload(timer uint8) {
	l.value = l.max - uint16(timer)
}

// tickLength is driven at 256 Hz (16384 T-cycles per tick), the standard
// hardware length-clock rate; spec.md leaves the exact rate unstated, so
// this follows the well-known hardware constant rather than guessing a
// novel one.
const lengthTickCycles int32 = 16384

// pulse models NR1x/NR2x: frequency divider, duty waveform, envelope, and
// (channel 1 only) a period sweep.
type pulse struct {
	hasSweep bool

	sweepPace   uint8
	sweepDown   bool
	sweepShift  uint8
	sweepTimer  int32
	shadowFreq  uint16

	duty      uint8
	dutyPhase uint8
	period    uint16
	freqTimer int32

	env    envelope
	length lengthCounter

	dacOn   bool
	enabled bool
}

func (p *pulse) periodCycles() int32 {
	return 2 * (2048 - int32(p.period&0x7FF))
}

func (p *pulse) trigger() {
	p.enabled = p.dacOn
	p.freqTimer = p.periodCycles()
	p.env.trigger()
	if p.length.value == 0 {
		p.length.value = p.length.max
	}
	if p.hasSweep {
		p.shadowFreq = p.period
		p.sweepTimer = sweepPeriodCycles(p.sweepPace)
		if p.sweepShift != 0 {
			if _, overflow := p.sweepTarget(); overflow {
				p.enabled = false
			}
		}
	}
}

func sweepPeriodCycles(pace uint8) int32 {
	if pace == 0 {
		pace = 8
	}
	return int32(pace) * 32768
}

func (p *pulse) sweepTarget() (uint16, bool) {
	delta := p.shadowFreq >> p.sweepShift
	var next uint16
	if p.sweepDown {
		next = p.shadowFreq - delta
	} else {
		next = p.shadowFreq + delta
	}
	return next, next > 0x7FF
}

func (p *pulse) stepSweep(elapsed int32) {
	if !p.hasSweep || !p.enabled || p.sweepPace == 0 {
		return
	}
	p.sweepTimer -= elapsed
	for p.sweepTimer <= 0 {
		p.sweepTimer += sweepPeriodCycles(p.sweepPace)
		if p.sweepShift == 0 {
			continue
		}
		next, overflow := p.sweepTarget()
		if overflow {
			p.enabled = false
			return
		}
		p.shadowFreq = next
		p.period = next
		if _, overflow := p.sweepTarget(); overflow {
			p.enabled = false
		}
	}
}

func (p *pulse) stepFrequency(elapsed int32) {
	period := p.periodCycles()
	if period <= 0 {
		return
	}
	p.freqTimer -= elapsed
	for p.freqTimer <= 0 {
		p.freqTimer += period
		p.dutyPhase = (p.dutyPhase + 1) & 7
	}
}

func (p *pulse) amplitude() uint8 {
	if !p.enabled || !p.dacOn {
		return 0
	}
	if !dutyPatterns[p.duty&3][p.dutyPhase] {
		return 0
	}
	return p.env.volume
}

// wave models NR3x: 32 4-bit samples clocked at the pulse rate, shifted by
// the configured attenuation.
type wave struct {
	dacOn       bool
	enabled     bool
	volumeShift uint8 // 0 = mute, 1 = 100%, 2 = 50%, 3 = 25%
	period      uint16
	freqTimer   int32
	position    uint8
	ram         [16]uint8
	length      lengthCounter
}

func (w *wave) periodCycles() int32 {
	return 2 * (2048 - int32(w.period&0x7FF))
}

func (w *wave) trigger() {
	w.enabled = w.dacOn
	w.position = 0
	w.freqTimer = w.periodCycles()
	if w.length.value == 0 {
		w.length.value = w.length.max
	}
}

func (w *wave) stepFrequency(elapsed int32) {
	period := w.periodCycles()
	if period <= 0 {
		return
	}
	w.freqTimer -= elapsed
	for w.freqTimer <= 0 {
		w.freqTimer += period
		w.position = (w.position + 1) & 0x1F
	}
}

func (w *wave) sample() uint8 {
	b := w.ram[w.position/2]
	if w.position%2 == 0 {
		return b >> 4
	}
	return b & 0x0F
}

func (w *wave) amplitude() uint8 {
	if !w.enabled || !w.dacOn || w.volumeShift == 0 {
		return 0
	}
	return w.sample() >> (w.volumeShift - 1)
}

// noise models NR4x: a 15-bit (or 7-bit) LFSR.
type noise struct {
	env    envelope
	length lengthCounter

	shift       uint8
	divisorCode uint8
	use7Bit     bool

	lfsr      uint16
	timer     int32
	dacOn     bool
	enabled   bool
}

// periodCycles follows spec.md §4.9: "counter period derived from the
// divisor code (0 => 4 else 8×div) left-shifted by shift+1".
func (n *noise) periodCycles() int32 {
	base := int32(4)
	if n.divisorCode != 0 {
		base = 8 * int32(n.divisorCode)
	}
	return base << (n.shift + 1)
}

func (n *noise) trigger() {
	n.enabled = n.dacOn
	n.lfsr = 0x7FFF
	n.timer = n.periodCycles()
	n.env.trigger()
	if n.length.value == 0 {
		n.length.value = n.length.max
	}
}

func (n *noise) stepFrequency(elapsed int32) {
	period := n.periodCycles()
	if period <= 0 {
		return
	}
	n.timer -= elapsed
	for n.timer <= 0 {
		n.timer += period
		b := (n.lfsr & 1) ^ ((n.lfsr >> 1) & 1)
		n.lfsr = (n.lfsr >> 1) | (b << 14)
		if n.use7Bit {
			n.lfsr = (n.lfsr &^ (1 << 6)) | (b << 6)
		}
	}
}

func (n *noise) amplitude() uint8 {
	if !n.enabled || !n.dacOn {
		return 0
	}
	if bit.IsSet16(0, n.lfsr) {
		return 0
	}
	return n.env.volume
}

// buffer is one half of the double buffer, with its own free/ready
// counting permit (spec.md §5's "pair of counting permits per buffer").
type buffer struct {
	frames []int16 // interleaved L,R
	free   chan struct{}
	ready  chan struct{}
}

func newBuffer(frameCount int) *buffer {
	b := &buffer{
		frames: make([]int16, frameCount*2),
		free:   make(chan struct{}, 1),
		ready:  make(chan struct{}, 1),
	}
	b.free <- struct{}{} // starts free: available for the producer to fill
	return b
}

// SPU is the sound generator: NR50/NR51 mixer state, four channels, wave
// RAM, and the producer side of the double-buffer handshake.
type SPU struct {
	enabled bool
	nr50    uint8
	nr51    uint8

	ch1, ch2 pulse
	ch3      wave
	ch4      noise

	amp [4][2]int32 // [channel][L=0,R=1] amplification, derived from NR50/NR51

	sampleAcc int32
	lengthAcc int32

	buffers   [2]*buffer
	produce   int
	writePos  int
	consume   int
}

// New returns an SPU with N-frame double buffers, powered off.
func New(framesPerBuffer int) *SPU {
	s := &SPU{}
	s.buffers[0] = newBuffer(framesPerBuffer)
	s.buffers[1] = newBuffer(framesPerBuffer)
	s.ch1.hasSweep = true
	s.ch1.length.max = 64
	s.ch2.length.max = 64
	s.ch3.length.max = 256
	s.ch4.length.max = 64
	return s
}

// Sync is the scheduler.SyncFunc registered for the SPU token.
func (s *SPU) Sync(elapsed int32) int32 {
	if !s.enabled {
		return 1 << 20
	}

	remaining := elapsed
	const chunk = 8
	for remaining > 0 {
		step := remaining
		if step > chunk {
			step = chunk
		}
		s.advance(step)
		remaining -= step
	}
	return sampleDivisor - s.sampleAcc
}

func (s *SPU) advance(elapsed int32) {
	s.ch1.stepFrequency(elapsed)
	s.ch1.stepSweep(elapsed)
	s.ch1.env.step(elapsed)
	s.ch2.stepFrequency(elapsed)
	s.ch2.env.step(elapsed)
	s.ch3.stepFrequency(elapsed)
	s.ch4.stepFrequency(elapsed)
	s.ch4.env.step(elapsed)

	s.lengthAcc += elapsed
	for s.lengthAcc >= lengthTickCycles {
		s.lengthAcc -= lengthTickCycles
		s.tickLengths()
	}

	s.sampleAcc += elapsed
	for s.sampleAcc >= sampleDivisor {
		s.sampleAcc -= sampleDivisor
		s.emitSample()
	}
}

func (s *SPU) tickLengths() {
	tick := func(enabledChannel *bool, l *lengthCounter) {
		if !l.enabled || l.value == 0 {
			return
		}
		l.value--
		if l.value == 0 {
			*enabledChannel = false
		}
	}
	tick(&s.ch1.enabled, &s.ch1.length)
	tick(&s.ch2.enabled, &s.ch2.length)
	tick(&s.ch3.enabled, &s.ch3.length)
	tick(&s.ch4.enabled, &s.ch4.length)
}

func (s *SPU) recomputeAmp() {
	leftVol := int32((s.nr50>>4)&0x07) + 1
	rightVol := int32(s.nr50&0x07) + 1
	for ch := 0; ch < 4; ch++ {
		leftOn := s.nr51&(1<<(uint(ch)+4)) != 0
		rightOn := s.nr51&(1<<uint(ch)) != 0
		if leftOn {
			s.amp[ch][0] = leftVol
		} else {
			s.amp[ch][0] = 0
		}
		if rightOn {
			s.amp[ch][1] = rightVol
		} else {
			s.amp[ch][1] = 0
		}
	}
}

// emitSample mixes the four channels' current amplitude into one stereo
// frame and pushes it into the active output buffer, blocking on the
// buffer's free permit if the consumer hasn't drained it yet.
func (s *SPU) emitSample() {
	amps := [4]int32{
		int32(s.ch1.amplitude()) - 8,
		int32(s.ch2.amplitude()) - 8,
		int32(s.ch3.amplitude()) - 8,
		int32(s.ch4.amplitude()) - 8,
	}

	var left, right int32
	for ch := 0; ch < 4; ch++ {
		left += amps[ch] * s.amp[ch][0]
		right += amps[ch] * s.amp[ch][1]
	}

	const scale = 32767 / (8 * 8 * 4)
	l := clampSample(left * scale)
	r := clampSample(right * scale)

	buf := s.buffers[s.produce]
	if s.writePos == 0 {
		<-buf.free // wait(free): block until the consumer has drained this buffer
	}
	buf.frames[s.writePos*2] = l
	buf.frames[s.writePos*2+1] = r
	s.writePos++
	if s.writePos*2 >= len(buf.frames) {
		buf.ready <- struct{}{} // signal(ready)
		s.writePos = 0
		s.produce = 1 - s.produce
	}
}

func clampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// TryConsume implements the audio-thread side of the handshake: it tries to
// take the ready permit on the current consume buffer without blocking; on
// success it copies the frames into dst and returns true, signaling free.
// On failure (buffer not yet full) it returns false and the caller should
// emit silence, matching spec.md §5's audio-callback contract.
func (s *SPU) TryConsume(dst []int16) bool {
	buf := s.buffers[s.consume]
	select {
	case <-buf.ready:
		copy(dst, buf.frames)
		buf.free <- struct{}{}
		s.consume = 1 - s.consume
		return true
	default:
		return false
	}
}

// ReadRegister/WriteRegister implement the memory.AudioDevice surface.

func (s *SPU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.NR10:
		return 0x80 | s.ch1.sweepPace<<4 | boolBit8(s.ch1.sweepDown, 0x08) | s.ch1.sweepShift
	case addr.NR11:
		return s.ch1.duty<<6 | 0x3F
	case addr.NR12:
		return s.ch1.env.initial<<4 | boolBit8(s.ch1.env.increase, 0x08) | s.ch1.env.pace
	case addr.NR13:
		return 0xFF
	case addr.NR14:
		return 0xBF | boolBit8(s.ch1.length.enabled, 0x40)
	case addr.NR21:
		return s.ch2.duty<<6 | 0x3F
	case addr.NR22:
		return s.ch2.env.initial<<4 | boolBit8(s.ch2.env.increase, 0x08) | s.ch2.env.pace
	case addr.NR23:
		return 0xFF
	case addr.NR24:
		return 0xBF | boolBit8(s.ch2.length.enabled, 0x40)
	case addr.NR30:
		return boolBit8(s.ch3.dacOn, 0x80) | 0x7F
	case addr.NR31:
		return 0xFF
	case addr.NR32:
		return 0x9F | s.ch3.volumeShift<<5
	case addr.NR33:
		return 0xFF
	case addr.NR34:
		return 0xBF | boolBit8(s.ch3.length.enabled, 0x40)
	case addr.NR41:
		return 0xFF
	case addr.NR42:
		return s.ch4.env.initial<<4 | boolBit8(s.ch4.env.increase, 0x08) | s.ch4.env.pace
	case addr.NR43:
		return s.ch4.shift<<4 | boolBit8(s.ch4.use7Bit, 0x08) | s.ch4.divisorCode
	case addr.NR44:
		return 0xBF | boolBit8(s.ch4.length.enabled, 0x40)
	case addr.NR50:
		return s.nr50
	case addr.NR51:
		return s.nr51
	case addr.NR52:
		return s.statusByte()
	default:
		if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
			return s.ch3.ram[address-addr.WaveRAMStart]
		}
		return 0xFF
	}
}

func (s *SPU) statusByte() uint8 {
	v := uint8(0x70)
	if s.enabled {
		v |= 0x80
	}
	if s.ch1.enabled {
		v |= 0x01
	}
	if s.ch2.enabled {
		v |= 0x02
	}
	if s.ch3.enabled {
		v |= 0x04
	}
	if s.ch4.enabled {
		v |= 0x08
	}
	return v
}

func (s *SPU) WriteRegister(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		s.ch3.ram[address-addr.WaveRAMStart] = value
		return
	}
	if address == addr.NR52 {
		s.enabled = value&0x80 != 0
		return
	}
	if !s.enabled {
		return
	}

	switch address {
	case addr.NR10:
		s.ch1.sweepPace = (value >> 4) & 0x07
		s.ch1.sweepDown = value&0x08 != 0
		s.ch1.sweepShift = value & 0x07
	case addr.NR11:
		s.ch1.duty = value >> 6
		s.ch1.length.reload(value & 0x3F)
	case addr.NR12:
		s.ch1.env.initial = value >> 4
		s.ch1.env.increase = value&0x08 != 0
		s.ch1.env.pace = value & 0x07
		s.ch1.dacOn = value&0xF8 != 0
		if !s.ch1.dacOn {
			s.ch1.enabled = false
		}
	case addr.NR13:
		s.ch1.period = s.ch1.period&0x700 | uint16(value)
	case addr.NR14:
		s.ch1.period = s.ch1.period&0xFF | uint16(value&0x07)<<8
		s.ch1.length.enabled = value&0x40 != 0
		if value&0x80 != 0 {
			s.ch1.trigger()
		}
	case addr.NR21:
		s.ch2.duty = value >> 6
		s.ch2.length.reload(value & 0x3F)
	case addr.NR22:
		s.ch2.env.initial = value >> 4
		s.ch2.env.increase = value&0x08 != 0
		s.ch2.env.pace = value & 0x07
		s.ch2.dacOn = value&0xF8 != 0
		if !s.ch2.dacOn {
			s.ch2.enabled = false
		}
	case addr.NR23:
		s.ch2.period = s.ch2.period&0x700 | uint16(value)
	case addr.NR24:
		s.ch2.period = s.ch2.period&0xFF | uint16(value&0x07)<<8
		s.ch2.length.enabled = value&0x40 != 0
		if value&0x80 != 0 {
			s.ch2.trigger()
		}
	case addr.NR30:
		s.ch3.dacOn = value&0x80 != 0
		if !s.ch3.dacOn {
			s.ch3.enabled = false
		}
	case addr.NR31:
		s.ch3.length.reload(value)
	case addr.NR32:
		s.ch3.volumeShift = (value >> 5) & 0x03
	case addr.NR33:
		s.ch3.period = s.ch3.period&0x700 | uint16(value)
	case addr.NR34:
		s.ch3.period = s.ch3.period&0xFF | uint16(value&0x07)<<8
		s.ch3.length.enabled = value&0x40 != 0
		if value&0x80 != 0 {
			s.ch3.trigger()
		}
	case addr.NR41:
		s.ch4.length.reload(value & 0x3F)
	case addr.NR42:
		s.ch4.env.initial = value >> 4
		s.ch4.env.increase = value&0x08 != 0
		s.ch4.env.pace = value & 0x07
		s.ch4.dacOn = value&0xF8 != 0
		if !s.ch4.dacOn {
			s.ch4.enabled = false
		}
	case addr.NR43:
		s.ch4.shift = value >> 4
		s.ch4.use7Bit = value&0x08 != 0
		s.ch4.divisorCode = value & 0x07
	case addr.NR44:
		s.ch4.length.enabled = value&0x40 != 0
		if value&0x80 != 0 {
			s.ch4.trigger()
		}
	case addr.NR50:
		s.nr50 = value
		s.recomputeAmp()
	case addr.NR51:
		s.nr51 = value
		s.recomputeAmp()
	}
}

func boolBit8(v bool, mask uint8) uint8 {
	if v {
		return mask
	}
	return 0
}
