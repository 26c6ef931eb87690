// Package rtc drives the real-time counter in the FE310 always-on block and
// keeps a wall-clock calendar on top of it.
package rtc

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/mmio"
)

// Base is the AON block address on the FE310-G002.
const Base = 0x1000_0000

// TicksPerSecond is the rate of the low-frequency clock the counter counts.
const TicksPerSecond = 32_768

// SecondsScale makes rtcs count whole seconds.
const SecondsScale = 15

const (
	offCfg       = 0x40
	offCountLo   = 0x48
	offCountHi   = 0x4C
	offScaled    = 0x50
	offCmp0      = 0x60
	offLFROSCCfg = 0x70
	offLFClkMux  = 0x7C
)

const (
	cfgScaleMask = 0xF
	cfgEnAlways  = 1 << 12
	cfgCmpIP     = 1 << 28
	lfroscEn     = 1 << 30
	lfclkSel     = 1 << 0
)

var ErrInvalidScale = errors.New("rtc scale must be below 16")

// RTC owns the AON real-time counter registers.
type RTC struct {
	bus  mmio.Bus
	base uint64
}

// New returns the RTC in the AON block at base.
func New(bus mmio.Bus, base uint64) *RTC {
	return &RTC{bus: bus, base: base}
}

func (r *RTC) reg(off uint64) mmio.Register32 {
	return mmio.Reg32(r.bus, r.base+off)
}

// SelectExternalClock feeds the counter from the 32.768 kHz crystal the
// HiFive1 wires to the low-frequency alternate clock input.
func (r *RTC) SelectExternalClock() {
	r.reg(offLFROSCCfg).SetBits(lfroscEn)
	r.reg(offLFClkMux).SetBits(lfclkSel)
}

// Reset zeroes the counter and the comparator.
func (r *RTC) Reset() {
	r.reg(offCountHi).Set(0)
	r.reg(offCountLo).Set(0)
	r.reg(offCmp0).Set(0)
}

// SetScale sets the power-of-two divider between the counter and rtcs.
func (r *RTC) SetScale(scale uint8) error {
	if scale > cfgScaleMask {
		return fmt.Errorf("rtc: scale %d: %w", scale, ErrInvalidScale)
	}
	r.reg(offCfg).ReplaceBits(uint32(scale), cfgScaleMask, 0)
	return nil
}

// Scale reads back the divider.
func (r *RTC) Scale() uint8 {
	return uint8(r.reg(offCfg).Field(cfgScaleMask, 0))
}

func (r *RTC) Enable()  { r.reg(offCfg).SetBits(cfgEnAlways) }
func (r *RTC) Disable() { r.reg(offCfg).ClearBits(cfgEnAlways) }

// Counter reads the 48-bit counter, retrying if the low word rolled over
// between the two halves.
func (r *RTC) Counter() uint64 {
	for {
		hi := r.reg(offCountHi).Get()
		lo := r.reg(offCountLo).Get()
		if r.reg(offCountHi).Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// Scaled reads rtcs, the counter shifted right by the scale.
func (r *RTC) Scaled() uint32 {
	return r.reg(offScaled).Get()
}

// Seconds returns the counter in whole seconds.
func (r *RTC) Seconds() uint64 {
	return r.Counter() / TicksPerSecond
}

// SetCompare sets rtccmp0. CompareReached becomes true once rtcs >= v.
func (r *RTC) SetCompare(v uint32) {
	r.reg(offCmp0).Set(v)
}

// CompareReached reports rtccfg.cmpip.
func (r *RTC) CompareReached() bool {
	return r.reg(offCfg).HasBits(cfgCmpIP)
}

// WaitScaled busy-waits until rtcs has advanced by n.
func (r *RTC) WaitScaled(n uint32) {
	r.SetCompare(r.Scaled() + n)
	for !r.CompareReached() {
	}
}
