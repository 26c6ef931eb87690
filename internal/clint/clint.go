// Package clint drives the core-local interruptor: the machine software
// interrupt and the mtime/mtimecmp timer of hart 0.
package clint

import "github.com/tinyrange/hifive1/internal/mmio"

// Base is the CLINT address on the FE310-G002.
const Base = 0x0200_0000

// TickHz is the rate mtime counts at.
const TickHz = 32_768

const (
	offMsip       = 0x0000
	offMtimecmpLo = 0x4000
	offMtimecmpHi = 0x4004
	offMtimeLo    = 0xBFF8
	offMtimeHi    = 0xBFFC
)

// CLINT owns the CLINT registers of hart 0.
type CLINT struct {
	bus  mmio.Bus
	base uint64
}

// New returns the CLINT at base.
func New(bus mmio.Bus, base uint64) *CLINT {
	return &CLINT{bus: bus, base: base}
}

func (c *CLINT) reg(off uint64) mmio.Register32 {
	return mmio.Reg32(c.bus, c.base+off)
}

// RaiseSoftware sets msip.
func (c *CLINT) RaiseSoftware() {
	c.reg(offMsip).Set(1)
}

// ClearSoftware clears msip.
func (c *CLINT) ClearSoftware() {
	c.reg(offMsip).Set(0)
}

// SoftwarePending reports whether msip is set.
func (c *CLINT) SoftwarePending() bool {
	return c.reg(offMsip).HasBits(1)
}

// Time reads the 64-bit mtime, retrying if the low word rolled over between
// the two halves.
func (c *CLINT) Time() uint64 {
	for {
		hi := c.reg(offMtimeHi).Get()
		lo := c.reg(offMtimeLo).Get()
		if c.reg(offMtimeHi).Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// SetTimer arms the timer interrupt for deadline. The high word is parked at
// its maximum first so no spurious match fires between the two stores.
func (c *CLINT) SetTimer(deadline uint64) {
	c.reg(offMtimecmpHi).Set(0xFFFF_FFFF)
	c.reg(offMtimecmpLo).Set(uint32(deadline))
	c.reg(offMtimecmpHi).Set(uint32(deadline >> 32))
}

// DisarmTimer moves mtimecmp to its maximum.
func (c *CLINT) DisarmTimer() {
	c.reg(offMtimecmpHi).Set(0xFFFF_FFFF)
	c.reg(offMtimecmpLo).Set(0xFFFF_FFFF)
}

// Deadline reads back mtimecmp.
func (c *CLINT) Deadline() uint64 {
	return uint64(c.reg(offMtimecmpHi).Get())<<32 | uint64(c.reg(offMtimecmpLo).Get())
}
