// Package plic drives the FE310 platform-level interrupt controller for the
// machine-mode context of hart 0.
package plic

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/mmio"
)

// Base is the PLIC register file address on the FE310-G002.
const Base = 0x0C00_0000

// Register offsets
const (
	offPriority  = 0x000000
	offPending   = 0x001000
	offEnable    = 0x002000
	offThreshold = 0x200000
	offClaim     = 0x200004
)

var (
	ErrInvalidSource   = errors.New("invalid interrupt source")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Controller owns the PLIC register file. Construct one per board.
type Controller struct {
	bus  mmio.Bus
	base uint64
}

// New returns a controller for the PLIC at base.
func New(bus mmio.Bus, base uint64) *Controller {
	return &Controller{bus: bus, base: base}
}

func (c *Controller) reg(off uint64) mmio.Register32 {
	return mmio.Reg32(c.bus, c.base+off)
}

func (c *Controller) enableReg(s Source) (mmio.Register32, uint32) {
	return c.reg(offEnable + 4*uint64(s/32)), 1 << (s % 32)
}

// DisableSource stops s from interrupting the hart. SourceAll clears every
// enable bit.
func (c *Controller) DisableSource(s Source) error {
	if s == SourceAll {
		c.reg(offEnable).Set(0)
		c.reg(offEnable + 4).Set(0)
		return nil
	}
	if !s.Valid() {
		return fmt.Errorf("plic: disable %v: %w", s, ErrInvalidSource)
	}
	r, mask := c.enableReg(s)
	r.ClearBits(mask)
	return nil
}

// EnableSource lets s interrupt the hart, provided its priority exceeds the
// threshold.
func (c *Controller) EnableSource(s Source) error {
	if !s.Valid() {
		return fmt.Errorf("plic: enable %v: %w", s, ErrInvalidSource)
	}
	r, mask := c.enableReg(s)
	r.SetBits(mask)
	return nil
}

// Enabled reports whether s is enabled.
func (c *Controller) Enabled(s Source) bool {
	if !s.Valid() {
		return false
	}
	r, mask := c.enableReg(s)
	return r.HasBits(mask)
}

// SetPriority sets the priority of s.
func (c *Controller) SetPriority(s Source, p Priority) error {
	if !s.Valid() {
		return fmt.Errorf("plic: set priority of %v: %w", s, ErrInvalidSource)
	}
	if !p.Valid() {
		return fmt.Errorf("plic: set priority of %v to %d: %w", s, p, ErrInvalidPriority)
	}
	c.reg(offPriority + 4*uint64(s)).Set(uint32(p))
	return nil
}

// Priority reads back the priority of s.
func (c *Controller) Priority(s Source) (Priority, error) {
	if !s.Valid() {
		return 0, fmt.Errorf("plic: priority of %v: %w", s, ErrInvalidSource)
	}
	return Priority(c.reg(offPriority + 4*uint64(s)).Get()), nil
}

// SetThreshold masks every source whose priority is not above p.
func (c *Controller) SetThreshold(p Priority) error {
	if !p.Valid() {
		return fmt.Errorf("plic: set threshold %d: %w", p, ErrInvalidPriority)
	}
	c.reg(offThreshold).Set(uint32(p))
	return nil
}

// Threshold reads back the threshold.
func (c *Controller) Threshold() Priority {
	return Priority(c.reg(offThreshold).Get())
}

// Pending reports whether s has a request latched in the gateway.
func (c *Controller) Pending(s Source) bool {
	if !s.Valid() {
		return false
	}
	return c.reg(offPending + 4*uint64(s/32)).HasBits(1 << (s % 32))
}

// Claim takes the highest-priority pending source into service. It returns
// SourceNone when nothing is pending.
func (c *Controller) Claim() Source {
	return Source(c.reg(offClaim).Get())
}

// Complete releases s. It must be given the value Claim returned.
func (c *Controller) Complete(s Source) {
	c.reg(offClaim).Set(uint32(s))
}

// Serve claims a source, passes it to handle and completes it with the same
// id. If nothing was pending it returns false without completing.
func (c *Controller) Serve(handle func(Source)) (Source, bool) {
	s := c.Claim()
	if s == SourceNone {
		return SourceNone, false
	}
	handle(s)
	c.Complete(s)
	return s, true
}
