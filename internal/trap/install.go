package trap

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/riscv"
)

var (
	ErrMisalignedVector = errors.New("trap vector must be non-zero and 4-byte aligned")
	ErrVectorRejected   = errors.New("mtvec did not accept the trap vector")
	ErrInvalidStack     = errors.New("stack top must be non-zero and 16-byte aligned")
)

// Vector describes where traps enter and what they may interrupt.
type Vector struct {
	// Entry is the address of the trap entry code. Direct mode only.
	Entry uint32
	// StackTop is the initial stack pointer.
	StackTop uint32
	// Enable selects MSIE and MTIE in addition to MEIE, which is always set.
	Enable uint32
}

// Install masks interrupts, points mtvec at v.Entry, sets the stack pointer,
// enables the requested interrupt classes and unmasks interrupts last. On
// error interrupts stay masked.
func Install(h riscv.Hart, v Vector) error {
	h.ClearCSR(riscv.Mstatus, riscv.MstatusMIE)

	if v.Entry == 0 || v.Entry&riscv.MtvecModeMask != 0 {
		return fmt.Errorf("trap: install: entry 0x%08x: %w", v.Entry, ErrMisalignedVector)
	}
	if v.StackTop == 0 || v.StackTop&15 != 0 {
		return fmt.Errorf("trap: install: stack 0x%08x: %w", v.StackTop, ErrInvalidStack)
	}

	h.WriteCSR(riscv.Mtvec, v.Entry|riscv.MtvecModeDirect)
	if got := h.ReadCSR(riscv.Mtvec); got != v.Entry {
		return fmt.Errorf("trap: install: wrote 0x%08x, read 0x%08x: %w", v.Entry, got, ErrVectorRejected)
	}

	h.SetStackPointer(v.StackTop)
	h.SetCSR(riscv.Mie, riscv.MieMEIE|v.Enable&(riscv.MieMSIE|riscv.MieMTIE))
	h.SetCSR(riscv.Mstatus, riscv.MstatusMIE)
	return nil
}
