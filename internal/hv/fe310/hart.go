package fe310

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tinyrange/hifive1/internal/riscv"
)

// Interrupt pending bits driven by devices.
const (
	MipMSIP = riscv.MipMSIP
	MipMTIP = riscv.MipMTIP
	MipMEIP = riscv.MipMEIP
)

// ISA extension bits for misa
const (
	MisaA uint32 = 1 << 0  // Atomic
	MisaC uint32 = 1 << 2  // Compressed
	MisaI uint32 = 1 << 8  // RV32I base
	MisaM uint32 = 1 << 12 // Multiply/Divide
	MisaU uint32 = 1 << 20 // User mode

	misaMXL32 uint32 = 1 << 30
)

// IdlePC is the address of the foreground wait loop; it is what mepc holds
// when an interrupt is taken from the foreground.
const IdlePC = FlashBase + 0x100

var (
	ErrInterruptStorm = errors.New("interrupt storm")
	ErrNoTrapHandler  = errors.New("no trap handler at mtvec")
	ErrNoStack        = errors.New("trap taken with no stack")
	ErrDoubleFault    = errors.New("exception inside trap handler")
)

// HaltError records why and where the hart stopped.
type HaltError struct {
	Reason error
	Mepc   uint32
	Mcause uint32
	Cycle  uint64
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("hart halted at cycle %d (mepc=0x%08x mcause=0x%08x): %v", e.Cycle, e.Mepc, e.Mcause, e.Reason)
}

func (e *HaltError) Unwrap() error {
	return e.Reason
}

// Hart models the CSR file and trap behaviour of the E31 core.
//
// Interrupts are taken at access boundaries: after every bus access and CSR
// write made by foreground code, and from WaitForInterrupt. Trap entry calls
// the handler linked at the trap vector on the calling goroutine, then
// performs mret.
type Hart struct {
	mstatus  uint32
	mie      uint32
	mtvec    uint32
	mscratch uint32
	mepc     uint32
	mcause   uint32
	mtval    uint32
	mip      atomic.Uint32

	// PC is the address execution resumes at after mret.
	PC uint32
	// SP is the last stack pointer installed by firmware.
	SP uint32

	// StormLimit is the number of traps taken back to back, with no
	// foreground progress in between, after which the hart halts.
	StormLimit int
	// Quantum is the number of cycles WaitForInterrupt sleeps per step.
	Quantum uint64
	// IdleLimit bounds the cycles one WaitForInterrupt call sleeps before
	// returning with nothing taken.
	IdleLimit uint64

	handlers map[uint32]func()
	halt     atomic.Pointer[HaltError]

	tick func(cycles uint64)
	now  func() uint64

	depth int
	burst int

	// Traps counts trap entries.
	Traps uint64
}

// NewHart creates a hart in its reset state: machine mode, all interrupts
// disabled, mtvec zero.
func NewHart() *Hart {
	return &Hart{
		mstatus:    riscv.MstatusMPP,
		PC:         IdlePC,
		StormLimit: 1000,
		Quantum:    64,
		IdleLimit:  1 << 22,
		handlers:   make(map[uint32]func()),
	}
}

// Link installs fn as the code at entry. Trap entry at a vector with no linked
// handler halts the hart.
func (h *Hart) Link(entry uint32, fn func()) {
	h.handlers[entry] = fn
}

// ReadCSR implements riscv.Hart
func (h *Hart) ReadCSR(csr riscv.CSR) uint32 {
	switch csr {
	case riscv.Mstatus:
		return h.mstatus
	case riscv.Misa:
		return misaMXL32 | MisaI | MisaM | MisaA | MisaC | MisaU
	case riscv.Mie:
		return h.mie
	case riscv.Mtvec:
		return h.mtvec
	case riscv.Mscratch:
		return h.mscratch
	case riscv.Mepc:
		return h.mepc
	case riscv.Mcause:
		return h.mcause
	case riscv.Mtval:
		return h.mtval
	case riscv.Mip:
		return h.mip.Load()
	}
	return 0
}

// WriteCSR implements riscv.Hart
func (h *Hart) WriteCSR(csr riscv.CSR, value uint32) {
	if h.Halted() {
		return
	}
	switch csr {
	case riscv.Mstatus:
		// MPP is hardwired to machine mode.
		h.mstatus = value&(riscv.MstatusMIE|riscv.MstatusMPIE) | riscv.MstatusMPP
	case riscv.Mie:
		h.mie = value & (riscv.MieMSIE | riscv.MieMTIE | riscv.MieMEIE)
	case riscv.Mtvec:
		// Reserved modes 2 and 3 are not retained.
		h.mtvec = value &^ 2
	case riscv.Mscratch:
		h.mscratch = value
	case riscv.Mepc:
		h.mepc = value &^ 1
	case riscv.Mcause:
		h.mcause = value
	case riscv.Mtval:
		h.mtval = value
	}
	h.preempt()
}

// SetCSR implements riscv.Hart
func (h *Hart) SetCSR(csr riscv.CSR, mask uint32) {
	h.WriteCSR(csr, h.ReadCSR(csr)|mask)
}

// ClearCSR implements riscv.Hart
func (h *Hart) ClearCSR(csr riscv.CSR, mask uint32) {
	h.WriteCSR(csr, h.ReadCSR(csr)&^mask)
}

// SetStackPointer implements riscv.Hart
func (h *Hart) SetStackPointer(sp uint32) {
	h.SP = sp
}

// Halt implements riscv.Hart. Only the first reason is kept.
func (h *Hart) Halt(reason error) {
	var cycle uint64
	if h.now != nil {
		cycle = h.now()
	}
	h.halt.CompareAndSwap(nil, &HaltError{
		Reason: reason,
		Mepc:   h.mepc,
		Mcause: h.mcause,
		Cycle:  cycle,
	})
}

// Halted reports whether the hart has stopped.
func (h *Hart) Halted() bool {
	return h.halt.Load() != nil
}

// Err returns the *HaltError that stopped the hart, or nil.
func (h *Hart) Err() error {
	if e := h.halt.Load(); e != nil {
		return e
	}
	return nil
}

// WaitForInterrupt implements riscv.Hart. It sleeps until an enabled interrupt
// is pending, takes it if mstatus.MIE is set, and returns. A call that sleeps
// IdleLimit cycles with nothing pending returns nil as a spurious wakeup.
func (h *Hart) WaitForInterrupt() error {
	if err := h.Err(); err != nil {
		return err
	}

	var slept uint64
	for h.mip.Load()&h.mie == 0 {
		if slept >= h.IdleLimit {
			return h.Err()
		}
		h.advance(h.Quantum)
		slept += h.Quantum
		if err := h.Err(); err != nil {
			return err
		}
	}

	h.preempt()
	return h.Err()
}

func (h *Hart) advance(cycles uint64) {
	if h.tick != nil {
		h.tick(cycles)
	}
}

// setPending drives a bit of mip. It may be called from any goroutine.
func (h *Hart) setPending(mask uint32, on bool) {
	for {
		old := h.mip.Load()
		next := old &^ mask
		if on {
			next |= mask
		}
		if old == next || h.mip.CompareAndSwap(old, next) {
			return
		}
	}
}

// pendingInterrupt returns the highest-priority interrupt the hart would take
// now: external, then software, then timer.
func (h *Hart) pendingInterrupt() (uint8, bool) {
	if h.mstatus&riscv.MstatusMIE == 0 {
		return 0, false
	}
	pending := h.mip.Load() & h.mie
	switch {
	case pending&MipMEIP != 0:
		return riscv.InterruptMachineExternal, true
	case pending&MipMSIP != 0:
		return riscv.InterruptMachineSoftware, true
	case pending&MipMTIP != 0:
		return riscv.InterruptMachineTimer, true
	}
	return 0, false
}

// preempt takes every interrupt that is pending at a foreground boundary.
func (h *Hart) preempt() {
	if h.depth > 0 {
		return
	}
	for !h.Halted() {
		code, ok := h.pendingInterrupt()
		if !ok {
			h.burst = 0
			return
		}
		h.burst++
		if h.StormLimit > 0 && h.burst > h.StormLimit {
			h.Halt(fmt.Errorf("%w: %d traps without progress", ErrInterruptStorm, h.burst-1))
			return
		}
		h.trap(riscv.CauseInterrupt|uint32(code), 0)
	}
}

// Raise takes a synchronous exception at the current PC.
func (h *Hart) Raise(code uint8, tval uint32) {
	if h.Halted() {
		return
	}
	if h.depth > 0 {
		h.mcause = uint32(code)
		h.mtval = tval
		h.Halt(fmt.Errorf("%w: %s at 0x%08x", ErrDoubleFault, riscv.DecodeCause(uint32(code)), tval))
		return
	}
	h.trap(uint32(code), tval)
}

// Inject enters the trap handler with an arbitrary mcause, as if the core
// had raised it. It lets tests and fault drills deliver causes the modelled
// devices never produce.
func (h *Hart) Inject(mcause, tval uint32) {
	if h.Halted() || h.depth > 0 {
		return
	}
	h.trap(mcause, tval)
}

// trap performs trap entry, runs the linked handler and returns with mret.
func (h *Hart) trap(mcause, tval uint32) {
	h.mepc = h.PC
	h.mcause = mcause
	h.mtval = tval

	// Save current MIE to MPIE and clear MIE
	if h.mstatus&riscv.MstatusMIE != 0 {
		h.mstatus |= riscv.MstatusMPIE
	} else {
		h.mstatus &^= riscv.MstatusMPIE
	}
	h.mstatus &^= riscv.MstatusMIE

	entry := h.mtvec &^ riscv.MtvecModeMask
	if h.mtvec&riscv.MtvecModeMask == riscv.MtvecModeVectored && mcause&riscv.CauseInterrupt != 0 {
		entry += 4 * (mcause & riscv.CauseCodeMask)
	}

	handler, ok := h.handlers[entry]
	if !ok {
		h.Halt(fmt.Errorf("%w: 0x%08x", ErrNoTrapHandler, entry))
		return
	}
	if h.SP == 0 {
		h.Halt(ErrNoStack)
		return
	}

	h.Traps++
	h.depth++
	handler()
	h.depth--

	if h.Halted() {
		return
	}

	// mret
	if h.mstatus&riscv.MstatusMPIE != 0 {
		h.mstatus |= riscv.MstatusMIE
	} else {
		h.mstatus &^= riscv.MstatusMIE
	}
	h.mstatus |= riscv.MstatusMPIE
	h.PC = h.mepc
}

var _ riscv.Hart = (*Hart)(nil)
