// Package riscv describes the machine-mode state of an RV32 hart: CSR numbers,
// status and interrupt-enable bits, trap causes, and the Hart seam through which
// firmware touches them.
package riscv

// CSR is a control and status register number.
type CSR uint16

// Machine-mode CSRs.
const (
	Mstatus  CSR = 0x300
	Misa     CSR = 0x301
	Mie      CSR = 0x304
	Mtvec    CSR = 0x305
	Mscratch CSR = 0x340
	Mepc     CSR = 0x341
	Mcause   CSR = 0x342
	Mtval    CSR = 0x343
	Mip      CSR = 0x344
	Mhartid  CSR = 0xF14
)

// mstatus bits
const (
	MstatusMIE  uint32 = 1 << 3
	MstatusMPIE uint32 = 1 << 7
	MstatusMPP  uint32 = 3 << 11
)

// mie/mip bits
const (
	MieMSIE uint32 = 1 << 3  // Machine software interrupt enable
	MieMTIE uint32 = 1 << 7  // Machine timer interrupt enable
	MieMEIE uint32 = 1 << 11 // Machine external interrupt enable

	MipMSIP uint32 = MieMSIE
	MipMTIP uint32 = MieMTIE
	MipMEIP uint32 = MieMEIE
)

// mtvec mode field
const (
	MtvecModeMask     uint32 = 3
	MtvecModeDirect   uint32 = 0
	MtvecModeVectored uint32 = 1
)

// Hart is a single hardware thread running in machine mode.
//
// Halt stops the hart for good. On hardware it never returns; callers in trap
// context must return immediately if it does.
type Hart interface {
	ReadCSR(csr CSR) uint32
	WriteCSR(csr CSR, value uint32)
	SetCSR(csr CSR, mask uint32)
	ClearCSR(csr CSR, mask uint32)

	// SetStackPointer sets the stack the trap handler runs on.
	SetStackPointer(sp uint32)

	// WaitForInterrupt idles until an interrupt has been taken. It returns a
	// non-nil error once the hart has halted.
	WaitForInterrupt() error

	Halt(reason error)
}

// String returns the assembler name of the CSR.
func (c CSR) String() string {
	switch c {
	case Mstatus:
		return "mstatus"
	case Misa:
		return "misa"
	case Mie:
		return "mie"
	case Mtvec:
		return "mtvec"
	case Mscratch:
		return "mscratch"
	case Mepc:
		return "mepc"
	case Mcause:
		return "mcause"
	case Mtval:
		return "mtval"
	case Mip:
		return "mip"
	case Mhartid:
		return "mhartid"
	}
	return "csr?"
}
