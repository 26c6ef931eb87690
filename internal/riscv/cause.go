package riscv

import "fmt"

const (
	// CauseInterrupt is the mcause bit that marks an asynchronous interrupt.
	CauseInterrupt uint32 = 1 << 31
	// CauseCodeMask selects the cause code.
	CauseCodeMask uint32 = 0xF
)

// Interrupt codes.
const (
	InterruptMachineSoftware uint8 = 3
	InterruptMachineTimer    uint8 = 7
	InterruptMachineExternal uint8 = 11
)

// Exception codes. 9 and 10 are reserved on a core without supervisor mode.
const (
	ExceptionInsnMisaligned  uint8 = 0
	ExceptionInsnAccessFault uint8 = 1
	ExceptionIllegalInsn     uint8 = 2
	ExceptionBreakpoint      uint8 = 3
	ExceptionLoadMisaligned  uint8 = 4
	ExceptionLoadAccessFault uint8 = 5
	ExceptionStoreMisaligned uint8 = 6
	ExceptionStoreAccess     uint8 = 7
	ExceptionEcallFromU      uint8 = 8
	ExceptionEcallFromM      uint8 = 11
)

// TrapCause is a decoded mcause value.
type TrapCause struct {
	Interrupt bool
	Code      uint8
}

// DecodeCause splits mcause into the interrupt flag and the 4-bit code.
func DecodeCause(mcause uint32) TrapCause {
	return TrapCause{
		Interrupt: mcause&CauseInterrupt != 0,
		Code:      uint8(mcause & CauseCodeMask),
	}
}

// Encode returns the mcause value for c.
func (c TrapCause) Encode() uint32 {
	v := uint32(c.Code) & CauseCodeMask
	if c.Interrupt {
		v |= CauseInterrupt
	}
	return v
}

// Reserved reports whether c names no defined interrupt or exception.
func (c TrapCause) Reserved() bool {
	if c.Interrupt {
		switch c.Code {
		case InterruptMachineSoftware, InterruptMachineTimer, InterruptMachineExternal:
			return false
		}
		return true
	}
	return c.Code > ExceptionEcallFromM || c.Code == 9 || c.Code == 10
}

var exceptionNames = [...]string{
	ExceptionInsnMisaligned:  "instruction address misaligned",
	ExceptionInsnAccessFault: "instruction access fault",
	ExceptionIllegalInsn:     "illegal instruction",
	ExceptionBreakpoint:      "breakpoint",
	ExceptionLoadMisaligned:  "load address misaligned",
	ExceptionLoadAccessFault: "load access fault",
	ExceptionStoreMisaligned: "store/AMO address misaligned",
	ExceptionStoreAccess:     "store/AMO access fault",
	ExceptionEcallFromU:      "environment call from U-mode",
	ExceptionEcallFromM:      "environment call from M-mode",
}

func (c TrapCause) String() string {
	if c.Reserved() {
		kind := "exception"
		if c.Interrupt {
			kind = "interrupt"
		}
		return fmt.Sprintf("reserved %s %d", kind, c.Code)
	}
	if c.Interrupt {
		switch c.Code {
		case InterruptMachineSoftware:
			return "machine software interrupt"
		case InterruptMachineTimer:
			return "machine timer interrupt"
		default:
			return "machine external interrupt"
		}
	}
	return exceptionNames[c.Code]
}
