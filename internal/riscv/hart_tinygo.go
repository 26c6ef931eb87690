//go:build tinygo && riscv

package riscv

import "device/riscv"

// Local is the hart executing this code.
type Local struct{}

// The device/riscv CSR methods are compiler intrinsics that only accept a
// constant receiver, so every access names its register directly.

func (Local) ReadCSR(csr CSR) uint32 {
	switch csr {
	case Mstatus:
		return uint32(riscv.MSTATUS.Get())
	case Misa:
		return uint32(riscv.MISA.Get())
	case Mie:
		return uint32(riscv.MIE.Get())
	case Mtvec:
		return uint32(riscv.MTVEC.Get())
	case Mscratch:
		return uint32(riscv.MSCRATCH.Get())
	case Mepc:
		return uint32(riscv.MEPC.Get())
	case Mcause:
		return uint32(riscv.MCAUSE.Get())
	case Mtval:
		return uint32(riscv.MTVAL.Get())
	case Mip:
		return uint32(riscv.MIP.Get())
	case Mhartid:
		return uint32(riscv.MHARTID.Get())
	}
	return 0
}

func (Local) WriteCSR(csr CSR, value uint32) {
	v := uintptr(value)
	switch csr {
	case Mstatus:
		riscv.MSTATUS.Set(v)
	case Mie:
		riscv.MIE.Set(v)
	case Mtvec:
		riscv.MTVEC.Set(v)
	case Mscratch:
		riscv.MSCRATCH.Set(v)
	case Mepc:
		riscv.MEPC.Set(v)
	case Mcause:
		riscv.MCAUSE.Set(v)
	case Mtval:
		riscv.MTVAL.Set(v)
	case Mip:
		riscv.MIP.Set(v)
	}
}

func (Local) SetCSR(csr CSR, mask uint32) {
	m := uintptr(mask)
	switch csr {
	case Mstatus:
		riscv.MSTATUS.SetBits(m)
	case Mie:
		riscv.MIE.SetBits(m)
	case Mtvec:
		riscv.MTVEC.SetBits(m)
	case Mscratch:
		riscv.MSCRATCH.SetBits(m)
	case Mepc:
		riscv.MEPC.SetBits(m)
	case Mcause:
		riscv.MCAUSE.SetBits(m)
	case Mtval:
		riscv.MTVAL.SetBits(m)
	case Mip:
		riscv.MIP.SetBits(m)
	}
}

func (Local) ClearCSR(csr CSR, mask uint32) {
	m := uintptr(mask)
	switch csr {
	case Mstatus:
		riscv.MSTATUS.ClearBits(m)
	case Mie:
		riscv.MIE.ClearBits(m)
	case Mtvec:
		riscv.MTVEC.ClearBits(m)
	case Mscratch:
		riscv.MSCRATCH.ClearBits(m)
	case Mepc:
		riscv.MEPC.ClearBits(m)
	case Mcause:
		riscv.MCAUSE.ClearBits(m)
	case Mtval:
		riscv.MTVAL.ClearBits(m)
	case Mip:
		riscv.MIP.ClearBits(m)
	}
}

// SetStackPointer records the trap stack in mscratch. The trap entry stub
// swaps it with sp on entry and back before mret.
func (Local) SetStackPointer(sp uint32) {
	riscv.MSCRATCH.Set(uintptr(sp))
}

func (Local) WaitForInterrupt() error {
	riscv.Asm("wfi")
	return nil
}

func (Local) Halt(reason error) {
	riscv.MSTATUS.ClearBits(riscv.MSTATUS_MIE)
	for {
		riscv.Asm("wfi")
	}
}

var _ Hart = Local{}
