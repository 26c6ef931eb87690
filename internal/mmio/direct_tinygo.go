//go:build tinygo && riscv

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Direct accesses physical memory through volatile pointers.
type Direct struct{}

func (Direct) Load32(addr uint64) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Get()
}

func (Direct) Store32(addr uint64, value uint32) {
	(*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Set(value)
}

var _ Bus = Direct{}
