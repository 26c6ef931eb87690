package trap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tinyrange/hifive1/internal/hv/fe310"
	"github.com/tinyrange/hifive1/internal/riscv"
)

// traceHart records every CSR and stack-pointer write.
type traceHart struct {
	*fe310.Hart
	ops       []string
	dropMtvec bool
}

func (h *traceHart) WriteCSR(c riscv.CSR, v uint32) {
	h.ops = append(h.ops, fmt.Sprintf("w %v %#x", c, v))
	if c == riscv.Mtvec && h.dropMtvec {
		return
	}
	h.Hart.WriteCSR(c, v)
}

func (h *traceHart) SetCSR(c riscv.CSR, m uint32) {
	h.ops = append(h.ops, fmt.Sprintf("s %v %#x", c, m))
	h.Hart.SetCSR(c, m)
}

func (h *traceHart) ClearCSR(c riscv.CSR, m uint32) {
	h.ops = append(h.ops, fmt.Sprintf("c %v %#x", c, m))
	h.Hart.ClearCSR(c, m)
}

func (h *traceHart) SetStackPointer(sp uint32) {
	h.ops = append(h.ops, fmt.Sprintf("sp %#x", sp))
	h.Hart.SetStackPointer(sp)
}

func TestInstallOrder(t *testing.T) {
	h := &traceHart{Hart: fe310.NewHart()}

	err := Install(h, Vector{Entry: testEntry, StackTop: testStack, Enable: riscv.MieMTIE})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"c mstatus 0x8",
		fmt.Sprintf("w mtvec %#x", testEntry),
		fmt.Sprintf("sp %#x", testStack),
		"s mie 0x880",
		"s mstatus 0x8",
	}
	if len(h.ops) != len(want) {
		t.Fatalf("ops = %q", h.ops)
	}
	for i := range want {
		if h.ops[i] != want[i] {
			t.Fatalf("op %d = %q, want %q (all: %q)", i, h.ops[i], want[i], h.ops)
		}
	}
	if h.ReadCSR(riscv.Mstatus)&riscv.MstatusMIE == 0 {
		t.Fatal("MIE not set")
	}
}

func TestInstallErrors(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		drop bool
		want error
	}{
		{"zero entry", Vector{Entry: 0, StackTop: testStack}, false, ErrMisalignedVector},
		{"misaligned entry", Vector{Entry: testEntry + 2, StackTop: testStack}, false, ErrMisalignedVector},
		{"vectored bit", Vector{Entry: testEntry | 1, StackTop: testStack}, false, ErrMisalignedVector},
		{"zero stack", Vector{Entry: testEntry}, false, ErrInvalidStack},
		{"misaligned stack", Vector{Entry: testEntry, StackTop: testStack - 8}, false, ErrInvalidStack},
		{"rejected", Vector{Entry: testEntry, StackTop: testStack}, true, ErrVectorRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &traceHart{Hart: fe310.NewHart(), dropMtvec: tt.drop}
			h.Hart.SetCSR(riscv.Mstatus, riscv.MstatusMIE)

			err := Install(h, tt.v)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if h.ReadCSR(riscv.Mstatus)&riscv.MstatusMIE != 0 {
				t.Fatal("interrupts left enabled after failed install")
			}
			if h.ReadCSR(riscv.Mie) != 0 {
				t.Fatal("mie written after failed install")
			}
		})
	}
}
