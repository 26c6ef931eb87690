//go:build tinygo && riscv

// Command firmware is the HiFive1 Rev B image. It brings the board up on the
// real peripherals and sleeps between interrupts while UART0 streams the
// welcome message.
//
// The trap entry stub and the trap stack live in trap_entry.c, which TinyGo
// assembles along with this package:
//
//	tinygo flash -target=hifive1b ./cmd/firmware
package main

import "C" // trap_entry.c

import (
	"context"
	"io"
	"log/slog"
	"unsafe"

	"github.com/tinyrange/hifive1/internal/board"
	"github.com/tinyrange/hifive1/internal/mmio"
	"github.com/tinyrange/hifive1/internal/riscv"
)

//go:extern _trap_entry
var trapEntry [0]byte

//go:extern _trap_stack_top
var trapStackTop [0]byte

var fw *board.Board

//export hifive1_handle_trap
func handleTrap() {
	fw.HandleTrap()
}

func main() {
	hart := riscv.Local{}

	cfg := board.DefaultConfig()
	cfg.Vector.Entry = uint32(uintptr(unsafe.Pointer(&trapEntry)))
	cfg.Vector.StackTop = uint32(uintptr(unsafe.Pointer(&trapStackTop)))

	// UART0 belongs to the transmit engine, so nothing is logged.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := board.New(hart, mmio.Direct{}, cfg, logger)
	if err != nil {
		hart.Halt(err)
	}
	fw = b

	if err := fw.Boot(); err != nil {
		return
	}
	if err := fw.Run(context.Background(), nil); err != nil {
		hart.Halt(err)
	}
}
