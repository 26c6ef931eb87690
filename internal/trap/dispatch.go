// Package trap is the machine-mode trap path: the dispatcher every trap enters
// through, and the installer that points mtvec at it.
//
// Dispatch runs with interrupts masked. It never logs, never allocates on
// the success path and never blocks. Any condition it cannot recover from
// halts the hart.
package trap

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/clint"
	"github.com/tinyrange/hifive1/internal/plic"
	"github.com/tinyrange/hifive1/internal/riscv"
	"github.com/tinyrange/hifive1/internal/uart"
)

var (
	ErrReservedCause   = errors.New("reserved trap cause")
	ErrUnhandledSource = errors.New("unhandled interrupt source")
	ErrFatalException  = errors.New("fatal exception")
)

// Stats counts what the dispatcher has handled.
type Stats struct {
	Traps      uint64
	External   uint64
	Software   uint64
	Timer      uint64
	Spurious   uint64 // external entries that claimed nothing
	TxRefills  uint64
	RxEvents   uint64
	RxBytes    uint64
	Breakpoint uint64
	Ecall      uint64
	LastCause  uint32
}

// Config wires a dispatcher to the devices it serves. UART, Tx and Rx may be
// nil; a nil Tx or Rx leaves that watermark unhandled. CLINT may be nil if
// neither the software nor the timer interrupt is enabled.
type Config struct {
	Hart  riscv.Hart
	PLIC  *plic.Controller
	CLINT *clint.CLINT

	UART       *uart.Port
	UARTSource plic.Source
	Tx         *uart.TxEngine
	Rx         *uart.RxBuffer

	// TimerInterval re-arms the CLINT timer this many mtime ticks after each
	// timer interrupt. Zero disarms it instead.
	TimerInterval uint64
	// OnTimer runs in trap context on every timer interrupt.
	OnTimer func()
}

// Dispatcher is the single trap entry.
type Dispatcher struct {
	cfg   Config
	stats Stats

	serve     func(plic.Source)
	unhandled plic.Source
}

// New returns a dispatcher for cfg.
func New(cfg Config) *Dispatcher {
	if cfg.UARTSource == plic.SourceNone && cfg.UART != nil {
		cfg.UARTSource = plic.SourceUART0 + plic.Source(cfg.UART.Instance())
	}
	d := &Dispatcher{cfg: cfg}
	d.serve = d.serveSource
	return d
}

// Dispatch handles the trap recorded in mcause. Link it at the trap vector.
func (d *Dispatcher) Dispatch() {
	h := d.cfg.Hart
	mcause := h.ReadCSR(riscv.Mcause)
	d.stats.Traps++
	d.stats.LastCause = mcause

	cause := riscv.DecodeCause(mcause)
	if cause.Reserved() {
		h.Halt(fmt.Errorf("trap: %v (mcause 0x%08x): %w", cause, mcause, ErrReservedCause))
		return
	}
	if cause.Interrupt {
		d.interrupt(cause.Code)
	} else {
		d.exception(cause.Code)
	}
}

func (d *Dispatcher) interrupt(code uint8) {
	switch code {
	case riscv.InterruptMachineExternal:
		d.external()
	case riscv.InterruptMachineSoftware:
		d.stats.Software++
		if d.cfg.CLINT == nil {
			d.cfg.Hart.ClearCSR(riscv.Mie, riscv.MieMSIE)
			return
		}
		d.cfg.CLINT.ClearSoftware()
	case riscv.InterruptMachineTimer:
		d.stats.Timer++
		if d.cfg.CLINT == nil {
			d.cfg.Hart.ClearCSR(riscv.Mie, riscv.MieMTIE)
			return
		}
		if d.cfg.TimerInterval == 0 {
			d.cfg.CLINT.DisarmTimer()
		} else {
			d.cfg.CLINT.SetTimer(d.cfg.CLINT.Time() + d.cfg.TimerInterval)
		}
		if d.cfg.OnTimer != nil {
			d.cfg.OnTimer()
		}
	}
}

func (d *Dispatcher) external() {
	d.stats.External++
	if d.cfg.PLIC == nil {
		d.cfg.Hart.Halt(fmt.Errorf("trap: external interrupt with no PLIC: %w", ErrUnhandledSource))
		return
	}

	d.unhandled = plic.SourceNone
	if _, ok := d.cfg.PLIC.Serve(d.serve); !ok {
		d.stats.Spurious++
		return
	}
	if d.unhandled != plic.SourceNone {
		d.cfg.Hart.Halt(fmt.Errorf("trap: source %v: %w", d.unhandled, ErrUnhandledSource))
	}
}

// serveSource runs between claim and complete.
func (d *Dispatcher) serveSource(src plic.Source) {
	if d.cfg.UART == nil || src != d.cfg.UARTSource {
		d.unhandled = src
		return
	}

	// ip reports raw watermark conditions, so mask it with ie.
	ip := d.cfg.UART.Pending() & d.cfg.UART.EnabledInterrupts()
	if ip&uart.TxWatermark != 0 && d.cfg.Tx != nil {
		d.cfg.Tx.Refill()
		d.stats.TxRefills++
	}
	if ip&uart.RxWatermark != 0 && d.cfg.Rx != nil {
		n := d.cfg.Rx.Fill(d.cfg.UART)
		d.stats.RxEvents++
		d.stats.RxBytes += uint64(n)
	}
}

func (d *Dispatcher) exception(code uint8) {
	h := d.cfg.Hart
	switch code {
	case riscv.ExceptionBreakpoint:
		d.stats.Breakpoint++
	case riscv.ExceptionEcallFromU, riscv.ExceptionEcallFromM:
		d.stats.Ecall++
	default:
		h.Halt(fmt.Errorf("trap: %v at mepc 0x%08x (mtval 0x%08x): %w",
			riscv.DecodeCause(uint32(code)), h.ReadCSR(riscv.Mepc), h.ReadCSR(riscv.Mtval), ErrFatalException))
		return
	}
	// Resume after the trapping instruction.
	h.WriteCSR(riscv.Mepc, h.ReadCSR(riscv.Mepc)+4)
}

// Stats returns a snapshot of the counters, read with interrupts masked.
func (d *Dispatcher) Stats() Stats {
	state := riscv.DisableInterrupts(d.cfg.Hart)
	s := d.stats
	riscv.RestoreInterrupts(d.cfg.Hart, state)
	return s
}
