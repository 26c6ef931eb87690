package fe310

import (
	"fmt"
	"io"
	"sync/atomic"
)

// AccessCycles is the bus time charged for every load or store.
const AccessCycles = 2

// Machine represents a complete HiFive1 Rev B board.
type Machine struct {
	Hart  *Hart
	Bus   *Bus
	DTIM  *MemoryRegion
	CLINT *CLINT
	PLIC  *PLIC
	AON   *AON
	GPIO  *GPIO
	UART0 *UART
	UART1 *UART

	ClockHz uint64

	tickers []Ticker
	cycles  atomic.Uint64
}

// Options configures NewMachine.
type Options struct {
	// ClockHz is the core and bus clock. Zero selects DefaultClockHz.
	ClockHz uint64
	// Console receives bytes shifted out of UART0.
	Console io.Writer
	// Aux receives bytes shifted out of UART1.
	Aux io.Writer
	// LoopbackUART1 wires UART1 TX (GPIO18) back to its RX (GPIO23).
	LoopbackUART1 bool
}

// NewMachine creates a board in its reset state.
func NewMachine(opts Options) *Machine {
	clockHz := opts.ClockHz
	if clockHz == 0 {
		clockHz = DefaultClockHz
	}

	hart := NewHart()
	bus := NewBus()

	plic := NewPLIC(func(level bool) { hart.setPending(MipMEIP, level) })
	clint := NewCLINT(hart, clockHz)
	aon := NewAON(clockHz, plic.Line(IRQRTC))
	gpio := NewGPIO()
	uart0 := NewUART(opts.Console, plic.Line(IRQUART0))
	uart1 := NewUART(opts.Aux, plic.Line(IRQUART1))
	uart1.Loopback = opts.LoopbackUART1
	dtim := NewMemoryRegion(DTIMSize)

	bus.AddDevice(CLINTBase, clint)
	bus.AddDevice(PLICBase, plic)
	bus.AddDevice(AONBase, aon)
	bus.AddDevice(GPIOBase, gpio)
	bus.AddDevice(UART0Base, uart0)
	bus.AddDevice(UART1Base, uart1)
	bus.AddDevice(DTIMBase, dtim)

	m := &Machine{
		Hart:    hart,
		Bus:     bus,
		DTIM:    dtim,
		CLINT:   clint,
		PLIC:    plic,
		AON:     aon,
		GPIO:    gpio,
		UART0:   uart0,
		UART1:   uart1,
		ClockHz: clockHz,
		tickers: []Ticker{uart0, uart1, aon, clint},
	}

	hart.tick = m.Tick
	hart.now = m.Cycles
	bus.fault = hart.Raise
	bus.halted = hart.Halted
	bus.after = func() {
		m.Tick(AccessCycles)
		hart.preempt()
	}

	return m
}

// Tick advances every clocked device by cycles.
func (m *Machine) Tick(cycles uint64) {
	if cycles == 0 {
		return
	}
	m.cycles.Add(cycles)
	for _, t := range m.tickers {
		t.Tick(cycles)
	}
}

// Cycles returns the bus cycles elapsed since reset.
func (m *Machine) Cycles() uint64 {
	return m.cycles.Load()
}

// Link installs fn as the code at entry, typically the trap vector.
func (m *Machine) Link(entry uint32, fn func()) {
	m.Hart.Link(entry, fn)
}

// UART returns UART instance 0 or 1.
func (m *Machine) UART(instance int) (*UART, error) {
	switch instance {
	case 0:
		return m.UART0, nil
	case 1:
		return m.UART1, nil
	}
	return nil, fmt.Errorf("fe310: no UART%d", instance)
}

// EnqueueInput delivers bytes to the receive line of a UART. It is safe to
// call from any goroutine.
func (m *Machine) EnqueueInput(instance int, data []byte) error {
	uart, err := m.UART(instance)
	if err != nil {
		return err
	}
	uart.EnqueueInput(data)
	return nil
}

// Err returns the *HaltError that stopped the hart, or nil.
func (m *Machine) Err() error {
	return m.Hart.Err()
}
