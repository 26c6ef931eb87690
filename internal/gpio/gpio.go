// Package gpio drives the FE310 GPIO block.
package gpio

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/mmio"
)

// Base is the GPIO block address on the FE310-G002.
const Base = 0x1001_2000

const (
	offInputVal  = 0x00
	offInputEn   = 0x04
	offOutputEn  = 0x08
	offOutputVal = 0x0C
	offPUE       = 0x10
	offDS        = 0x14
	offIOFEn     = 0x38
	offIOFSel    = 0x3C
	offOutXor    = 0x40
)

// HiFive1 Rev B board pins.
const (
	PinUART0RX  = 16
	PinUART0TX  = 17
	PinUART1TX  = 18
	PinLEDGreen = 19
	PinLEDBlue  = 21
	PinLEDRed   = 22
	PinUART1RX  = 23
)

// NumPins is the number of GPIO pins.
const NumPins = 32

var ErrInvalidPin = errors.New("invalid GPIO pin")

// Mode selects how a pin is driven.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeInputPullUp
	ModeOutput
	ModeIOF0
	ModeIOF1
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeInputPullUp:
		return "input-pullup"
	case ModeOutput:
		return "output"
	case ModeIOF0:
		return "iof0"
	case ModeIOF1:
		return "iof1"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Port owns the GPIO register file.
type Port struct {
	bus  mmio.Bus
	base uint64
}

// New returns the GPIO block at base.
func New(bus mmio.Bus, base uint64) *Port {
	return &Port{bus: bus, base: base}
}

func (p *Port) reg(off uint64) mmio.Register32 {
	return mmio.Reg32(p.bus, p.base+off)
}

// Pin returns pin n.
func (p *Port) Pin(n int) (Pin, error) {
	if n < 0 || n >= NumPins {
		return Pin{}, fmt.Errorf("gpio: pin %d: %w", n, ErrInvalidPin)
	}
	return Pin{port: p, mask: 1 << n}, nil
}

// Pin is a single GPIO pin.
type Pin struct {
	port *Port
	mask uint32
}

// Configure sets the pin's mode.
func (pin Pin) Configure(mode Mode) error {
	p := pin.port
	switch mode {
	case ModeInput, ModeInputPullUp:
		p.reg(offIOFEn).ClearBits(pin.mask)
		p.reg(offOutputEn).ClearBits(pin.mask)
		p.reg(offInputEn).SetBits(pin.mask)
		if mode == ModeInputPullUp {
			p.reg(offPUE).SetBits(pin.mask)
		} else {
			p.reg(offPUE).ClearBits(pin.mask)
		}
	case ModeOutput:
		p.reg(offIOFEn).ClearBits(pin.mask)
		p.reg(offInputEn).ClearBits(pin.mask)
		p.reg(offOutputEn).SetBits(pin.mask)
	case ModeIOF0, ModeIOF1:
		if mode == ModeIOF1 {
			p.reg(offIOFSel).SetBits(pin.mask)
		} else {
			p.reg(offIOFSel).ClearBits(pin.mask)
		}
		p.reg(offIOFEn).SetBits(pin.mask)
	default:
		return fmt.Errorf("gpio: configure %v", mode)
	}
	return nil
}

func (pin Pin) High() { pin.port.reg(offOutputVal).SetBits(pin.mask) }
func (pin Pin) Low()  { pin.port.reg(offOutputVal).ClearBits(pin.mask) }

// Set drives the pin high or low.
func (pin Pin) Set(high bool) {
	if high {
		pin.High()
	} else {
		pin.Low()
	}
}

// Get reads the input value of the pin.
func (pin Pin) Get() bool {
	return pin.port.reg(offInputVal).HasBits(pin.mask)
}

// Toggle inverts the output value of the pin.
func (pin Pin) Toggle() {
	r := pin.port.reg(offOutputVal)
	r.Set(r.Get() ^ pin.mask)
}

// SetInverted makes the pad drive the inverse of the output value. The
// HiFive1 LEDs are active low.
func (pin Pin) SetInverted(inverted bool) {
	if inverted {
		pin.port.reg(offOutXor).SetBits(pin.mask)
	} else {
		pin.port.reg(offOutXor).ClearBits(pin.mask)
	}
}

// SetDriveStrength selects the high-current pad driver.
func (pin Pin) SetDriveStrength(high bool) {
	if high {
		pin.port.reg(offDS).SetBits(pin.mask)
	} else {
		pin.port.reg(offDS).ClearBits(pin.mask)
	}
}
