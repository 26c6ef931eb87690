package fe310

import "sync"

// GPIO register offsets
const (
	GPIORegInputVal  = 0x00
	GPIORegInputEn   = 0x04
	GPIORegOutputEn  = 0x08
	GPIORegOutputVal = 0x0C
	GPIORegPUE       = 0x10
	GPIORegDS        = 0x14
	GPIORegIOFEn     = 0x38
	GPIORegIOFSel    = 0x3C
	GPIORegOutXor    = 0x40
)

// GPIO models the 32-pin GPIO block. Interrupt-on-change is not modelled.
type GPIO struct {
	mu sync.Mutex

	regs [GPIORegOutXor/4 + 1]uint32

	// external levels driven onto the pins
	pins uint32
}

// NewGPIO creates a GPIO block with every pin floating low.
func NewGPIO() *GPIO {
	return &GPIO{}
}

// Size implements Device
func (g *GPIO) Size() uint64 {
	return GPIOSize
}

// Read implements Device
func (g *GPIO) Read(offset uint64, size int) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if offset == GPIORegInputVal {
		return uint64(g.pins & g.regs[GPIORegInputEn/4]), nil
	}
	if offset/4 < uint64(len(g.regs)) {
		return uint64(g.regs[offset/4]), nil
	}
	return 0, nil
}

// Write implements Device
func (g *GPIO) Write(offset uint64, size int, value uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if offset == GPIORegInputVal {
		return nil
	}
	if offset/4 < uint64(len(g.regs)) {
		g.regs[offset/4] = uint32(value)
	}
	return nil
}

// SetInput drives pin from outside the chip.
func (g *GPIO) SetInput(pin uint, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if high {
		g.pins |= 1 << pin
	} else {
		g.pins &^= 1 << pin
	}
}

// Output reports the level the chip drives on pin, or false if the pin is not
// an enabled GPIO output.
func (g *GPIO) Output(pin uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	mask := uint32(1) << pin
	if g.regs[GPIORegOutputEn/4]&mask == 0 || g.regs[GPIORegIOFEn/4]&mask != 0 {
		return false
	}
	return (g.regs[GPIORegOutputVal/4]^g.regs[GPIORegOutXor/4])&mask != 0
}

// IOF reports whether pin is handed to a hardware function, and which one.
func (g *GPIO) IOF(pin uint) (enabled bool, sel uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	mask := uint32(1) << pin
	return g.regs[GPIORegIOFEn/4]&mask != 0, (g.regs[GPIORegIOFSel/4] >> pin) & 1
}

var _ Device = (*GPIO)(nil)
