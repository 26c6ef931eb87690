// Package uart drives the two SiFive UARTs of the FE310.
//
// A Port is the only owner of its register file. Setup calls return errors;
// the byte-level calls used from trap context do not allocate and do not
// block, except WriteByte, which waits for FIFO room.
package uart

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hifive1/internal/mmio"
)

// Register file addresses on the FE310-G002.
const (
	UART0Base = 0x1001_3000
	UART1Base = 0x1002_3000
)

// FIFODepth is the depth of both the transmit and receive FIFOs.
const FIFODepth = 8

// Register offsets
const (
	regTxData = 0x00
	regRxData = 0x04
	regTxCtrl = 0x08
	regRxCtrl = 0x0C
	regIE     = 0x10
	regIP     = 0x14
	regDiv    = 0x18
)

const (
	txFull   = 1 << 31
	rxEmpty  = 1 << 31
	ctrlEn   = 1 << 0
	ctrlStop = 1 << 1
	cntPos   = 16
	cntMask  = 7
)

// Interrupts is a set of UART interrupt conditions as laid out in ie and ip.
type Interrupts uint32

const (
	TxWatermark Interrupts = 1 << 0
	RxWatermark Interrupts = 1 << 1
)

var (
	ErrInvalidInstance  = errors.New("no such UART instance")
	ErrInvalidBaud      = errors.New("invalid baud rate")
	ErrInvalidStopBits  = errors.New("stop bits must be 1 or 2")
	ErrInvalidWatermark = errors.New("watermark out of range")
	ErrRxEmpty          = errors.New("receive FIFO empty")
)

// Port is one UART instance.
type Port struct {
	bus      mmio.Bus
	base     uint64
	instance int
}

// Open returns the port for UART instance 0 or 1.
func Open(bus mmio.Bus, instance int) (*Port, error) {
	var base uint64
	switch instance {
	case 0:
		base = UART0Base
	case 1:
		base = UART1Base
	default:
		return nil, fmt.Errorf("uart: open %d: %w", instance, ErrInvalidInstance)
	}
	return &Port{bus: bus, base: base, instance: instance}, nil
}

// Instance returns the UART number.
func (p *Port) Instance() int {
	return p.instance
}

func (p *Port) reg(off uint64) mmio.Register32 {
	return mmio.Reg32(p.bus, p.base+off)
}

// Divisor returns the div register value for baud at clockHz. The UART runs
// at clockHz/(div+1), so the quotient is rounded to the nearest integer
// before subtracting one.
func Divisor(clockHz, baud uint32) (uint32, error) {
	if baud == 0 || baud > clockHz {
		return 0, fmt.Errorf("uart: %d baud at %d Hz: %w", baud, clockHz, ErrInvalidBaud)
	}
	return uint32((uint64(clockHz)+uint64(baud)/2)/uint64(baud)) - 1, nil
}

// SetBaud programs the divisor for baud at clockHz.
func (p *Port) SetBaud(clockHz, baud uint32) error {
	div, err := Divisor(clockHz, baud)
	if err != nil {
		return err
	}
	p.SetDivisor(div)
	return nil
}

// SetDivisor writes div directly.
func (p *Port) SetDivisor(div uint32) {
	p.reg(regDiv).Set(div)
}

// SetStopBits selects one or two stop bits.
func (p *Port) SetStopBits(n int) error {
	switch n {
	case 1:
		p.reg(regTxCtrl).ClearBits(ctrlStop)
	case 2:
		p.reg(regTxCtrl).SetBits(ctrlStop)
	default:
		return fmt.Errorf("uart%d: %d stop bits: %w", p.instance, n, ErrInvalidStopBits)
	}
	return nil
}

func checkWatermark(n int) error {
	if n < 0 || n > cntMask {
		return fmt.Errorf("watermark %d: %w", n, ErrInvalidWatermark)
	}
	return nil
}

// SetTxWatermark sets txcnt. The tx watermark interrupt is pending while the
// transmit FIFO holds fewer than n bytes.
func (p *Port) SetTxWatermark(n int) error {
	if err := checkWatermark(n); err != nil {
		return fmt.Errorf("uart%d: tx %w", p.instance, err)
	}
	p.reg(regTxCtrl).ReplaceBits(uint32(n), cntMask, cntPos)
	return nil
}

// SetRxWatermark sets rxcnt. The rx watermark interrupt is pending while the
// receive FIFO holds more than n bytes.
func (p *Port) SetRxWatermark(n int) error {
	if err := checkWatermark(n); err != nil {
		return fmt.Errorf("uart%d: rx %w", p.instance, err)
	}
	p.reg(regRxCtrl).ReplaceBits(uint32(n), cntMask, cntPos)
	return nil
}

// Transmitter and receiver enables.
func (p *Port) EnableTx()  { p.reg(regTxCtrl).SetBits(ctrlEn) }
func (p *Port) DisableTx() { p.reg(regTxCtrl).ClearBits(ctrlEn) }
func (p *Port) EnableRx()  { p.reg(regRxCtrl).SetBits(ctrlEn) }
func (p *Port) DisableRx() { p.reg(regRxCtrl).ClearBits(ctrlEn) }

// EnableInterrupts sets bits in ie.
func (p *Port) EnableInterrupts(mask Interrupts) {
	p.reg(regIE).SetBits(uint32(mask))
}

// DisableInterrupts clears bits in ie.
func (p *Port) DisableInterrupts(mask Interrupts) {
	p.reg(regIE).ClearBits(uint32(mask))
}

// EnabledInterrupts reads ie.
func (p *Port) EnabledInterrupts() Interrupts {
	return Interrupts(p.reg(regIE).Get())
}

// Pending reads ip once.
func (p *Port) Pending() Interrupts {
	return Interrupts(p.reg(regIP).Get())
}

// TxFull reports whether the transmit FIFO is full.
func (p *Port) TxFull() bool {
	return p.reg(regTxData).HasBits(txFull)
}

// writeData stores b into txdata without checking for room.
func (p *Port) writeData(b byte) {
	p.reg(regTxData).Set(uint32(b))
}

// WriteByte waits for room in the transmit FIFO, then queues b.
func (p *Port) WriteByte(b byte) error {
	for p.TxFull() {
	}
	p.writeData(b)
	return nil
}

// Write implements io.Writer with WriteByte.
func (p *Port) Write(b []byte) (int, error) {
	for _, c := range b {
		if err := p.WriteByte(c); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// ReadByte pops one byte from the receive FIFO. It returns ErrRxEmpty instead
// of waiting.
func (p *Port) ReadByte() (byte, error) {
	v := p.reg(regRxData).Get()
	if v&rxEmpty != 0 {
		return 0, ErrRxEmpty
	}
	return byte(v), nil
}

// Config is the line and interrupt setup applied by Configure.
type Config struct {
	Baud        uint32
	StopBits    int
	TxWatermark int
	RxWatermark int
	RxEnable    bool
	Interrupts  Interrupts
}

// Configure programs the port in this order: divisor, stop bits, tx
// watermark, tx enable, rx watermark and rx enable when requested, and the
// interrupt enables last so no interrupt fires on a half-configured port.
func (p *Port) Configure(clockHz uint32, cfg Config) error {
	if err := p.SetBaud(clockHz, cfg.Baud); err != nil {
		return err
	}
	if err := p.SetStopBits(cfg.StopBits); err != nil {
		return err
	}
	if err := p.SetTxWatermark(cfg.TxWatermark); err != nil {
		return err
	}
	p.EnableTx()
	if cfg.RxEnable {
		if err := p.SetRxWatermark(cfg.RxWatermark); err != nil {
			return err
		}
		p.EnableRx()
	}
	if cfg.Interrupts != 0 {
		p.EnableInterrupts(cfg.Interrupts)
	}
	return nil
}
