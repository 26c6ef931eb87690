package fe310

import (
	"io"
	"sync"
)

// UART register offsets
const (
	UARTRegTxData = 0x00 // Transmit data, bit 31 = full
	UARTRegRxData = 0x04 // Receive data, bit 31 = empty
	UARTRegTxCtrl = 0x08 // Transmit control
	UARTRegRxCtrl = 0x0C // Receive control
	UARTRegIE     = 0x10 // Interrupt enable
	UARTRegIP     = 0x14 // Interrupt pending
	UARTRegDiv    = 0x18 // Baud rate divisor
)

// Register bits
const (
	UARTTxFull    = 1 << 31
	UARTRxEmpty   = 1 << 31
	UARTCtrlEn    = 1 << 0
	UARTCtrlNStop = 1 << 1
	UARTCntShift  = 16
	UARTCntMask   = 7
	UARTIPTxWM    = 1 << 0
	UARTIPRxWM    = 1 << 1

	UARTFIFODepth = 8
)

type fifo struct {
	buf  [UARTFIFODepth]byte
	head int
	n    int
}

func (f *fifo) push(b byte) bool {
	if f.n == len(f.buf) {
		return false
	}
	f.buf[(f.head+f.n)%len(f.buf)] = b
	f.n++
	return true
}

func (f *fifo) pop() (byte, bool) {
	if f.n == 0 {
		return 0, false
	}
	b := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.n--
	return b, true
}

// UART models a SiFive UART with 8-entry transmit and receive FIFOs. The
// transmitter shifts one frame every (div+1)*(1+8+stop) bus cycles.
type UART struct {
	mu sync.Mutex

	Output io.Writer
	line   LineInterrupt

	txctrl uint32
	rxctrl uint32
	ie     uint32
	div    uint32

	tx fifo
	rx fifo

	shift uint64

	// Loopback feeds every transmitted frame back into the receiver, as if
	// the TX and RX pins were wired together.
	Loopback bool

	// Transmitted counts frames shifted out. Dropped counts writes to a full
	// transmit FIFO. Overruns counts input lost to a full receive FIFO.
	Transmitted uint64
	Dropped     uint64
	Overruns    uint64
}

// NewUART creates a new UART whose interrupt output drives line.
func NewUART(output io.Writer, line LineInterrupt) *UART {
	if output == nil {
		output = io.Discard
	}
	if line == nil {
		line = LineInterruptDetached()
	}
	return &UART{
		Output: output,
		line:   line,
	}
}

// Size implements Device
func (uart *UART) Size() uint64 {
	return UARTSize
}

// Read implements Device
func (uart *UART) Read(offset uint64, size int) (uint64, error) {
	uart.mu.Lock()
	defer uart.mu.Unlock()

	switch offset {
	case UARTRegTxData:
		if uart.tx.n == UARTFIFODepth {
			return UARTTxFull, nil
		}
		return 0, nil

	case UARTRegRxData:
		b, ok := uart.rx.pop()
		if !ok {
			return UARTRxEmpty, nil
		}
		uart.updateInterrupt()
		return uint64(b), nil

	case UARTRegTxCtrl:
		return uint64(uart.txctrl), nil

	case UARTRegRxCtrl:
		return uint64(uart.rxctrl), nil

	case UARTRegIE:
		return uint64(uart.ie), nil

	case UARTRegIP:
		return uint64(uart.ip()), nil

	case UARTRegDiv:
		return uint64(uart.div), nil
	}

	return 0, nil
}

// Write implements Device
func (uart *UART) Write(offset uint64, size int, value uint64) error {
	uart.mu.Lock()
	defer uart.mu.Unlock()

	v := uint32(value)

	switch offset {
	case UARTRegTxData:
		if !uart.tx.push(byte(v)) {
			uart.Dropped++
		}

	case UARTRegTxCtrl:
		uart.txctrl = v & (UARTCtrlEn | UARTCtrlNStop | UARTCntMask<<UARTCntShift)

	case UARTRegRxCtrl:
		uart.rxctrl = v & (UARTCtrlEn | UARTCntMask<<UARTCntShift)

	case UARTRegIE:
		uart.ie = v & (UARTIPTxWM | UARTIPRxWM)

	case UARTRegDiv:
		uart.div = v & 0xFFFF
	}

	uart.updateInterrupt()
	return nil
}

// ip computes the raw watermark conditions.
func (uart *UART) ip() uint32 {
	var ip uint32
	if uint32(uart.tx.n) < (uart.txctrl>>UARTCntShift)&UARTCntMask {
		ip |= UARTIPTxWM
	}
	if uint32(uart.rx.n) > (uart.rxctrl>>UARTCntShift)&UARTCntMask {
		ip |= UARTIPRxWM
	}
	return ip
}

func (uart *UART) updateInterrupt() {
	uart.line.SetLevel(uart.ip()&uart.ie != 0)
}

// FrameCycles returns the bus cycles needed to shift one frame.
func (uart *UART) FrameCycles() uint64 {
	uart.mu.Lock()
	defer uart.mu.Unlock()
	return uart.frameCycles()
}

func (uart *UART) frameCycles() uint64 {
	stop := uint64(1)
	if uart.txctrl&UARTCtrlNStop != 0 {
		stop = 2
	}
	return uint64(uart.div+1) * (1 + 8 + stop)
}

// Tick implements Ticker
func (uart *UART) Tick(cycles uint64) {
	uart.mu.Lock()
	defer uart.mu.Unlock()

	if uart.txctrl&UARTCtrlEn == 0 || uart.tx.n == 0 {
		uart.shift = 0
		return
	}

	uart.shift += cycles
	frame := uart.frameCycles()
	var out []byte
	for uart.shift >= frame && uart.tx.n > 0 {
		b, _ := uart.tx.pop()
		out = append(out, b)
		uart.shift -= frame
	}
	if uart.tx.n == 0 {
		uart.shift = 0
	}
	if len(out) > 0 {
		uart.Transmitted += uint64(len(out))
		uart.Output.Write(out)
		if uart.Loopback {
			uart.receive(out)
		}
		uart.updateInterrupt()
	}
}

// EnqueueInput delivers bytes on the receive line. Bytes arriving while the
// receiver is disabled are lost; bytes arriving to a full FIFO are counted as
// overruns. It is safe to call from any goroutine.
func (uart *UART) EnqueueInput(data []byte) {
	uart.mu.Lock()
	defer uart.mu.Unlock()

	uart.receive(data)
	uart.updateInterrupt()
}

func (uart *UART) receive(data []byte) {
	if uart.rxctrl&UARTCtrlEn == 0 {
		return
	}
	for _, b := range data {
		if !uart.rx.push(b) {
			uart.Overruns++
		}
	}
}

// TxLevel returns the number of bytes waiting in the transmit FIFO.
func (uart *UART) TxLevel() int {
	uart.mu.Lock()
	defer uart.mu.Unlock()
	return uart.tx.n
}

// RxLevel returns the number of bytes waiting in the receive FIFO.
func (uart *UART) RxLevel() int {
	uart.mu.Lock()
	defer uart.mu.Unlock()
	return uart.rx.n
}

var (
	_ Device = (*UART)(nil)
	_ Ticker = (*UART)(nil)
)
