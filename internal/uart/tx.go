package uart

import (
	"errors"
	"fmt"
)

var (
	ErrBurstTooLarge = errors.New("burst exceeds guaranteed FIFO room")
	ErrEmptyMessage  = errors.New("empty message")
)

// GuaranteedRoom is the number of free transmit FIFO slots when the tx
// watermark interrupt for watermark w fires.
func GuaranteedRoom(w int) int {
	return FIFODepth - w + 1
}

// TxEngine streams a fixed message out of a port in bursts, one burst per tx
// watermark interrupt. It is driven only from trap context; the foreground
// reads Cursor and Wraps inside a critical section.
type TxEngine struct {
	port    *Port
	message []byte
	burst   int

	cursor int
	wraps  uint64
}

// NewTxEngine copies message and checks that burst bytes always fit in the
// room the watermark interrupt guarantees.
func NewTxEngine(port *Port, message []byte, burst, watermark int) (*TxEngine, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("uart: tx engine: %w", ErrEmptyMessage)
	}
	if watermark < 1 || watermark > cntMask {
		return nil, fmt.Errorf("uart: tx engine: watermark %d: %w", watermark, ErrInvalidWatermark)
	}
	if burst < 1 || burst >= FIFODepth || burst > GuaranteedRoom(watermark) {
		return nil, fmt.Errorf("uart: tx engine: burst %d with watermark %d (room %d): %w",
			burst, watermark, GuaranteedRoom(watermark), ErrBurstTooLarge)
	}

	msg := make([]byte, len(message))
	copy(msg, message)

	return &TxEngine{
		port:    port,
		message: msg,
		burst:   burst,
	}, nil
}

// Refill writes the next burst into txdata without polling and advances the
// cursor, wrapping to the start of the message after the last byte.
func (e *TxEngine) Refill() {
	n := len(e.message) - e.cursor
	if n > e.burst {
		n = e.burst
	}
	for _, b := range e.message[e.cursor : e.cursor+n] {
		e.port.writeData(b)
	}
	e.cursor += n
	if e.cursor == len(e.message) {
		e.cursor = 0
		e.wraps++
	}
}

// Cursor is the index of the next byte to send.
func (e *TxEngine) Cursor() int {
	return e.cursor
}

// Wraps counts completed passes over the message.
func (e *TxEngine) Wraps() uint64 {
	return e.wraps
}

// Len returns the message length.
func (e *TxEngine) Len() int {
	return len(e.message)
}

// Burst returns the bytes written per refill.
func (e *TxEngine) Burst() int {
	return e.burst
}
