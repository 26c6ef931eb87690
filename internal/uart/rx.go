package uart

// RxBufferSize is the capacity of an RxBuffer.
const RxBufferSize = 64

// RxBuffer is a fixed ring the trap handler drains the receive FIFO into.
// When it is full, new bytes are dropped and counted.
type RxBuffer struct {
	buf  [RxBufferSize]byte
	head int
	n    int

	Dropped uint64
}

// Fill moves every byte in the receive FIFO of p into r and returns how many
// bytes it read from the FIFO.
func (r *RxBuffer) Fill(p *Port) int {
	var read int
	for {
		b, err := p.ReadByte()
		if err != nil {
			return read
		}
		read++
		r.Put(b)
	}
}

// Put appends b, or drops it if the ring is full.
func (r *RxBuffer) Put(b byte) bool {
	if r.n == len(r.buf) {
		r.Dropped++
		return false
	}
	r.buf[(r.head+r.n)%len(r.buf)] = b
	r.n++
	return true
}

// Read moves up to len(p) buffered bytes into p.
func (r *RxBuffer) Read(p []byte) int {
	var n int
	for n < len(p) && r.n > 0 {
		p[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.n--
		n++
	}
	return n
}

// Len returns the number of buffered bytes.
func (r *RxBuffer) Len() int {
	return r.n
}
