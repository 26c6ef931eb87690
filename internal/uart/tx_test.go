package uart

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewTxEngineValidation(t *testing.T) {
	p, _ := newPort(t, nil)
	msg := []byte("x")

	tests := []struct {
		burst, watermark int
		want             error
	}{
		{4, 4, nil},
		{5, 4, nil},
		{6, 4, ErrBurstTooLarge},
		{7, 2, nil},
		{8, 1, ErrBurstTooLarge},
		{0, 4, ErrBurstTooLarge},
		{1, 0, ErrInvalidWatermark},
		{1, 8, ErrInvalidWatermark},
	}
	for _, tt := range tests {
		_, err := NewTxEngine(p, msg, tt.burst, tt.watermark)
		if tt.want == nil && err != nil {
			t.Errorf("burst=%d watermark=%d: unexpected error %v", tt.burst, tt.watermark, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("burst=%d watermark=%d: err = %v, want %v", tt.burst, tt.watermark, err, tt.want)
		}
	}

	if _, err := NewTxEngine(p, nil, 4, 4); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty message: %v", err)
	}
}

func TestGuaranteedRoom(t *testing.T) {
	for w, want := range map[int]int{1: 8, 4: 5, 7: 2} {
		if got := GuaranteedRoom(w); got != want {
			t.Errorf("GuaranteedRoom(%d) = %d, want %d", w, got, want)
		}
	}
}

func TestRefillWrapsAfterCeilLenOverBurst(t *testing.T) {
	tests := []struct {
		msg   string
		burst int
	}{
		{"Welcome to Learn RISCV\r\n", 4},
		{"0123456789", 4},
		{"abc", 5},
		{"exactly8", 1},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p, m := newPort(t, &out)
		p.EnableTx()

		e, err := NewTxEngine(p, []byte(tt.msg), tt.burst, 1)
		if err != nil {
			t.Fatal(err)
		}

		calls := (len(tt.msg) + tt.burst - 1) / tt.burst
		for i := 0; i < calls; i++ {
			if i > 0 && e.Cursor() == 0 {
				t.Fatalf("%q: cursor wrapped early after %d refills", tt.msg, i)
			}
			e.Refill()
			if e.Cursor() < 0 || e.Cursor() >= e.Len() {
				t.Fatalf("%q: cursor %d out of range", tt.msg, e.Cursor())
			}
			m.Tick(10_000)
		}

		if e.Cursor() != 0 || e.Wraps() != 1 {
			t.Errorf("%q: after %d refills cursor=%d wraps=%d", tt.msg, calls, e.Cursor(), e.Wraps())
		}
		if out.String() != tt.msg {
			t.Errorf("%q: transmitted %q", tt.msg, out.String())
		}
	}
}

func TestRefillRepeatsMessage(t *testing.T) {
	var out bytes.Buffer
	p, m := newPort(t, &out)
	p.EnableTx()

	e, err := NewTxEngine(p, []byte("0123456789"), 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 9; i++ {
		e.Refill()
		m.Tick(10_000)
	}

	if out.String() != strings.Repeat("0123456789", 3) {
		t.Fatalf("transmitted %q", out.String())
	}
	if e.Wraps() != 3 {
		t.Fatalf("wraps = %d", e.Wraps())
	}
}

func TestTxEngineCopiesMessage(t *testing.T) {
	var out bytes.Buffer
	p, m := newPort(t, &out)
	p.EnableTx()

	msg := []byte("abcd")
	e, err := NewTxEngine(p, msg, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	copy(msg, "zzzz")

	e.Refill()
	m.Tick(10_000)
	if out.String() != "abcd" {
		t.Fatalf("transmitted %q", out.String())
	}
}

func TestRxBuffer(t *testing.T) {
	var r RxBuffer

	for i := 0; i < RxBufferSize+6; i++ {
		r.Put(byte(i))
	}
	if r.Len() != RxBufferSize || r.Dropped != 6 {
		t.Fatalf("len=%d dropped=%d", r.Len(), r.Dropped)
	}

	buf := make([]byte, 10)
	if n := r.Read(buf); n != 10 || buf[0] != 0 || buf[9] != 9 {
		t.Fatalf("Read = %d %v", n, buf)
	}
	r.Put(0xAA)
	rest := make([]byte, RxBufferSize)
	n := r.Read(rest)
	if n != RxBufferSize-10+1 || rest[n-1] != 0xAA {
		t.Fatalf("Read = %d, last %#x", n, rest[n-1])
	}
	if r.Len() != 0 {
		t.Fatal("buffer not empty")
	}
}

func TestRxBufferFill(t *testing.T) {
	p, m := newPort(t, nil)
	p.EnableRx()
	if err := m.EnqueueInput(0, []byte("hey")); err != nil {
		t.Fatal(err)
	}

	var r RxBuffer
	if n := r.Fill(p); n != 3 {
		t.Fatalf("Fill = %d", n)
	}
	if m.UART0.RxLevel() != 0 {
		t.Fatal("FIFO not drained")
	}
	buf := make([]byte, 8)
	if n := r.Read(buf); string(buf[:n]) != "hey" {
		t.Fatalf("read %q", buf[:n])
	}
}
