package board

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tinyrange/hifive1/internal/gpio"
	"github.com/tinyrange/hifive1/internal/hv/fe310"
	"github.com/tinyrange/hifive1/internal/riscv"
	"github.com/tinyrange/hifive1/internal/trap"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bootMachine(t *testing.T, cfg Config) (*fe310.Machine, *Board, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	m := fe310.NewMachine(fe310.Options{ClockHz: uint64(cfg.ClockHz), Console: out})

	b, err := New(m.Hart, m.Bus, cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	m.Link(cfg.Vector.Entry, b.HandleTrap)

	if err := b.Boot(); err != nil {
		t.Fatal(err)
	}
	return m, b, out
}

// runUntil drives the foreground loop until done reports true.
func runUntil(t *testing.T, b *Board, done func() bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := b.Run(ctx, func() {
		if done() {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}

func TestStreamsWelcomeMessage(t *testing.T) {
	cfg := DefaultConfig()
	m, b, out := bootMachine(t, cfg)

	runUntil(t, b, func() bool { return b.Progress().Wraps >= 3 })
	// Let the FIFO drain.
	m.Tick(100_000)

	want := strings.Repeat(DefaultMessage, 3)
	if !strings.HasPrefix(out.String(), want) {
		t.Fatalf("output = %q, want prefix %q", out.String(), want)
	}

	p := b.Progress()
	if p.Len != len(DefaultMessage) || p.Bytes() < uint64(3*len(DefaultMessage)) {
		t.Fatalf("progress = %+v", p)
	}

	s := b.Stats()
	if s.TxRefills == 0 || s.Spurious != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if m.PLIC.Claims != m.PLIC.Completes {
		t.Fatalf("claims=%d completes=%d", m.PLIC.Claims, m.PLIC.Completes)
	}
	if m.UART0.Dropped != 0 {
		t.Fatalf("%d bytes written to a full FIFO", m.UART0.Dropped)
	}
	if err := m.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestBootRoutesUARTPins(t *testing.T) {
	m, _, _ := bootMachine(t, DefaultConfig())

	for _, pin := range []uint{gpio.PinUART0RX, gpio.PinUART0TX} {
		if on, sel := m.GPIO.IOF(pin); !on || sel != 0 {
			t.Errorf("pin %d: iof enabled=%v sel=%d, want IOF0", pin, on, sel)
		}
	}
	if m.PLIC.Claims == 0 {
		t.Fatal("enabling the tx watermark interrupt did not trap")
	}
}

func TestReceivedBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UART.RxInterrupt = true
	m, b, _ := bootMachine(t, cfg)

	if err := m.EnqueueInput(0, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	var got []byte
	buf := make([]byte, 16)
	runUntil(t, b, func() bool {
		n := b.ReadReceived(buf)
		got = append(got, buf[:n]...)
		return len(got) >= 5
	})

	if string(got) != "hello" {
		t.Fatalf("received %q", got)
	}
	if s := b.Stats(); s.RxBytes != 5 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestReadReceivedWithoutRx(t *testing.T) {
	_, b, _ := bootMachine(t, DefaultConfig())
	if n := b.ReadReceived(make([]byte, 4)); n != 0 {
		t.Fatalf("n = %d", n)
	}
}

func TestHeartbeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimerInterval = 16
	cfg.Heartbeat = true
	m, b, _ := bootMachine(t, cfg)

	runUntil(t, b, func() bool { return b.Stats().Timer >= 3 })

	m.Hart.ClearCSR(riscv.Mstatus, riscv.MstatusMIE)
	timer := b.Stats().Timer

	// The LED is active low and starts off, so the pin reads high after an
	// even number of toggles.
	if got, want := m.GPIO.Output(gpio.PinLEDGreen), timer%2 == 0; got != want {
		t.Fatalf("after %d toggles led pin = %v, want %v", timer, got, want)
	}
	if b.Uptime() <= 0 {
		t.Fatal("rtc not counting")
	}
}

// rejectHart never latches mtvec.
type rejectHart struct {
	*fe310.Hart
}

func (h rejectHart) WriteCSR(c riscv.CSR, v uint32) {
	if c == riscv.Mtvec {
		return
	}
	h.Hart.WriteCSR(c, v)
}

func TestBootFailureHalts(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	b, err := New(rejectHart{m.Hart}, m.Bus, DefaultConfig(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Boot(); !errors.Is(err, trap.ErrVectorRejected) {
		t.Fatalf("boot = %v, want ErrVectorRejected", err)
	}
	if !errors.Is(m.Err(), trap.ErrVectorRejected) {
		t.Fatalf("hart err = %v", m.Err())
	}
	if m.PLIC.Claims != 0 || m.UART0.Transmitted != 0 {
		t.Fatal("boot continued after failing")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	cfg := DefaultConfig()
	cfg.UART.Burst = 0
	if _, err := New(m.Hart, m.Bus, cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}
