package gpio

import (
	"errors"
	"testing"

	"github.com/tinyrange/hifive1/internal/hv/fe310"
)

func TestPinRange(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	p := New(m.Bus, Base)

	if _, err := p.Pin(32); !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("Pin(32) = %v", err)
	}
	if _, err := p.Pin(-1); !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("Pin(-1) = %v", err)
	}
}

func TestOutput(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	p := New(m.Bus, Base)

	led, err := p.Pin(PinLEDRed)
	if err != nil {
		t.Fatal(err)
	}
	if err := led.Configure(ModeOutput); err != nil {
		t.Fatal(err)
	}

	led.High()
	if !m.GPIO.Output(PinLEDRed) {
		t.Fatal("pin not high")
	}
	led.Toggle()
	if m.GPIO.Output(PinLEDRed) {
		t.Fatal("toggle did not drive low")
	}
	led.SetInverted(true)
	if !m.GPIO.Output(PinLEDRed) {
		t.Fatal("inverted low output should drive the pad high")
	}
	led.Set(true)
	if m.GPIO.Output(PinLEDRed) {
		t.Fatal("inverted high output should drive the pad low")
	}
}

func TestIOFSelection(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	p := New(m.Bus, Base)

	for _, n := range []int{PinUART0RX, PinUART0TX} {
		pin, err := p.Pin(n)
		if err != nil {
			t.Fatal(err)
		}
		if err := pin.Configure(ModeIOF0); err != nil {
			t.Fatal(err)
		}
		if en, sel := m.GPIO.IOF(uint(n)); !en || sel != 0 {
			t.Fatalf("pin %d: iof_en=%v iof_sel=%d", n, en, sel)
		}
	}

	pin, _ := p.Pin(PinLEDBlue)
	if err := pin.Configure(ModeIOF1); err != nil {
		t.Fatal(err)
	}
	if en, sel := m.GPIO.IOF(PinLEDBlue); !en || sel != 1 {
		t.Fatalf("iof_en=%v iof_sel=%d", en, sel)
	}

	if err := pin.Configure(Mode(9)); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestInput(t *testing.T) {
	m := fe310.NewMachine(fe310.Options{})
	p := New(m.Bus, Base)

	pin, err := p.Pin(5)
	if err != nil {
		t.Fatal(err)
	}
	if err := pin.Configure(ModeInputPullUp); err != nil {
		t.Fatal(err)
	}
	if pin.Get() {
		t.Fatal("pin high with nothing driving it")
	}
	m.GPIO.SetInput(5, true)
	if !pin.Get() {
		t.Fatal("pin low while driven high")
	}
}
