package plic

import (
	"errors"
	"testing"

	"github.com/tinyrange/hifive1/internal/hv/fe310"
)

func newController(t *testing.T) (*Controller, *fe310.Machine) {
	t.Helper()
	m := fe310.NewMachine(fe310.Options{})
	return New(m.Bus, Base), m
}

func TestSourceNames(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{SourceNone, "none"},
		{SourceUART0, "uart0"},
		{GPIO(0), "gpio0"},
		{GPIO(31), "gpio31"},
		{PWM(0, 0), "pwm0a"},
		{PWM(2, 3), "pwm2d"},
		{SourceI2C, "i2c"},
		{SourceAll, "all"},
		{Source(99), "source(99)"},
	}
	for _, tt := range tests {
		if got := tt.src.String(); got != tt.want {
			t.Errorf("Source(%d).String() = %q, want %q", uint32(tt.src), got, tt.want)
		}
	}

	if GPIO(31) != 39 || PWM(2, 3) != 51 {
		t.Fatalf("GPIO(31)=%d PWM(2,3)=%d", GPIO(31), PWM(2, 3))
	}
	if GPIO(32) != SourceNone || PWM(3, 0) != SourceNone {
		t.Fatal("out-of-range helpers should return SourceNone")
	}
	if SourceNone.Valid() || SourceAll.Valid() || !SourceI2C.Valid() {
		t.Fatal("Valid() boundaries wrong")
	}
}

func TestEnableDisable(t *testing.T) {
	c, _ := newController(t)

	if err := c.EnableSource(SourceUART0); err != nil {
		t.Fatal(err)
	}
	if err := c.EnableSource(SourceI2C); err != nil {
		t.Fatal(err)
	}
	if !c.Enabled(SourceUART0) || !c.Enabled(SourceI2C) {
		t.Fatal("sources not enabled")
	}
	if c.Enabled(SourceUART1) {
		t.Fatal("enable touched a neighbouring bit")
	}

	if err := c.DisableSource(SourceUART0); err != nil {
		t.Fatal(err)
	}
	if c.Enabled(SourceUART0) || !c.Enabled(SourceI2C) {
		t.Fatal("disable cleared the wrong bits")
	}

	if err := c.DisableSource(SourceAll); err != nil {
		t.Fatal(err)
	}
	if c.Enabled(SourceI2C) {
		t.Fatal("SourceAll left a source enabled")
	}
}

func TestInvalidArguments(t *testing.T) {
	c, _ := newController(t)

	if err := c.EnableSource(SourceAll); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("EnableSource(all) = %v", err)
	}
	if err := c.DisableSource(SourceNone); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("DisableSource(none) = %v", err)
	}
	if err := c.SetPriority(Source(60), 1); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("SetPriority(60) = %v", err)
	}
	if err := c.SetPriority(SourceUART0, 8); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("SetPriority(uart0, 8) = %v", err)
	}
	if err := c.SetThreshold(8); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("SetThreshold(8) = %v", err)
	}
	if _, err := c.Priority(SourceNone); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("Priority(none) = %v", err)
	}
}

func TestPriorityAndThresholdReadback(t *testing.T) {
	c, _ := newController(t)

	if err := c.SetPriority(SourceUART0, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.SetThreshold(3); err != nil {
		t.Fatal(err)
	}
	if p, err := c.Priority(SourceUART0); err != nil || p != 4 {
		t.Fatalf("Priority = %d, %v", p, err)
	}
	if c.Threshold() != 3 {
		t.Fatalf("Threshold = %d", c.Threshold())
	}
}

func TestServePairsClaimAndComplete(t *testing.T) {
	c, m := newController(t)

	if err := c.SetPriority(SourceUART0, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.SetThreshold(3); err != nil {
		t.Fatal(err)
	}
	if err := c.EnableSource(SourceUART0); err != nil {
		t.Fatal(err)
	}
	m.PLIC.SetLevel(uint32(SourceUART0), true)

	if !c.Pending(SourceUART0) {
		t.Fatal("source not pending")
	}

	var handled []Source
	src, ok := c.Serve(func(s Source) {
		handled = append(handled, s)
		if !m.PLIC.InService(uint32(s)) {
			t.Error("source not in service inside handler")
		}
	})
	if !ok || src != SourceUART0 || len(handled) != 1 {
		t.Fatalf("Serve = %v, %v; handled %v", src, ok, handled)
	}
	if m.PLIC.InService(uint32(SourceUART0)) {
		t.Fatal("Serve did not complete the source")
	}
	if m.PLIC.Claims != 1 || m.PLIC.Completes != 1 {
		t.Fatalf("claims=%d completes=%d", m.PLIC.Claims, m.PLIC.Completes)
	}

	m.PLIC.SetLevel(uint32(SourceUART0), false)
	// The line was still high at complete, so one more request is latched.
	if _, ok := c.Serve(func(Source) {}); !ok {
		t.Fatal("expected the re-latched request")
	}
	if src, ok := c.Serve(func(Source) { t.Error("handler called with nothing pending") }); ok || src != SourceNone {
		t.Fatalf("Serve on empty = %v, %v", src, ok)
	}
	if m.PLIC.Completes != 2 {
		t.Fatalf("completes = %d, want 2", m.PLIC.Completes)
	}
}

func TestThresholdMasksDelivery(t *testing.T) {
	c, m := newController(t)

	if err := c.SetPriority(SourceUART0, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.SetThreshold(3); err != nil {
		t.Fatal(err)
	}
	if err := c.EnableSource(SourceUART0); err != nil {
		t.Fatal(err)
	}
	m.PLIC.SetLevel(uint32(SourceUART0), true)

	if c.Claim() != SourceNone {
		t.Fatal("priority equal to threshold was delivered")
	}
	if err := c.SetPriority(SourceUART0, 4); err != nil {
		t.Fatal(err)
	}
	if c.Claim() != SourceUART0 {
		t.Fatal("priority above threshold not delivered")
	}
}

func TestPriorityReadbackEverySource(t *testing.T) {
	c, _ := newController(t)

	for s := SourceWatchdog; s <= NumSources; s++ {
		for p := PriorityNever; p <= PriorityMax; p++ {
			if err := c.SetPriority(s, p); err != nil {
				t.Fatalf("SetPriority(%v, %d) = %v", s, p, err)
			}
			if got, err := c.Priority(s); err != nil || got != p {
				t.Fatalf("Priority(%v) = %d, %v; want %d", s, got, err, p)
			}
		}
	}
}

func TestDisableAllStopsClaims(t *testing.T) {
	c, m := newController(t)

	for _, s := range []Source{SourceUART0, GPIO(5), SourceI2C} {
		if err := c.SetPriority(s, 5); err != nil {
			t.Fatal(err)
		}
		if err := c.EnableSource(s); err != nil {
			t.Fatal(err)
		}
		m.PLIC.SetLevel(uint32(s), true)
	}
	if err := c.DisableSource(SourceAll); err != nil {
		t.Fatal(err)
	}

	if !c.Pending(SourceUART0) || !c.Pending(SourceI2C) {
		t.Fatal("requests should stay latched while disabled")
	}
	if src := c.Claim(); src != SourceNone {
		t.Fatalf("claim = %v, want none", src)
	}
	if m.PLIC.Claims != 0 {
		t.Fatalf("claims = %d, want 0", m.PLIC.Claims)
	}
}
